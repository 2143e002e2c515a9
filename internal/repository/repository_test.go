package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/spstaglib/internal/db/dbtest"
	"github.com/rpattn/spstaglib/internal/domain"
	"github.com/rpattn/spstaglib/internal/repository"
)

const principal = "editor"

func newStore(t *testing.T) *repository.Store {
	t.Helper()
	return repository.NewStore(dbtest.NewSQLite(t))
}

func intPtr(v int) *int { return &v }

func createElement(t *testing.T, store *repository.Store, name string) domain.TaxonomyEntity {
	t.Helper()
	e, err := store.Taxonomy.Create(context.Background(), domain.NewElement(name, principal))
	require.NoError(t, err)
	return e
}

func TestVersionRepository(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	v := domain.NewVersion("1.10", principal)
	v.BeginYear = intPtr(2020)
	created, err := store.Versions.Create(ctx, v)
	require.NoError(t, err)

	older := domain.NewVersion("1.1", principal)
	_, err = store.Versions.Create(ctx, older)
	require.NoError(t, err)

	got, err := store.Versions.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.10", got.Version)
	require.NotNil(t, got.BeginYear)
	assert.Equal(t, 2020, *got.BeginYear)
	assert.Nil(t, got.EndYear)
	assert.Equal(t, "1.10 2020-", got.Label())

	listed, err := store.Versions.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "1.1", listed[0].Version)
	assert.Equal(t, "1.10", listed[1].Version)

	later := time.Now().Add(time.Hour)
	got.Audit = got.Audit.Touch("reviewer", later)
	got.EndYear = intPtr(2023)
	updated, err := store.Versions.Update(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, principal, updated.CreatedBy)
	assert.Equal(t, "reviewer", updated.UpdatedBy)
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))
	assert.WithinDuration(t, later, updated.UpdatedAt, time.Millisecond)
	assert.Equal(t, "1.10 2020-2023", updated.Label())

	require.NoError(t, store.Versions.Delete(ctx, created.ID))
	_, err = store.Versions.GetByID(ctx, created.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.True(t, errors.Is(store.Versions.Delete(ctx, created.ID), domain.ErrNotFound))
}

func TestTaxonomyAssociations(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	v1, err := store.Versions.Create(ctx, domain.NewVersion("1.9", principal))
	require.NoError(t, err)
	v2, err := store.Versions.Create(ctx, domain.NewVersion("1.10", principal))
	require.NoError(t, err)

	article := createElement(t, store, "article")
	lang, err := store.Taxonomy.Create(ctx, domain.NewAttribute("xml:lang", principal))
	require.NoError(t, err)
	articleType, err := store.Taxonomy.Create(ctx, domain.NewAttribute("article-type", principal))
	require.NoError(t, err)

	require.NoError(t, store.Taxonomy.SetVersions(ctx, article.ID, []uuid.UUID{v2.ID, v1.ID, v1.ID}))
	require.NoError(t, store.Taxonomy.SetAttributes(ctx, article.ID, []uuid.UUID{lang.ID, articleType.ID}))

	got, err := store.Taxonomy.GetByID(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.KindElement, got.Kind)
	require.Len(t, got.Versions, 2)
	assert.Equal(t, "1.10", got.Versions[0].Version)
	require.Len(t, got.Attributes, 2)
	assert.Equal(t, "article-type", got.Attributes[0].Name)
	assert.Equal(t, domain.KindAttribute, got.Attributes[0].Kind)
	assert.Empty(t, got.Presences)
	assert.NotNil(t, got.Examples)

	ref, err := store.Taxonomy.FindByName(ctx, domain.KindAttribute, "xml:lang")
	require.NoError(t, err)
	assert.Equal(t, lang.ID, ref.ID)
	_, err = store.Taxonomy.FindByName(ctx, domain.KindElement, "xml:lang")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	// Deleting a version drops the association only.
	require.NoError(t, store.Versions.Delete(ctx, v1.ID))
	got, err = store.Taxonomy.GetByID(ctx, article.ID)
	require.NoError(t, err)
	require.Len(t, got.Versions, 1)
	assert.Equal(t, v2.ID, got.Versions[0].ID)

	require.NoError(t, store.Taxonomy.SetAttributes(ctx, article.ID, nil))
	attrs, err := store.Taxonomy.ListAttributes(ctx, []uuid.UUID{article.ID})
	require.NoError(t, err)
	assert.Empty(t, attrs[article.ID])

	elements, err := store.Taxonomy.List(ctx, domain.KindElement)
	require.NoError(t, err)
	require.Len(t, elements, 1)
	attributes, err := store.Taxonomy.List(ctx, domain.KindAttribute)
	require.NoError(t, err)
	require.Len(t, attributes, 2)
	assert.Equal(t, "article-type", attributes[0].Name)
}

func TestPresenceTargetsAreNulledOnDelete(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	articleMeta := createElement(t, store, "article-meta")
	title := createElement(t, store, "article-title")
	once, err := store.OccurrenceNumbers.Create(ctx, domain.NewOccurrenceNumber("once", principal))
	require.NoError(t, err)

	p := domain.NewPresenceRelation(title.ID, principal)
	p.PresentInID = &articleMeta.ID
	p.OccurrenceNumberID = &once.ID
	_, err = store.Presences.Create(ctx, p)
	require.NoError(t, err)

	listed, err := store.Presences.ListByParent(ctx, title.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].PresentIn)
	assert.Equal(t, "article-meta", listed[0].PresentIn.Name)
	require.NotNil(t, listed[0].OccurrenceNumber)
	assert.Equal(t, "article-meta (once)", listed[0].Label())

	require.NoError(t, store.Taxonomy.Delete(ctx, articleMeta.ID))
	require.NoError(t, store.OccurrenceNumbers.Delete(ctx, once.ID))

	listed, err = store.Presences.ListByParent(ctx, title.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, p.ID, listed[0].ID)
	assert.Nil(t, listed[0].PresentInID)
	assert.Nil(t, listed[0].PresentIn)
	assert.Nil(t, listed[0].OccurrenceNumberID)
	assert.Equal(t, "", listed[0].Label())
}

func TestOwnedChildrenCascadeWithParent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	article := createElement(t, store, "article")

	_, err := store.Examples.Create(ctx, domain.NewExample(article.ID, "minimal", principal))
	require.NoError(t, err)
	_, err = store.Notes.Create(ctx, domain.NewNoteBlock(article.ID, "usage", principal))
	require.NoError(t, err)
	_, err = store.Presences.Create(ctx, domain.NewPresenceRelation(article.ID, principal))
	require.NoError(t, err)

	require.NoError(t, store.Taxonomy.Delete(ctx, article.ID))

	examples, err := store.Examples.ListByParent(ctx, article.ID)
	require.NoError(t, err)
	assert.Empty(t, examples)
	notes, err := store.Notes.ListByParent(ctx, article.ID)
	require.NoError(t, err)
	assert.Empty(t, notes)
	presences, err := store.Presences.ListByParent(ctx, article.ID)
	require.NoError(t, err)
	assert.Empty(t, presences)
}

func TestChildOrderingAndReorder(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	article := createElement(t, store, "article")
	body := createElement(t, store, "body")

	var ids []uuid.UUID
	for i, title := range []string{"first", "second", "third"} {
		e := domain.NewExample(article.ID, title, principal)
		e.Description = title + " example"
		e.XMLCodeText = "<" + title + "/>"
		e.SortOrder = i
		created, err := store.Examples.Create(ctx, e)
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}
	before, err := store.Examples.ListByParent(ctx, article.ID)
	require.NoError(t, err)
	other, err := store.Examples.Create(ctx, domain.NewExample(body.ID, "elsewhere", principal))
	require.NoError(t, err)

	listed, err := store.Examples.ListByParent(ctx, article.ID)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, "first", listed[0].Title)
	assert.Equal(t, "third", listed[2].Title)

	require.NoError(t, store.Examples.Reorder(ctx, article.ID, []uuid.UUID{ids[2], ids[0], ids[1]}))
	listed, err = store.Examples.ListByParent(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "first", "second"}, []string{listed[0].Title, listed[1].Title, listed[2].Title})
	assert.Equal(t, 0, listed[0].SortOrder)
	assert.Equal(t, 2, listed[2].SortOrder)

	// Only the sort order moves.
	byID := make(map[uuid.UUID]domain.Example, len(listed))
	for _, e := range listed {
		byID[e.ID] = e
	}
	for _, was := range before {
		now := byID[was.ID]
		assert.Equal(t, was.Title, now.Title)
		assert.Equal(t, was.Description, now.Description)
		assert.Equal(t, was.XMLCodeText, now.XMLCodeText)
		assert.Equal(t, was.ParentID, now.ParentID)
		assert.Equal(t, was.CreatedBy, now.CreatedBy)
		assert.Equal(t, was.UpdatedBy, now.UpdatedBy)
		assert.True(t, was.CreatedAt.Equal(now.CreatedAt))
		assert.True(t, was.UpdatedAt.Equal(now.UpdatedAt))
	}

	err = store.Examples.Reorder(ctx, article.ID, []uuid.UUID{ids[0], ids[1]})
	assert.Contains(t, domain.FieldErrors(err), "order")
	err = store.Examples.Reorder(ctx, article.ID, []uuid.UUID{ids[0], ids[1], other.ID})
	assert.Contains(t, domain.FieldErrors(err), "order")
	err = store.Examples.Reorder(ctx, article.ID, []uuid.UUID{ids[0], ids[0], ids[1]})
	assert.Contains(t, domain.FieldErrors(err), "order")

	byParent, err := store.Examples.ListByParents(ctx, []uuid.UUID{article.ID, body.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, byParent[article.ID], 3)
	assert.Len(t, byParent[body.ID], 1)
}

func TestInstitutionSearchMatchesWildcardsLiterally(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	for _, name := range []string{"Open_Access 100%", "OpenXAccess", `C:\Archive`} {
		_, err := store.Institutions.Create(ctx, domain.Institution{
			ID: uuid.New(), Name: name, Audit: domain.NewAudit(principal, time.Now()),
		})
		require.NoError(t, err)
	}

	for query, want := range map[string][]string{
		"_":      {"Open_Access 100%"},
		"%":      {"Open_Access 100%"},
		"open_a": {"Open_Access 100%"},
		`\`:      {`C:\Archive`},
		"open":   {"OpenXAccess", "Open_Access 100%"},
	} {
		found, err := store.Institutions.Search(ctx, query, 10)
		require.NoError(t, err, query)
		names := make([]string, len(found))
		for i, inst := range found {
			names[i] = inst.Name
		}
		assert.Equal(t, want, names, query)
	}
}

func TestChildUpdateIsScopedToParent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	article := createElement(t, store, "article")
	body := createElement(t, store, "body")

	note, err := store.Notes.Create(ctx, domain.NewNoteBlock(article.ID, "usage", principal))
	require.NoError(t, err)

	note.ParentID = body.ID
	_, err = store.Notes.Update(ctx, note)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCollectionRepository(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	name, err := store.CollectionNames.Create(ctx, domain.NewCollectionName("SciELO Brasil", "pt", principal))
	require.NoError(t, err)
	fapesp, err := store.Institutions.Create(ctx, domain.Institution{
		ID: uuid.New(), Name: "Fundação de Amparo à Pesquisa", Acronym: "FAPESP", Country: "Brazil",
		Audit: domain.NewAudit(principal, time.Now()),
	})
	require.NoError(t, err)
	bireme, err := store.Institutions.Create(ctx, domain.Institution{
		ID: uuid.New(), Name: "BIREME", Audit: domain.NewAudit(principal, time.Now()),
	})
	require.NoError(t, err)

	acron3, mainName := "scl", "SciELO Brazil"
	status := domain.CollectionStatusCertified
	active := true
	founded := time.Date(1998, 3, 1, 0, 0, 0, 0, time.UTC)
	c := domain.NewCollection(principal)
	c.Acron3 = &acron3
	c.MainName = &mainName
	c.NameID = &name.ID
	c.Status = &status
	c.IsActive = &active
	c.FoundationDate = &founded
	_, err = store.Collections.Create(ctx, c)
	require.NoError(t, err)
	require.NoError(t, store.Collections.SetInstitutions(ctx, c.ID, []uuid.UUID{fapesp.ID, bireme.ID}))

	got, err := store.Collections.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Name)
	assert.Equal(t, "SciELO Brasil", got.Name.Text)
	require.NotNil(t, got.Status)
	assert.Equal(t, domain.CollectionStatusCertified, *got.Status)
	assert.Nil(t, got.Type)
	assert.Nil(t, got.HasAnalytics)
	require.NotNil(t, got.IsActive)
	assert.True(t, *got.IsActive)
	require.NotNil(t, got.FoundationDate)
	assert.Equal(t, "1998-03-01", got.FoundationDate.Format(time.DateOnly))
	require.Len(t, got.Institutions, 2)
	assert.Equal(t, "BIREME", got.Institutions[0].Name)

	found, err := store.Institutions.Search(ctx, "fap", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, fapesp.ID, found[0].ID)
	found, err = store.Institutions.Search(ctx, "pesquisa", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)

	// Deleting the name keeps the collection with a null name.
	require.NoError(t, store.CollectionNames.Delete(ctx, name.ID))
	got, err = store.Collections.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got.NameID)
	assert.Nil(t, got.Name)

	// Deleting an institution drops the association only.
	require.NoError(t, store.Institutions.Delete(ctx, bireme.ID))
	got, err = store.Collections.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Institutions, 1)

	require.NoError(t, store.Collections.Delete(ctx, c.ID))
	remaining, err := store.Institutions.List(ctx)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
	_, err = store.Collections.GetByID(ctx, c.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
