// Package seed loads YAML fixtures through the form path, so seeded records are
// validated and audited exactly like edited ones.
package seed

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rpattn/spstaglib/internal/db"
	"github.com/rpattn/spstaglib/internal/domain"
	"github.com/rpattn/spstaglib/internal/forms"
	"github.com/rpattn/spstaglib/internal/repository"
)

// Summary counts the records a load created and updated per kind.
type Summary struct {
	Created map[string]int `json:"created"`
	Updated map[string]int `json:"updated"`
}

func newSummary() Summary {
	return Summary{Created: map[string]int{}, Updated: map[string]int{}}
}

func (s Summary) count(kind string, existed bool) {
	if existed {
		s.Updated[kind]++
		return
	}
	s.Created[kind]++
}

// Loader applies fixture documents. Records that already exist under their
// natural key are updated in place, so loading the same document twice is stable.
type Loader struct {
	forms  *forms.Service
	store  *repository.Store
	logger *zap.SugaredLogger
}

func NewLoader(service *forms.Service, q db.DBTX, logger *zap.SugaredLogger) *Loader {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Loader{forms: service, store: repository.NewStore(q), logger: logger}
}

// LoadFile applies the fixture document at path.
func (l *Loader) LoadFile(ctx context.Context, path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, errors.Wrapf(err, "failed to open fixture %s", path)
	}
	defer f.Close()
	return l.Load(ctx, f)
}

// Load decodes and applies one fixture document.
func (l *Loader) Load(ctx context.Context, r io.Reader) (Summary, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return Summary{}, errors.Wrap(err, "failed to decode fixture")
	}
	return l.Apply(ctx, doc)
}

// Apply submits every record of doc through the form service, dependencies first.
func (l *Loader) Apply(ctx context.Context, doc Document) (Summary, error) {
	summary := newSummary()

	versions, err := l.applyVersions(ctx, doc.Versions, summary)
	if err != nil {
		return summary, err
	}
	occurrences, err := l.applyOccurrenceNumbers(ctx, doc.OccurrenceNumbers, summary)
	if err != nil {
		return summary, err
	}
	if err := l.applyTaxonomy(ctx, doc, versions, occurrences, summary); err != nil {
		return summary, err
	}
	names, err := l.applyCollectionNames(ctx, doc.CollectionNames, summary)
	if err != nil {
		return summary, err
	}
	institutions, err := l.applyInstitutions(ctx, doc.Institutions, summary)
	if err != nil {
		return summary, err
	}
	if err := l.applyCollections(ctx, doc.Collections, names, institutions, summary); err != nil {
		return summary, err
	}

	l.logger.Infow("Applied fixture", "created", summary.Created, "updated", summary.Updated)
	return summary, nil
}

func (l *Loader) applyVersions(ctx context.Context, fixtures []VersionFixture, summary Summary) (map[string]uuid.UUID, error) {
	existing, err := l.store.Versions.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]uuid.UUID, len(existing))
	for _, v := range existing {
		ids[v.Version] = v.ID
	}

	for _, f := range fixtures {
		form := forms.VersionForm{
			Version:    f.Version,
			BeginYear:  f.BeginYear,
			BeginMonth: f.BeginMonth,
			EndYear:    f.EndYear,
			EndMonth:   f.EndMonth,
		}
		id, existed := ids[f.Version]
		if existed {
			form.ID = &id
		}
		saved, err := l.forms.SaveVersion(ctx, form)
		if err != nil {
			return nil, errors.Wrapf(err, "version %q", f.Version)
		}
		ids[saved.Version] = saved.ID
		summary.count(domain.EntitySPSVersion, existed)
	}
	return ids, nil
}

func (l *Loader) applyOccurrenceNumbers(ctx context.Context, texts []string, summary Summary) (map[string]uuid.UUID, error) {
	existing, err := l.store.OccurrenceNumbers.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]uuid.UUID, len(existing))
	for _, o := range existing {
		ids[o.Text] = o.ID
	}

	for _, text := range texts {
		if _, ok := ids[text]; ok {
			summary.count(domain.EntityOccurrenceNumber, true)
			continue
		}
		saved, err := l.forms.SaveOccurrenceNumber(ctx, forms.OccurrenceNumberForm{Text: text})
		if err != nil {
			return nil, errors.Wrapf(err, "occurrence number %q", text)
		}
		ids[saved.Text] = saved.ID
		summary.count(domain.EntityOccurrenceNumber, false)
	}
	return ids, nil
}

type taxonomyKey struct {
	kind domain.TaxonomyKind
	name string
}

type taxonomyEntry struct {
	kind    domain.TaxonomyKind
	fixture TaxonomyFixture
	existed bool
}

// applyTaxonomy creates missing entities first so presences and attribute sets can
// reference entities declared anywhere in the document, then submits full forms.
func (l *Loader) applyTaxonomy(
	ctx context.Context,
	doc Document,
	versions, occurrences map[string]uuid.UUID,
	summary Summary,
) error {
	entries := make([]taxonomyEntry, 0, len(doc.Attributes)+len(doc.Elements))
	for _, f := range doc.Attributes {
		entries = append(entries, taxonomyEntry{kind: domain.KindAttribute, fixture: f})
	}
	for _, f := range doc.Elements {
		entries = append(entries, taxonomyEntry{kind: domain.KindElement, fixture: f})
	}

	ids := make(map[taxonomyKey]uuid.UUID)
	for i := range entries {
		e := &entries[i]
		key := taxonomyKey{e.kind, e.fixture.Name}
		ref, err := l.store.Taxonomy.FindByName(ctx, e.kind, e.fixture.Name)
		switch {
		case err == nil:
			ids[key] = ref.ID
			e.existed = true
			continue
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		saved, err := l.forms.SaveTaxonomy(ctx, forms.TaxonomyForm{
			Kind:        e.kind,
			Name:        e.fixture.Name,
			Description: e.fixture.Description,
		})
		if err != nil {
			return errors.Wrapf(err, "%s %q", e.kind, e.fixture.Name)
		}
		ids[key] = saved.ID
	}

	for _, e := range entries {
		id := ids[taxonomyKey{e.kind, e.fixture.Name}]
		stored := storedChildren{}
		if e.existed {
			current, err := l.store.Taxonomy.GetByID(ctx, id)
			if err != nil {
				return errors.Wrapf(err, "%s %q", e.kind, e.fixture.Name)
			}
			stored = newStoredChildren(current)
		}
		form := forms.TaxonomyForm{
			ID:          &id,
			Kind:        e.kind,
			Name:        e.fixture.Name,
			Description: e.fixture.Description,
		}
		for _, label := range e.fixture.Versions {
			versionID, ok := versions[label]
			if !ok {
				return errors.Newf("%s %q: unknown version %q", e.kind, e.fixture.Name, label)
			}
			form.VersionIDs = append(form.VersionIDs, versionID)
		}
		for _, name := range e.fixture.Attributes {
			attrID, ok := ids[taxonomyKey{domain.KindAttribute, name}]
			if !ok {
				ref, err := l.store.Taxonomy.FindByName(ctx, domain.KindAttribute, name)
				if err != nil {
					return errors.Wrapf(err, "%s %q: attribute %q", e.kind, e.fixture.Name, name)
				}
				attrID = ref.ID
			}
			form.AttributeIDs = append(form.AttributeIDs, attrID)
		}
		for _, p := range e.fixture.Presences {
			presence, err := l.presenceForm(ctx, p, ids, occurrences)
			if err != nil {
				return errors.Wrapf(err, "%s %q", e.kind, e.fixture.Name)
			}
			presence.ID = stored.presences.take(presenceKey(presence.PresentInID, presence.OccurrenceNumberID))
			form.Presences = append(form.Presences, presence)
		}
		for _, ex := range e.fixture.Examples {
			form.Examples = append(form.Examples, forms.ExampleForm{
				ID:           stored.examples.take(ex.Title),
				Title:        ex.Title,
				Description:  ex.Description,
				XMLCodeText:  ex.XMLCodeText,
				XMLCodeImage: ex.XMLCodeImage,
			})
		}
		for _, n := range e.fixture.Notes {
			form.Notes = append(form.Notes, forms.NoteForm{ID: stored.notes.take(n.Title), Title: n.Title, Body: n.Body})
		}

		if _, err := l.forms.SaveTaxonomy(ctx, form); err != nil {
			return errors.Wrapf(err, "%s %q", e.kind, e.fixture.Name)
		}
		summary.count(string(e.kind), e.existed)
	}
	return nil
}

// childIDs queues stored child ids by natural key, in sort order.
type childIDs map[string][]uuid.UUID

func (c childIDs) add(key string, id uuid.UUID) {
	c[key] = append(c[key], id)
}

// take hands out the next unclaimed id for key, or nil when the child is new.
func (c childIDs) take(key string) *uuid.UUID {
	queued := c[key]
	if len(queued) == 0 {
		return nil
	}
	id := queued[0]
	c[key] = queued[1:]
	return &id
}

// storedChildren lets a reseed update existing children in place instead of
// replacing them. Examples and notes match by title, presences by target and
// occurrence number.
type storedChildren struct {
	presences childIDs
	examples  childIDs
	notes     childIDs
}

func newStoredChildren(e domain.TaxonomyEntity) storedChildren {
	s := storedChildren{presences: childIDs{}, examples: childIDs{}, notes: childIDs{}}
	for _, p := range e.Presences {
		s.presences.add(presenceKey(p.PresentInID, p.OccurrenceNumberID), p.ID)
	}
	for _, ex := range e.Examples {
		s.examples.add(ex.Title, ex.ID)
	}
	for _, n := range e.Notes {
		s.notes.add(n.Title, n.ID)
	}
	return s
}

func presenceKey(presentIn, occurrence *uuid.UUID) string {
	var key strings.Builder
	if presentIn != nil {
		key.WriteString(presentIn.String())
	}
	key.WriteByte('/')
	if occurrence != nil {
		key.WriteString(occurrence.String())
	}
	return key.String()
}

func (l *Loader) presenceForm(
	ctx context.Context,
	p PresenceFixture,
	ids map[taxonomyKey]uuid.UUID,
	occurrences map[string]uuid.UUID,
) (forms.PresenceForm, error) {
	var form forms.PresenceForm
	if p.PresentIn != "" {
		kind := domain.KindElement
		if p.PresentInKind != "" {
			kind = domain.TaxonomyKind(p.PresentInKind)
		}
		id, ok := ids[taxonomyKey{kind, p.PresentIn}]
		if !ok {
			ref, err := l.store.Taxonomy.FindByName(ctx, kind, p.PresentIn)
			if err != nil {
				return form, errors.Wrapf(err, "present_in %q", p.PresentIn)
			}
			id = ref.ID
		}
		form.PresentInID = &id
	}
	if p.OccurrenceNumber != "" {
		id, ok := occurrences[p.OccurrenceNumber]
		if !ok {
			return form, errors.Newf("unknown occurrence number %q", p.OccurrenceNumber)
		}
		form.OccurrenceNumberID = &id
	}
	return form, nil
}

func nameKey(text, language string) string {
	return text + "\x00" + language
}

func (l *Loader) applyCollectionNames(ctx context.Context, fixtures []CollectionNameFixture, summary Summary) (map[string]uuid.UUID, error) {
	existing, err := l.store.CollectionNames.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]uuid.UUID, len(existing))
	byText := make(map[string]uuid.UUID, len(existing))
	for _, n := range existing {
		ids[nameKey(n.Text, n.Language)] = n.ID
		byText[n.Text] = n.ID
	}

	for _, f := range fixtures {
		if _, ok := ids[nameKey(f.Text, f.Language)]; ok {
			summary.count(domain.EntityCollectionName, true)
			continue
		}
		saved, err := l.forms.SaveCollectionName(ctx, forms.CollectionNameForm{Text: f.Text, Language: f.Language})
		if err != nil {
			return nil, errors.Wrapf(err, "collection name %q", f.Text)
		}
		ids[nameKey(saved.Text, saved.Language)] = saved.ID
		byText[saved.Text] = saved.ID
		summary.count(domain.EntityCollectionName, false)
	}
	return byText, nil
}

func (l *Loader) applyInstitutions(ctx context.Context, fixtures []InstitutionFixture, summary Summary) (map[string]uuid.UUID, error) {
	existing, err := l.store.Institutions.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]uuid.UUID, len(existing))
	for _, i := range existing {
		ids[i.Name] = i.ID
	}

	for _, f := range fixtures {
		form := forms.InstitutionForm{Name: f.Name, Acronym: f.Acronym, Country: f.Country, URL: f.URL}
		id, existed := ids[f.Name]
		if existed {
			form.ID = &id
		}
		saved, err := l.forms.SaveInstitution(ctx, form)
		if err != nil {
			return nil, errors.Wrapf(err, "institution %q", f.Name)
		}
		ids[saved.Name] = saved.ID
		summary.count(domain.EntityInstitution, existed)
	}
	return ids, nil
}

func (l *Loader) applyCollections(
	ctx context.Context,
	fixtures []CollectionFixture,
	names, institutions map[string]uuid.UUID,
	summary Summary,
) error {
	existing, err := l.store.Collections.List(ctx)
	if err != nil {
		return err
	}
	ids := make(map[string]uuid.UUID, len(existing))
	for _, c := range existing {
		if c.Acron3 != nil {
			ids[*c.Acron3] = c.ID
		}
	}

	for _, f := range fixtures {
		acron3 := f.Acron3
		form := forms.CollectionForm{
			Acron3:         &acron3,
			Acron2:         f.Acron2,
			Code:           f.Code,
			Domain:         f.Domain,
			MainName:       f.MainName,
			Status:         (*domain.CollectionStatus)(f.Status),
			HasAnalytics:   f.HasAnalytics,
			Type:           (*domain.CollectionType)(f.Type),
			IsActive:       f.IsActive,
			FoundationDate: f.FoundationDate,
		}
		if f.Name != "" {
			nameID, ok := names[f.Name]
			if !ok {
				return errors.Newf("collection %q: unknown collection name %q", f.Acron3, f.Name)
			}
			form.NameID = &nameID
		}
		for _, name := range f.Institutions {
			instID, ok := institutions[name]
			if !ok {
				return errors.Newf("collection %q: unknown institution %q", f.Acron3, name)
			}
			form.InstitutionIDs = append(form.InstitutionIDs, instID)
		}
		id, existed := ids[f.Acron3]
		if existed {
			form.ID = &id
		}
		saved, err := l.forms.SaveCollection(ctx, form)
		if err != nil {
			return errors.Wrapf(err, "collection %q", f.Acron3)
		}
		ids[f.Acron3] = saved.ID
		summary.count(domain.EntityCollection, existed)
	}
	return nil
}
