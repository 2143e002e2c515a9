package export

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/spstaglib/internal/auth"
	"github.com/rpattn/spstaglib/internal/db/dbtest"
	"github.com/rpattn/spstaglib/internal/domain"
	"github.com/rpattn/spstaglib/internal/forms"
)

func ptr[T any](v T) *T { return &v }

func newCatalog(t *testing.T) *Service {
	t.Helper()
	conn := dbtest.NewSQLite(t)
	registry, err := domain.NewRegistry(domain.DefaultKinds()...)
	require.NoError(t, err)

	ctx := auth.ContextWithPrincipal(context.Background(), "alice")
	submit := forms.NewService(conn)

	version, err := submit.SaveVersion(ctx, forms.VersionForm{Version: "1.10", BeginYear: ptr(2020)})
	require.NoError(t, err)
	lang, err := submit.SaveTaxonomy(ctx, forms.TaxonomyForm{Kind: domain.KindAttribute, Name: "xml:lang"})
	require.NoError(t, err)
	front, err := submit.SaveTaxonomy(ctx, forms.TaxonomyForm{Kind: domain.KindElement, Name: "front", Description: "Front matter"})
	require.NoError(t, err)
	_, err = submit.SaveTaxonomy(ctx, forms.TaxonomyForm{
		Kind:         domain.KindElement,
		Name:         "article",
		Description:  "Root element",
		VersionIDs:   []uuid.UUID{version.ID},
		AttributeIDs: []uuid.UUID{lang.ID},
		Presences:    []forms.PresenceForm{{PresentInID: &front.ID}},
		Examples:     []forms.ExampleForm{{Title: "minimal", XMLCodeText: "<article/>"}},
	})
	require.NoError(t, err)

	name, err := submit.SaveCollectionName(ctx, forms.CollectionNameForm{Text: "SciELO Brasil", Language: "pt"})
	require.NoError(t, err)
	fapesp, err := submit.SaveInstitution(ctx, forms.InstitutionForm{Name: "Fundação de Amparo à Pesquisa", Acronym: "FAPESP"})
	require.NoError(t, err)
	_, err = submit.SaveInstitution(ctx, forms.InstitutionForm{Name: "BIREME", Acronym: "BIREME"})
	require.NoError(t, err)
	_, err = submit.SaveCollection(ctx, forms.CollectionForm{
		Acron3:         ptr("scl"),
		MainName:       ptr("SciELO Brazil"),
		NameID:         &name.ID,
		InstitutionIDs: []uuid.UUID{fapesp.ID},
	})
	require.NoError(t, err)

	return NewService(conn, registry, WithAutocompleteLimit(5))
}

func TestListTaxonomy(t *testing.T) {
	s := newCatalog(t)

	listed, err := s.List(context.Background(), domain.EntityElement)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "article", listed[0].Label)
	assert.Equal(t, "front", listed[1].Label)

	data := listed[0].Data
	assert.Equal(t, "Root element", data["element__description"])
	versions := data["element__versions"].([]map[string]any)
	require.Len(t, versions, 1)
	assert.Equal(t, "1.10", versions[0]["sps_version__version"])
	attrs := data["element__attributes"].([]map[string]any)
	require.Len(t, attrs, 1)
	assert.Equal(t, "xml:lang", attrs[0]["attribute__name"])
	presences := data["element__presences"].([]map[string]any)
	require.Len(t, presences, 1)
	assert.Equal(t, "front", presences[0]["presence__present_in"])

	attributes, err := s.List(context.Background(), domain.EntityAttribute)
	require.NoError(t, err)
	require.Len(t, attributes, 1)
	assert.NotContains(t, attributes[0].Data, "attribute__attributes")
}

func TestSharedVersionExportsUnderEveryElement(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	registry, err := domain.NewRegistry(domain.DefaultKinds()...)
	require.NoError(t, err)
	ctx := auth.ContextWithPrincipal(context.Background(), "alice")
	submit := forms.NewService(conn)

	version, err := submit.SaveVersion(ctx, forms.VersionForm{Version: "1.9", BeginYear: ptr(2019), EndYear: ptr(2021)})
	require.NoError(t, err)
	for _, name := range []string{"body", "back"} {
		_, err := submit.SaveTaxonomy(ctx, forms.TaxonomyForm{
			Kind:       domain.KindElement,
			Name:       name,
			VersionIDs: []uuid.UUID{version.ID},
		})
		require.NoError(t, err)
	}

	s := NewService(conn, registry)
	listed, err := s.List(context.Background(), domain.EntityElement)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	for _, item := range listed {
		versions := item.Data["element__versions"].([]map[string]any)
		require.Len(t, versions, 1, item.Label)
		assert.Equal(t, "1.9", versions[0]["sps_version__version"])
		assert.EqualValues(t, 2019, versions[0]["sps_version__begin_year"])
		assert.EqualValues(t, 2021, versions[0]["sps_version__end_year"])
	}

	versions, err := s.List(context.Background(), domain.EntitySPSVersion)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, version.ID, versions[0].ID)
	assert.Equal(t, "1.9 2019-2021", versions[0].Label)
}

func TestListCollectionMergesName(t *testing.T) {
	s := newCatalog(t)

	listed, err := s.List(context.Background(), domain.EntityCollection)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	data := listed[0].Data
	assert.Equal(t, "scl", data["collection__acron3"])
	assert.Equal(t, "SciELO Brasil", data["collection_name__text"])
	institutions := data["collection__institution"].([]map[string]any)
	require.Len(t, institutions, 1)
	assert.Equal(t, "FAPESP", institutions[0]["institution__acronym"])
}

func TestListUnknownKind(t *testing.T) {
	s := newCatalog(t)
	_, err := s.List(context.Background(), "journal")
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestSearch(t *testing.T) {
	s := newCatalog(t)
	ctx := context.Background()

	found, err := s.Search(ctx, domain.EntityElement, "FRONT MATTER")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "front", found[0].Label)

	found, err = s.Search(ctx, domain.EntitySPSVersion, "2020")
	require.NoError(t, err)
	require.Len(t, found, 1)

	found, err = s.Search(ctx, domain.EntityInstitution, "")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = s.Search(ctx, domain.EntityCollection, "scl")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestAutocompleteInstitutions(t *testing.T) {
	s := newCatalog(t)

	found, err := s.AutocompleteInstitutions(context.Background(), "fapesp")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Fundação de Amparo à Pesquisa", found[0].Label)
	assert.Equal(t, "FAPESP", found[0].Data["institution__acronym"])
}

func TestWriteWorkbook(t *testing.T) {
	s := newCatalog(t)

	var buf bytes.Buffer
	require.NoError(t, s.WriteWorkbook(context.Background(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	require.Len(t, sheets, 7)
	assert.Equal(t, domain.EntitySPSVersion, sheets[0])

	rows, err := f.GetRows(domain.EntityElement)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "id", rows[0][0])
	assert.Contains(t, rows[0], "element__name")

	col := indexOf(rows[0], "element__name")
	require.GreaterOrEqual(t, col, 0)
	assert.Equal(t, "article", rows[1][col])

	examples := indexOf(rows[0], "element__examples")
	require.GreaterOrEqual(t, examples, 0)
	assert.Contains(t, rows[1][examples], `"example__title":"minimal"`)
}

func TestHTTPHandler(t *testing.T) {
	h := NewHTTPHandler(newCatalog(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/institution?q=bir", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count": 1`)
	assert.Contains(t, rec.Body.String(), `"BIREME"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/journal", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/element.xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.EntityElement}, f.GetSheetList())
	_ = f.Close()

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export?kind=journal", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/autocomplete/institutions?q=pesquisa", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "FAPESP")
}

func TestWorkbookFailureReturnsError(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	registry, err := domain.NewRegistry(domain.DefaultKinds()...)
	require.NoError(t, err)
	conn.Close()
	h := NewHTTPHandler(NewService(conn, registry))

	for _, target := range []string{"/export/element.xlsx", "/export"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code, target)
		assert.NotEqual(t, xlsxContentType, rec.Header().Get("Content-Type"), target)
		assert.Empty(t, rec.Header().Get("Content-Disposition"), target)
	}
}

func indexOf(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}
