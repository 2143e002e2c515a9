package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool { return &v }

func TestAuditTouchKeepsCreation(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	audit := NewAudit("alice", created)
	assert.Equal(t, "alice", audit.CreatedBy)
	assert.Equal(t, "alice", audit.UpdatedBy)
	assert.True(t, audit.CreatedAt.Equal(audit.UpdatedAt))

	later := created.Add(time.Hour)
	touched := audit.Touch("bob", later)
	assert.Equal(t, "alice", touched.CreatedBy)
	assert.True(t, touched.CreatedAt.Equal(created))
	assert.Equal(t, "bob", touched.UpdatedBy)
	assert.True(t, touched.UpdatedAt.Equal(later))
}

func TestVersionLabel(t *testing.T) {
	tests := []struct {
		name    string
		version Version
		want    string
	}{
		{
			name:    "both years",
			version: Version{Version: "1.10", BeginYear: intPtr(2020), EndYear: intPtr(2022)},
			want:    "1.10 2020-2022",
		},
		{
			name:    "open ended",
			version: Version{Version: "1.10", BeginYear: intPtr(2020)},
			want:    "1.10 2020-",
		},
		{
			name:    "no years",
			version: Version{Version: "1.9"},
			want:    "1.9 -",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.version.Label())
		})
	}
}

func TestVersionValidate(t *testing.T) {
	require.NoError(t, Version{Version: "1.0", BeginYear: intPtr(2010), BeginMonth: intPtr(3)}.Validate())

	err := Version{
		Version:    "",
		BeginYear:  intPtr(2012),
		BeginMonth: intPtr(13),
		EndYear:    intPtr(2010),
	}.Validate()
	require.Error(t, err)
	fields := FieldErrors(err)
	assert.Contains(t, fields, "version")
	assert.Contains(t, fields, "begin_month")
	assert.Contains(t, fields, "end_year")

	err = Version{Version: "this label is far too long"}.Validate()
	assert.Contains(t, FieldErrors(err), "version")
}

func TestVersionData(t *testing.T) {
	data := Version{Version: "1.1", BeginYear: intPtr(2015)}.Data()
	assert.Equal(t, "1.1", data["sps_version__version"])
	assert.Equal(t, 2015, data["sps_version__begin_year"])
	assert.Nil(t, data["sps_version__end_year"])
	assert.Contains(t, data, "sps_version__begin_month")
	assert.Contains(t, data, "sps_version__end_month")
}

func TestOccurrenceNumberRequiresText(t *testing.T) {
	err := OccurrenceNumber{Text: "  "}.Validate()
	assert.Equal(t, []string{msgRequired}, FieldErrors(err)["text"])

	occ := OccurrenceNumber{Text: "zero or more"}
	require.NoError(t, occ.Validate())
	assert.Equal(t, "zero or more", occ.Label())
	assert.Equal(t, map[string]any{"occurrence_number__text": "zero or more"}, occ.Data())
}

func TestPresenceRelationRequiresParent(t *testing.T) {
	err := PresenceRelation{}.Validate()
	require.Error(t, err)
	assert.Contains(t, FieldErrors(err), "parent")

	require.NoError(t, PresenceRelation{ParentID: uuid.New()}.Validate())
}

func TestPresenceRelationLabelAndData(t *testing.T) {
	p := PresenceRelation{
		ParentID:         uuid.New(),
		SortOrder:        2,
		PresentIn:        &TaxonomyRef{ID: uuid.New(), Kind: KindElement, Name: "article-meta"},
		OccurrenceNumber: &OccurrenceNumber{Text: "once"},
	}
	assert.Equal(t, "article-meta (once)", p.Label())

	data := p.Data()
	assert.Equal(t, "article-meta", data["presence__present_in"])
	assert.Equal(t, "element", data["presence__present_in_kind"])
	assert.Equal(t, "once", data["occurrence_number__text"])
	assert.Equal(t, 2, data["presence__sort_order"])

	empty := PresenceRelation{}.Data()
	assert.Nil(t, empty["presence__present_in"])
	assert.NotContains(t, empty, "occurrence_number__text")
}

func TestTaxonomyEntityValidate(t *testing.T) {
	element := NewElement("article", "alice")
	element.Examples = []Example{{ParentID: element.ID, Title: "minimal"}}
	element.Notes = []NoteBlock{{ParentID: uuid.New(), Title: "foreign"}}
	element.Presences = []PresenceRelation{{}}

	err := element.Validate()
	require.Error(t, err)
	fields := FieldErrors(err)
	assert.Contains(t, fields, "presences[0].parent")
	assert.Contains(t, fields, "notes[0].parent")
	assert.NotContains(t, fields, "examples[0].parent")

	attribute := NewAttribute("article-type", "alice")
	attribute.Attributes = []TaxonomyRef{{ID: uuid.New(), Kind: KindAttribute, Name: "lang"}}
	assert.Contains(t, FieldErrors(attribute.Validate()), "attributes")

	element = NewElement("article", "alice")
	element.Attributes = []TaxonomyRef{{ID: uuid.New(), Kind: KindElement, Name: "body"}}
	assert.Contains(t, FieldErrors(element.Validate()), "attributes")

	assert.Contains(t, FieldErrors(TaxonomyEntity{Kind: "tag", Name: "x"}.Validate()), "kind")
	assert.Contains(t, FieldErrors(NewElement("", "alice").Validate()), "name")
}

func TestTaxonomyEntityData(t *testing.T) {
	element := NewElement("article", "alice")
	element.Description = "Root element"
	element.Versions = []Version{{Version: "1.10"}}
	element.Attributes = []TaxonomyRef{{ID: uuid.New(), Kind: KindAttribute, Name: "article-type"}}
	element.Examples = []Example{{ParentID: element.ID, Title: "minimal", XMLCodeText: "<article/>"}}

	data := element.Data()
	assert.Equal(t, "article", data["element__name"])
	assert.Equal(t, "Root element", data["element__description"])
	assert.Equal(t, element.ID.String(), data["element__id"])

	versions := data["element__versions"].([]map[string]any)
	require.Len(t, versions, 1)
	assert.Equal(t, "1.10", versions[0]["sps_version__version"])

	attrs := data["element__attributes"].([]map[string]any)
	require.Len(t, attrs, 1)
	assert.Equal(t, "article-type", attrs[0]["attribute__name"])

	examples := data["element__examples"].([]map[string]any)
	require.Len(t, examples, 1)
	assert.Equal(t, "<article/>", examples[0]["example__xml_code_text"])
	assert.Empty(t, data["element__notes"])

	attribute := NewAttribute("lang", "alice")
	attrData := attribute.Data()
	assert.Equal(t, "lang", attrData["attribute__name"])
	assert.NotContains(t, attrData, "attribute__attributes")
}

func TestCollectionDataMergesName(t *testing.T) {
	founded := time.Date(1998, 3, 1, 0, 0, 0, 0, time.UTC)
	status := CollectionStatusCertified
	kind := CollectionTypeJournals
	c := Collection{
		Acron3:         strPtr("scl"),
		Code:           strPtr("001"),
		Domain:         strPtr("https://www.scielo.br"),
		MainName:       strPtr("SciELO Brazil"),
		Status:         &status,
		Type:           &kind,
		IsActive:       boolPtr(true),
		FoundationDate: &founded,
		Name:           &CollectionName{Text: "SciELO Brasil", Language: "pt"},
		Institutions:   []Institution{{Name: "FAPESP", Acronym: "FAPESP", Country: "Brazil"}},
	}
	require.NoError(t, c.Validate())

	data := c.Data()
	assert.Equal(t, "scl", data["collection__acron3"])
	assert.Equal(t, "certified", data["collection__status"])
	assert.Equal(t, "journals", data["collection__type"])
	assert.Equal(t, true, data["collection__is_active"])
	assert.Nil(t, data["collection__has_analytics"])
	assert.Equal(t, "1998-03-01", data["collection__is_foundation_date"])
	assert.Equal(t, "SciELO Brasil", data["collection_name__text"])
	assert.Equal(t, "pt", data["collection_name__language"])

	institutions := data["collection__institution"].([]map[string]any)
	require.Len(t, institutions, 1)
	assert.Equal(t, "FAPESP", institutions[0]["institution__name"])

	withoutName := Collection{}.Data()
	assert.NotContains(t, withoutName, "collection_name__text")
	assert.Equal(t, "", Collection{}.Label())
	assert.Equal(t, "SciELO Brazil", c.Label())
}

func TestCollectionValidate(t *testing.T) {
	status := CollectionStatus("archived")
	err := Collection{
		Acron3: strPtr("toolong"),
		Acron2: strPtr("abc"),
		Domain: strPtr("ftp://scielo.org"),
		Status: &status,
	}.Validate()
	fields := FieldErrors(err)
	assert.Contains(t, fields, "acron3")
	assert.Contains(t, fields, "acron2")
	assert.Contains(t, fields, "domain")
	assert.Contains(t, fields, "status")

	require.NoError(t, Collection{}.Validate())
}

func TestInstitutionValidate(t *testing.T) {
	assert.Contains(t, FieldErrors(Institution{}.Validate()), "name")
	assert.Contains(t, FieldErrors(Institution{Name: "FAPESP", URL: "not a url"}.Validate()), "url")
	require.NoError(t, Institution{Name: "FAPESP", URL: "https://fapesp.br"}.Validate())
}

func TestValidationErrorMerge(t *testing.T) {
	verr := &ValidationError{}
	assert.NoError(t, verr.OrNil())

	verr.Merge("examples[1].", NewValidationError("title", "too long"))
	verr.Merge("ignored.", assert.AnError)
	require.Error(t, verr.OrNil())
	assert.Equal(t, map[string][]string{"examples[1].title": {"too long"}}, verr.Fields)
	assert.True(t, IsValidationError(verr))
	assert.Equal(t, "validation failed: examples[1].title: too long", verr.Error())
}

func TestRegistry(t *testing.T) {
	registry, err := NewRegistry(DefaultKinds()...)
	require.NoError(t, err)

	kinds := registry.Kinds()
	require.Len(t, kinds, 7)
	assert.Equal(t, EntitySPSVersion, kinds[0].Name)

	element, ok := registry.Lookup(EntityElement)
	require.True(t, ok)
	assert.Equal(t, []string{"name"}, element.Ordering)

	_, ok = registry.Lookup("journal")
	assert.False(t, ok)

	_, err = NewRegistry(EntityKind{Name: "a"}, EntityKind{Name: "a"})
	assert.Error(t, err)
	_, err = NewRegistry(EntityKind{})
	assert.Error(t, err)
}
