package seed

// Document is a YAML fixture. Records reference each other by natural key:
// versions by label, occurrence numbers by text, taxonomy entities, institutions
// and collection names by name or text.
type Document struct {
	Versions          []VersionFixture        `yaml:"versions"`
	OccurrenceNumbers []string                `yaml:"occurrence_numbers"`
	Attributes        []TaxonomyFixture       `yaml:"attributes"`
	Elements          []TaxonomyFixture       `yaml:"elements"`
	CollectionNames   []CollectionNameFixture `yaml:"collection_names"`
	Institutions      []InstitutionFixture    `yaml:"institutions"`
	Collections       []CollectionFixture     `yaml:"collections"`
}

type VersionFixture struct {
	Version    string `yaml:"version"`
	BeginYear  *int   `yaml:"begin_year"`
	BeginMonth *int   `yaml:"begin_month"`
	EndYear    *int   `yaml:"end_year"`
	EndMonth   *int   `yaml:"end_month"`
}

type TaxonomyFixture struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Versions    []string          `yaml:"versions"`
	Attributes  []string          `yaml:"attributes"`
	Presences   []PresenceFixture `yaml:"presences"`
	Examples    []ExampleFixture  `yaml:"examples"`
	Notes       []NoteFixture     `yaml:"notes"`
}

// PresenceFixture names the containing element. PresentInKind defaults to element.
type PresenceFixture struct {
	PresentIn        string `yaml:"present_in"`
	PresentInKind    string `yaml:"present_in_kind"`
	OccurrenceNumber string `yaml:"occurrence_number"`
}

type ExampleFixture struct {
	Title        string  `yaml:"title"`
	Description  string  `yaml:"description"`
	XMLCodeText  string  `yaml:"xml_code_text"`
	XMLCodeImage *string `yaml:"xml_code_image"`
}

type NoteFixture struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

type CollectionNameFixture struct {
	Text     string `yaml:"text"`
	Language string `yaml:"language"`
}

type InstitutionFixture struct {
	Name    string `yaml:"name"`
	Acronym string `yaml:"acronym"`
	Country string `yaml:"country"`
	URL     string `yaml:"url"`
}

// CollectionFixture is keyed by acron3. Name is the text of a collection name.
type CollectionFixture struct {
	Acron3         string   `yaml:"acron3"`
	Acron2         *string  `yaml:"acron2"`
	Code           *string  `yaml:"code"`
	Domain         *string  `yaml:"domain"`
	Name           string   `yaml:"name"`
	MainName       *string  `yaml:"main_name"`
	Status         *string  `yaml:"status"`
	HasAnalytics   *bool    `yaml:"has_analytics"`
	Type           *string  `yaml:"type"`
	IsActive       *bool    `yaml:"is_active"`
	FoundationDate *string  `yaml:"foundation_date"`
	Institutions   []string `yaml:"institutions"`
}
