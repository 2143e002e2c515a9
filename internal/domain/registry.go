package domain

import (
	"github.com/cockroachdb/errors"
)

// Names of the editable entity kinds.
const (
	EntitySPSVersion       = "sps-version"
	EntityOccurrenceNumber = "occurrence-number"
	EntityElement          = "element"
	EntityAttribute        = "attribute"
	EntityCollection       = "collection"
	EntityCollectionName   = "collection-name"
	EntityInstitution      = "institution"
)

// EntityKind describes how the presentation layer lists and searches a kind.
type EntityKind struct {
	Name              string   `json:"name"`
	VerboseName       string   `json:"verbose_name"`
	VerboseNamePlural string   `json:"verbose_name_plural"`
	Group             string   `json:"group"`
	Ordering          []string `json:"ordering"`
	ListDisplay       []string `json:"list_display"`
	SearchFields      []string `json:"search_fields"`
}

// Registry is the explicit catalog of editable kinds, built once at start-up.
type Registry struct {
	kinds map[string]EntityKind
	order []string
}

// NewRegistry registers kinds in the given order.
func NewRegistry(kinds ...EntityKind) (*Registry, error) {
	r := &Registry{kinds: make(map[string]EntityKind, len(kinds))}
	for _, k := range kinds {
		if k.Name == "" {
			return nil, errors.New("entity kind name is required")
		}
		if _, dup := r.kinds[k.Name]; dup {
			return nil, errors.Newf("entity kind %q registered twice", k.Name)
		}
		r.kinds[k.Name] = k
		r.order = append(r.order, k.Name)
	}
	return r, nil
}

// Lookup returns the kind registered under name.
func (r *Registry) Lookup(name string) (EntityKind, bool) {
	k, ok := r.kinds[name]
	return k, ok
}

// Kinds returns every registered kind in registration order.
func (r *Registry) Kinds() []EntityKind {
	out := make([]EntityKind, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.kinds[name])
	}
	return out
}

// DefaultKinds mirrors the editorial admin: the SPS group and the collection catalog.
func DefaultKinds() []EntityKind {
	return []EntityKind{
		{
			Name:              EntitySPSVersion,
			VerboseName:       "SPS Version",
			VerboseNamePlural: "SPS Versions",
			Group:             "SPS",
			Ordering:          []string{"version"},
			ListDisplay:       []string{"version", "begin_year", "begin_month", "end_year", "end_month"},
			SearchFields:      []string{"version", "begin_year", "end_year"},
		},
		{
			Name:              EntityOccurrenceNumber,
			VerboseName:       "Occurrence number",
			VerboseNamePlural: "Occurrence numbers",
			Group:             "SPS",
			Ordering:          []string{"text"},
			ListDisplay:       []string{"text"},
			SearchFields:      []string{"text"},
		},
		{
			Name:              EntityElement,
			VerboseName:       "Element",
			VerboseNamePlural: "Elements",
			Group:             "SPS",
			Ordering:          []string{"name"},
			ListDisplay:       []string{"name", "description"},
			SearchFields:      []string{"name", "description"},
		},
		{
			Name:              EntityAttribute,
			VerboseName:       "Attribute",
			VerboseNamePlural: "Attributes",
			Group:             "SPS",
			Ordering:          []string{"name"},
			ListDisplay:       []string{"name", "description"},
			SearchFields:      []string{"name", "description"},
		},
		{
			Name:              EntityCollection,
			VerboseName:       "Collection",
			VerboseNamePlural: "Collections",
			Group:             "Collections",
			Ordering:          []string{"main_name"},
			ListDisplay:       []string{"acron3", "main_name", "status", "type", "is_active"},
			SearchFields:      []string{"acron3", "acron2", "code", "main_name"},
		},
		{
			Name:              EntityCollectionName,
			VerboseName:       "Collection name",
			VerboseNamePlural: "Collection names",
			Group:             "Collections",
			Ordering:          []string{"text"},
			ListDisplay:       []string{"text", "language"},
			SearchFields:      []string{"text"},
		},
		{
			Name:              EntityInstitution,
			VerboseName:       "Institution",
			VerboseNamePlural: "Institutions",
			Group:             "Collections",
			Ordering:          []string{"name"},
			ListDisplay:       []string{"name", "acronym", "country"},
			SearchFields:      []string{"name", "acronym"},
		},
	}
}
