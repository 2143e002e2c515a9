package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaxonomyKind tags a taxonomy entity as an element or an attribute definition.
type TaxonomyKind string

const (
	KindElement   TaxonomyKind = "element"
	KindAttribute TaxonomyKind = "attribute"
)

// Valid reports whether k is a known kind.
func (k TaxonomyKind) Valid() bool {
	return k == KindElement || k == KindAttribute
}

// TaxonomyRef is a non-owning pointer to a taxonomy entity.
type TaxonomyRef struct {
	ID   uuid.UUID    `json:"id"`
	Kind TaxonomyKind `json:"kind"`
	Name string       `json:"name"`
}

// Data implements Exporter.
func (r TaxonomyRef) Data() map[string]any {
	return map[string]any{
		string(r.Kind) + "__id":   r.ID.String(),
		string(r.Kind) + "__name": r.Name,
	}
}

// TaxonomyEntity is an element or attribute definition of the tag library together
// with the children it owns. Presences, Examples and Notes are owned and deleted with
// the entity; Versions and Attributes are non-owning associations.
type TaxonomyEntity struct {
	ID          uuid.UUID    `json:"id"`
	Kind        TaxonomyKind `json:"kind"`
	Name        string       `json:"name"`
	Description string       `json:"description"`

	Versions []Version `json:"versions"`
	// Attributes lists the attributes an element allows. Unordered; always empty
	// for attributes.
	Attributes []TaxonomyRef `json:"attributes,omitempty"`

	Presences []PresenceRelation `json:"presences"`
	Examples  []Example          `json:"examples"`
	Notes     []NoteBlock        `json:"notes"`
	Audit
}

// NewElement creates an element definition.
func NewElement(name, principal string) TaxonomyEntity {
	return newTaxonomyEntity(KindElement, name, principal)
}

// NewAttribute creates an attribute definition.
func NewAttribute(name, principal string) TaxonomyEntity {
	return newTaxonomyEntity(KindAttribute, name, principal)
}

func newTaxonomyEntity(kind TaxonomyKind, name, principal string) TaxonomyEntity {
	return TaxonomyEntity{
		ID:    uuid.New(),
		Kind:  kind,
		Name:  name,
		Audit: NewAudit(principal, time.Now()),
	}
}

// Ref returns a non-owning reference to the entity.
func (t TaxonomyEntity) Ref() TaxonomyRef {
	return TaxonomyRef{ID: t.ID, Kind: t.Kind, Name: t.Name}
}

// Validate implements Validator. Errors of owned children are reported under
// "presences[i].", "examples[i]." and "notes[i]." prefixes.
func (t TaxonomyEntity) Validate() error {
	verr := &ValidationError{}
	if !t.Kind.Valid() {
		verr.Add("kind", fmt.Sprintf("unknown kind %q", t.Kind))
	}
	requireText(verr, "name", t.Name, 100)

	if t.Kind == KindAttribute && len(t.Attributes) > 0 {
		verr.Add("attributes", "attributes cannot declare attributes")
	}
	for _, attr := range t.Attributes {
		if attr.Kind != "" && attr.Kind != KindAttribute {
			verr.Add("attributes", fmt.Sprintf("%s is not an attribute", attr.Name))
		}
	}

	for i, p := range t.Presences {
		verr.Merge(fmt.Sprintf("presences[%d].", i), t.checkChild(p.ParentID, p.Validate()))
	}
	for i, e := range t.Examples {
		verr.Merge(fmt.Sprintf("examples[%d].", i), t.checkChild(e.ParentID, e.Validate()))
	}
	for i, n := range t.Notes {
		verr.Merge(fmt.Sprintf("notes[%d].", i), t.checkChild(n.ParentID, n.Validate()))
	}
	return verr.OrNil()
}

func (t TaxonomyEntity) checkChild(parentID uuid.UUID, err error) error {
	if err != nil {
		return err
	}
	if parentID != t.ID {
		return NewValidationError("parent", "belongs to a different parent")
	}
	return nil
}

// Label implements Labeler.
func (t TaxonomyEntity) Label() string {
	return t.Name
}

// Data implements Exporter. Keys are prefixed with the kind, e.g. "element__name".
func (t TaxonomyEntity) Data() map[string]any {
	prefix := string(t.Kind) + "__"
	d := map[string]any{
		prefix + "id":          t.ID.String(),
		prefix + "name":        t.Name,
		prefix + "description": t.Description,
		prefix + "versions":    exportAll(t.Versions),
		prefix + "presences":   exportAll(t.Presences),
		prefix + "examples":    exportAll(t.Examples),
		prefix + "notes":       exportAll(t.Notes),
	}
	if t.Kind == KindElement {
		d[prefix+"attributes"] = exportAll(t.Attributes)
	}
	return d
}
