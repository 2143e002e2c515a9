package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PresenceRelation states that the parent entity may appear inside PresentIn with
// the given cardinality. PresentIn and OccurrenceNumber are nulled when their
// targets are deleted.
type PresenceRelation struct {
	ID                 uuid.UUID  `json:"id"`
	ParentID           uuid.UUID  `json:"parent_id"`
	PresentInID        *uuid.UUID `json:"present_in_id,omitempty"`
	OccurrenceNumberID *uuid.UUID `json:"occurrence_number_id,omitempty"`
	SortOrder          int        `json:"sort_order"`

	// Resolved references, populated on load.
	PresentIn        *TaxonomyRef      `json:"present_in,omitempty"`
	OccurrenceNumber *OccurrenceNumber `json:"occurrence_number,omitempty"`
	Audit
}

// NewPresenceRelation creates a presence relation owned by parentID.
func NewPresenceRelation(parentID uuid.UUID, principal string) PresenceRelation {
	return PresenceRelation{
		ID:       uuid.New(),
		ParentID: parentID,
		Audit:    NewAudit(principal, time.Now()),
	}
}

// Validate implements Validator.
func (p PresenceRelation) Validate() error {
	verr := &ValidationError{}
	requireParent(verr, p.ParentID)
	return verr.OrNil()
}

// Label renders "<present_in> (<occurrence>)", omitting unset parts.
func (p PresenceRelation) Label() string {
	var parts []string
	if p.PresentIn != nil {
		parts = append(parts, p.PresentIn.Name)
	}
	if p.OccurrenceNumber != nil {
		parts = append(parts, "("+p.OccurrenceNumber.Text+")")
	}
	return strings.Join(parts, " ")
}

// Data implements Exporter. The occurrence number's export is merged in when set.
func (p PresenceRelation) Data() map[string]any {
	d := map[string]any{
		"presence__sort_order":      p.SortOrder,
		"presence__present_in":      nil,
		"presence__present_in_kind": nil,
	}
	if p.PresentIn != nil {
		d["presence__present_in"] = p.PresentIn.Name
		d["presence__present_in_kind"] = string(p.PresentIn.Kind)
	}
	if p.OccurrenceNumber != nil {
		merge(d, p.OccurrenceNumber.Data())
	}
	return d
}

// Example is an illustrative markup sample owned by a taxonomy entity.
type Example struct {
	ID           uuid.UUID `json:"id"`
	ParentID     uuid.UUID `json:"parent_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	XMLCodeText  string    `json:"xml_code_text"`
	XMLCodeImage *string   `json:"xml_code_image,omitempty"`
	SortOrder    int       `json:"sort_order"`
	Audit
}

// NewExample creates an example owned by parentID.
func NewExample(parentID uuid.UUID, title, principal string) Example {
	return Example{
		ID:       uuid.New(),
		ParentID: parentID,
		Title:    title,
		Audit:    NewAudit(principal, time.Now()),
	}
}

// Validate implements Validator.
func (e Example) Validate() error {
	verr := &ValidationError{}
	requireParent(verr, e.ParentID)
	checkLength(verr, "title", e.Title, 255)
	return verr.OrNil()
}

// Label implements Labeler.
func (e Example) Label() string {
	return e.Title
}

// Data implements Exporter.
func (e Example) Data() map[string]any {
	return map[string]any{
		"example__title":          e.Title,
		"example__description":    e.Description,
		"example__xml_code_text":  e.XMLCodeText,
		"example__xml_code_image": deref(e.XMLCodeImage),
		"example__sort_order":     e.SortOrder,
	}
}

// NoteBlock is a free-text annotation owned by a taxonomy entity.
type NoteBlock struct {
	ID        uuid.UUID `json:"id"`
	ParentID  uuid.UUID `json:"parent_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	SortOrder int       `json:"sort_order"`
	Audit
}

// NewNoteBlock creates a note owned by parentID.
func NewNoteBlock(parentID uuid.UUID, title, principal string) NoteBlock {
	return NoteBlock{
		ID:       uuid.New(),
		ParentID: parentID,
		Title:    title,
		Audit:    NewAudit(principal, time.Now()),
	}
}

// Validate implements Validator.
func (n NoteBlock) Validate() error {
	verr := &ValidationError{}
	requireParent(verr, n.ParentID)
	checkLength(verr, "title", n.Title, 255)
	return verr.OrNil()
}

// Label implements Labeler.
func (n NoteBlock) Label() string {
	return n.Title
}

// Data implements Exporter.
func (n NoteBlock) Data() map[string]any {
	return map[string]any{
		"note__title":      n.Title,
		"note__body":       n.Body,
		"note__sort_order": n.SortOrder,
	}
}

func requireParent(verr *ValidationError, parentID uuid.UUID) {
	if parentID == uuid.Nil {
		verr.Add("parent", msgRequired)
	}
}
