package domain

import (
	"time"

	"github.com/google/uuid"
)

// OccurrenceNumber describes how many times an element or attribute may occur,
// e.g. "once", "zero or more times".
type OccurrenceNumber struct {
	ID   uuid.UUID `json:"id"`
	Text string    `json:"text"`
	Audit
}

// NewOccurrenceNumber creates an occurrence number stamped with a fresh ID and audit envelope.
func NewOccurrenceNumber(text, principal string) OccurrenceNumber {
	return OccurrenceNumber{
		ID:    uuid.New(),
		Text:  text,
		Audit: NewAudit(principal, time.Now()),
	}
}

// Validate implements Validator.
func (o OccurrenceNumber) Validate() error {
	verr := &ValidationError{}
	requireText(verr, "text", o.Text, 256)
	return verr.OrNil()
}

// Label implements Labeler.
func (o OccurrenceNumber) Label() string {
	return o.Text
}

// Data implements Exporter.
func (o OccurrenceNumber) Data() map[string]any {
	return map[string]any{
		"occurrence_number__text": o.Text,
	}
}
