package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError carries field-keyed messages for a rejected submission.
type ValidationError struct {
	Fields map[string][]string `json:"errors"`
}

// Error implements error.
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Add records a message for field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Merge copies other's messages under prefix (e.g. "examples[0].").
func (e *ValidationError) Merge(prefix string, other error) {
	var verr *ValidationError
	if !errors.As(other, &verr) {
		return
	}
	for field, messages := range verr.Fields {
		for _, msg := range messages {
			e.Add(prefix+field, msg)
		}
	}
}

// OrNil returns nil when no messages were recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NewValidationError builds an error with a single field message.
func NewValidationError(field, message string) *ValidationError {
	verr := &ValidationError{}
	verr.Add(field, message)
	return verr
}

// IsValidationError reports whether err carries field errors.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// FieldErrors extracts the field-keyed messages from err, if any.
func FieldErrors(err error) map[string][]string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}

const (
	msgRequired = "this field is required"
	msgTooLong  = "ensure this value has at most %d characters"
)

func requireText(verr *ValidationError, field, value string, maxLen int) {
	if strings.TrimSpace(value) == "" {
		verr.Add(field, msgRequired)
		return
	}
	checkLength(verr, field, value, maxLen)
}

func checkLength(verr *ValidationError, field, value string, maxLen int) {
	if maxLen > 0 && len([]rune(value)) > maxLen {
		verr.Add(field, fmt.Sprintf(msgTooLong, maxLen))
	}
}
