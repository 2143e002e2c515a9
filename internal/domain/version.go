package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Version is a named release of the SPS tag library.
type Version struct {
	ID         uuid.UUID `json:"id"`
	Version    string    `json:"version"`
	BeginYear  *int      `json:"begin_year,omitempty"`
	BeginMonth *int      `json:"begin_month,omitempty"`
	EndYear    *int      `json:"end_year,omitempty"`
	EndMonth   *int      `json:"end_month,omitempty"`
	Audit
}

// NewVersion creates a version stamped with a fresh ID and audit envelope.
func NewVersion(label, principal string) Version {
	return Version{
		ID:      uuid.New(),
		Version: label,
		Audit:   NewAudit(principal, time.Now()),
	}
}

// Validate implements Validator.
func (v Version) Validate() error {
	verr := &ValidationError{}
	requireText(verr, "version", v.Version, 16)
	checkYear(verr, "begin_year", v.BeginYear)
	checkYear(verr, "end_year", v.EndYear)
	checkMonth(verr, "begin_month", v.BeginMonth)
	checkMonth(verr, "end_month", v.EndMonth)
	if v.BeginYear != nil && v.EndYear != nil && *v.EndYear < *v.BeginYear {
		verr.Add("end_year", "end year must not be before begin year")
	}
	return verr.OrNil()
}

// Label renders "<version> <begin_year>-<end_year>", leaving unset years empty.
func (v Version) Label() string {
	return fmt.Sprintf("%s %s-%s", v.Version, yearString(v.BeginYear), yearString(v.EndYear))
}

// Data implements Exporter.
func (v Version) Data() map[string]any {
	return map[string]any{
		"sps_version__version":     v.Version,
		"sps_version__begin_year":  deref(v.BeginYear),
		"sps_version__begin_month": deref(v.BeginMonth),
		"sps_version__end_year":    deref(v.EndYear),
		"sps_version__end_month":   deref(v.EndMonth),
	}
}

func yearString(year *int) string {
	if year == nil || *year == 0 {
		return ""
	}
	return strconv.Itoa(*year)
}

func checkYear(verr *ValidationError, field string, year *int) {
	if year != nil && *year <= 0 {
		verr.Add(field, "ensure this value is greater than zero")
	}
}

func checkMonth(verr *ValidationError, field string, month *int) {
	if month != nil && (*month < 1 || *month > 12) {
		verr.Add(field, "ensure this value is between 1 and 12")
	}
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
