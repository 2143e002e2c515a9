package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CollectionStatus is the editorial status of a collection.
type CollectionStatus string

const (
	CollectionStatusCertified   CollectionStatus = "certified"
	CollectionStatusDevelopment CollectionStatus = "development"
	CollectionStatusDiffusion   CollectionStatus = "diffusion"
	CollectionStatusIndependent CollectionStatus = "independent"
)

// Valid reports whether s is a known status.
func (s CollectionStatus) Valid() bool {
	switch s {
	case CollectionStatusCertified, CollectionStatusDevelopment, CollectionStatusDiffusion, CollectionStatusIndependent:
		return true
	}
	return false
}

// CollectionType is the kind of content a collection publishes.
type CollectionType string

const (
	CollectionTypeJournals     CollectionType = "journals"
	CollectionTypePreprints    CollectionType = "preprints"
	CollectionTypeRepositories CollectionType = "repositories"
	CollectionTypeBooks        CollectionType = "books"
	CollectionTypeData         CollectionType = "data"
)

// Valid reports whether t is a known type.
func (t CollectionType) Valid() bool {
	switch t {
	case CollectionTypeJournals, CollectionTypePreprints, CollectionTypeRepositories, CollectionTypeBooks, CollectionTypeData:
		return true
	}
	return false
}

// CollectionName is a collection name in a given language.
type CollectionName struct {
	ID       uuid.UUID `json:"id"`
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Audit
}

// NewCollectionName creates a collection name.
func NewCollectionName(text, language, principal string) CollectionName {
	return CollectionName{
		ID:       uuid.New(),
		Text:     text,
		Language: language,
		Audit:    NewAudit(principal, time.Now()),
	}
}

// Validate implements Validator.
func (n CollectionName) Validate() error {
	verr := &ValidationError{}
	checkLength(verr, "text", n.Text, 255)
	checkLength(verr, "language", n.Language, 16)
	return verr.OrNil()
}

// Label implements Labeler.
func (n CollectionName) Label() string {
	return n.Text
}

// Data implements Exporter.
func (n CollectionName) Data() map[string]any {
	return map[string]any{
		"collection_name__text":     n.Text,
		"collection_name__language": n.Language,
	}
}

// Institution is an organisation associated with collections.
type Institution struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Acronym string    `json:"acronym"`
	Country string    `json:"country"`
	URL     string    `json:"url"`
	Audit
}

// NewInstitution creates an institution.
func NewInstitution(name, principal string) Institution {
	return Institution{
		ID:    uuid.New(),
		Name:  name,
		Audit: NewAudit(principal, time.Now()),
	}
}

// Validate implements Validator.
func (i Institution) Validate() error {
	verr := &ValidationError{}
	requireText(verr, "name", i.Name, 255)
	checkLength(verr, "acronym", i.Acronym, 64)
	checkLength(verr, "country", i.Country, 255)
	if i.URL != "" {
		checkURL(verr, "url", i.URL)
	}
	return verr.OrNil()
}

// Label implements Labeler.
func (i Institution) Label() string {
	return i.Name
}

// Data implements Exporter.
func (i Institution) Data() map[string]any {
	return map[string]any{
		"institution__name":    i.Name,
		"institution__acronym": i.Acronym,
		"institution__country": i.Country,
		"institution__url":     i.URL,
	}
}

// Collection is a publishing venue or aggregator. Name is a non-owning reference
// nulled when the CollectionName is deleted.
type Collection struct {
	ID             uuid.UUID         `json:"id"`
	Acron3         *string           `json:"acron3,omitempty"`
	Acron2         *string           `json:"acron2,omitempty"`
	Code           *string           `json:"code,omitempty"`
	Domain         *string           `json:"domain,omitempty"`
	NameID         *uuid.UUID        `json:"name_id,omitempty"`
	MainName       *string           `json:"main_name,omitempty"`
	Status         *CollectionStatus `json:"status,omitempty"`
	HasAnalytics   *bool             `json:"has_analytics,omitempty"`
	Type           *CollectionType   `json:"type,omitempty"`
	IsActive       *bool             `json:"is_active,omitempty"`
	FoundationDate *time.Time        `json:"foundation_date,omitempty"`

	Name         *CollectionName `json:"name,omitempty"`
	Institutions []Institution   `json:"institutions"`
	Audit
}

// NewCollection creates an empty collection.
func NewCollection(principal string) Collection {
	return Collection{
		ID:    uuid.New(),
		Audit: NewAudit(principal, time.Now()),
	}
}

// Validate implements Validator.
func (c Collection) Validate() error {
	verr := &ValidationError{}
	checkOptionalLength(verr, "acron3", c.Acron3, 3)
	checkOptionalLength(verr, "acron2", c.Acron2, 2)
	checkOptionalLength(verr, "code", c.Code, 3)
	checkOptionalLength(verr, "main_name", c.MainName, 255)
	if c.Domain != nil && *c.Domain != "" {
		checkURL(verr, "domain", *c.Domain)
	}
	if c.Status != nil && !c.Status.Valid() {
		verr.Add("status", fmt.Sprintf("%q is not a valid choice", *c.Status))
	}
	if c.Type != nil && !c.Type.Valid() {
		verr.Add("type", fmt.Sprintf("%q is not a valid choice", *c.Type))
	}
	return verr.OrNil()
}

// Label implements Labeler.
func (c Collection) Label() string {
	if c.MainName == nil {
		return ""
	}
	return *c.MainName
}

// Data implements Exporter. The collection name's export is merged in when set.
func (c Collection) Data() map[string]any {
	var foundation any
	if c.FoundationDate != nil {
		foundation = c.FoundationDate.Format(time.DateOnly)
	}
	d := map[string]any{
		"collection__acron3":             deref(c.Acron3),
		"collection__acron2":             deref(c.Acron2),
		"collection__code":               deref(c.Code),
		"collection__domain":             deref(c.Domain),
		"collection__main_name":          deref(c.MainName),
		"collection__status":             derefString(c.Status),
		"collection__has_analytics":      deref(c.HasAnalytics),
		"collection__type":               derefString(c.Type),
		"collection__is_active":          deref(c.IsActive),
		"collection__is_foundation_date": foundation,
		"collection__institution":        exportAll(c.Institutions),
	}
	if c.Name != nil {
		merge(d, c.Name.Data())
	}
	return d
}

func derefString[T ~string](p *T) any {
	if p == nil {
		return nil
	}
	return string(*p)
}

func checkOptionalLength(verr *ValidationError, field string, value *string, maxLen int) {
	if value != nil {
		checkLength(verr, field, *value, maxLen)
	}
}

func checkURL(verr *ValidationError, field, raw string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (!strings.EqualFold(u.Scheme, "http") && !strings.EqualFold(u.Scheme, "https")) {
		verr.Add(field, "enter a valid URL")
	}
}
