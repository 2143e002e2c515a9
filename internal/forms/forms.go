package forms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/spstaglib/internal/domain"
	"github.com/rpattn/spstaglib/internal/repository"
)

// VersionForm creates or edits an SPS version. A nil ID creates.
type VersionForm struct {
	ID         *uuid.UUID `json:"id,omitempty" yaml:"id,omitempty"`
	Version    string     `json:"version" yaml:"version"`
	BeginYear  *int       `json:"begin_year,omitempty" yaml:"begin_year,omitempty"`
	BeginMonth *int       `json:"begin_month,omitempty" yaml:"begin_month,omitempty"`
	EndYear    *int       `json:"end_year,omitempty" yaml:"end_year,omitempty"`
	EndMonth   *int       `json:"end_month,omitempty" yaml:"end_month,omitempty"`
}

type OccurrenceNumberForm struct {
	ID   *uuid.UUID `json:"id,omitempty" yaml:"id,omitempty"`
	Text string     `json:"text" yaml:"text"`
}

// TaxonomyForm creates or edits an element or attribute together with its inline
// children. The order of Presences, Examples and Notes becomes their sort order.
type TaxonomyForm struct {
	ID           *uuid.UUID          `json:"id,omitempty" yaml:"id,omitempty"`
	Kind         domain.TaxonomyKind `json:"kind" yaml:"kind"`
	Name         string              `json:"name" yaml:"name"`
	Description  string              `json:"description" yaml:"description"`
	VersionIDs   []uuid.UUID         `json:"versions" yaml:"versions"`
	AttributeIDs []uuid.UUID         `json:"attributes" yaml:"attributes"`
	Presences    []PresenceForm      `json:"presences" yaml:"presences"`
	Examples     []ExampleForm       `json:"examples" yaml:"examples"`
	Notes        []NoteForm          `json:"notes" yaml:"notes"`
}

type PresenceForm struct {
	ID                 *uuid.UUID `json:"id,omitempty" yaml:"id,omitempty"`
	PresentInID        *uuid.UUID `json:"present_in,omitempty" yaml:"present_in,omitempty"`
	OccurrenceNumberID *uuid.UUID `json:"occurrence_number,omitempty" yaml:"occurrence_number,omitempty"`
}

type ExampleForm struct {
	ID           *uuid.UUID `json:"id,omitempty" yaml:"id,omitempty"`
	Title        string     `json:"title" yaml:"title"`
	Description  string     `json:"description" yaml:"description"`
	XMLCodeText  string     `json:"xml_code_text" yaml:"xml_code_text"`
	XMLCodeImage *string    `json:"xml_code_image,omitempty" yaml:"xml_code_image,omitempty"`
}

type NoteForm struct {
	ID    *uuid.UUID `json:"id,omitempty" yaml:"id,omitempty"`
	Title string     `json:"title" yaml:"title"`
	Body  string     `json:"body" yaml:"body"`
}

type CollectionNameForm struct {
	ID       *uuid.UUID `json:"id,omitempty" yaml:"id,omitempty"`
	Text     string     `json:"text" yaml:"text"`
	Language string     `json:"language" yaml:"language"`
}

type InstitutionForm struct {
	ID      *uuid.UUID `json:"id,omitempty" yaml:"id,omitempty"`
	Name    string     `json:"name" yaml:"name"`
	Acronym string     `json:"acronym" yaml:"acronym"`
	Country string     `json:"country" yaml:"country"`
	URL     string     `json:"url" yaml:"url"`
}

// CollectionForm creates or edits a collection. FoundationDate uses YYYY-MM-DD.
type CollectionForm struct {
	ID             *uuid.UUID               `json:"id,omitempty" yaml:"id,omitempty"`
	Acron3         *string                  `json:"acron3,omitempty" yaml:"acron3,omitempty"`
	Acron2         *string                  `json:"acron2,omitempty" yaml:"acron2,omitempty"`
	Code           *string                  `json:"code,omitempty" yaml:"code,omitempty"`
	Domain         *string                  `json:"domain,omitempty" yaml:"domain,omitempty"`
	NameID         *uuid.UUID               `json:"name,omitempty" yaml:"name,omitempty"`
	MainName       *string                  `json:"main_name,omitempty" yaml:"main_name,omitempty"`
	Status         *domain.CollectionStatus `json:"status,omitempty" yaml:"status,omitempty"`
	HasAnalytics   *bool                    `json:"has_analytics,omitempty" yaml:"has_analytics,omitempty"`
	Type           *domain.CollectionType   `json:"type,omitempty" yaml:"type,omitempty"`
	IsActive       *bool                    `json:"is_active,omitempty" yaml:"is_active,omitempty"`
	FoundationDate *string                  `json:"foundation_date,omitempty" yaml:"foundation_date,omitempty"`
	InstitutionIDs []uuid.UUID              `json:"institutions" yaml:"institutions"`
}

func (s *Service) SaveVersion(ctx context.Context, form VersionForm) (domain.Version, error) {
	candidate := domain.Version{
		ID:         idOrNew(form.ID),
		Version:    strings.TrimSpace(form.Version),
		BeginYear:  form.BeginYear,
		BeginMonth: form.BeginMonth,
		EndYear:    form.EndYear,
		EndMonth:   form.EndMonth,
	}

	var saved domain.Version
	err := s.submit(ctx, domain.EntitySPSVersion, candidate, func(store *repository.Store, principal string, now time.Time) error {
		var err error
		if form.ID == nil {
			candidate.Audit = domain.NewAudit(principal, now)
			saved, err = store.Versions.Create(ctx, candidate)
			return err
		}
		existing, err := store.Versions.GetByID(ctx, candidate.ID)
		if err != nil {
			return err
		}
		candidate.Audit = existing.Audit.Touch(principal, now)
		saved, err = store.Versions.Update(ctx, candidate)
		return err
	})
	return saved, err
}

func (s *Service) SaveOccurrenceNumber(ctx context.Context, form OccurrenceNumberForm) (domain.OccurrenceNumber, error) {
	candidate := domain.OccurrenceNumber{
		ID:   idOrNew(form.ID),
		Text: strings.TrimSpace(form.Text),
	}

	var saved domain.OccurrenceNumber
	err := s.submit(ctx, domain.EntityOccurrenceNumber, candidate, func(store *repository.Store, principal string, now time.Time) error {
		var err error
		if form.ID == nil {
			candidate.Audit = domain.NewAudit(principal, now)
			saved, err = store.OccurrenceNumbers.Create(ctx, candidate)
			return err
		}
		existing, err := store.OccurrenceNumbers.GetByID(ctx, candidate.ID)
		if err != nil {
			return err
		}
		candidate.Audit = existing.Audit.Touch(principal, now)
		saved, err = store.OccurrenceNumbers.Update(ctx, candidate)
		return err
	})
	return saved, err
}

func (s *Service) SaveCollectionName(ctx context.Context, form CollectionNameForm) (domain.CollectionName, error) {
	candidate := domain.CollectionName{
		ID:       idOrNew(form.ID),
		Text:     strings.TrimSpace(form.Text),
		Language: strings.TrimSpace(form.Language),
	}

	var saved domain.CollectionName
	err := s.submit(ctx, domain.EntityCollectionName, candidate, func(store *repository.Store, principal string, now time.Time) error {
		var err error
		if form.ID == nil {
			candidate.Audit = domain.NewAudit(principal, now)
			saved, err = store.CollectionNames.Create(ctx, candidate)
			return err
		}
		existing, err := store.CollectionNames.GetByID(ctx, candidate.ID)
		if err != nil {
			return err
		}
		candidate.Audit = existing.Audit.Touch(principal, now)
		saved, err = store.CollectionNames.Update(ctx, candidate)
		return err
	})
	return saved, err
}

func (s *Service) SaveInstitution(ctx context.Context, form InstitutionForm) (domain.Institution, error) {
	candidate := domain.Institution{
		ID:      idOrNew(form.ID),
		Name:    strings.TrimSpace(form.Name),
		Acronym: strings.TrimSpace(form.Acronym),
		Country: strings.TrimSpace(form.Country),
		URL:     strings.TrimSpace(form.URL),
	}

	var saved domain.Institution
	err := s.submit(ctx, domain.EntityInstitution, candidate, func(store *repository.Store, principal string, now time.Time) error {
		var err error
		if form.ID == nil {
			candidate.Audit = domain.NewAudit(principal, now)
			saved, err = store.Institutions.Create(ctx, candidate)
			return err
		}
		existing, err := store.Institutions.GetByID(ctx, candidate.ID)
		if err != nil {
			return err
		}
		candidate.Audit = existing.Audit.Touch(principal, now)
		saved, err = store.Institutions.Update(ctx, candidate)
		return err
	})
	return saved, err
}

// SaveCollection persists a collection with its name reference and institution set.
func (s *Service) SaveCollection(ctx context.Context, form CollectionForm) (domain.Collection, error) {
	candidate := domain.Collection{
		ID:           idOrNew(form.ID),
		Acron3:       trimmed(form.Acron3),
		Acron2:       trimmed(form.Acron2),
		Code:         trimmed(form.Code),
		Domain:       trimmed(form.Domain),
		NameID:       form.NameID,
		MainName:     trimmed(form.MainName),
		Status:       form.Status,
		HasAnalytics: form.HasAnalytics,
		Type:         form.Type,
		IsActive:     form.IsActive,
	}

	var dateErr *domain.ValidationError
	if form.FoundationDate != nil && strings.TrimSpace(*form.FoundationDate) != "" {
		date, err := time.Parse(time.DateOnly, strings.TrimSpace(*form.FoundationDate))
		if err != nil {
			dateErr = domain.NewValidationError("foundation_date", "enter a valid date (YYYY-MM-DD)")
		} else {
			candidate.FoundationDate = &date
		}
	}

	var saved domain.Collection
	err := s.submit(ctx, domain.EntityCollection, collectionCandidate{candidate, dateErr}, func(store *repository.Store, principal string, now time.Time) error {
		verr := &domain.ValidationError{}
		if candidate.NameID != nil {
			if _, err := store.CollectionNames.GetByID(ctx, *candidate.NameID); err != nil {
				if !isNotFound(err) {
					return err
				}
				verr.Add("name", fmt.Sprintf("collection name %s does not exist", *candidate.NameID))
			}
		}
		if err := checkIDs(verr, "institutions", form.InstitutionIDs, func(ids []uuid.UUID) ([]uuid.UUID, error) {
			found, err := store.Institutions.GetByIDs(ctx, ids)
			return institutionIDs(found), err
		}); err != nil {
			return err
		}
		if err := verr.OrNil(); err != nil {
			return err
		}

		if form.ID == nil {
			candidate.Audit = domain.NewAudit(principal, now)
			if _, err := store.Collections.Create(ctx, candidate); err != nil {
				return err
			}
		} else {
			existing, err := store.Collections.GetByID(ctx, candidate.ID)
			if err != nil {
				return err
			}
			candidate.Audit = existing.Audit.Touch(principal, now)
			if _, err := store.Collections.Update(ctx, candidate); err != nil {
				return err
			}
		}
		if err := store.Collections.SetInstitutions(ctx, candidate.ID, form.InstitutionIDs); err != nil {
			return err
		}

		var err error
		saved, err = store.Collections.GetByID(ctx, candidate.ID)
		return err
	})
	return saved, err
}

// collectionCandidate folds date parse errors into the collection's field validation.
type collectionCandidate struct {
	domain.Collection
	dateErr *domain.ValidationError
}

func (c collectionCandidate) Validate() error {
	verr := &domain.ValidationError{}
	verr.Merge("", c.Collection.Validate())
	if c.dateErr != nil {
		verr.Merge("", c.dateErr)
	}
	return verr.OrNil()
}

func idOrNew(id *uuid.UUID) uuid.UUID {
	if id != nil {
		return *id
	}
	return uuid.New()
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func institutionIDs(items []domain.Institution) []uuid.UUID {
	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

// checkIDs reports every id in want that lookup does not return under field.
func checkIDs(
	verr *domain.ValidationError,
	field string,
	want []uuid.UUID,
	lookup func([]uuid.UUID) ([]uuid.UUID, error),
) error {
	if len(want) == 0 {
		return nil
	}
	found, err := lookup(want)
	if err != nil {
		return err
	}
	known := make(map[uuid.UUID]struct{}, len(found))
	for _, id := range found {
		known[id] = struct{}{}
	}
	for _, id := range want {
		if _, ok := known[id]; !ok {
			verr.Add(field, fmt.Sprintf("%s does not exist", id))
		}
	}
	return nil
}
