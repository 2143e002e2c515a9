package forms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/rpattn/spstaglib/internal/domain"
	"github.com/rpattn/spstaglib/internal/repository"
)

// SaveTaxonomy persists an element or attribute with its version and attribute sets
// and its inline presences, examples and notes. Children submitted with an ID are
// updated, children without one are inserted, and stored children missing from the
// submission are deleted.
func (s *Service) SaveTaxonomy(ctx context.Context, form TaxonomyForm) (domain.TaxonomyEntity, error) {
	candidate := taxonomyCandidate(form)
	kind := string(form.Kind)
	if !form.Kind.Valid() {
		kind = "taxonomy"
	}

	var saved domain.TaxonomyEntity
	err := s.submit(ctx, kind, candidate, func(store *repository.Store, principal string, now time.Time) error {
		var existing *domain.TaxonomyEntity
		if form.ID != nil {
			current, err := store.Taxonomy.GetByID(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if current.Kind != candidate.Kind {
				return domain.NewValidationError("kind", fmt.Sprintf("cannot change %s into %s", current.Kind, candidate.Kind))
			}
			existing = &current
		}

		if err := s.checkTaxonomyReferences(ctx, store, candidate, form); err != nil {
			return err
		}

		if existing == nil {
			candidate.Audit = domain.NewAudit(principal, now)
			if _, err := store.Taxonomy.Create(ctx, candidate); err != nil {
				return err
			}
		} else {
			candidate.Audit = existing.Audit.Touch(principal, now)
			if _, err := store.Taxonomy.Update(ctx, candidate); err != nil {
				return err
			}
		}

		if err := store.Taxonomy.SetVersions(ctx, candidate.ID, form.VersionIDs); err != nil {
			return err
		}
		if candidate.Kind == domain.KindElement {
			if err := store.Taxonomy.SetAttributes(ctx, candidate.ID, form.AttributeIDs); err != nil {
				return err
			}
		}

		var current domain.TaxonomyEntity
		if existing != nil {
			current = *existing
		}
		if err := syncPresences(ctx, store.Presences, current.Presences, candidate.Presences, form.Presences, principal, now); err != nil {
			return err
		}
		if err := syncExamples(ctx, store.Examples, current.Examples, candidate.Examples, form.Examples, principal, now); err != nil {
			return err
		}
		if err := syncNotes(ctx, store.Notes, current.Notes, candidate.Notes, form.Notes, principal, now); err != nil {
			return err
		}

		var err error
		saved, err = store.Taxonomy.GetByID(ctx, candidate.ID)
		return err
	})
	return saved, err
}

func taxonomyCandidate(form TaxonomyForm) domain.TaxonomyEntity {
	e := domain.TaxonomyEntity{
		ID:          idOrNew(form.ID),
		Kind:        form.Kind,
		Name:        strings.TrimSpace(form.Name),
		Description: form.Description,
	}
	for _, id := range form.AttributeIDs {
		e.Attributes = append(e.Attributes, domain.TaxonomyRef{ID: id})
	}
	for i, p := range form.Presences {
		e.Presences = append(e.Presences, domain.PresenceRelation{
			ID:                 idOrNew(p.ID),
			ParentID:           e.ID,
			PresentInID:        p.PresentInID,
			OccurrenceNumberID: p.OccurrenceNumberID,
			SortOrder:          i,
		})
	}
	for i, ex := range form.Examples {
		e.Examples = append(e.Examples, domain.Example{
			ID:           idOrNew(ex.ID),
			ParentID:     e.ID,
			Title:        strings.TrimSpace(ex.Title),
			Description:  ex.Description,
			XMLCodeText:  ex.XMLCodeText,
			XMLCodeImage: ex.XMLCodeImage,
			SortOrder:    i,
		})
	}
	for i, n := range form.Notes {
		e.Notes = append(e.Notes, domain.NoteBlock{
			ID:        idOrNew(n.ID),
			ParentID:  e.ID,
			Title:     strings.TrimSpace(n.Title),
			Body:      n.Body,
			SortOrder: i,
		})
	}
	return e
}

// checkTaxonomyReferences verifies name uniqueness and that every referenced
// version, attribute, present_in target and occurrence number exists.
func (s *Service) checkTaxonomyReferences(ctx context.Context, store *repository.Store, e domain.TaxonomyEntity, form TaxonomyForm) error {
	verr := &domain.ValidationError{}

	other, err := store.Taxonomy.FindByName(ctx, e.Kind, e.Name)
	switch {
	case err == nil && other.ID != e.ID:
		verr.Add("name", fmt.Sprintf("%s with this name already exists", e.Kind))
	case err != nil && !isNotFound(err):
		return err
	}

	if err := checkIDs(verr, "versions", form.VersionIDs, func(ids []uuid.UUID) ([]uuid.UUID, error) {
		found, err := store.Versions.GetByIDs(ctx, ids)
		ids = make([]uuid.UUID, len(found))
		for i, v := range found {
			ids[i] = v.ID
		}
		return ids, err
	}); err != nil {
		return err
	}

	if len(form.AttributeIDs) > 0 {
		refs, err := store.Taxonomy.GetRefs(ctx, form.AttributeIDs)
		if err != nil {
			return err
		}
		byID := refsByID(refs)
		for _, id := range form.AttributeIDs {
			ref, ok := byID[id]
			switch {
			case !ok:
				verr.Add("attributes", fmt.Sprintf("%s does not exist", id))
			case ref.Kind != domain.KindAttribute:
				verr.Add("attributes", fmt.Sprintf("%s is not an attribute", ref.Name))
			}
		}
	}

	var targets []uuid.UUID
	for _, p := range form.Presences {
		if p.PresentInID != nil && *p.PresentInID != e.ID {
			targets = append(targets, *p.PresentInID)
		}
	}
	refs, err := store.Taxonomy.GetRefs(ctx, targets)
	if err != nil {
		return err
	}
	known := refsByID(refs)
	for i, p := range form.Presences {
		if p.PresentInID != nil && *p.PresentInID != e.ID {
			if _, ok := known[*p.PresentInID]; !ok {
				verr.Add(fmt.Sprintf("presences[%d].present_in", i), fmt.Sprintf("%s does not exist", *p.PresentInID))
			}
		}
		if p.OccurrenceNumberID != nil {
			if _, err := store.OccurrenceNumbers.GetByID(ctx, *p.OccurrenceNumberID); err != nil {
				if !isNotFound(err) {
					return err
				}
				verr.Add(fmt.Sprintf("presences[%d].occurrence_number", i), fmt.Sprintf("%s does not exist", *p.OccurrenceNumberID))
			}
		}
	}

	return verr.OrNil()
}

func refsByID(refs []domain.TaxonomyRef) map[uuid.UUID]domain.TaxonomyRef {
	out := make(map[uuid.UUID]domain.TaxonomyRef, len(refs))
	for _, ref := range refs {
		out[ref.ID] = ref
	}
	return out
}

// childPlan splits submitted children into updates and inserts and reports ids
// that are not stored children of the parent.
func childPlan(field string, stored []uuid.UUID, submitted []*uuid.UUID) (map[uuid.UUID]bool, error) {
	storedSet := make(map[uuid.UUID]bool, len(stored))
	for _, id := range stored {
		storedSet[id] = false
	}
	verr := &domain.ValidationError{}
	for i, id := range submitted {
		if id == nil {
			continue
		}
		seen, ok := storedSet[*id]
		switch {
		case !ok:
			verr.Add(fmt.Sprintf("%s[%d].id", field, i), fmt.Sprintf("%s does not belong to this record", *id))
		case seen:
			verr.Add(fmt.Sprintf("%s[%d].id", field, i), "submitted more than once")
		default:
			storedSet[*id] = true
		}
	}
	return storedSet, verr.OrNil()
}

func syncPresences(
	ctx context.Context,
	repo repository.PresenceRepository,
	stored, children []domain.PresenceRelation,
	forms []PresenceForm,
	principal string,
	now time.Time,
) error {
	audits := make(map[uuid.UUID]domain.Audit, len(stored))
	ids := make([]uuid.UUID, len(stored))
	for i, p := range stored {
		ids[i], audits[p.ID] = p.ID, p.Audit
	}
	submitted := make([]*uuid.UUID, len(forms))
	for i, f := range forms {
		submitted[i] = f.ID
	}
	kept, err := childPlan("presences", ids, submitted)
	if err != nil {
		return err
	}
	for id, keep := range kept {
		if !keep {
			if err := repo.Delete(ctx, id); err != nil {
				return err
			}
		}
	}
	for i, child := range children {
		if forms[i].ID == nil {
			child.Audit = domain.NewAudit(principal, now)
			if _, err := repo.Create(ctx, child); err != nil {
				return err
			}
			continue
		}
		child.Audit = audits[child.ID].Touch(principal, now)
		if _, err := repo.Update(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

func syncExamples(
	ctx context.Context,
	repo repository.ExampleRepository,
	stored, children []domain.Example,
	forms []ExampleForm,
	principal string,
	now time.Time,
) error {
	audits := make(map[uuid.UUID]domain.Audit, len(stored))
	ids := make([]uuid.UUID, len(stored))
	for i, e := range stored {
		ids[i], audits[e.ID] = e.ID, e.Audit
	}
	submitted := make([]*uuid.UUID, len(forms))
	for i, f := range forms {
		submitted[i] = f.ID
	}
	kept, err := childPlan("examples", ids, submitted)
	if err != nil {
		return err
	}
	for id, keep := range kept {
		if !keep {
			if err := repo.Delete(ctx, id); err != nil {
				return err
			}
		}
	}
	for i, child := range children {
		if forms[i].ID == nil {
			child.Audit = domain.NewAudit(principal, now)
			if _, err := repo.Create(ctx, child); err != nil {
				return err
			}
			continue
		}
		child.Audit = audits[child.ID].Touch(principal, now)
		if _, err := repo.Update(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

func syncNotes(
	ctx context.Context,
	repo repository.NoteRepository,
	stored, children []domain.NoteBlock,
	forms []NoteForm,
	principal string,
	now time.Time,
) error {
	audits := make(map[uuid.UUID]domain.Audit, len(stored))
	ids := make([]uuid.UUID, len(stored))
	for i, n := range stored {
		ids[i], audits[n.ID] = n.ID, n.Audit
	}
	submitted := make([]*uuid.UUID, len(forms))
	for i, f := range forms {
		submitted[i] = f.ID
	}
	kept, err := childPlan("notes", ids, submitted)
	if err != nil {
		return err
	}
	for id, keep := range kept {
		if !keep {
			if err := repo.Delete(ctx, id); err != nil {
				return err
			}
		}
	}
	for i, child := range children {
		if forms[i].ID == nil {
			child.Audit = domain.NewAudit(principal, now)
			if _, err := repo.Create(ctx, child); err != nil {
				return err
			}
			continue
		}
		child.Audit = audits[child.ID].Touch(principal, now)
		if _, err := repo.Update(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

// Child collections accepted by Reorder.
const (
	ChildPresences = "presences"
	ChildExamples  = "examples"
	ChildNotes     = "notes"
)

// ReorderPresences sets the sort order of the parent's presence relations.
func (s *Service) ReorderPresences(ctx context.Context, parentID uuid.UUID, ids []uuid.UUID) error {
	return s.Reorder(ctx, ChildPresences, parentID, ids)
}

// ReorderExamples sets the sort order of the parent's examples.
func (s *Service) ReorderExamples(ctx context.Context, parentID uuid.UUID, ids []uuid.UUID) error {
	return s.Reorder(ctx, ChildExamples, parentID, ids)
}

// ReorderNotes sets the sort order of the parent's note blocks.
func (s *Service) ReorderNotes(ctx context.Context, parentID uuid.UUID, ids []uuid.UUID) error {
	return s.Reorder(ctx, ChildNotes, parentID, ids)
}

// Reorder assigns sort orders 0..n-1 to the children listed in ids. ids must name
// every child of parentID exactly once. Only the sort order changes.
func (s *Service) Reorder(ctx context.Context, children string, parentID uuid.UUID, ids []uuid.UUID) error {
	return s.submit(ctx, "reorder-"+children, nil, func(store *repository.Store, _ string, _ time.Time) error {
		switch children {
		case ChildPresences:
			return store.Presences.Reorder(ctx, parentID, ids)
		case ChildExamples:
			return store.Examples.Reorder(ctx, parentID, ids)
		case ChildNotes:
			return store.Notes.Reorder(ctx, parentID, ids)
		}
		return errors.Newf("unknown child collection %q", children)
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
