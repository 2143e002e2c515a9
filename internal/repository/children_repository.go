package repository

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/rpattn/spstaglib/internal/db"
	"github.com/rpattn/spstaglib/internal/domain"
)

// Owned child tables share parent_id and sort_order columns; rows are read in
// sort_order with creation time and id breaking ties so equal indexes stay stable.
const childOrdering = "sort_order, created_at, id"

type presenceRepository struct {
	q db.DBTX
}

// NewPresenceRepository creates a new presence relation repository
func NewPresenceRepository(q db.DBTX) PresenceRepository {
	return &presenceRepository{q: q}
}

func (r *presenceRepository) Create(ctx context.Context, p domain.PresenceRelation) (domain.PresenceRelation, error) {
	_, err := r.q.Exec(ctx, `INSERT INTO presence_relations
		(id, parent_id, present_in_id, occurrence_number_id, sort_order, `+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.ParentID, nullUUID(p.PresentInID), nullUUID(p.OccurrenceNumberID), p.SortOrder,
		p.CreatedAt, p.CreatedBy, p.UpdatedAt, p.UpdatedBy,
	)
	if err != nil {
		return domain.PresenceRelation{}, errors.Wrap(err, "failed to create presence relation")
	}
	return p, nil
}

func (r *presenceRepository) Update(ctx context.Context, p domain.PresenceRelation) (domain.PresenceRelation, error) {
	affected, err := r.q.Exec(ctx, `UPDATE presence_relations
		SET present_in_id = $1, occurrence_number_id = $2, sort_order = $3, updated_at = $4, updated_by = $5
		WHERE id = $6 AND parent_id = $7`,
		nullUUID(p.PresentInID), nullUUID(p.OccurrenceNumberID), p.SortOrder, p.UpdatedAt, p.UpdatedBy,
		p.ID, p.ParentID,
	)
	if err != nil {
		return domain.PresenceRelation{}, errors.Wrap(err, "failed to update presence relation")
	}
	return p, expectOne(affected, "presence relation", p.ID)
}

// ListByParent returns the parent's presence relations with resolved references
func (r *presenceRepository) ListByParent(ctx context.Context, parentID uuid.UUID) ([]domain.PresenceRelation, error) {
	byParent, err := r.ListByParents(ctx, []uuid.UUID{parentID})
	return orEmpty(byParent[parentID]), err
}

// ListByParents returns the presence relations of each parent in sort order
func (r *presenceRepository) ListByParents(ctx context.Context, parentIDs []uuid.UUID) (map[uuid.UUID][]domain.PresenceRelation, error) {
	parentIDs = dedupe(parentIDs)
	result := make(map[uuid.UUID][]domain.PresenceRelation, len(parentIDs))
	if len(parentIDs) == 0 {
		return result, nil
	}

	rows, err := r.q.Query(ctx, `SELECT p.id, p.parent_id, p.present_in_id, p.occurrence_number_id, p.sort_order,
			p.created_at, p.created_by, p.updated_at, p.updated_by,
			t.kind, t.name, o.text
		FROM presence_relations p
		LEFT JOIN taxonomy_entities t ON t.id = p.present_in_id
		LEFT JOIN occurrence_numbers o ON o.id = p.occurrence_number_id
		WHERE p.parent_id IN (`+placeholders(1, len(parentIDs))+`)
		ORDER BY p.sort_order, p.created_at, p.id`, uuidArgs(parentIDs)...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list presence relations")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p                    domain.PresenceRelation
			presentIn, occNumber uuid.NullUUID
			kind, name, occText  *string
		)
		dest := []any{&p.ID, &p.ParentID, &presentIn, &occNumber, &p.SortOrder}
		dest = append(dest, auditDest(&p.Audit)...)
		dest = append(dest, &kind, &name, &occText)
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(err, "failed to scan presence relation")
		}
		p.PresentInID = uuidPtr(presentIn)
		p.OccurrenceNumberID = uuidPtr(occNumber)
		if p.PresentInID != nil && name != nil {
			ref := domain.TaxonomyRef{ID: *p.PresentInID, Name: *name}
			if kind != nil {
				ref.Kind = domain.TaxonomyKind(*kind)
			}
			p.PresentIn = &ref
		}
		if p.OccurrenceNumberID != nil && occText != nil {
			p.OccurrenceNumber = &domain.OccurrenceNumber{ID: *p.OccurrenceNumberID, Text: *occText}
		}
		result[p.ParentID] = append(result[p.ParentID], p)
	}
	return result, errors.Wrap(rows.Err(), "failed to list presence relations")
}

func (r *presenceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteChild(ctx, r.q, "presence_relations", "presence relation", id)
}

func (r *presenceRepository) Reorder(ctx context.Context, parentID uuid.UUID, ids []uuid.UUID) error {
	return reorder(ctx, r.q, "presence_relations", parentID, ids)
}

type exampleRepository struct {
	q db.DBTX
}

// NewExampleRepository creates a new example repository
func NewExampleRepository(q db.DBTX) ExampleRepository {
	return &exampleRepository{q: q}
}

func (r *exampleRepository) Create(ctx context.Context, e domain.Example) (domain.Example, error) {
	_, err := r.q.Exec(ctx, `INSERT INTO examples
		(id, parent_id, title, description, xml_code_text, xml_code_image, sort_order, `+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.ParentID, e.Title, e.Description, e.XMLCodeText, e.XMLCodeImage, e.SortOrder,
		e.CreatedAt, e.CreatedBy, e.UpdatedAt, e.UpdatedBy,
	)
	if err != nil {
		return domain.Example{}, errors.Wrap(err, "failed to create example")
	}
	return e, nil
}

func (r *exampleRepository) Update(ctx context.Context, e domain.Example) (domain.Example, error) {
	affected, err := r.q.Exec(ctx, `UPDATE examples
		SET title = $1, description = $2, xml_code_text = $3, xml_code_image = $4, sort_order = $5,
			updated_at = $6, updated_by = $7
		WHERE id = $8 AND parent_id = $9`,
		e.Title, e.Description, e.XMLCodeText, e.XMLCodeImage, e.SortOrder,
		e.UpdatedAt, e.UpdatedBy, e.ID, e.ParentID,
	)
	if err != nil {
		return domain.Example{}, errors.Wrap(err, "failed to update example")
	}
	return e, expectOne(affected, "example", e.ID)
}

func (r *exampleRepository) ListByParent(ctx context.Context, parentID uuid.UUID) ([]domain.Example, error) {
	byParent, err := r.ListByParents(ctx, []uuid.UUID{parentID})
	return orEmpty(byParent[parentID]), err
}

func (r *exampleRepository) ListByParents(ctx context.Context, parentIDs []uuid.UUID) (map[uuid.UUID][]domain.Example, error) {
	parentIDs = dedupe(parentIDs)
	result := make(map[uuid.UUID][]domain.Example, len(parentIDs))
	if len(parentIDs) == 0 {
		return result, nil
	}

	rows, err := r.q.Query(ctx, `SELECT id, parent_id, title, description, xml_code_text, xml_code_image, sort_order, `+auditColumns+`
		FROM examples WHERE parent_id IN (`+placeholders(1, len(parentIDs))+`) ORDER BY `+childOrdering, uuidArgs(parentIDs)...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list examples")
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.Example
		dest := []any{&e.ID, &e.ParentID, &e.Title, &e.Description, &e.XMLCodeText, &e.XMLCodeImage, &e.SortOrder}
		if err := rows.Scan(append(dest, auditDest(&e.Audit)...)...); err != nil {
			return nil, errors.Wrap(err, "failed to scan example")
		}
		result[e.ParentID] = append(result[e.ParentID], e)
	}
	return result, errors.Wrap(rows.Err(), "failed to list examples")
}

func (r *exampleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteChild(ctx, r.q, "examples", "example", id)
}

func (r *exampleRepository) Reorder(ctx context.Context, parentID uuid.UUID, ids []uuid.UUID) error {
	return reorder(ctx, r.q, "examples", parentID, ids)
}

type noteRepository struct {
	q db.DBTX
}

// NewNoteRepository creates a new note block repository
func NewNoteRepository(q db.DBTX) NoteRepository {
	return &noteRepository{q: q}
}

func (r *noteRepository) Create(ctx context.Context, n domain.NoteBlock) (domain.NoteBlock, error) {
	_, err := r.q.Exec(ctx, `INSERT INTO note_blocks
		(id, parent_id, title, body, sort_order, `+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.ParentID, n.Title, n.Body, n.SortOrder,
		n.CreatedAt, n.CreatedBy, n.UpdatedAt, n.UpdatedBy,
	)
	if err != nil {
		return domain.NoteBlock{}, errors.Wrap(err, "failed to create note block")
	}
	return n, nil
}

func (r *noteRepository) Update(ctx context.Context, n domain.NoteBlock) (domain.NoteBlock, error) {
	affected, err := r.q.Exec(ctx, `UPDATE note_blocks
		SET title = $1, body = $2, sort_order = $3, updated_at = $4, updated_by = $5
		WHERE id = $6 AND parent_id = $7`,
		n.Title, n.Body, n.SortOrder, n.UpdatedAt, n.UpdatedBy, n.ID, n.ParentID,
	)
	if err != nil {
		return domain.NoteBlock{}, errors.Wrap(err, "failed to update note block")
	}
	return n, expectOne(affected, "note block", n.ID)
}

func (r *noteRepository) ListByParent(ctx context.Context, parentID uuid.UUID) ([]domain.NoteBlock, error) {
	byParent, err := r.ListByParents(ctx, []uuid.UUID{parentID})
	return orEmpty(byParent[parentID]), err
}

func (r *noteRepository) ListByParents(ctx context.Context, parentIDs []uuid.UUID) (map[uuid.UUID][]domain.NoteBlock, error) {
	parentIDs = dedupe(parentIDs)
	result := make(map[uuid.UUID][]domain.NoteBlock, len(parentIDs))
	if len(parentIDs) == 0 {
		return result, nil
	}

	rows, err := r.q.Query(ctx, `SELECT id, parent_id, title, body, sort_order, `+auditColumns+`
		FROM note_blocks WHERE parent_id IN (`+placeholders(1, len(parentIDs))+`) ORDER BY `+childOrdering, uuidArgs(parentIDs)...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list note blocks")
	}
	defer rows.Close()

	for rows.Next() {
		var n domain.NoteBlock
		dest := []any{&n.ID, &n.ParentID, &n.Title, &n.Body, &n.SortOrder}
		if err := rows.Scan(append(dest, auditDest(&n.Audit)...)...); err != nil {
			return nil, errors.Wrap(err, "failed to scan note block")
		}
		result[n.ParentID] = append(result[n.ParentID], n)
	}
	return result, errors.Wrap(rows.Err(), "failed to list note blocks")
}

func (r *noteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteChild(ctx, r.q, "note_blocks", "note block", id)
}

func (r *noteRepository) Reorder(ctx context.Context, parentID uuid.UUID, ids []uuid.UUID) error {
	return reorder(ctx, r.q, "note_blocks", parentID, ids)
}

func deleteChild(ctx context.Context, q db.DBTX, table, what string, id uuid.UUID) error {
	affected, err := q.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete %s", what)
	}
	return expectOne(affected, what, id)
}

// reorder assigns sort_order 0..n-1 following ids. ids must list every child of
// parentID exactly once; no other column changes.
func reorder(ctx context.Context, q db.DBTX, table string, parentID uuid.UUID, ids []uuid.UUID) error {
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE parent_id = $1`, table), parentID)
	if err != nil {
		return errors.Wrapf(err, "failed to load %s for reordering", table)
	}
	current := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return errors.Wrapf(err, "failed to scan %s id", table)
		}
		current[id] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return errors.Wrapf(err, "failed to load %s for reordering", table)
	}

	if len(dedupe(ids)) != len(ids) || len(ids) != len(current) {
		return domain.NewValidationError("order", "must list every child exactly once")
	}
	for _, id := range ids {
		if _, ok := current[id]; !ok {
			return domain.NewValidationError("order", fmt.Sprintf("%s does not belong to this parent", id))
		}
	}

	for i, id := range ids {
		if _, err := q.Exec(ctx, fmt.Sprintf(`UPDATE %s SET sort_order = $1 WHERE id = $2`, table), i, id); err != nil {
			return errors.Wrapf(err, "failed to reorder %s", table)
		}
	}
	return nil
}
