package repository

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/rpattn/spstaglib/internal/db"
	"github.com/rpattn/spstaglib/internal/domain"
)

const taxonomyColumns = "id, kind, name, description, " + auditColumns

// taxonomyRepository implements TaxonomyRepository interface
type taxonomyRepository struct {
	q         db.DBTX
	versions  VersionRepository
	presences PresenceRepository
	examples  ExampleRepository
	notes     NoteRepository
}

// NewTaxonomyRepository creates a new repository for element and attribute definitions
func NewTaxonomyRepository(q db.DBTX) TaxonomyRepository {
	return &taxonomyRepository{
		q:         q,
		versions:  NewVersionRepository(q),
		presences: NewPresenceRepository(q),
		examples:  NewExampleRepository(q),
		notes:     NewNoteRepository(q),
	}
}

func scanTaxonomy(row db.Row) (domain.TaxonomyEntity, error) {
	var (
		e    domain.TaxonomyEntity
		kind string
	)
	err := row.Scan(append([]any{&e.ID, &kind, &e.Name, &e.Description}, auditDest(&e.Audit)...)...)
	e.Kind = domain.TaxonomyKind(kind)
	return e, err
}

// Create creates the entity row
func (r *taxonomyRepository) Create(ctx context.Context, e domain.TaxonomyEntity) (domain.TaxonomyEntity, error) {
	_, err := r.q.Exec(ctx, `INSERT INTO taxonomy_entities (`+taxonomyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, string(e.Kind), e.Name, e.Description,
		e.CreatedAt, e.CreatedBy, e.UpdatedAt, e.UpdatedBy,
	)
	if err != nil {
		return domain.TaxonomyEntity{}, errors.Wrapf(err, "failed to create %s", e.Kind)
	}
	return e, nil
}

// Update updates name and description; the kind of an entity never changes
func (r *taxonomyRepository) Update(ctx context.Context, e domain.TaxonomyEntity) (domain.TaxonomyEntity, error) {
	affected, err := r.q.Exec(ctx, `UPDATE taxonomy_entities
		SET name = $1, description = $2, updated_at = $3, updated_by = $4
		WHERE id = $5`,
		e.Name, e.Description, e.UpdatedAt, e.UpdatedBy, e.ID,
	)
	if err != nil {
		return domain.TaxonomyEntity{}, errors.Wrapf(err, "failed to update %s", e.Kind)
	}
	if err := expectOne(affected, "taxonomy entity", e.ID); err != nil {
		return domain.TaxonomyEntity{}, err
	}
	return e, nil
}

// GetByID loads the entity with its versions, attributes and owned children
func (r *taxonomyRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.TaxonomyEntity, error) {
	e, err := scanTaxonomy(r.q.QueryRow(ctx, `SELECT `+taxonomyColumns+` FROM taxonomy_entities WHERE id = $1`, id))
	if err != nil {
		return domain.TaxonomyEntity{}, notFound(err, "taxonomy entity", id)
	}

	versions, err := r.versions.ListByEntityIDs(ctx, []uuid.UUID{id})
	if err != nil {
		return domain.TaxonomyEntity{}, err
	}
	e.Versions = versions[id]
	if e.Versions == nil {
		e.Versions = []domain.Version{}
	}

	if e.Kind == domain.KindElement {
		attrs, err := r.ListAttributes(ctx, []uuid.UUID{id})
		if err != nil {
			return domain.TaxonomyEntity{}, err
		}
		e.Attributes = attrs[id]
		if e.Attributes == nil {
			e.Attributes = []domain.TaxonomyRef{}
		}
	}

	if e.Presences, err = r.presences.ListByParent(ctx, id); err != nil {
		return domain.TaxonomyEntity{}, err
	}
	if e.Examples, err = r.examples.ListByParent(ctx, id); err != nil {
		return domain.TaxonomyEntity{}, err
	}
	if e.Notes, err = r.notes.ListByParent(ctx, id); err != nil {
		return domain.TaxonomyEntity{}, err
	}
	return e, nil
}

// GetRefs resolves ids to references; missing ids are skipped
func (r *taxonomyRepository) GetRefs(ctx context.Context, ids []uuid.UUID) ([]domain.TaxonomyRef, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return []domain.TaxonomyRef{}, nil
	}
	return r.refs(ctx, `SELECT id, kind, name FROM taxonomy_entities
		WHERE id IN (`+placeholders(1, len(ids))+`) ORDER BY name, id`, uuidArgs(ids)...)
}

// FindByName looks up an entity of kind by its exact name
func (r *taxonomyRepository) FindByName(ctx context.Context, kind domain.TaxonomyKind, name string) (domain.TaxonomyRef, error) {
	var (
		ref     domain.TaxonomyRef
		rawKind string
	)
	err := r.q.QueryRow(ctx, `SELECT id, kind, name FROM taxonomy_entities WHERE kind = $1 AND name = $2`,
		string(kind), name).Scan(&ref.ID, &rawKind, &ref.Name)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return domain.TaxonomyRef{}, errors.Wrapf(domain.ErrNotFound, "%s %q", kind, name)
		}
		return domain.TaxonomyRef{}, errors.Wrapf(err, "failed to find %s by name", kind)
	}
	ref.Kind = domain.TaxonomyKind(rawKind)
	return ref, nil
}

// List returns entity rows of a kind ordered by name
func (r *taxonomyRepository) List(ctx context.Context, kind domain.TaxonomyKind) ([]domain.TaxonomyEntity, error) {
	rows, err := r.q.Query(ctx, `SELECT `+taxonomyColumns+` FROM taxonomy_entities
		WHERE kind = $1 ORDER BY name, id`, string(kind))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s entities", kind)
	}
	defer rows.Close()

	result := []domain.TaxonomyEntity{}
	for rows.Next() {
		e, err := scanTaxonomy(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan taxonomy entity")
		}
		result = append(result, e)
	}
	return result, errors.Wrapf(rows.Err(), "failed to list %s entities", kind)
}

// Delete deletes the entity. Owned presences, examples and notes go with it;
// presence relations elsewhere pointing at it keep a null present_in.
func (r *taxonomyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	affected, err := r.q.Exec(ctx, `DELETE FROM taxonomy_entities WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete taxonomy entity")
	}
	return expectOne(affected, "taxonomy entity", id)
}

// SetVersions replaces the version associations of an entity
func (r *taxonomyRepository) SetVersions(ctx context.Context, entityID uuid.UUID, versionIDs []uuid.UUID) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM taxonomy_entity_versions WHERE entity_id = $1`, entityID); err != nil {
		return errors.Wrap(err, "failed to clear entity versions")
	}
	for _, versionID := range dedupe(versionIDs) {
		if _, err := r.q.Exec(ctx, `INSERT INTO taxonomy_entity_versions (entity_id, version_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING`, entityID, versionID); err != nil {
			return errors.Wrapf(err, "failed to associate version %s", versionID)
		}
	}
	return nil
}

// SetAttributes replaces the attribute set of an element
func (r *taxonomyRepository) SetAttributes(ctx context.Context, elementID uuid.UUID, attributeIDs []uuid.UUID) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM element_attributes WHERE element_id = $1`, elementID); err != nil {
		return errors.Wrap(err, "failed to clear element attributes")
	}
	for _, attributeID := range dedupe(attributeIDs) {
		if _, err := r.q.Exec(ctx, `INSERT INTO element_attributes (element_id, attribute_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING`, elementID, attributeID); err != nil {
			return errors.Wrapf(err, "failed to associate attribute %s", attributeID)
		}
	}
	return nil
}

// ListAttributes returns the attribute set of each element, ordered by name
func (r *taxonomyRepository) ListAttributes(ctx context.Context, elementIDs []uuid.UUID) (map[uuid.UUID][]domain.TaxonomyRef, error) {
	elementIDs = dedupe(elementIDs)
	result := make(map[uuid.UUID][]domain.TaxonomyRef, len(elementIDs))
	if len(elementIDs) == 0 {
		return result, nil
	}

	rows, err := r.q.Query(ctx, `SELECT a.id, a.kind, a.name, ea.element_id
		FROM element_attributes ea
		JOIN taxonomy_entities a ON a.id = ea.attribute_id
		WHERE ea.element_id IN (`+placeholders(1, len(elementIDs))+`)
		ORDER BY a.name, a.id`, uuidArgs(elementIDs)...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list element attributes")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ref       domain.TaxonomyRef
			kind      string
			elementID uuid.UUID
		)
		if err := rows.Scan(&ref.ID, &kind, &ref.Name, &elementID); err != nil {
			return nil, errors.Wrap(err, "failed to scan element attribute")
		}
		ref.Kind = domain.TaxonomyKind(kind)
		result[elementID] = append(result[elementID], ref)
	}
	return result, errors.Wrap(rows.Err(), "failed to list element attributes")
}

func (r *taxonomyRepository) refs(ctx context.Context, query string, args ...any) ([]domain.TaxonomyRef, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list taxonomy references")
	}
	defer rows.Close()

	result := []domain.TaxonomyRef{}
	for rows.Next() {
		var (
			ref  domain.TaxonomyRef
			kind string
		)
		if err := rows.Scan(&ref.ID, &kind, &ref.Name); err != nil {
			return nil, errors.Wrap(err, "failed to scan taxonomy reference")
		}
		ref.Kind = domain.TaxonomyKind(kind)
		result = append(result, ref)
	}
	return result, errors.Wrap(rows.Err(), "failed to list taxonomy references")
}
