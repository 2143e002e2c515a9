package repository

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/rpattn/spstaglib/internal/db"
	"github.com/rpattn/spstaglib/internal/domain"
)

const versionColumns = "id, version, begin_year, begin_month, end_year, end_month, " + auditColumns

// versionRepository implements VersionRepository interface
type versionRepository struct {
	q db.DBTX
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(q db.DBTX) VersionRepository {
	return &versionRepository{q: q}
}

func scanVersion(row db.Row, extra ...any) (domain.Version, error) {
	var v domain.Version
	dest := []any{&v.ID, &v.Version, &v.BeginYear, &v.BeginMonth, &v.EndYear, &v.EndMonth}
	dest = append(dest, auditDest(&v.Audit)...)
	dest = append(dest, extra...)
	err := row.Scan(dest...)
	return v, err
}

// Create creates a new version
func (r *versionRepository) Create(ctx context.Context, v domain.Version) (domain.Version, error) {
	_, err := r.q.Exec(ctx, `INSERT INTO sps_versions (`+versionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		v.ID, v.Version, v.BeginYear, v.BeginMonth, v.EndYear, v.EndMonth,
		v.CreatedAt, v.CreatedBy, v.UpdatedAt, v.UpdatedBy,
	)
	if err != nil {
		return domain.Version{}, errors.Wrap(err, "failed to create version")
	}
	return v, nil
}

// Update updates a version, leaving creation metadata untouched
func (r *versionRepository) Update(ctx context.Context, v domain.Version) (domain.Version, error) {
	affected, err := r.q.Exec(ctx, `UPDATE sps_versions
		SET version = $1, begin_year = $2, begin_month = $3, end_year = $4, end_month = $5,
			updated_at = $6, updated_by = $7
		WHERE id = $8`,
		v.Version, v.BeginYear, v.BeginMonth, v.EndYear, v.EndMonth,
		v.UpdatedAt, v.UpdatedBy, v.ID,
	)
	if err != nil {
		return domain.Version{}, errors.Wrap(err, "failed to update version")
	}
	if err := expectOne(affected, "version", v.ID); err != nil {
		return domain.Version{}, err
	}
	return r.GetByID(ctx, v.ID)
}

// GetByID retrieves a version by ID
func (r *versionRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Version, error) {
	v, err := scanVersion(r.q.QueryRow(ctx, `SELECT `+versionColumns+` FROM sps_versions WHERE id = $1`, id))
	if err != nil {
		return domain.Version{}, notFound(err, "version", id)
	}
	return v, nil
}

// GetByIDs retrieves the versions matching ids; missing ids are skipped
func (r *versionRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Version, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return []domain.Version{}, nil
	}
	return r.list(ctx, `SELECT `+versionColumns+` FROM sps_versions
		WHERE id IN (`+placeholders(1, len(ids))+`) ORDER BY version, id`, uuidArgs(ids)...)
}

// List retrieves all versions ordered by label
func (r *versionRepository) List(ctx context.Context) ([]domain.Version, error) {
	return r.list(ctx, `SELECT `+versionColumns+` FROM sps_versions ORDER BY version, id`)
}

func (r *versionRepository) list(ctx context.Context, query string, args ...any) ([]domain.Version, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list versions")
	}
	defer rows.Close()

	versions := []domain.Version{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan version")
		}
		versions = append(versions, v)
	}
	return versions, errors.Wrap(rows.Err(), "failed to list versions")
}

// ListByEntityIDs returns the versions associated with each taxonomy entity
func (r *versionRepository) ListByEntityIDs(ctx context.Context, entityIDs []uuid.UUID) (map[uuid.UUID][]domain.Version, error) {
	entityIDs = dedupe(entityIDs)
	result := make(map[uuid.UUID][]domain.Version, len(entityIDs))
	if len(entityIDs) == 0 {
		return result, nil
	}

	rows, err := r.q.Query(ctx, `SELECT v.id, v.version, v.begin_year, v.begin_month, v.end_year, v.end_month,
			v.created_at, v.created_by, v.updated_at, v.updated_by, tv.entity_id
		FROM taxonomy_entity_versions tv
		JOIN sps_versions v ON v.id = tv.version_id
		WHERE tv.entity_id IN (`+placeholders(1, len(entityIDs))+`)
		ORDER BY v.version, v.id`, uuidArgs(entityIDs)...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list entity versions")
	}
	defer rows.Close()

	for rows.Next() {
		var entityID uuid.UUID
		v, err := scanVersion(rows, &entityID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan entity version")
		}
		result[entityID] = append(result[entityID], v)
	}
	return result, errors.Wrap(rows.Err(), "failed to list entity versions")
}

// Delete deletes a version; associations to taxonomy entities are dropped with it
func (r *versionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	affected, err := r.q.Exec(ctx, `DELETE FROM sps_versions WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete version")
	}
	return expectOne(affected, "version", id)
}
