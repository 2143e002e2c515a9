package repository

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/rpattn/spstaglib/internal/db"
	"github.com/rpattn/spstaglib/internal/domain"
)

const collectionNameColumns = "id, text, language, " + auditColumns

type collectionNameRepository struct {
	q db.DBTX
}

// NewCollectionNameRepository creates a new collection name repository
func NewCollectionNameRepository(q db.DBTX) CollectionNameRepository {
	return &collectionNameRepository{q: q}
}

func scanCollectionName(row db.Row) (domain.CollectionName, error) {
	var n domain.CollectionName
	err := row.Scan(append([]any{&n.ID, &n.Text, &n.Language}, auditDest(&n.Audit)...)...)
	return n, err
}

func (r *collectionNameRepository) Create(ctx context.Context, n domain.CollectionName) (domain.CollectionName, error) {
	_, err := r.q.Exec(ctx, `INSERT INTO collection_names (`+collectionNameColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.Text, n.Language, n.CreatedAt, n.CreatedBy, n.UpdatedAt, n.UpdatedBy,
	)
	if err != nil {
		return domain.CollectionName{}, errors.Wrap(err, "failed to create collection name")
	}
	return n, nil
}

func (r *collectionNameRepository) Update(ctx context.Context, n domain.CollectionName) (domain.CollectionName, error) {
	affected, err := r.q.Exec(ctx, `UPDATE collection_names
		SET text = $1, language = $2, updated_at = $3, updated_by = $4
		WHERE id = $5`,
		n.Text, n.Language, n.UpdatedAt, n.UpdatedBy, n.ID,
	)
	if err != nil {
		return domain.CollectionName{}, errors.Wrap(err, "failed to update collection name")
	}
	if err := expectOne(affected, "collection name", n.ID); err != nil {
		return domain.CollectionName{}, err
	}
	return r.GetByID(ctx, n.ID)
}

func (r *collectionNameRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.CollectionName, error) {
	n, err := scanCollectionName(r.q.QueryRow(ctx, `SELECT `+collectionNameColumns+` FROM collection_names WHERE id = $1`, id))
	if err != nil {
		return domain.CollectionName{}, notFound(err, "collection name", id)
	}
	return n, nil
}

func (r *collectionNameRepository) List(ctx context.Context) ([]domain.CollectionName, error) {
	rows, err := r.q.Query(ctx, `SELECT `+collectionNameColumns+` FROM collection_names ORDER BY text, id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list collection names")
	}
	defer rows.Close()

	result := []domain.CollectionName{}
	for rows.Next() {
		n, err := scanCollectionName(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan collection name")
		}
		result = append(result, n)
	}
	return result, errors.Wrap(rows.Err(), "failed to list collection names")
}

// Delete deletes a collection name; collections using it keep a null name
func (r *collectionNameRepository) Delete(ctx context.Context, id uuid.UUID) error {
	affected, err := r.q.Exec(ctx, `DELETE FROM collection_names WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete collection name")
	}
	return expectOne(affected, "collection name", id)
}

const institutionColumns = "id, name, acronym, country, url, " + auditColumns

type institutionRepository struct {
	q db.DBTX
}

// NewInstitutionRepository creates a new institution repository
func NewInstitutionRepository(q db.DBTX) InstitutionRepository {
	return &institutionRepository{q: q}
}

func scanInstitution(row db.Row, extra ...any) (domain.Institution, error) {
	var i domain.Institution
	dest := append([]any{&i.ID, &i.Name, &i.Acronym, &i.Country, &i.URL}, auditDest(&i.Audit)...)
	err := row.Scan(append(dest, extra...)...)
	return i, err
}

func (r *institutionRepository) Create(ctx context.Context, i domain.Institution) (domain.Institution, error) {
	_, err := r.q.Exec(ctx, `INSERT INTO institutions (`+institutionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		i.ID, i.Name, i.Acronym, i.Country, i.URL, i.CreatedAt, i.CreatedBy, i.UpdatedAt, i.UpdatedBy,
	)
	if err != nil {
		return domain.Institution{}, errors.Wrap(err, "failed to create institution")
	}
	return i, nil
}

func (r *institutionRepository) Update(ctx context.Context, i domain.Institution) (domain.Institution, error) {
	affected, err := r.q.Exec(ctx, `UPDATE institutions
		SET name = $1, acronym = $2, country = $3, url = $4, updated_at = $5, updated_by = $6
		WHERE id = $7`,
		i.Name, i.Acronym, i.Country, i.URL, i.UpdatedAt, i.UpdatedBy, i.ID,
	)
	if err != nil {
		return domain.Institution{}, errors.Wrap(err, "failed to update institution")
	}
	if err := expectOne(affected, "institution", i.ID); err != nil {
		return domain.Institution{}, err
	}
	return r.GetByID(ctx, i.ID)
}

func (r *institutionRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Institution, error) {
	i, err := scanInstitution(r.q.QueryRow(ctx, `SELECT `+institutionColumns+` FROM institutions WHERE id = $1`, id))
	if err != nil {
		return domain.Institution{}, notFound(err, "institution", id)
	}
	return i, nil
}

func (r *institutionRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Institution, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return []domain.Institution{}, nil
	}
	return r.list(ctx, `SELECT `+institutionColumns+` FROM institutions
		WHERE id IN (`+placeholders(1, len(ids))+`) ORDER BY name, id`, uuidArgs(ids)...)
}

func (r *institutionRepository) List(ctx context.Context) ([]domain.Institution, error) {
	return r.list(ctx, `SELECT `+institutionColumns+` FROM institutions ORDER BY name, id`)
}

func (r *institutionRepository) Search(ctx context.Context, query string, limit int) ([]domain.Institution, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(query))) + "%"
	return r.list(ctx, `SELECT `+institutionColumns+` FROM institutions
		WHERE LOWER(name) LIKE $1 ESCAPE '\' OR LOWER(acronym) LIKE $1 ESCAPE '\'
		ORDER BY name, id LIMIT $2`, pattern, limit)
}

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *institutionRepository) list(ctx context.Context, query string, args ...any) ([]domain.Institution, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list institutions")
	}
	defer rows.Close()

	result := []domain.Institution{}
	for rows.Next() {
		i, err := scanInstitution(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan institution")
		}
		result = append(result, i)
	}
	return result, errors.Wrap(rows.Err(), "failed to list institutions")
}

func (r *institutionRepository) ListByCollectionIDs(ctx context.Context, collectionIDs []uuid.UUID) (map[uuid.UUID][]domain.Institution, error) {
	collectionIDs = dedupe(collectionIDs)
	result := make(map[uuid.UUID][]domain.Institution, len(collectionIDs))
	if len(collectionIDs) == 0 {
		return result, nil
	}

	rows, err := r.q.Query(ctx, `SELECT i.id, i.name, i.acronym, i.country, i.url,
			i.created_at, i.created_by, i.updated_at, i.updated_by, ci.collection_id
		FROM collection_institutions ci
		JOIN institutions i ON i.id = ci.institution_id
		WHERE ci.collection_id IN (`+placeholders(1, len(collectionIDs))+`)
		ORDER BY i.name, i.id`, uuidArgs(collectionIDs)...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list collection institutions")
	}
	defer rows.Close()

	for rows.Next() {
		var collectionID uuid.UUID
		i, err := scanInstitution(rows, &collectionID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan collection institution")
		}
		result[collectionID] = append(result[collectionID], i)
	}
	return result, errors.Wrap(rows.Err(), "failed to list collection institutions")
}

func (r *institutionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	affected, err := r.q.Exec(ctx, `DELETE FROM institutions WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete institution")
	}
	return expectOne(affected, "institution", id)
}

const collectionColumns = "c.id, c.acron3, c.acron2, c.code, c.domain, c.name_id, c.main_name, c.status, " +
	"c.has_analytics, c.type, c.is_active, c.foundation_date, " +
	"c.created_at, c.created_by, c.updated_at, c.updated_by, " +
	"n.text, n.language, n.created_at, n.created_by, n.updated_at, n.updated_by"

// collectionRepository implements CollectionRepository interface
type collectionRepository struct {
	q            db.DBTX
	institutions InstitutionRepository
}

// NewCollectionRepository creates a new collection repository
func NewCollectionRepository(q db.DBTX) CollectionRepository {
	return &collectionRepository{q: q, institutions: NewInstitutionRepository(q)}
}

func scanCollection(row db.Row) (domain.Collection, error) {
	var (
		c             domain.Collection
		nameID        uuid.NullUUID
		status, ctype *string
		nText, nLang  *string
		nAudit        nullableAudit
	)
	dest := []any{&c.ID, &c.Acron3, &c.Acron2, &c.Code, &c.Domain, &nameID, &c.MainName, &status,
		&c.HasAnalytics, &ctype, &c.IsActive, &c.FoundationDate}
	dest = append(dest, auditDest(&c.Audit)...)
	dest = append(dest, &nText, &nLang)
	dest = append(dest, nAudit.dest()...)
	if err := row.Scan(dest...); err != nil {
		return domain.Collection{}, err
	}

	c.NameID = uuidPtr(nameID)
	c.Status = enumPtr[domain.CollectionStatus](status)
	c.Type = enumPtr[domain.CollectionType](ctype)
	if c.NameID != nil && nText != nil {
		c.Name = &domain.CollectionName{ID: *c.NameID, Text: *nText, Audit: nAudit.audit()}
		if nLang != nil {
			c.Name.Language = *nLang
		}
	}
	c.Institutions = []domain.Institution{}
	return c, nil
}

func (r *collectionRepository) Create(ctx context.Context, c domain.Collection) (domain.Collection, error) {
	_, err := r.q.Exec(ctx, `INSERT INTO collections
		(id, acron3, acron2, code, domain, name_id, main_name, status, has_analytics, type, is_active,
		 foundation_date, `+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		c.ID, c.Acron3, c.Acron2, c.Code, c.Domain, nullUUID(c.NameID), c.MainName, stringPtr(c.Status),
		c.HasAnalytics, stringPtr(c.Type), c.IsActive, c.FoundationDate,
		c.CreatedAt, c.CreatedBy, c.UpdatedAt, c.UpdatedBy,
	)
	if err != nil {
		return domain.Collection{}, errors.Wrap(err, "failed to create collection")
	}
	return c, nil
}

func (r *collectionRepository) Update(ctx context.Context, c domain.Collection) (domain.Collection, error) {
	affected, err := r.q.Exec(ctx, `UPDATE collections
		SET acron3 = $1, acron2 = $2, code = $3, domain = $4, name_id = $5, main_name = $6, status = $7,
			has_analytics = $8, type = $9, is_active = $10, foundation_date = $11,
			updated_at = $12, updated_by = $13
		WHERE id = $14`,
		c.Acron3, c.Acron2, c.Code, c.Domain, nullUUID(c.NameID), c.MainName, stringPtr(c.Status),
		c.HasAnalytics, stringPtr(c.Type), c.IsActive, c.FoundationDate,
		c.UpdatedAt, c.UpdatedBy, c.ID,
	)
	if err != nil {
		return domain.Collection{}, errors.Wrap(err, "failed to update collection")
	}
	if err := expectOne(affected, "collection", c.ID); err != nil {
		return domain.Collection{}, err
	}
	return c, nil
}

// GetByID loads the collection with its name and institutions
func (r *collectionRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Collection, error) {
	c, err := scanCollection(r.q.QueryRow(ctx, `SELECT `+collectionColumns+`
		FROM collections c LEFT JOIN collection_names n ON n.id = c.name_id
		WHERE c.id = $1`, id))
	if err != nil {
		return domain.Collection{}, notFound(err, "collection", id)
	}

	institutions, err := r.institutions.ListByCollectionIDs(ctx, []uuid.UUID{id})
	if err != nil {
		return domain.Collection{}, err
	}
	if found := institutions[id]; found != nil {
		c.Institutions = found
	}
	return c, nil
}

func (r *collectionRepository) List(ctx context.Context) ([]domain.Collection, error) {
	rows, err := r.q.Query(ctx, `SELECT `+collectionColumns+`
		FROM collections c LEFT JOIN collection_names n ON n.id = c.name_id
		ORDER BY c.main_name, c.id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list collections")
	}
	defer rows.Close()

	result := []domain.Collection{}
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan collection")
		}
		result = append(result, c)
	}
	return result, errors.Wrap(rows.Err(), "failed to list collections")
}

func (r *collectionRepository) SetInstitutions(ctx context.Context, collectionID uuid.UUID, institutionIDs []uuid.UUID) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM collection_institutions WHERE collection_id = $1`, collectionID); err != nil {
		return errors.Wrap(err, "failed to clear collection institutions")
	}
	for _, institutionID := range dedupe(institutionIDs) {
		if _, err := r.q.Exec(ctx, `INSERT INTO collection_institutions (collection_id, institution_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING`, collectionID, institutionID); err != nil {
			return errors.Wrapf(err, "failed to associate institution %s", institutionID)
		}
	}
	return nil
}

func (r *collectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	affected, err := r.q.Exec(ctx, `DELETE FROM collections WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete collection")
	}
	return expectOne(affected, "collection", id)
}
