package repository

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/rpattn/spstaglib/internal/db"
	"github.com/rpattn/spstaglib/internal/domain"
)

const occurrenceColumns = "id, text, " + auditColumns

type occurrenceNumberRepository struct {
	q db.DBTX
}

// NewOccurrenceNumberRepository creates a new occurrence number repository
func NewOccurrenceNumberRepository(q db.DBTX) OccurrenceNumberRepository {
	return &occurrenceNumberRepository{q: q}
}

func scanOccurrence(row db.Row) (domain.OccurrenceNumber, error) {
	var o domain.OccurrenceNumber
	err := row.Scan(append([]any{&o.ID, &o.Text}, auditDest(&o.Audit)...)...)
	return o, err
}

func (r *occurrenceNumberRepository) Create(ctx context.Context, o domain.OccurrenceNumber) (domain.OccurrenceNumber, error) {
	_, err := r.q.Exec(ctx, `INSERT INTO occurrence_numbers (`+occurrenceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		o.ID, o.Text, o.CreatedAt, o.CreatedBy, o.UpdatedAt, o.UpdatedBy,
	)
	if err != nil {
		return domain.OccurrenceNumber{}, errors.Wrap(err, "failed to create occurrence number")
	}
	return o, nil
}

func (r *occurrenceNumberRepository) Update(ctx context.Context, o domain.OccurrenceNumber) (domain.OccurrenceNumber, error) {
	affected, err := r.q.Exec(ctx, `UPDATE occurrence_numbers
		SET text = $1, updated_at = $2, updated_by = $3
		WHERE id = $4`,
		o.Text, o.UpdatedAt, o.UpdatedBy, o.ID,
	)
	if err != nil {
		return domain.OccurrenceNumber{}, errors.Wrap(err, "failed to update occurrence number")
	}
	if err := expectOne(affected, "occurrence number", o.ID); err != nil {
		return domain.OccurrenceNumber{}, err
	}
	return r.GetByID(ctx, o.ID)
}

func (r *occurrenceNumberRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.OccurrenceNumber, error) {
	o, err := scanOccurrence(r.q.QueryRow(ctx, `SELECT `+occurrenceColumns+` FROM occurrence_numbers WHERE id = $1`, id))
	if err != nil {
		return domain.OccurrenceNumber{}, notFound(err, "occurrence number", id)
	}
	return o, nil
}

func (r *occurrenceNumberRepository) List(ctx context.Context) ([]domain.OccurrenceNumber, error) {
	rows, err := r.q.Query(ctx, `SELECT `+occurrenceColumns+` FROM occurrence_numbers ORDER BY text, id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list occurrence numbers")
	}
	defer rows.Close()

	result := []domain.OccurrenceNumber{}
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan occurrence number")
		}
		result = append(result, o)
	}
	return result, errors.Wrap(rows.Err(), "failed to list occurrence numbers")
}

// Delete deletes an occurrence number; presence relations keep a null reference
func (r *occurrenceNumberRepository) Delete(ctx context.Context, id uuid.UUID) error {
	affected, err := r.q.Exec(ctx, `DELETE FROM occurrence_numbers WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete occurrence number")
	}
	return expectOne(affected, "occurrence number", id)
}
