package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/rpattn/spstaglib/internal/db"
	"github.com/rpattn/spstaglib/internal/domain"
)

const auditColumns = "created_at, created_by, updated_at, updated_by"

func auditDest(a *domain.Audit) []any {
	return []any{&a.CreatedAt, &a.CreatedBy, &a.UpdatedAt, &a.UpdatedBy}
}

// nullableAudit scans the audit columns of a LEFT JOINed row.
type nullableAudit struct {
	createdAt, updatedAt *time.Time
	createdBy, updatedBy *string
}

func (n *nullableAudit) dest() []any {
	return []any{&n.createdAt, &n.createdBy, &n.updatedAt, &n.updatedBy}
}

func (n nullableAudit) audit() domain.Audit {
	var a domain.Audit
	if n.createdAt != nil {
		a.CreatedAt = *n.createdAt
	}
	if n.createdBy != nil {
		a.CreatedBy = *n.createdBy
	}
	if n.updatedAt != nil {
		a.UpdatedAt = *n.updatedAt
	}
	if n.updatedBy != nil {
		a.UpdatedBy = *n.updatedBy
	}
	return a
}

// placeholders renders "$start, $start+1, ..." for n arguments.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func uuidArgs(ids []uuid.UUID) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// dedupe drops repeated and nil ids, keeping first occurrences in order.
func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

func stringPtr[T ~string](p *T) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}

func enumPtr[T ~string](p *string) *T {
	if p == nil {
		return nil
	}
	v := T(*p)
	return &v
}

// notFound maps an empty result to domain.ErrNotFound.
func notFound(err error, what string, id uuid.UUID) error {
	if errors.Is(err, db.ErrNoRows) {
		return errors.Wrapf(domain.ErrNotFound, "%s %s", what, id)
	}
	return errors.Wrapf(err, "failed to get %s", what)
}

func expectOne(affected int64, what string, id uuid.UUID) error {
	if affected == 0 {
		return errors.Wrapf(domain.ErrNotFound, "%s %s", what, id)
	}
	return nil
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
