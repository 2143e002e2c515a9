package domain

import "time"

// Audit records who created and last updated an entity, and when.
type Audit struct {
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by"`
}

// NewAudit returns the envelope for an entity created by principal at now.
func NewAudit(principal string, now time.Time) Audit {
	now = now.UTC()
	return Audit{
		CreatedAt: now,
		CreatedBy: principal,
		UpdatedAt: now,
		UpdatedBy: principal,
	}
}

// Touch returns the envelope after an update by principal at now.
// Creation metadata is carried over unchanged.
func (a Audit) Touch(principal string, now time.Time) Audit {
	return Audit{
		CreatedAt: a.CreatedAt,
		CreatedBy: a.CreatedBy,
		UpdatedAt: now.UTC(),
		UpdatedBy: principal,
	}
}
