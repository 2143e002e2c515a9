// Package forms is the only write path into the catalog. Each submission carries
// one entity and its owned children, is validated before any storage work, and is
// persisted in a single transaction stamped with the acting principal.
package forms

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rpattn/spstaglib/internal/auth"
	"github.com/rpattn/spstaglib/internal/db"
	"github.com/rpattn/spstaglib/internal/domain"
	"github.com/rpattn/spstaglib/internal/repository"
)

// Submission outcomes reported to the observer.
const (
	OutcomeSaved   = "saved"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// SubmissionObserver is notified of every submission outcome.
type SubmissionObserver interface {
	ObserveSubmission(kind, outcome string)
}

type Service struct {
	conn     db.Conn
	logger   *zap.SugaredLogger
	observer SubmissionObserver
	now      func() time.Time
}

type Option func(*Service)

// WithLogger sets the logger used for submission events.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver registers an observer for submission outcomes.
func WithObserver(observer SubmissionObserver) Option {
	return func(s *Service) {
		s.observer = observer
	}
}

// WithClock overrides the time source used for audit stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(conn db.Conn, opts ...Option) *Service {
	service := &Service{
		conn:   conn,
		logger: zap.NewNop().Sugar(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// submit runs the shared submission pipeline: principal check, field validation of
// the candidate, then fn inside one transaction. Any error from fn rolls back.
func (s *Service) submit(
	ctx context.Context,
	kind string,
	candidate domain.Validator,
	fn func(store *repository.Store, principal string, now time.Time) error,
) error {
	principal, err := auth.RequirePrincipal(ctx)
	if err != nil {
		s.observe(kind, OutcomeError)
		return err
	}

	if candidate != nil {
		if err := candidate.Validate(); err != nil {
			s.observe(kind, OutcomeInvalid)
			s.logger.Debugw("Rejected submission", "kind", kind, "principal", principal, "error", err)
			return err
		}
	}

	now := s.now()
	err = s.conn.WithTx(ctx, func(tx db.DBTX) error {
		return fn(repository.NewStore(tx), principal, now)
	})
	switch {
	case err == nil:
		s.observe(kind, OutcomeSaved)
		s.logger.Infow("Saved submission", "kind", kind, "principal", principal)
	case domain.IsValidationError(err):
		s.observe(kind, OutcomeInvalid)
		s.logger.Debugw("Rejected submission", "kind", kind, "principal", principal, "error", err)
	default:
		s.observe(kind, OutcomeError)
		s.logger.Errorw("Failed to save submission", "kind", kind, "principal", principal, "error", err)
	}
	return err
}

func (s *Service) observe(kind, outcome string) {
	if s.observer != nil {
		s.observer.ObserveSubmission(kind, outcome)
	}
}

// Delete removes one record of kind. Owned children cascade and non-owning
// references to it are nulled by the storage rules.
func (s *Service) Delete(ctx context.Context, kind string, id uuid.UUID) error {
	return s.submit(ctx, kind, nil, func(store *repository.Store, principal string, _ time.Time) error {
		var err error
		switch kind {
		case domain.EntitySPSVersion:
			err = store.Versions.Delete(ctx, id)
		case domain.EntityOccurrenceNumber:
			err = store.OccurrenceNumbers.Delete(ctx, id)
		case domain.EntityElement, domain.EntityAttribute:
			var existing domain.TaxonomyEntity
			if existing, err = store.Taxonomy.GetByID(ctx, id); err == nil {
				if string(existing.Kind) != kind {
					return errors.Wrapf(domain.ErrNotFound, "%s %s", kind, id)
				}
				err = store.Taxonomy.Delete(ctx, id)
			}
		case domain.EntityCollection:
			err = store.Collections.Delete(ctx, id)
		case domain.EntityCollectionName:
			err = store.CollectionNames.Delete(ctx, id)
		case domain.EntityInstitution:
			err = store.Institutions.Delete(ctx, id)
		default:
			return errors.Newf("unknown entity kind %q", kind)
		}
		if err != nil {
			return err
		}
		s.logger.Infow("Deleted record", "kind", kind, "id", id, "principal", principal)
		return nil
	})
}
