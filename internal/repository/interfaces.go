package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/rpattn/spstaglib/internal/db"
	"github.com/rpattn/spstaglib/internal/domain"
)

// VersionRepository defines the interface for SPS version operations
type VersionRepository interface {
	Create(ctx context.Context, version domain.Version) (domain.Version, error)
	Update(ctx context.Context, version domain.Version) (domain.Version, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Version, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Version, error)
	List(ctx context.Context) ([]domain.Version, error)
	// ListByEntityIDs returns the versions associated with each taxonomy entity.
	ListByEntityIDs(ctx context.Context, entityIDs []uuid.UUID) (map[uuid.UUID][]domain.Version, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// OccurrenceNumberRepository defines the interface for occurrence number operations
type OccurrenceNumberRepository interface {
	Create(ctx context.Context, occ domain.OccurrenceNumber) (domain.OccurrenceNumber, error)
	Update(ctx context.Context, occ domain.OccurrenceNumber) (domain.OccurrenceNumber, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.OccurrenceNumber, error)
	List(ctx context.Context) ([]domain.OccurrenceNumber, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// TaxonomyRepository defines the interface for element and attribute definitions.
// Create and Update persist the entity row only; associations and owned children
// have their own operations.
type TaxonomyRepository interface {
	Create(ctx context.Context, entity domain.TaxonomyEntity) (domain.TaxonomyEntity, error)
	Update(ctx context.Context, entity domain.TaxonomyEntity) (domain.TaxonomyEntity, error)
	// GetByID loads the entity with its versions, attributes and owned children.
	GetByID(ctx context.Context, id uuid.UUID) (domain.TaxonomyEntity, error)
	GetRefs(ctx context.Context, ids []uuid.UUID) ([]domain.TaxonomyRef, error)
	FindByName(ctx context.Context, kind domain.TaxonomyKind, name string) (domain.TaxonomyRef, error)
	// List returns entity rows of a kind ordered by name, without associations.
	List(ctx context.Context, kind domain.TaxonomyKind) ([]domain.TaxonomyEntity, error)
	Delete(ctx context.Context, id uuid.UUID) error

	SetVersions(ctx context.Context, entityID uuid.UUID, versionIDs []uuid.UUID) error
	SetAttributes(ctx context.Context, elementID uuid.UUID, attributeIDs []uuid.UUID) error
	ListAttributes(ctx context.Context, elementIDs []uuid.UUID) (map[uuid.UUID][]domain.TaxonomyRef, error)
}

// PresenceRepository defines the interface for presence relations owned by a taxonomy entity
type PresenceRepository interface {
	Create(ctx context.Context, presence domain.PresenceRelation) (domain.PresenceRelation, error)
	Update(ctx context.Context, presence domain.PresenceRelation) (domain.PresenceRelation, error)
	ListByParent(ctx context.Context, parentID uuid.UUID) ([]domain.PresenceRelation, error)
	ListByParents(ctx context.Context, parentIDs []uuid.UUID) (map[uuid.UUID][]domain.PresenceRelation, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Reorder(ctx context.Context, parentID uuid.UUID, ids []uuid.UUID) error
}

// ExampleRepository defines the interface for examples owned by a taxonomy entity
type ExampleRepository interface {
	Create(ctx context.Context, example domain.Example) (domain.Example, error)
	Update(ctx context.Context, example domain.Example) (domain.Example, error)
	ListByParent(ctx context.Context, parentID uuid.UUID) ([]domain.Example, error)
	ListByParents(ctx context.Context, parentIDs []uuid.UUID) (map[uuid.UUID][]domain.Example, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Reorder(ctx context.Context, parentID uuid.UUID, ids []uuid.UUID) error
}

// NoteRepository defines the interface for note blocks owned by a taxonomy entity
type NoteRepository interface {
	Create(ctx context.Context, note domain.NoteBlock) (domain.NoteBlock, error)
	Update(ctx context.Context, note domain.NoteBlock) (domain.NoteBlock, error)
	ListByParent(ctx context.Context, parentID uuid.UUID) ([]domain.NoteBlock, error)
	ListByParents(ctx context.Context, parentIDs []uuid.UUID) (map[uuid.UUID][]domain.NoteBlock, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Reorder(ctx context.Context, parentID uuid.UUID, ids []uuid.UUID) error
}

// CollectionNameRepository defines the interface for collection name operations
type CollectionNameRepository interface {
	Create(ctx context.Context, name domain.CollectionName) (domain.CollectionName, error)
	Update(ctx context.Context, name domain.CollectionName) (domain.CollectionName, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.CollectionName, error)
	List(ctx context.Context) ([]domain.CollectionName, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// InstitutionRepository defines the interface for institution operations
type InstitutionRepository interface {
	Create(ctx context.Context, inst domain.Institution) (domain.Institution, error)
	Update(ctx context.Context, inst domain.Institution) (domain.Institution, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Institution, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Institution, error)
	List(ctx context.Context) ([]domain.Institution, error)
	// Search matches name or acronym case-insensitively for autocomplete.
	Search(ctx context.Context, query string, limit int) ([]domain.Institution, error)
	ListByCollectionIDs(ctx context.Context, collectionIDs []uuid.UUID) (map[uuid.UUID][]domain.Institution, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CollectionRepository defines the interface for collection operations
type CollectionRepository interface {
	Create(ctx context.Context, collection domain.Collection) (domain.Collection, error)
	Update(ctx context.Context, collection domain.Collection) (domain.Collection, error)
	// GetByID loads the collection with its name and institutions.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Collection, error)
	// List returns collection rows with their names, without institutions.
	List(ctx context.Context) ([]domain.Collection, error)
	SetInstitutions(ctx context.Context, collectionID uuid.UUID, institutionIDs []uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Store groups the repositories bound to one query surface, either a pool or a
// transaction.
type Store struct {
	Versions          VersionRepository
	OccurrenceNumbers OccurrenceNumberRepository
	Taxonomy          TaxonomyRepository
	Presences         PresenceRepository
	Examples          ExampleRepository
	Notes             NoteRepository
	CollectionNames   CollectionNameRepository
	Institutions      InstitutionRepository
	Collections       CollectionRepository
}

// NewStore builds every repository over q.
func NewStore(q db.DBTX) *Store {
	return &Store{
		Versions:          NewVersionRepository(q),
		OccurrenceNumbers: NewOccurrenceNumberRepository(q),
		Taxonomy:          NewTaxonomyRepository(q),
		Presences:         NewPresenceRepository(q),
		Examples:          NewExampleRepository(q),
		Notes:             NewNoteRepository(q),
		CollectionNames:   NewCollectionNameRepository(q),
		Institutions:      NewInstitutionRepository(q),
		Collections:       NewCollectionRepository(q),
	}
}
