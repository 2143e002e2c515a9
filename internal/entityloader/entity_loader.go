package entityloader

import (
	"context"
	"time"

	"github.com/rpattn/spstaglib/internal/domain"
	"github.com/rpattn/spstaglib/internal/repository"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
)

// Loaders batches the per-record lookups of a structured export. Each loader is
// keyed by the owning record's id and resolves to the slice of related records.
type Loaders struct {
	Versions     *dataloader.Loader
	Attributes   *dataloader.Loader
	Presences    *dataloader.Loader
	Examples     *dataloader.Loader
	Notes        *dataloader.Loader
	Institutions *dataloader.Loader
}

// NewLoaders builds request-scoped loaders over store.
func NewLoaders(store *repository.Store) *Loaders {
	return &Loaders{
		Versions:     newGroupLoader(store.Versions.ListByEntityIDs),
		Attributes:   newGroupLoader(store.Taxonomy.ListAttributes),
		Presences:    newGroupLoader(store.Presences.ListByParents),
		Examples:     newGroupLoader(store.Examples.ListByParents),
		Notes:        newGroupLoader(store.Notes.ListByParents),
		Institutions: newGroupLoader(store.Institutions.ListByCollectionIDs),
	}
}

func newGroupLoader[T any](fetch func(context.Context, []uuid.UUID) (map[uuid.UUID][]T, error)) *dataloader.Loader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				return failAll(len(keys), errors.Wrapf(err, "invalid UUID %q", k.String()))
			}
			ids[i] = id
		}

		groups, err := fetch(ctx, ids)
		if err != nil {
			return failAll(len(keys), err)
		}

		// Build results in the same order as keys
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			items := groups[id]
			if items == nil {
				items = []T{}
			}
			results[i] = &dataloader.Result{Data: items}
		}
		return results
	}

	return dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))
}

// failAll answers every key of a batch with err.
func failAll(n int, err error) []*dataloader.Result {
	results := make([]*dataloader.Result, n)
	for i := range results {
		results[i] = &dataloader.Result{Error: err}
	}
	return results
}

// LoadAll queues every id before resolving any thunk so that all ids land in one batch.
func LoadAll[T any](ctx context.Context, loader *dataloader.Loader, ids []uuid.UUID) (map[uuid.UUID][]T, error) {
	thunks := make([]dataloader.Thunk, len(ids))
	for i, id := range ids {
		thunks[i] = loader.Load(ctx, dataloader.StringKey(id.String()))
	}

	result := make(map[uuid.UUID][]T, len(ids))
	for i, thunk := range thunks {
		data, err := thunk()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load related records of %s", ids[i])
		}
		items, ok := data.([]T)
		if !ok {
			return nil, errors.Newf("unexpected loader result %T for %s", data, ids[i])
		}
		result[ids[i]] = items
	}
	return result, nil
}

// Attach fills versions, attributes and owned children of each entity in place.
func (l *Loaders) Attach(ctx context.Context, entities []domain.TaxonomyEntity) error {
	ids := make([]uuid.UUID, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}

	versions, err := LoadAll[domain.Version](ctx, l.Versions, ids)
	if err != nil {
		return err
	}
	attributes, err := LoadAll[domain.TaxonomyRef](ctx, l.Attributes, ids)
	if err != nil {
		return err
	}
	presences, err := LoadAll[domain.PresenceRelation](ctx, l.Presences, ids)
	if err != nil {
		return err
	}
	examples, err := LoadAll[domain.Example](ctx, l.Examples, ids)
	if err != nil {
		return err
	}
	notes, err := LoadAll[domain.NoteBlock](ctx, l.Notes, ids)
	if err != nil {
		return err
	}

	for i := range entities {
		e := &entities[i]
		e.Versions = versions[e.ID]
		if e.Kind == domain.KindElement {
			e.Attributes = attributes[e.ID]
		}
		e.Presences = presences[e.ID]
		e.Examples = examples[e.ID]
		e.Notes = notes[e.ID]
	}
	return nil
}

// AttachInstitutions fills the institution set of each collection in place.
func (l *Loaders) AttachInstitutions(ctx context.Context, collections []domain.Collection) error {
	ids := make([]uuid.UUID, len(collections))
	for i, c := range collections {
		ids[i] = c.ID
	}
	institutions, err := LoadAll[domain.Institution](ctx, l.Institutions, ids)
	if err != nil {
		return err
	}
	for i := range collections {
		collections[i].Institutions = institutions[collections[i].ID]
	}
	return nil
}

type ctxKey string

const loadersKey ctxKey = "loaders"

// WithLoaders stores loaders in the context.
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// FromContext retrieves the loaders from context
func FromContext(ctx context.Context) *Loaders {
	if l, ok := ctx.Value(loadersKey).(*Loaders); ok {
		return l
	}
	return nil
}
