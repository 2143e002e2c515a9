// Package export serves the structured, prefixed exports that listing, search and
// autocomplete consume, as JSON or as an XLSX workbook.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/rpattn/spstaglib/internal/db"
	"github.com/rpattn/spstaglib/internal/domain"
	"github.com/rpattn/spstaglib/internal/entityloader"
	"github.com/rpattn/spstaglib/internal/repository"
)

// ErrUnknownKind is returned for kinds missing from the registry.
var ErrUnknownKind = errors.New("unknown entity kind")

// Item is one exported record.
type Item struct {
	ID    uuid.UUID      `json:"id"`
	Label string         `json:"label"`
	Data  map[string]any `json:"data"`
}

type Service struct {
	q        db.DBTX
	registry *domain.Registry
	logger   *zap.SugaredLogger

	autocompleteLimit int
}

type Option func(*Service)

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAutocompleteLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.autocompleteLimit = limit
		}
	}
}

func NewService(q db.DBTX, registry *domain.Registry, opts ...Option) *Service {
	service := &Service{
		q:                 q,
		registry:          registry,
		logger:            zap.NewNop().Sugar(),
		autocompleteLimit: 20,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// List returns the structured export of every record of kind in its registry ordering.
func (s *Service) List(ctx context.Context, kind string) ([]Item, error) {
	if _, ok := s.registry.Lookup(kind); !ok {
		return nil, errors.Wrapf(ErrUnknownKind, "%q", kind)
	}
	store := repository.NewStore(s.q)
	loaders := entityloader.FromContext(ctx)
	if loaders == nil {
		loaders = entityloader.NewLoaders(store)
	}

	switch kind {
	case domain.EntitySPSVersion:
		versions, err := store.Versions.List(ctx)
		if err != nil {
			return nil, err
		}
		return items(versions, func(v domain.Version) uuid.UUID { return v.ID }), nil
	case domain.EntityOccurrenceNumber:
		occurrences, err := store.OccurrenceNumbers.List(ctx)
		if err != nil {
			return nil, err
		}
		return items(occurrences, func(o domain.OccurrenceNumber) uuid.UUID { return o.ID }), nil
	case domain.EntityElement, domain.EntityAttribute:
		entities, err := store.Taxonomy.List(ctx, domain.TaxonomyKind(kind))
		if err != nil {
			return nil, err
		}
		if err := loaders.Attach(ctx, entities); err != nil {
			return nil, err
		}
		return items(entities, func(e domain.TaxonomyEntity) uuid.UUID { return e.ID }), nil
	case domain.EntityCollection:
		collections, err := store.Collections.List(ctx)
		if err != nil {
			return nil, err
		}
		if err := loaders.AttachInstitutions(ctx, collections); err != nil {
			return nil, err
		}
		return items(collections, func(c domain.Collection) uuid.UUID { return c.ID }), nil
	case domain.EntityCollectionName:
		names, err := store.CollectionNames.List(ctx)
		if err != nil {
			return nil, err
		}
		return items(names, func(n domain.CollectionName) uuid.UUID { return n.ID }), nil
	case domain.EntityInstitution:
		institutions, err := store.Institutions.List(ctx)
		if err != nil {
			return nil, err
		}
		return items(institutions, func(i domain.Institution) uuid.UUID { return i.ID }), nil
	}
	return nil, errors.Wrapf(ErrUnknownKind, "%q", kind)
}

// Search lists kind and keeps the items whose search fields contain query,
// case-insensitively. An empty query returns everything.
func (s *Service) Search(ctx context.Context, kind, query string) ([]Item, error) {
	all, err := s.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return all, nil
	}

	meta, _ := s.registry.Lookup(kind)
	prefix := dataPrefix(kind)
	matched := make([]Item, 0, len(all))
	for _, item := range all {
		for _, field := range meta.SearchFields {
			if strings.Contains(strings.ToLower(formatValue(item.Data[prefix+field])), query) {
				matched = append(matched, item)
				break
			}
		}
	}
	return matched, nil
}

// AutocompleteInstitutions matches institutions by name or acronym.
func (s *Service) AutocompleteInstitutions(ctx context.Context, query string) ([]Item, error) {
	institutions, err := repository.NewInstitutionRepository(s.q).Search(ctx, strings.TrimSpace(query), s.autocompleteLimit)
	if err != nil {
		return nil, err
	}
	return items(institutions, func(i domain.Institution) uuid.UUID { return i.ID }), nil
}

// WriteWorkbook writes one sheet per kind. Columns are the sorted export keys;
// list values are rendered as JSON.
func (s *Service) WriteWorkbook(ctx context.Context, w io.Writer, kinds ...string) error {
	if len(kinds) == 0 {
		for _, k := range s.registry.Kinds() {
			kinds = append(kinds, k.Name)
		}
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, kind := range kinds {
		listed, err := s.List(ctx, kind)
		if err != nil {
			return err
		}
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), kind); err != nil {
				return errors.Wrapf(err, "failed to name sheet %s", kind)
			}
		} else if _, err := f.NewSheet(kind); err != nil {
			return errors.Wrapf(err, "failed to create sheet %s", kind)
		}
		if err := writeSheet(f, kind, listed); err != nil {
			return err
		}
		s.logger.Debugw("Exported sheet", "kind", kind, "rows", len(listed))
	}

	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "failed to write workbook")
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, listed []Item) error {
	headers := columns(listed)
	header := make([]any, 0, len(headers)+1)
	header = append(header, "id")
	for _, h := range headers {
		header = append(header, h)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrap(err, "failed to write header")
	}

	for i, item := range listed {
		row := make([]any, 0, len(headers)+1)
		row = append(row, item.ID.String())
		for _, h := range headers {
			row = append(row, formatValue(item.Data[h]))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "failed to address row")
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "failed to write row %d", i+2)
		}
	}
	return nil
}

func columns(listed []Item) []string {
	seen := make(map[string]struct{})
	for _, item := range listed {
		for k := range item.Data {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func items[T domain.Record](records []T, id func(T) uuid.UUID) []Item {
	out := make([]Item, 0, len(records))
	for _, r := range records {
		out = append(out, Item{ID: id(r), Label: r.Label(), Data: r.Data()})
	}
	return out
}

// dataPrefix maps a kind name to the key prefix of its export, e.g.
// "sps-version" to "sps_version__".
func dataPrefix(kind string) string {
	return strings.ReplaceAll(kind, "-", "_") + "__"
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int, int32, int64, float32, float64:
		return fmt.Sprintf("%v", v)
	case map[string]any, []map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}
