package forms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/rpattn/spstaglib/internal/auth"
	"github.com/rpattn/spstaglib/internal/domain"
)

// PrincipalHeader carries the acting principal set by the fronting proxy.
const PrincipalHeader = "X-Remote-User"

const maxBodyBytes = 1 << 20

// binding decodes a submission body for one kind and saves it. id is set on edits.
type binding func(ctx context.Context, id *uuid.UUID, body io.Reader) (domain.Record, error)

// Handler exposes the form collaborator over HTTP.
type Handler struct {
	service  *Service
	registry *domain.Registry
	bindings map[string]binding
	mux      *http.ServeMux
}

// NewHTTPHandler wires a create/edit/delete endpoint for every registered kind.
func NewHTTPHandler(service *Service, registry *domain.Registry) (http.Handler, error) {
	h := &Handler{
		service:  service,
		registry: registry,
		bindings: map[string]binding{
			domain.EntitySPSVersion: func(ctx context.Context, id *uuid.UUID, body io.Reader) (domain.Record, error) {
				var form VersionForm
				if err := decode(body, &form); err != nil {
					return nil, err
				}
				form.ID = id
				return asRecord(service.SaveVersion(ctx, form))
			},
			domain.EntityOccurrenceNumber: func(ctx context.Context, id *uuid.UUID, body io.Reader) (domain.Record, error) {
				var form OccurrenceNumberForm
				if err := decode(body, &form); err != nil {
					return nil, err
				}
				form.ID = id
				return asRecord(service.SaveOccurrenceNumber(ctx, form))
			},
			domain.EntityElement:   taxonomyBinding(service, domain.KindElement),
			domain.EntityAttribute: taxonomyBinding(service, domain.KindAttribute),
			domain.EntityCollection: func(ctx context.Context, id *uuid.UUID, body io.Reader) (domain.Record, error) {
				var form CollectionForm
				if err := decode(body, &form); err != nil {
					return nil, err
				}
				form.ID = id
				return asRecord(service.SaveCollection(ctx, form))
			},
			domain.EntityCollectionName: func(ctx context.Context, id *uuid.UUID, body io.Reader) (domain.Record, error) {
				var form CollectionNameForm
				if err := decode(body, &form); err != nil {
					return nil, err
				}
				form.ID = id
				return asRecord(service.SaveCollectionName(ctx, form))
			},
			domain.EntityInstitution: func(ctx context.Context, id *uuid.UUID, body io.Reader) (domain.Record, error) {
				var form InstitutionForm
				if err := decode(body, &form); err != nil {
					return nil, err
				}
				form.ID = id
				return asRecord(service.SaveInstitution(ctx, form))
			},
		},
	}

	for _, kind := range registry.Kinds() {
		if _, ok := h.bindings[kind.Name]; !ok {
			return nil, errors.Newf("no form binding for entity kind %q", kind.Name)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /forms", h.handleKinds)
	mux.HandleFunc("POST /forms/{kind}", h.handleCreate)
	mux.HandleFunc("PUT /forms/{kind}/{id}", h.handleUpdate)
	mux.HandleFunc("DELETE /forms/{kind}/{id}", h.handleDelete)
	mux.HandleFunc("POST /forms/{kind}/{id}/reorder/{children}", h.handleReorder)
	h.mux = mux
	return h, nil
}

func taxonomyBinding(service *Service, kind domain.TaxonomyKind) binding {
	return func(ctx context.Context, id *uuid.UUID, body io.Reader) (domain.Record, error) {
		var form TaxonomyForm
		if err := decode(body, &form); err != nil {
			return nil, err
		}
		form.ID = id
		form.Kind = kind
		return asRecord(service.SaveTaxonomy(ctx, form))
	}
}

func asRecord[T domain.Record](record T, err error) (domain.Record, error) {
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if principal := strings.TrimSpace(r.Header.Get(PrincipalHeader)); principal != "" {
		r = r.WithContext(auth.ContextWithPrincipal(r.Context(), principal))
	}
	h.mux.ServeHTTP(w, r)
}

type savedResponse struct {
	Kind   string         `json:"kind"`
	Label  string         `json:"label"`
	Data   map[string]any `json:"data"`
	Record domain.Record  `json:"record"`
}

func (h *Handler) handleKinds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Kinds())
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, nil, http.StatusCreated)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid id: %v", err), http.StatusBadRequest)
		return
	}
	h.save(w, r, &id, http.StatusOK)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request, id *uuid.UUID, status int) {
	kind := r.PathValue("kind")
	bind, ok := h.lookup(kind)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown entity kind %q", kind), http.StatusNotFound)
		return
	}
	defer r.Body.Close()

	record, err := bind(r.Context(), id, http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, savedResponse{
		Kind:   kind,
		Label:  record.Label(),
		Data:   record.Data(),
		Record: record,
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	if _, ok := h.lookup(kind); !ok {
		http.Error(w, fmt.Sprintf("unknown entity kind %q", kind), http.StatusNotFound)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid id: %v", err), http.StatusBadRequest)
		return
	}
	if err := h.service.Delete(r.Context(), kind, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reorderPayload struct {
	Order []uuid.UUID `json:"order"`
}

func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	if kind != domain.EntityElement && kind != domain.EntityAttribute {
		http.Error(w, fmt.Sprintf("%q has no ordered children", kind), http.StatusNotFound)
		return
	}
	parentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid id: %v", err), http.StatusBadRequest)
		return
	}
	children := r.PathValue("children")
	switch children {
	case ChildPresences, ChildExamples, ChildNotes:
	default:
		http.Error(w, fmt.Sprintf("unknown child collection %q", children), http.StatusNotFound)
		return
	}

	defer r.Body.Close()
	var payload reorderPayload
	if err := decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), &payload); err != nil {
		writeError(w, err)
		return
	}
	if err := h.service.Reorder(r.Context(), children, parentID, payload.Order); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lookup(kind string) (binding, bool) {
	if _, ok := h.registry.Lookup(kind); !ok {
		return nil, false
	}
	bind, ok := h.bindings[kind]
	return bind, ok
}

// errMalformed marks request bodies that could not be decoded.
var errMalformed = errors.New("malformed request body")

func decode(body io.Reader, dst any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Mark(errors.Wrap(err, "invalid payload"), errMalformed)
	}
	return nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidationError(err):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": domain.FieldErrors(err)})
	case errors.Is(err, errMalformed):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, auth.ErrNoPrincipal):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
