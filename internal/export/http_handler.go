package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	service *Service
	mux     *http.ServeMux
}

func NewHTTPHandler(service *Service) http.Handler {
	h := &Handler{service: service, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /export", h.handleWorkbook)
	h.mux.HandleFunc("GET /export/{kind}", h.handleList)
	h.mux.HandleFunc("GET /autocomplete/institutions", h.handleAutocomplete)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type listResponse struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
	Items []Item `json:"items"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	if trimmed, ok := strings.CutSuffix(kind, ".xlsx"); ok {
		h.writeWorkbook(w, r, trimmed, []string{trimmed})
		return
	}

	listed, err := h.service.Search(r.Context(), kind, r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Kind: kind, Count: len(listed), Items: listed})
}

func (h *Handler) handleWorkbook(w http.ResponseWriter, r *http.Request) {
	h.writeWorkbook(w, r, "catalog", r.URL.Query()["kind"])
}

func (h *Handler) writeWorkbook(w http.ResponseWriter, r *http.Request, name string, kinds []string) {
	for _, kind := range kinds {
		if _, ok := h.service.registry.Lookup(kind); !ok {
			h.writeError(w, errors.Wrapf(ErrUnknownKind, "%q", kind))
			return
		}
	}
	// Built in memory so a failed listing still gets an error status.
	var buf bytes.Buffer
	if err := h.service.WriteWorkbook(r.Context(), &buf, kinds...); err != nil {
		h.writeError(w, errors.Wrapf(err, "workbook %s", name))
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".xlsx"))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		h.service.logger.Warnw("Failed to send workbook", "name", name, "error", err)
	}
}

func (h *Handler) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	listed, err := h.service.AutocompleteInstitutions(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listed)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrUnknownKind) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.service.logger.Errorw("Export failed", "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
