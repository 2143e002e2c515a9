package seed

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rpattn/spstaglib/internal/auth"
	"github.com/rpattn/spstaglib/internal/domain"
)

// Handler exposes fixture loading as an HTTP endpoint.
type Handler struct {
	loader *Loader
}

// NewHTTPHandler wraps the loader with a POST endpoint taking a multipart "file".
func NewHTTPHandler(loader *Loader) http.Handler {
	return &Handler{loader: loader}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	principal := strings.TrimSpace(r.Header.Get("X-Remote-User"))
	if principal == "" {
		http.Error(w, auth.ErrNoPrincipal.Error(), http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(8 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	ctx := auth.ContextWithPrincipal(r.Context(), principal)
	summary, err := h.loader.Load(ctx, file)
	if err != nil {
		if fields := domain.FieldErrors(err); fields != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": err.Error(), "errors": fields})
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
