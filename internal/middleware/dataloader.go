package middleware

import (
	"net/http"

	"github.com/rpattn/spstaglib/internal/db"
	"github.com/rpattn/spstaglib/internal/entityloader"
	"github.com/rpattn/spstaglib/internal/repository"
)

// DataLoaderMiddleware attaches request-scoped export loaders to the request context
func DataLoaderMiddleware(q db.DBTX) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loaders := entityloader.NewLoaders(repository.NewStore(q))
			ctx := entityloader.WithLoaders(r.Context(), loaders)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
