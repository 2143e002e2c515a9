package auth

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

type contextKey string

const principalKey contextKey = "principal"

// ErrNoPrincipal is returned when a mutation is attempted without an acting principal.
var ErrNoPrincipal = errors.New("acting principal is required")

// ContextWithPrincipal returns a new context that carries the acting principal.
func ContextWithPrincipal(ctx context.Context, principal string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey, strings.TrimSpace(principal))
}

// PrincipalFromContext retrieves the acting principal from the context, if any.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	principal, ok := ctx.Value(principalKey).(string)
	if !ok || principal == "" {
		return "", false
	}
	return principal, true
}

// RequirePrincipal returns the acting principal or ErrNoPrincipal.
func RequirePrincipal(ctx context.Context) (string, error) {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return "", ErrNoPrincipal
	}
	return principal, nil
}
