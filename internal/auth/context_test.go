package auth

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipalRoundTrip(t *testing.T) {
	ctx := ContextWithPrincipal(context.Background(), "  alice ")

	principal, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "alice", principal)

	principal, err := RequirePrincipal(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", principal)
}

func TestRequirePrincipalRejectsAnonymous(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
	}{
		{name: "no principal", ctx: context.Background()},
		{name: "blank principal", ctx: ContextWithPrincipal(context.Background(), "   ")},
		{name: "nil context", ctx: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RequirePrincipal(tt.ctx)
			assert.True(t, errors.Is(err, ErrNoPrincipal))
		})
	}
}
