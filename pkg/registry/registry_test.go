package registry_test

import (
	"context"
	"testing"

	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/aretw0/arbiter/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	reg := registry.NewRegistry()
	reg.Register("echo", func(ctx context.Context, wctx, cfg map[string]any) (any, error) {
		return cfg["msg"], nil
	})
	reg.Register("alpha", func(ctx context.Context, wctx, cfg map[string]any) (any, error) {
		return nil, nil
	})

	assert.True(t, reg.Has("echo"))
	assert.False(t, reg.Has("missing"))
	assert.Equal(t, []string{"alpha", "echo"}, reg.Names())

	out, err := reg.Execute(context.Background(), "echo", nil, map[string]any{"msg": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)

	_, err = reg.Execute(context.Background(), "missing", nil, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownAction)
}

func TestRegistry_Overwrite(t *testing.T) {
	reg := registry.NewRegistry()
	reg.Register("x", func(context.Context, map[string]any, map[string]any) (any, error) { return 1, nil })
	reg.Register("x", func(context.Context, map[string]any, map[string]any) (any, error) { return 2, nil })

	out, err := reg.Execute(context.Background(), "x", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, out)
}
