package provider

import (
	"context"
	"testing"

	"virtualassoc/internal/assoc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type account struct {
	ID   int64
	Name string
}

func TestMemory_Fetch(t *testing.T) {
	mem := NewMemory(assoc.Field("id"),
		account{ID: 1, Name: "one"},
		account{ID: 2, Name: "two"},
		account{ID: 3, Name: "three"},
	)

	got, err := mem.Fetch(context.Background(), []any{int64(3), "1", nil, float64(9)})
	require.NoError(t, err)
	assert.Equal(t, []any{account{ID: 1, Name: "one"}, account{ID: 3, Name: "three"}}, got)
}

func TestMemory_AddAndSkipKeyless(t *testing.T) {
	mem := NewMemory(assoc.Field("id"), map[string]any{"name": "no key"})
	mem.Add(map[string]any{"id": 5, "name": "five"})

	got, err := mem.Fetch(context.Background(), []any{int64(5)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "five", got[0].(map[string]any)["name"])
}

func TestMemory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemory(assoc.Field("id")).Fetch(ctx, []any{1})
	assert.ErrorIs(t, err, context.Canceled)
}
