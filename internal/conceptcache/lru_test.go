package conceptcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refsync/internal/remote/terminology"
)

func TestLRU(t *testing.T) {
	ctx := context.Background()
	c, err := NewLRU(2)
	require.NoError(t, err)

	_, ok := c.Get(ctx, "MAIN", "1")
	assert.False(t, ok)

	c.Set(ctx, "MAIN", "1", &terminology.ConceptSummary{ConceptID: "1", ModuleID: "m1"})
	c.Set(ctx, "MAIN/2023-01-31", "1", &terminology.ConceptSummary{ConceptID: "1", ModuleID: "m2"})
	c.Set(ctx, "MAIN", "nil", nil)

	got, ok := c.Get(ctx, "MAIN", "1")
	require.True(t, ok)
	assert.Equal(t, "m1", got.ModuleID)
	got, ok = c.Get(ctx, "MAIN/2023-01-31", "1")
	require.True(t, ok)
	assert.Equal(t, "m2", got.ModuleID)

	// third entry evicts the least recently used
	c.Set(ctx, "MAIN", "3", &terminology.ConceptSummary{ConceptID: "3"})
	assert.Equal(t, 2, c.Len())
	_, ok = c.Get(ctx, "MAIN", "1")
	assert.False(t, ok)
}

func TestLRU_DefaultSize(t *testing.T) {
	c, err := NewLRU(0)
	require.NoError(t, err)
	assert.NotNil(t, c)
}
