package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	list := []any{"edition", "SNOMEDCT-XX", "count", 3, 42, "ignored", "dangling"}

	assert.Equal(t, "SNOMEDCT-XX", ExtractString(list, "edition"))
	assert.Equal(t, "", ExtractString(list, "count"), "wrong type yields zero value")
	assert.Equal(t, "", ExtractString(list, "dangling"), "key without value is ignored")

	n, ok := Extract[int](list, "count")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = Extract[int](list, "missing")
	assert.False(t, ok)
}
