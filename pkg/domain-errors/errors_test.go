package domainerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeInvariantViolation, "two organizations share a name")
		assert.True(t, HasCode(err, CodeInvariantViolation))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("matches nested code through fmt wrapping", func(t *testing.T) {
		inner := New(CodeNotFound, "edition missing")
		outer := Wrap(inner, CodeInternal, "migrate edition")
		wrapped := errors.Join(errors.New("stage failed"), outer)
		assert.True(t, HasCode(wrapped, CodeNotFound))
		assert.True(t, HasCode(wrapped, CodeInternal))
	})

	t.Run("nil and plain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(nil, CodeInternal))
		assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	require.NoError(t, Wrap(nil, CodeInternal, "ignored"))

	cause := errors.New("connection reset")
	err := Wrap(cause, CodeUnavailable, "fetch code systems")
	require.ErrorIs(t, err, cause)
	assert.Equal(t, "fetch code systems: connection reset", err.Error())
	assert.Equal(t, CodeUnavailable, CodeOf(err))
	assert.Equal(t, CodeInternal, CodeOf(cause))
}
