package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status    int
		category  ErrorCategory
		retryable bool
	}{
		{http.StatusNotFound, ErrorNotFound, false},
		{http.StatusUnauthorized, ErrorAuthentication, false},
		{http.StatusForbidden, ErrorAuthentication, false},
		{http.StatusTooManyRequests, ErrorRateLimited, true},
		{http.StatusGatewayTimeout, ErrorTimeout, true},
		{http.StatusServiceUnavailable, ErrorOutage, true},
		{http.StatusBadRequest, ErrorBadData, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := FromStatus("terminology", tt.status, "GET /x")
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.status, err.Status)
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestFromTransport(t *testing.T) {
	assert.Equal(t, ErrorTimeout, FromTransport("x", context.DeadlineExceeded).Category)
	assert.False(t, FromTransport("x", context.Canceled).Retryable)
	assert.True(t, FromTransport("x", errors.New("connection refused")).Retryable)
}

func TestCategoryThroughWrapping(t *testing.T) {
	err := fmt.Errorf("fetch branch: %w", FromStatus("terminology", http.StatusNotFound, "GET"))
	assert.True(t, IsNotFound(err))
	assert.Equal(t, ErrorInternal, GetCategory(errors.New("plain")))
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "not_found", Outcome(err))
}
