package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayNameFromEmail(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"jane.doe@example.org", "Jane Doe"},
		{"jane.middle.doe@example.org", "Jane Doe"},
		{"reviewer@example.org", "Reviewer"},
		{"@example.org", "@example Org"},
		{"", "User"},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayNameFromEmail(tt.email))
		})
	}
}
