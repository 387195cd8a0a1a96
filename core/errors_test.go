package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProtocolError_Is(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		protocol bool
		notFound bool
	}{
		{"not found", http.StatusNotFound, true, true},
		{"unauthorized", http.StatusUnauthorized, true, false},
		{"server error", http.StatusInternalServerError, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fmt.Errorf("kvstore: %w", &ProtocolError{Method: http.MethodGet, URL: "/x", StatusCode: tt.status})

			assert.Equal(t, tt.protocol, errors.Is(err, ErrProtocol))
			assert.Equal(t, tt.notFound, IsErrNotFound(err))
			assert.False(t, errors.Is(err, ErrNetwork))

			var pe *ProtocolError
			if assert.True(t, errors.As(err, &pe)) {
				assert.Equal(t, tt.status, pe.StatusCode)
			}
		})
	}
}
