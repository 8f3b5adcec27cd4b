package web

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/deemkeen/nodeweave/domain"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrInvalidIdentifier, http.StatusBadRequest},
		{fmt.Errorf("%w: bad json", domain.ErrInvalidPayload), http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("host x: %w", domain.ErrForbidden), http.StatusForbidden},
		{domain.ErrConflict, http.StatusConflict},
		{domain.ErrUnavailable, http.StatusBadGateway},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, statusFor(tt.err))
		})
	}
}
