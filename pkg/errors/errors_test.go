package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorStatusCode(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{NotFound("Booking", nil), http.StatusNotFound},
		{BadRequest("bad", nil), http.StatusBadRequest},
		{InvalidState("nope"), http.StatusBadRequest},
		{Unauthorized("Please authenticate.", nil), http.StatusUnauthorized},
		{Forbidden("user not authorized"), http.StatusForbidden},
		{Conflict("exists", nil), http.StatusConflict},
		{Internal(fmt.Errorf("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.StatusCode(), tt.err.Message)
	}
}

func TestAsUnwrapsWrappedErrors(t *testing.T) {
	base := NotFound("Service", nil)
	wrapped := fmt.Errorf("loading: %w", base)

	appErr, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "Service not found", appErr.Message)
	assert.True(t, HasCode(wrapped, ErrNotFound))
	assert.False(t, HasCode(fmt.Errorf("plain"), ErrNotFound))
}
