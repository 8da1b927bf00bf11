package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_WrappedLookup(t *testing.T) {
	base := NewInsufficientStock("p-1", "w-1", "5.0000", "2.0000")
	wrapped := fmt.Errorf("apply movement: %w", base)

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeInsufficientStock, appErr.Code)
	assert.Equal(t, "2.0000", appErr.Details["available"])
	assert.True(t, HasCode(wrapped, CodeInsufficientStock))
	assert.Equal(t, http.StatusUnprocessableEntity, GetHTTPStatus(wrapped))
}

func TestAppError_ClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		client bool
	}{
		{"validation", NewMovementValidation(CodeEmptyMovement, "empty"), true},
		{"warehouse not found", NewWarehouseNotFound("w"), true},
		{"locked", NewLocked("stock:a:b"), true},
		{"internal", NewInternal(errors.New("boom")), false},
		{"plain", errors.New("plain"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.client, IsClientError(tt.err))
		})
	}
}

func TestAppError_ErrorString(t *testing.T) {
	err := NewInternal(errors.New("db down"))
	assert.Contains(t, err.Error(), "INTERNAL_ERROR")
	assert.Contains(t, err.Error(), "db down")
	assert.ErrorIs(t, err, err.Err)

	v := NewValidation("bad").WithDetail("field", "lines")
	assert.Equal(t, "VALIDATION_ERROR: bad", v.Error())
	assert.Equal(t, "lines", v.Details["field"])
}
