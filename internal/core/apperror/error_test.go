package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_IsMatchesByCode(t *testing.T) {
	sentinel := NewBusinessRule("SOME_RULE", "some rule")
	fresh := NewBusinessRule("SOME_RULE", "some rule").WithDetail("k", "v")

	wrapped := fmt.Errorf("outer: %w", fresh)

	assert.True(t, errors.Is(wrapped, sentinel))
	assert.False(t, errors.Is(wrapped, NewBusinessRule("OTHER_RULE", "other")))
	assert.False(t, errors.Is(wrapped, errors.New("SOME_RULE")))
}

func TestNewDatabase_UnwrapsCause(t *testing.T) {
	err := NewDatabase(fmt.Errorf("next sequence: %w", context.DeadlineExceeded))

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, IsTransient(err))
	assert.Equal(t, http.StatusServiceUnavailable, GetHTTPStatus(err))
}

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", NewValidation("bad"), http.StatusBadRequest},
		{"not found", NewNotFound("rule", 1), http.StatusNotFound},
		{"business rule", NewBusinessRule("X", "x"), http.StatusUnprocessableEntity},
		{"conflict", NewConflict("", "dup"), http.StatusConflict},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.err))
		})
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NewNotFound("numbering rule", 7))

	assert.True(t, HasCode(err, CodeNotFound))
	assert.True(t, IsNotFound(err))
	assert.False(t, HasCode(errors.New("x"), CodeNotFound))
}
