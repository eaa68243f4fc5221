package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	t.Run("direct coded error", func(t *testing.T) {
		err := New(CodeConflict, "username taken")
		assert.Equal(t, CodeConflict, CodeOf(err))
	})

	t.Run("wrapped coded error", func(t *testing.T) {
		inner := New(CodeNotFound, "record not found")
		err := fmt.Errorf("lookup failed: %w", inner)
		assert.Equal(t, CodeNotFound, CodeOf(err))
	})

	t.Run("plain error defaults to internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestHasCode(t *testing.T) {
	err := Wrap(errors.New("dial tcp: refused"), CodeUnavailable, "broker unreachable")
	assert.True(t, HasCode(err, CodeUnavailable))
	assert.False(t, HasCode(err, CodeConflict))
	assert.False(t, HasCode(nil, CodeUnavailable))
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusConflict, ToHTTPStatus(CodeConflict))
	assert.Equal(t, http.StatusUnauthorized, ToHTTPStatus(CodeUnauthorized))
	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(CodeBadRequest))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(Code("unknown")))
}

func TestErrorChain(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Wrap(cause, CodeConflict, "profile already exists")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "conflict")
	assert.Contains(t, err.Error(), "duplicate key")
}
