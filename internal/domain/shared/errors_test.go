package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	t.Run("matches sentinel by code", func(t *testing.T) {
		err := ErrNotFound.WithMessage("Document 42 not found")
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.False(t, errors.Is(err, ErrInvalidInput))
		assert.Equal(t, "Document 42 not found", err.Error())
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("lookup: %w", ErrInvalidInput)
		assert.True(t, errors.Is(err, ErrInvalidInput))
	})

	t.Run("does not match plain errors", func(t *testing.T) {
		assert.False(t, ErrNotFound.Is(errors.New("NOT_FOUND")))
	})
}

func TestDomainError_WithCause(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := ErrNotFound.WithCause(cause)

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.Contains(t, err.Error(), "deadlock detected")
	assert.Nil(t, ErrNotFound.Unwrap(), "sentinel must stay unchanged")
}
