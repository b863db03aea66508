package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_Error(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := NewDomainError(ErrCodeNotFound, "session not found")
		assert.Equal(t, "[NOT_FOUND] session not found", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := fmt.Errorf("connection refused")
		err := NewDomainErrorWithCause(ErrCodeProvider, "embedding provider failed", cause)
		assert.Contains(t, err.Error(), "PROVIDER_ERROR")
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("quota exceeded")
	err := NewGenerationError(cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestProviderErrorsMatchSentinels(t *testing.T) {
	cause := fmt.Errorf("timeout")

	embErr := NewEmbeddingError(cause)
	require.True(t, errors.Is(embErr, ErrEmbeddingFailed))
	assert.False(t, errors.Is(embErr, ErrGenerationFailed))

	genErr := NewGenerationError(cause)
	require.True(t, errors.Is(genErr, ErrGenerationFailed))

	migErr := NewMigrationIntegrityError(fmt.Errorf("old table missing column role"))
	assert.True(t, errors.Is(migErr, ErrMigrationIntegrity))
}
