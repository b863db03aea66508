package service

import (
	"context"

	"github.com/cloo-solutions/doctalk/internal/domain"
)

// EmbeddingProvider turns text into a vector. Implementations wrap an
// external embedding backend and are injected at construction.
type EmbeddingProvider interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// GenerationProvider produces text from a system instruction, prior
// conversation turns, and a user prompt.
type GenerationProvider interface {
	GenerateText(ctx context.Context, system string, history []domain.Turn, prompt string) (string, error)
}
