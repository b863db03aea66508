//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/cloo-solutions/doctalk/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingColumnDimension(ctx context.Context, t *testing.T, pool *pgxpool.Pool) int {
	var dims int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute
		 WHERE attrelid = 'chunks'::regclass AND attname = 'embedding'`).Scan(&dims))
	return dims
}

func TestEnsureEmbeddingDimension(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := newMigratorPool(ctx, t)
	defer cleanup()

	t.Run("matching dimension is a no-op", func(t *testing.T) {
		require.NoError(t, EnsureEmbeddingDimension(ctx, pool, 1536))
		assert.Equal(t, 1536, embeddingColumnDimension(ctx, t, pool))
	})

	t.Run("empty index is resized in place", func(t *testing.T) {
		require.NoError(t, EnsureEmbeddingDimension(ctx, pool, 768))
		assert.Equal(t, 768, embeddingColumnDimension(ctx, t, pool))
	})

	t.Run("resized column accepts new vectors", func(t *testing.T) {
		repo := NewChunkRepository(pool)
		require.NoError(t, repo.InsertChunks(ctx, []domain.Chunk{{
			Source:    "doc.pdf",
			Page:      1,
			Seq:       0,
			Content:   "hello world",
			Embedding: make([]float32, 768),
		}}))
	})

	t.Run("populated index refuses a dimension change", func(t *testing.T) {
		err := EnsureEmbeddingDimension(ctx, pool, 1536)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reset the index")
		assert.Equal(t, 768, embeddingColumnDimension(ctx, t, pool))
	})

	t.Run("rejects non-positive dimension", func(t *testing.T) {
		assert.Error(t, EnsureEmbeddingDimension(ctx, pool, 0))
	})
}
