package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureEmbeddingDimension aligns the chunks.embedding column type with the
// dimension the configured embedding provider produces. An empty index is
// altered in place; a populated index with a mismatched dimension is refused
// because its vectors would be incompatible with new embeddings.
func EnsureEmbeddingDimension(ctx context.Context, pool *pgxpool.Pool, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", dimensions)
	}

	// For pgvector columns atttypmod holds the declared dimension.
	var current int
	err := pool.QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute
		 WHERE attrelid = 'chunks'::regclass AND attname = 'embedding'`).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to read embedding column dimension: %w", err)
	}
	if current == dimensions {
		return nil
	}

	var count int64
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count chunks: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("embedding dimension is %d but provider produces %d vectors; reset the index before switching embedding models", current, dimensions)
	}

	_, err = pool.Exec(ctx,
		fmt.Sprintf(`ALTER TABLE chunks ALTER COLUMN embedding TYPE vector(%d)`, dimensions))
	if err != nil {
		return fmt.Errorf("failed to resize embedding column to %d dimensions: %w", dimensions, err)
	}
	return nil
}
