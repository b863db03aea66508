package repository

import (
	"context"
	"time"

	"github.com/cloo-solutions/doctalk/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository persists embedded document chunks and runs similarity
// search over them.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx dbtx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// InsertChunks appends chunks to the index. Existing chunks are never
// touched; callers wanting a clean slate call Reset first.
func (r *ChunkRepository) InsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO chunks (source, page, seq, content, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			c.Source, c.Page, c.Seq, c.Content, pgvector.NewVector(c.Embedding), createdAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// SearchByEmbedding returns the k chunks closest to the query embedding,
// best first. Score is 1 - cosine distance.
func (r *ChunkRepository) SearchByEmbedding(ctx context.Context, embedding []float32, k int) ([]domain.RetrievedChunk, error) {
	if k <= 0 {
		k = 4
	}

	vec := pgvector.NewVector(embedding)
	rows, err := r.db.Query(ctx,
		`SELECT id, source, page, seq, content, created_at,
		        1.0 - (embedding <=> $1) AS score
		 FROM chunks
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		vec, k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.RetrievedChunk, 0, k)
	for rows.Next() {
		var rc domain.RetrievedChunk
		if err := rows.Scan(&rc.Chunk.ID, &rc.Chunk.Source, &rc.Chunk.Page, &rc.Chunk.Seq, &rc.Chunk.Content, &rc.Chunk.CreatedAt, &rc.Score); err != nil {
			return nil, err
		}
		results = append(results, rc)
	}
	return results, rows.Err()
}

// Count returns the number of indexed chunks.
func (r *ChunkRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// CountDocuments returns the number of distinct source documents.
func (r *ChunkRepository) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(DISTINCT source) FROM chunks`).Scan(&count)
	return count, err
}

// Reset deletes every chunk.
func (r *ChunkRepository) Reset(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chunks`)
	return err
}
