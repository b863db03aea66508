package service

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/doctalk/internal/domain"
	"github.com/cloo-solutions/doctalk/internal/telemetry"
)

// ChunkRepositoryInterface defines the persistence interface for the
// vector index.
type ChunkRepositoryInterface interface {
	InsertChunks(ctx context.Context, chunks []domain.Chunk) error
	SearchByEmbedding(ctx context.Context, embedding []float32, k int) ([]domain.RetrievedChunk, error)
	Count(ctx context.Context) (int64, error)
	CountDocuments(ctx context.Context) (int64, error)
	Reset(ctx context.Context) error
}

// DocumentArchiveInterface stores raw ingested documents so the index can
// be rebuilt without re-uploading.
type DocumentArchiveInterface interface {
	PutDocument(ctx context.Context, doc domain.Document) error
	ListDocuments(ctx context.Context) ([]domain.Document, error)
}

// IndexStatus reports the contents of the vector index.
type IndexStatus struct {
	Chunks    int64
	Documents int64
}

// IndexConfig controls retrieval and chunking behavior.
type IndexConfig struct {
	TopK     int
	Chunking ChunkConfig
}

// DefaultIndexConfig returns the default index configuration.
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		TopK:     4,
		Chunking: DefaultChunkConfig(),
	}
}

// IndexService embeds document chunks and answers nearest-neighbor
// queries over them. Similarity is cosine, fixed by the underlying store.
type IndexService struct {
	repo     ChunkRepositoryInterface
	embedder EmbeddingProvider
	tx       TxRunnerInterface
	archive  DocumentArchiveInterface
	cfg      IndexConfig
}

// NewIndexService creates an IndexService without a document archive.
func NewIndexService(repo ChunkRepositoryInterface, embedder EmbeddingProvider, tx TxRunnerInterface, cfg IndexConfig) *IndexService {
	return &IndexService{
		repo:     repo,
		embedder: embedder,
		tx:       tx,
		cfg:      cfg,
	}
}

// NewIndexServiceWithArchive creates an IndexService that archives raw
// documents on ingestion and supports rebuilding from the archive.
func NewIndexServiceWithArchive(repo ChunkRepositoryInterface, embedder EmbeddingProvider, tx TxRunnerInterface, archive DocumentArchiveInterface, cfg IndexConfig) *IndexService {
	svc := NewIndexService(repo, embedder, tx, cfg)
	svc.archive = archive
	return svc
}

// BuildIndex chunks and embeds the given documents and persists them.
// Chunks are written in a single transaction so a provider failure part
// way through leaves previously indexed content untouched. Indexing is
// additive across calls.
func (s *IndexService) BuildIndex(ctx context.Context, docs []domain.Document) (*IndexStatus, error) {
	ctx, span := telemetry.StartSpan(ctx, "IndexService.BuildIndex", telemetry.SpanAttributes{
		Operation: "index",
	})
	defer span.End()

	for i := range docs {
		if err := domain.ValidateDocument(&docs[i]); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
		}
	}

	chunks := SplitDocuments(docs, s.cfg.Chunking)

	for i := range chunks {
		embedding, err := s.embedder.GenerateEmbedding(ctx, chunks[i].Content)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		chunks[i].Embedding = embedding
	}

	if s.archive != nil {
		for _, doc := range docs {
			if err := s.archive.PutDocument(ctx, doc); err != nil {
				span.SetError(err)
				return nil, fmt.Errorf("failed to archive document %s: %w", doc.Filename, err)
			}
		}
	}

	if len(chunks) > 0 {
		err := s.tx.WithTx(ctx, func(repos TxRepositories) error {
			return repos.Chunks().InsertChunks(ctx, chunks)
		})
		if err != nil {
			span.SetError(err)
			return nil, err
		}
	}

	return s.Status(ctx)
}

// Open verifies that a persisted index exists. It returns
// domain.ErrIndexNotFound when the store holds no chunks.
func (s *IndexService) Open(ctx context.Context) (*IndexStatus, error) {
	status, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}
	if status.Chunks == 0 {
		return nil, domain.ErrIndexNotFound
	}
	return status, nil
}

// Status reports chunk and document counts.
func (s *IndexService) Status(ctx context.Context) (*IndexStatus, error) {
	chunks, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := s.repo.CountDocuments(ctx)
	if err != nil {
		return nil, err
	}
	return &IndexStatus{Chunks: chunks, Documents: docs}, nil
}

// Search embeds the query and returns the k closest chunks, best first.
// Fewer than k results come back only when the index holds fewer chunks;
// an empty index yields an empty result, not an error.
func (s *IndexService) Search(ctx context.Context, query string, k int) ([]domain.RetrievedChunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "IndexService.Search", telemetry.SpanAttributes{
		Operation: "search",
	})
	defer span.End()

	if k <= 0 {
		k = s.cfg.TopK
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return s.repo.SearchByEmbedding(ctx, embedding, k)
}

// Reset removes all indexed chunks. Explicit; indexing never resets
// implicitly.
func (s *IndexService) Reset(ctx context.Context) error {
	return s.repo.Reset(ctx)
}

// Rebuild re-embeds every archived document and swaps the result in for
// the current index contents. Reset and insert share one transaction, so
// a provider failure mid-rebuild leaves the existing index untouched.
func (s *IndexService) Rebuild(ctx context.Context) (*IndexStatus, error) {
	if s.archive == nil {
		return nil, domain.ErrArchiveNotConfigured
	}

	ctx, span := telemetry.StartSpan(ctx, "IndexService.Rebuild", telemetry.SpanAttributes{
		Operation: "rebuild",
	})
	defer span.End()

	docs, err := s.archive.ListDocuments(ctx)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	chunks := SplitDocuments(docs, s.cfg.Chunking)
	for i := range chunks {
		embedding, err := s.embedder.GenerateEmbedding(ctx, chunks[i].Content)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		chunks[i].Embedding = embedding
	}

	err = s.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Chunks().Reset(ctx); err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return repos.Chunks().InsertChunks(ctx, chunks)
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return s.Status(ctx)
}

// TopK exposes the configured default retrieval depth.
func (s *IndexService) TopK() int {
	if s.cfg.TopK <= 0 {
		return DefaultIndexConfig().TopK
	}
	return s.cfg.TopK
}
