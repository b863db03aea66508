package domain

import "time"

// Chunk is a bounded window of document text stored in the vector index.
// Chunks are immutable once created.
type Chunk struct {
	ID        int64
	Source    string // originating filename
	Page      int    // page the chunk starts on
	Seq       int    // position within the source document
	Content   string
	Embedding []float32
	CreatedAt time.Time
}

// RetrievedChunk is a chunk surfaced by a similarity search, paired with
// its score (1 = identical direction, 0 = orthogonal under cosine).
type RetrievedChunk struct {
	Chunk Chunk
	Score float32
}

// SourceRef cites a retrieved chunk as evidence for an answer. The excerpt
// is capped for display; see SourceExcerptLimit.
type SourceRef struct {
	Source  string `json:"source"`
	Page    int    `json:"page"`
	Excerpt string `json:"content"`
}

// SourceExcerptLimit bounds the excerpt persisted with a citation.
const SourceExcerptLimit = 200

// NewSourceRef builds a citation for a retrieved chunk, truncating the
// excerpt to SourceExcerptLimit runes.
func NewSourceRef(c Chunk) SourceRef {
	excerpt := c.Content
	if runes := []rune(excerpt); len(runes) > SourceExcerptLimit {
		excerpt = string(runes[:SourceExcerptLimit])
	}
	return SourceRef{
		Source:  c.Source,
		Page:    c.Page,
		Excerpt: excerpt,
	}
}
