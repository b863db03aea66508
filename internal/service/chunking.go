package service

import (
	"strings"
	"unicode"

	"github.com/cloo-solutions/doctalk/internal/domain"
)

// ChunkConfig controls how document text is split into index windows.
type ChunkConfig struct {
	WindowChars int // maximum chunk length, in runes
	Overlap     int // runes shared between consecutive chunks
	MinChars    int // how far back a boundary search may reach
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		WindowChars: 1000,
		Overlap:     200,
		MinChars:    400,
	}
}

// SplitDocuments splits each document into overlapping chunks. Splits
// prefer paragraph breaks, then sentence ends, then any whitespace, before
// falling back to a hard cut at the window boundary. A chunk that spans
// pages is attributed to the page it starts on. Whitespace-only input
// produces no chunks.
func SplitDocuments(docs []domain.Document, cfg ChunkConfig) []domain.Chunk {
	if cfg.WindowChars <= 0 {
		cfg = DefaultChunkConfig()
	}

	var chunks []domain.Chunk
	for _, doc := range docs {
		chunks = append(chunks, splitDocument(doc, cfg)...)
	}
	return chunks
}

func splitDocument(doc domain.Document, cfg ChunkConfig) []domain.Chunk {
	runes, pageStarts := flattenPages(doc.Pages)
	if strings.TrimSpace(string(runes)) == "" {
		return nil
	}

	var chunks []domain.Chunk
	seq := 0
	start := 0
	for start < len(runes) {
		end := start + cfg.WindowChars
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			minCut := start + cfg.MinChars
			if minCut >= end {
				minCut = start
			}
			end = cutPoint(runes, minCut, end)
		}

		if end <= start {
			break
		}

		content := string(runes[start:end])
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, domain.Chunk{
				Source:  doc.Filename,
				Page:    pageForOffset(doc.Pages, pageStarts, start),
				Seq:     seq,
				Content: content,
			})
			seq++
		}

		if end >= len(runes) {
			break
		}

		nextStart := end
		if cfg.Overlap > 0 && end-start > cfg.Overlap {
			nextStart = end - cfg.Overlap
		}
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return chunks
}

// flattenPages joins page texts with a newline separator and records the
// rune offset at which each page begins.
func flattenPages(pages []domain.Page) ([]rune, []int) {
	var runes []rune
	starts := make([]int, len(pages))
	for i, p := range pages {
		if i > 0 {
			runes = append(runes, '\n')
		}
		starts[i] = len(runes)
		runes = append(runes, []rune(p.Text)...)
	}
	return runes, starts
}

// cutPoint picks the best split position in (minCut, end], preferring a
// paragraph break, then a sentence end, then any whitespace.
func cutPoint(runes []rune, minCut, end int) int {
	for i := end; i > minCut; i-- {
		if runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' {
			return i
		}
	}
	for i := end; i > minCut; i-- {
		if isSentenceEnd(runes[i-1]) && i < len(runes) && unicode.IsSpace(runes[i]) {
			return i
		}
	}
	for i := end; i > minCut; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	}
	return false
}

// pageForOffset returns the number of the page containing the given rune
// offset.
func pageForOffset(pages []domain.Page, starts []int, offset int) int {
	page := 0
	for i, s := range starts {
		if s > offset {
			break
		}
		page = i
	}
	if len(pages) == 0 {
		return 0
	}
	return pages[page].Number
}
