package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cloo-solutions/doctalk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singlePageDoc(name, text string) domain.Document {
	return domain.Document{
		Filename: name,
		Pages:    []domain.Page{{Number: 0, Text: text}},
	}
}

func TestSplitDocuments(t *testing.T) {
	cfg := DefaultChunkConfig()

	t.Run("short document yields one chunk", func(t *testing.T) {
		docs := []domain.Document{singlePageDoc("a.pdf", "The capital of France is Paris.")}

		chunks := SplitDocuments(docs, cfg)
		require.Len(t, chunks, 1)
		assert.Equal(t, "The capital of France is Paris.", chunks[0].Content)
		assert.Equal(t, "a.pdf", chunks[0].Source)
		assert.Equal(t, 0, chunks[0].Page)
		assert.Equal(t, 0, chunks[0].Seq)
	})

	t.Run("whitespace-only input yields no chunks", func(t *testing.T) {
		docs := []domain.Document{singlePageDoc("a.pdf", "  \n\t \n ")}
		assert.Empty(t, SplitDocuments(docs, cfg))
	})

	t.Run("empty document list yields no chunks", func(t *testing.T) {
		assert.Empty(t, SplitDocuments(nil, cfg))
	})

	t.Run("every chunk respects the window size", func(t *testing.T) {
		text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 200)
		docs := []domain.Document{singlePageDoc("fox.txt", text)}

		chunks := SplitDocuments(docs, cfg)
		require.Greater(t, len(chunks), 1)
		for _, c := range chunks {
			assert.LessOrEqual(t, len([]rune(c.Content)), cfg.WindowChars)
			assert.NotEmpty(t, strings.TrimSpace(c.Content))
		}
	})

	t.Run("consecutive chunks overlap without gaps", func(t *testing.T) {
		var b strings.Builder
		for i := 0; i < 150; i++ {
			fmt.Fprintf(&b, "Sentence number %d is unique within this corpus. ", i)
		}
		text := b.String()
		docs := []domain.Document{singlePageDoc("corpus.txt", text)}

		chunks := SplitDocuments(docs, cfg)
		require.Greater(t, len(chunks), 1)

		pos := 0
		prevEnd := 0
		for i, c := range chunks {
			idx := strings.Index(text[pos:], c.Content)
			require.GreaterOrEqual(t, idx, 0, "chunk %d not found in original", i)
			start := pos + idx
			if i > 0 {
				// no gap between this chunk and the previous one
				assert.LessOrEqual(t, start, prevEnd, "gap before chunk %d", i)
				// overlap stays near the configured amount
				assert.LessOrEqual(t, prevEnd-start, cfg.Overlap, "oversized overlap before chunk %d", i)
			}
			prevEnd = start + len(c.Content)
			pos = start
		}
		assert.Equal(t, len(text), prevEnd, "chunks do not reach the end of the document")
	})

	t.Run("prefers paragraph boundaries", func(t *testing.T) {
		para := strings.Repeat("Sentence in the first paragraph. ", 20)
		text := strings.TrimSpace(para) + "\n\n" + strings.Repeat("Second paragraph content here. ", 30)
		docs := []domain.Document{singlePageDoc("para.txt", text)}

		chunks := SplitDocuments(docs, DefaultChunkConfig())
		require.Greater(t, len(chunks), 1)
		assert.True(t, strings.HasSuffix(strings.TrimRight(chunks[0].Content, "\n"), "paragraph."),
			"first chunk should end at the paragraph break, got %q", chunks[0].Content[len(chunks[0].Content)-40:])
	})

	t.Run("chunk spanning pages is attributed to its starting page", func(t *testing.T) {
		doc := domain.Document{
			Filename: "multi.pdf",
			Pages: []domain.Page{
				{Number: 0, Text: strings.Repeat("Page zero text. ", 50)},
				{Number: 1, Text: strings.Repeat("Page one text. ", 50)},
				{Number: 2, Text: strings.Repeat("Page two text. ", 50)},
			},
		}

		chunks := SplitDocuments([]domain.Document{doc}, DefaultChunkConfig())
		require.NotEmpty(t, chunks)

		assert.Equal(t, 0, chunks[0].Page)
		assert.GreaterOrEqual(t, chunks[len(chunks)-1].Page, 1)
		for i := 1; i < len(chunks); i++ {
			assert.GreaterOrEqual(t, chunks[i].Page, chunks[i-1].Page)
		}
	})

	t.Run("page attribution follows the starting offset", func(t *testing.T) {
		pages := []domain.Page{
			{Number: 0, Text: "aaaa"},
			{Number: 1, Text: "bbbb"},
			{Number: 2, Text: "cccc"},
		}
		_, starts := flattenPages(pages)

		assert.Equal(t, 0, pageForOffset(pages, starts, 0))
		assert.Equal(t, 0, pageForOffset(pages, starts, 3))
		assert.Equal(t, 1, pageForOffset(pages, starts, 5))
		assert.Equal(t, 2, pageForOffset(pages, starts, 12))
	})

	t.Run("sequence numbers are per document", func(t *testing.T) {
		long := strings.Repeat("Filler sentence for the splitter. ", 100)
		docs := []domain.Document{
			singlePageDoc("a.txt", long),
			singlePageDoc("b.txt", long),
		}

		chunks := SplitDocuments(docs, DefaultChunkConfig())
		seqs := map[string]int{}
		for _, c := range chunks {
			assert.Equal(t, seqs[c.Source], c.Seq, "sequence out of order for %s", c.Source)
			seqs[c.Source]++
		}
		assert.Len(t, seqs, 2)
	})

	t.Run("zero config falls back to defaults", func(t *testing.T) {
		docs := []domain.Document{singlePageDoc("a.txt", strings.Repeat("word ", 500))}
		chunks := SplitDocuments(docs, ChunkConfig{})
		require.NotEmpty(t, chunks)
		for _, c := range chunks {
			assert.LessOrEqual(t, len([]rune(c.Content)), DefaultChunkConfig().WindowChars)
		}
	})
}
