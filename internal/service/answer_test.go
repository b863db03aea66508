package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cloo-solutions/doctalk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRewriter struct {
	query string
	err   error

	lastHistory  []domain.Turn
	lastQuestion string
}

func (r *stubRewriter) Rewrite(ctx context.Context, history []domain.Turn, question string) (string, error) {
	r.lastHistory = history
	r.lastQuestion = question
	if r.err != nil {
		return "", r.err
	}
	if r.query == "" {
		return question, nil
	}
	return r.query, nil
}

type stubSearcher struct {
	results []domain.RetrievedChunk
	err     error

	lastQuery string
	lastK     int
}

func (s *stubSearcher) Search(ctx context.Context, query string, k int) ([]domain.RetrievedChunk, error) {
	s.lastQuery = query
	s.lastK = k
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func (s *stubSearcher) TopK() int { return 4 }

func retrievedFixture() []domain.RetrievedChunk {
	return []domain.RetrievedChunk{
		{Chunk: domain.Chunk{Source: "geography.pdf", Page: 2, Content: "Paris is the capital of France."}, Score: 0.91},
		{Chunk: domain.Chunk{Source: "geography.pdf", Page: 7, Content: "France borders Spain and Italy."}, Score: 0.74},
	}
}

func TestAnswerer_GroundsAnswerInRetrievedChunks(t *testing.T) {
	rewriter := &stubRewriter{query: "capital of France"}
	searcher := &stubSearcher{results: retrievedFixture()}
	gen := &stubGenerator{response: "The capital of France is Paris."}
	a := NewAnswerer(rewriter, searcher, gen)

	result, err := a.Answer(context.Background(), AnswerInput{Question: "What is the capital of France?"})
	require.NoError(t, err)

	assert.Equal(t, "The capital of France is Paris.", result.Answer)
	assert.Equal(t, "capital of France", result.Query)
	assert.Equal(t, "capital of France", searcher.lastQuery)

	assert.Contains(t, gen.lastSystem, "Paris is the capital of France.")
	assert.Contains(t, gen.lastSystem, "France borders Spain and Italy.")
	assert.Contains(t, gen.lastSystem, "Paris is the capital of France.\n\nFrance borders Spain and Italy.")
	assert.Equal(t, "What is the capital of France?", gen.lastPrompt)
}

func TestAnswerer_SourcesListedInRetrievalOrder(t *testing.T) {
	a := NewAnswerer(&stubRewriter{}, &stubSearcher{results: retrievedFixture()}, &stubGenerator{response: "Paris."})

	result, err := a.Answer(context.Background(), AnswerInput{Question: "capital?"})
	require.NoError(t, err)

	require.Len(t, result.Sources, 2)
	assert.Equal(t, "geography.pdf", result.Sources[0].Source)
	assert.Equal(t, 2, result.Sources[0].Page)
	assert.Equal(t, "Paris is the capital of France.", result.Sources[0].Excerpt)
	assert.Equal(t, 7, result.Sources[1].Page)
}

func TestAnswerer_EmptyRetrievalStillGenerates(t *testing.T) {
	gen := &stubGenerator{response: "The context does not cover this."}
	a := NewAnswerer(&stubRewriter{}, &stubSearcher{}, gen)

	result, err := a.Answer(context.Background(), AnswerInput{Question: "Anything about dinosaurs?"})
	require.NoError(t, err)

	assert.Equal(t, 1, gen.calls)
	assert.Empty(t, result.Sources)
	assert.Equal(t, "The context does not cover this.", result.Answer)
}

func TestAnswerer_EmptyQuestion(t *testing.T) {
	a := NewAnswerer(&stubRewriter{}, &stubSearcher{}, &stubGenerator{})

	_, err := a.Answer(context.Background(), AnswerInput{Question: " "})
	assert.ErrorIs(t, err, domain.ErrEmptyQuestion)
}

func TestAnswerer_HistoryFeedsBothRewriteAndSynthesis(t *testing.T) {
	rewriter := &stubRewriter{query: "standalone"}
	gen := &stubGenerator{response: "ok"}
	a := NewAnswerer(rewriter, &stubSearcher{}, gen)

	history := []domain.Turn{
		{Role: domain.RoleUser, Content: "Who wrote Hamlet?"},
		{Role: domain.RoleAssistant, Content: "Shakespeare."},
	}
	_, err := a.Answer(context.Background(), AnswerInput{Question: "When?", History: history})
	require.NoError(t, err)

	assert.Equal(t, history, rewriter.lastHistory)
	assert.Equal(t, history, gen.lastTurns)
}

func TestAnswerer_HistoryWindowBound(t *testing.T) {
	rewriter := &stubRewriter{}
	a := NewAnswererWithConfig(rewriter, &stubSearcher{}, &stubGenerator{response: "ok"}, AnswererConfig{HistoryWindow: 2})

	history := []domain.Turn{
		{Content: "one"}, {Content: "two"}, {Content: "three"},
	}
	_, err := a.Answer(context.Background(), AnswerInput{Question: "q", History: history})
	require.NoError(t, err)

	require.Len(t, rewriter.lastHistory, 2)
	assert.Equal(t, "two", rewriter.lastHistory[0].Content)
}

func TestAnswerer_TopKForwarded(t *testing.T) {
	searcher := &stubSearcher{}
	a := NewAnswerer(&stubRewriter{}, searcher, &stubGenerator{response: "ok"})

	_, err := a.Answer(context.Background(), AnswerInput{Question: "q", TopK: 9})
	require.NoError(t, err)
	assert.Equal(t, 9, searcher.lastK)
}

func TestAnswerer_RetrievalErrorPropagates(t *testing.T) {
	searcher := &stubSearcher{err: domain.ErrIndexNotFound}
	a := NewAnswerer(&stubRewriter{}, searcher, &stubGenerator{})

	_, err := a.Answer(context.Background(), AnswerInput{Question: "q"})
	assert.ErrorIs(t, err, domain.ErrIndexNotFound)
}

func TestAnswerer_GenerationErrorPropagates(t *testing.T) {
	provErr := domain.NewGenerationError(errors.New("timeout"))
	a := NewAnswerer(&stubRewriter{}, &stubSearcher{}, &stubGenerator{err: provErr})

	_, err := a.Answer(context.Background(), AnswerInput{Question: "q"})
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
}
