package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/doctalk/internal/domain"
	"github.com/cloo-solutions/doctalk/internal/telemetry"
)

// groundingInstruction constrains the generator to the retrieved context.
const groundingInstruction = `You are an expert technical assistant.
Use ONLY the information provided in the context below.
Your task is to provide a detailed, well-structured, and explanatory answer.

Guidelines:
- Explain concepts step-by-step
- Provide background if needed
- Use bullet points or numbered sections where helpful
- If the answer has multiple aspects, cover all of them
- If the context is insufficient, explicitly say what is missing

Context:
%s

Answer in a detailed and comprehensive manner.`

// pipelineStage names the step of the answer pipeline currently running.
type pipelineStage string

const (
	stageRewriting    pipelineStage = "rewriting"
	stageRetrieving   pipelineStage = "retrieving"
	stageSynthesizing pipelineStage = "synthesizing"
	stageDone         pipelineStage = "done"
)

// QueryRewriterInterface resolves a question against history into a
// standalone query.
type QueryRewriterInterface interface {
	Rewrite(ctx context.Context, history []domain.Turn, question string) (string, error)
}

// IndexSearcherInterface is the retrieval surface the answerer uses.
type IndexSearcherInterface interface {
	Search(ctx context.Context, query string, k int) ([]domain.RetrievedChunk, error)
	TopK() int
}

// AnswerInput carries one question and its conversation history.
type AnswerInput struct {
	Question string
	History  []domain.Turn
	TopK     int // 0 means the index default
}

// AnswerResult is a grounded answer with the chunks used as evidence.
// Sources lists every retrieved chunk in retrieval order, whether or not
// the generated text cites it.
type AnswerResult struct {
	Answer  string
	Sources []domain.SourceRef
	Query   string // the standalone query used for retrieval
}

// AnswererConfig controls answer synthesis.
type AnswererConfig struct {
	HistoryWindow int
}

// DefaultAnswererConfig returns the default answerer configuration.
func DefaultAnswererConfig() AnswererConfig {
	return AnswererConfig{HistoryWindow: 5}
}

// Answerer runs the rewrite, retrieve, synthesize pipeline. Retrieval is
// query-focused (it sees the standalone query) while synthesis stays
// conversation-aware (the generator sees the raw recent history), so
// "what to search for" never mixes with "how to phrase the answer".
// The Answerer holds no persistent state.
type Answerer struct {
	rewriter  QueryRewriterInterface
	index     IndexSearcherInterface
	generator GenerationProvider
	cfg       AnswererConfig
}

// NewAnswerer creates an Answerer with default configuration.
func NewAnswerer(rewriter QueryRewriterInterface, index IndexSearcherInterface, generator GenerationProvider) *Answerer {
	return NewAnswererWithConfig(rewriter, index, generator, DefaultAnswererConfig())
}

// NewAnswererWithConfig creates an Answerer with explicit configuration.
func NewAnswererWithConfig(rewriter QueryRewriterInterface, index IndexSearcherInterface, generator GenerationProvider, cfg AnswererConfig) *Answerer {
	if cfg.HistoryWindow <= 0 {
		cfg = DefaultAnswererConfig()
	}
	return &Answerer{
		rewriter:  rewriter,
		index:     index,
		generator: generator,
		cfg:       cfg,
	}
}

// Answer produces a grounded answer for the question. An empty retrieval
// result is not an error: the generator still runs and is instructed to
// report the missing context. Provider errors propagate unretried.
func (a *Answerer) Answer(ctx context.Context, input AnswerInput) (*AnswerResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "Answerer.Answer", telemetry.SpanAttributes{
		Operation: "answer",
	})
	defer span.End()

	if strings.TrimSpace(input.Question) == "" {
		return nil, domain.ErrEmptyQuestion
	}

	history := lastTurns(input.History, a.cfg.HistoryWindow)
	stage := stageRewriting

	query, err := a.rewriter.Rewrite(ctx, history, input.Question)
	if err != nil {
		span.SetError(err)
		return nil, stageError(stage, err)
	}

	stage = stageRetrieving
	retrieved, err := a.index.Search(ctx, query, input.TopK)
	if err != nil {
		span.SetError(err)
		return nil, stageError(stage, err)
	}

	contextBlock, sources := collectContext(retrieved)

	stage = stageSynthesizing
	system := fmt.Sprintf(groundingInstruction, contextBlock)
	answer, err := a.generator.GenerateText(ctx, system, history, input.Question)
	if err != nil {
		span.SetError(err)
		return nil, stageError(stage, err)
	}

	return &AnswerResult{
		Answer:  answer,
		Sources: sources,
		Query:   query,
	}, nil
}

// collectContext joins retrieved chunk texts into one block, separated by
// blank lines, and builds the matching citation list.
func collectContext(retrieved []domain.RetrievedChunk) (string, []domain.SourceRef) {
	texts := make([]string, 0, len(retrieved))
	sources := make([]domain.SourceRef, 0, len(retrieved))
	for _, rc := range retrieved {
		texts = append(texts, rc.Chunk.Content)
		sources = append(sources, domain.NewSourceRef(rc.Chunk))
	}
	return strings.Join(texts, "\n\n"), sources
}

func stageError(stage pipelineStage, err error) error {
	return fmt.Errorf("answer pipeline failed while %s: %w", stage, err)
}
