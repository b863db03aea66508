package service

import (
	"context"
	"strings"

	"github.com/cloo-solutions/doctalk/internal/domain"
	"github.com/cloo-solutions/doctalk/internal/telemetry"
)

// rewriteInstruction tells the generator to reformulate without answering.
const rewriteInstruction = "Given a chat history and the latest user question " +
	"which might reference context in the chat history, " +
	"formulate a standalone question which can be understood " +
	"without the chat history. Do NOT answer the question, " +
	"just reformulate it if needed and otherwise return it as is."

// RewriterConfig controls history-aware query rewriting.
type RewriterConfig struct {
	HistoryWindow int // turns of history consulted, most recent first
}

// DefaultRewriterConfig returns the default rewriter configuration.
func DefaultRewriterConfig() RewriterConfig {
	return RewriterConfig{HistoryWindow: 5}
}

// Rewriter turns a (history, question) pair into a standalone search
// query with pronouns and ellipsis resolved.
type Rewriter struct {
	generator GenerationProvider
	cfg       RewriterConfig
}

// NewRewriter creates a Rewriter with default configuration.
func NewRewriter(generator GenerationProvider) *Rewriter {
	return NewRewriterWithConfig(generator, DefaultRewriterConfig())
}

// NewRewriterWithConfig creates a Rewriter with explicit configuration.
func NewRewriterWithConfig(generator GenerationProvider, cfg RewriterConfig) *Rewriter {
	if cfg.HistoryWindow <= 0 {
		cfg = DefaultRewriterConfig()
	}
	return &Rewriter{generator: generator, cfg: cfg}
}

// Rewrite produces a self-contained question. With empty history the
// question comes back unchanged and no generation call is made. A
// degenerate provider response falls back to the original question so
// retrieval never runs on an empty query.
func (r *Rewriter) Rewrite(ctx context.Context, history []domain.Turn, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", domain.ErrEmptyQuestion
	}

	if len(history) == 0 {
		return question, nil
	}

	ctx, span := telemetry.StartSpan(ctx, "Rewriter.Rewrite", telemetry.SpanAttributes{
		Operation: "rewrite",
	})
	defer span.End()

	rewritten, err := r.generator.GenerateText(ctx, rewriteInstruction, lastTurns(history, r.cfg.HistoryWindow), question)
	if err != nil {
		span.SetError(err)
		return "", err
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return question, nil
	}

	return rewritten, nil
}

// lastTurns bounds history to its n most recent turns.
func lastTurns(history []domain.Turn, n int) []domain.Turn {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
