package jobs

import (
	"context"
	"fmt"
	"log"
)

// batchSize bounds how many sessions one sweep will title.
const batchSize = 10

// TitleGenerator names sessions that still carry the default title.
type TitleGenerator interface {
	TitlePending(ctx context.Context, limit int) (int, error)
}

// TitleWorker sweeps for untitled sessions and gives each a generated
// title. Titling is best effort; a failed sweep is retried on the next
// poll.
type TitleWorker struct {
	titles TitleGenerator
}

// NewTitleWorker creates a new TitleWorker instance
func NewTitleWorker(titles TitleGenerator) *TitleWorker {
	return &TitleWorker{titles: titles}
}

// ProcessJobs implements the JobProcessor interface
func (w *TitleWorker) ProcessJobs(ctx context.Context) error {
	titled, err := w.titles.TitlePending(ctx, batchSize)
	if err != nil {
		return fmt.Errorf("failed to title pending sessions: %w", err)
	}
	if titled > 0 {
		log.Printf("Titled %d sessions", titled)
	}
	return nil
}
