package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/doctalk/internal/domain"
	"github.com/cloo-solutions/doctalk/internal/telemetry"
)

const titleInstruction = `You generate short titles for chat sessions.
Given the first user message, produce a title of at most five words.
Return ONLY the title, with no quotes and no trailing punctuation.`

// maxTitleChars caps generated titles before they are stored.
const maxTitleChars = 80

// TitleService generates display titles for sessions that still carry the
// default one. It runs in the background and never blocks the ask flow.
type TitleService struct {
	sessions  SessionRepositoryInterface
	generator GenerationProvider
}

// NewTitleService creates a TitleService.
func NewTitleService(sessions SessionRepositoryInterface, generator GenerationProvider) *TitleService {
	return &TitleService{sessions: sessions, generator: generator}
}

// TitlePending finds up to limit sessions with the default title and a
// first user message, and gives each a generated title. Sessions with no
// messages yet are left alone. Returns the number of sessions titled.
func (s *TitleService) TitlePending(ctx context.Context, limit int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "TitleService.TitlePending", telemetry.SpanAttributes{
		Operation: "title_pending",
	})
	defer span.End()

	pending, err := s.sessions.ListUntitled(ctx, limit)
	if err != nil {
		span.SetError(err)
		return 0, err
	}

	titled := 0
	for _, session := range pending {
		ok, err := s.titleSession(ctx, session)
		if err != nil {
			// One bad session does not stop the sweep.
			telemetry.CaptureError(ctx, err)
			continue
		}
		if ok {
			titled++
		}
	}
	return titled, nil
}

func (s *TitleService) titleSession(ctx context.Context, session *domain.Session) (bool, error) {
	messages, err := s.sessions.LoadHistory(ctx, session.ID)
	if err != nil {
		return false, err
	}

	var firstQuestion string
	for _, m := range messages {
		if m.Role == domain.RoleUser {
			firstQuestion = m.Content
			break
		}
	}
	if firstQuestion == "" {
		return false, nil
	}

	raw, err := s.generator.GenerateText(ctx, titleInstruction, nil, firstQuestion)
	if err != nil {
		return false, err
	}

	title := cleanTitle(raw)
	if title == "" {
		return false, nil
	}
	if err := s.sessions.UpdateTitle(ctx, session.ID, title); err != nil {
		return false, err
	}
	return true, nil
}

// cleanTitle strips quoting and length excess from generated titles.
func cleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, `"'`)
	title = strings.TrimSuffix(title, ".")
	if line, _, found := strings.Cut(title, "\n"); found {
		title = strings.TrimSpace(line)
	}
	if utf8.RuneCountInString(title) > maxTitleChars {
		runes := []rune(title)
		title = strings.TrimSpace(string(runes[:maxTitleChars]))
	}
	return title
}
