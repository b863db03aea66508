package service

import (
	"context"
	"strings"
	"time"

	"github.com/cloo-solutions/doctalk/internal/domain"
	"github.com/cloo-solutions/doctalk/internal/pagination"
	"github.com/cloo-solutions/doctalk/internal/telemetry"
)

// AnswererInterface produces a grounded answer for a question in context.
type AnswererInterface interface {
	Answer(ctx context.Context, input AnswerInput) (*AnswerResult, error)
}

// ChatConfig controls chat behavior.
type ChatConfig struct {
	HistoryWindow   int
	DefaultPageSize int
}

// DefaultChatConfig returns the default chat configuration.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		HistoryWindow:   5,
		DefaultPageSize: 20,
	}
}

// ChatService manages sessions and runs the ask flow. A question and its
// answer are persisted together, after generation succeeds, so the message
// log never holds a user turn without its assistant turn.
type ChatService struct {
	sessions SessionRepositoryInterface
	answerer AnswererInterface
	tx       TxRunnerInterface
	cfg      ChatConfig
}

// NewChatService creates a ChatService with default configuration.
func NewChatService(sessions SessionRepositoryInterface, answerer AnswererInterface, tx TxRunnerInterface) *ChatService {
	return NewChatServiceWithConfig(sessions, answerer, tx, DefaultChatConfig())
}

// NewChatServiceWithConfig creates a ChatService with explicit configuration.
func NewChatServiceWithConfig(sessions SessionRepositoryInterface, answerer AnswererInterface, tx TxRunnerInterface, cfg ChatConfig) *ChatService {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultChatConfig().HistoryWindow
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = DefaultChatConfig().DefaultPageSize
	}
	return &ChatService{
		sessions: sessions,
		answerer: answerer,
		tx:       tx,
		cfg:      cfg,
	}
}

// CreateSession creates a session. A blank title gets the default.
func (s *ChatService) CreateSession(ctx context.Context, title string) (*domain.Session, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.CreateSession", telemetry.SpanAttributes{
		Operation: "create_session",
	})
	defer span.End()

	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultSessionTitle
	}

	session := &domain.Session{
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	if err := domain.ValidateSession(session); err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		span.SetError(err)
		return nil, err
	}
	return session, nil
}

// EnsureDefaultSession creates the default session when none exist yet,
// so a fresh install always has somewhere to talk. Returns the session
// it created, or nil when sessions already exist.
func (s *ChatService) EnsureDefaultSession(ctx context.Context) (*domain.Session, error) {
	count, err := s.sessions.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, nil
	}
	return s.CreateSession(ctx, domain.DefaultSessionTitle)
}

// ListSessions returns a page of sessions, newest first.
func (s *ChatService) ListSessions(ctx context.Context, cursor string, limit int) (*SessionPageResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.ListSessions", telemetry.SpanAttributes{
		Operation: "list_sessions",
	})
	defer span.End()

	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.ErrInvalidCursor
	}
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}

	page, err := s.sessions.ListWithCursor(ctx, decoded, limit)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return page, nil
}

// GetSession looks up one session by id.
func (s *ChatService) GetSession(ctx context.Context, id int64) (*domain.Session, error) {
	return s.sessions.GetByID(ctx, id)
}

// DeleteSession removes a session and all of its messages. Deleting a
// session that does not exist is a no-op.
func (s *ChatService) DeleteSession(ctx context.Context, id int64) error {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.DeleteSession", telemetry.SpanAttributes{
		SessionID: id,
		Operation: "delete_session",
	})
	defer span.End()

	if err := s.sessions.Delete(ctx, id); err != nil {
		span.SetError(err)
		return err
	}
	return nil
}

// GetHistory returns every message of a session in chronological order.
func (s *ChatService) GetHistory(ctx context.Context, sessionID int64) ([]*domain.Message, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.GetHistory", telemetry.SpanAttributes{
		SessionID: sessionID,
		Operation: "get_history",
	})
	defer span.End()

	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		return nil, err
	}
	messages, err := s.sessions.LoadHistory(ctx, sessionID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return messages, nil
}

// RecordMessage appends a single message to a session, outside the ask
// flow. Used for imports and manual transcript edits.
func (s *ChatService) RecordMessage(ctx context.Context, sessionID int64, role domain.Role, content string, metadata *domain.MessageMetadata) (*domain.Message, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.RecordMessage", telemetry.SpanAttributes{
		SessionID: sessionID,
		Operation: "record_message",
	})
	defer span.End()

	msg := &domain.Message{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}
	if err := domain.ValidateMessage(msg); err != nil {
		return nil, err
	}
	if err := s.sessions.AppendMessage(ctx, msg); err != nil {
		span.SetError(err)
		return nil, err
	}
	return msg, nil
}

// ChatTurnResult is the outcome of one ask: the persisted turn pair plus
// the retrieval evidence behind the answer.
type ChatTurnResult struct {
	UserMessage      *domain.Message
	AssistantMessage *domain.Message
	Sources          []domain.SourceRef
	Query            string
}

// Ask answers a question inside a session. The recent history feeds the
// answer pipeline, and on success the question and answer are written as
// one atomic pair. A failed generation writes nothing.
func (s *ChatService) Ask(ctx context.Context, sessionID int64, question string) (*ChatTurnResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.Ask", telemetry.SpanAttributes{
		SessionID: sessionID,
		Operation: "ask",
	})
	defer span.End()

	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrEmptyQuestion
	}
	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		return nil, err
	}

	messages, err := s.sessions.LoadHistory(ctx, sessionID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	history := make([]domain.Turn, 0, len(messages))
	for _, m := range messages {
		history = append(history, m.Turn())
	}

	result, err := s.answerer.Answer(ctx, AnswerInput{
		Question: question,
		History:  lastTurns(history, s.cfg.HistoryWindow),
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	now := time.Now().UTC()
	userMsg := &domain.Message{
		SessionID: sessionID,
		Role:      domain.RoleUser,
		Content:   question,
		Timestamp: now,
	}
	assistantMsg := &domain.Message{
		SessionID: sessionID,
		Role:      domain.RoleAssistant,
		Content:   result.Answer,
		Metadata:  &domain.MessageMetadata{Sources: result.Sources},
		Timestamp: now,
	}

	err = s.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Sessions().AppendMessage(ctx, userMsg); err != nil {
			return err
		}
		return repos.Sessions().AppendMessage(ctx, assistantMsg)
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return &ChatTurnResult{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Sources:          result.Sources,
		Query:            result.Query,
	}, nil
}
