package service

import (
	"context"

	"github.com/cloo-solutions/doctalk/internal/domain"
	"github.com/cloo-solutions/doctalk/internal/pagination"
)

// SessionPageResult is one page of sessions, newest first.
type SessionPageResult struct {
	Items      []*domain.Session
	NextCursor string
	HasMore    bool
}

// SessionRepositoryInterface is the persistence surface for sessions and
// their messages.
type SessionRepositoryInterface interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, id int64) (*domain.Session, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*SessionPageResult, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id int64) error
	UpdateTitle(ctx context.Context, id int64, title string) error
	ListUntitled(ctx context.Context, limit int) ([]*domain.Session, error)
	AppendMessage(ctx context.Context, m *domain.Message) error
	LoadHistory(ctx context.Context, sessionID int64) ([]*domain.Message, error)
}

// TxRepositories exposes repositories bound to one transaction.
type TxRepositories interface {
	Chunks() ChunkRepositoryInterface
	Sessions() SessionRepositoryInterface
}

// TxRunnerInterface runs fn inside a transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
type TxRunnerInterface interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
