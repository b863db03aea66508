package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/doctalk/internal/domain"
	"github.com/cloo-solutions/doctalk/internal/pagination"
	"github.com/cloo-solutions/doctalk/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgForeignKeyViolation = "23503"

// SessionRepository persists chat sessions and their messages.
type SessionRepository struct {
	db dbtx
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: pool}
}

func NewSessionRepositoryWithTx(tx dbtx) *SessionRepository {
	return &SessionRepository{db: tx}
}

// Create inserts a session and fills in its assigned id.
func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return r.db.QueryRow(ctx,
		`INSERT INTO sessions (title, created_at) VALUES ($1, $2) RETURNING id`,
		s.Title, s.CreatedAt,
	).Scan(&s.ID)
}

func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRow(ctx,
		`SELECT id, title, created_at FROM sessions WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.Title, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListWithCursor returns sessions newest first.
func (r *SessionRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.SessionPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, title, created_at
			 FROM sessions
			 WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, title, created_at
			 FROM sessions
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanSessionRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &service.SessionPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (r *SessionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&count)
	return count, err
}

// Delete removes a session and, through the cascade, its messages.
// Deleting an absent session is not an error.
func (r *SessionRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (r *SessionRepository) UpdateTitle(ctx context.Context, id int64, title string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE sessions SET title = $1 WHERE id = $2`,
		title, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// ListUntitled returns sessions still carrying the default title, oldest
// first so long-waiting sessions are handled before new ones.
func (r *SessionRepository) ListUntitled(ctx context.Context, limit int) ([]*domain.Session, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, title, created_at
		 FROM sessions
		 WHERE title = $1
		 ORDER BY created_at ASC, id ASC
		 LIMIT $2`,
		domain.DefaultSessionTitle, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessionRows(rows)
}

// AppendMessage inserts a message and fills in its assigned id. A missing
// session surfaces as domain.ErrSessionNotFound.
func (r *SessionRepository) AppendMessage(ctx context.Context, m *domain.Message) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	metadata, err := domain.EncodeMetadata(m.Metadata)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(ctx,
		`INSERT INTO messages (session_id, role, content, metadata, timestamp)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		m.SessionID, string(m.Role), m.Content, metadata, m.Timestamp,
	).Scan(&m.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return domain.ErrSessionNotFound
		}
		return err
	}
	return nil
}

// LoadHistory returns every message of a session in insertion order.
func (r *SessionRepository) LoadHistory(ctx context.Context, sessionID int64) ([]*domain.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, role, content, metadata, timestamp
		 FROM messages
		 WHERE session_id = $1
		 ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		var m domain.Message
		var role string
		var metadata []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &metadata, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		m.Metadata, err = domain.DecodeMetadata(metadata)
		if err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

func scanSessionRows(rows pgx.Rows) ([]*domain.Session, error) {
	var results []*domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.Title, &s.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, &s)
	}
	return results, rows.Err()
}
