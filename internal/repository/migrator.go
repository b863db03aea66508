package repository

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/doctalk/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SchemaVersion is the session-store schema this build expects. The
// migrator raises every database it touches to exactly this version.
const SchemaVersion = 1

// legacyBackupTable holds the pre-versioning message log after adoption.
// It is never dropped automatically.
const legacyBackupTable = "messages_old"

type transform struct {
	version int
	name    string
	apply   func(ctx context.Context, tx pgx.Tx) error
}

// SessionMigrator raises the session store to the current schema version.
// Each transform runs in its own transaction together with the version
// bump, so an interrupted migration leaves either the old state or the
// new one, never something in between. Running against an up-to-date
// store is a no-op.
type SessionMigrator struct {
	pool *pgxpool.Pool
}

func NewSessionMigrator(pool *pgxpool.Pool) *SessionMigrator {
	return &SessionMigrator{pool: pool}
}

// Migrate applies every pending transform in order.
func (m *SessionMigrator) Migrate(ctx context.Context) error {
	if err := m.ensureVersionTable(ctx); err != nil {
		return err
	}

	current, err := m.currentVersion(ctx)
	if err != nil {
		return err
	}

	for _, t := range transforms() {
		if t.version <= current {
			continue
		}
		if err := m.applyTransform(ctx, t); err != nil {
			return fmt.Errorf("session schema transform %d (%s): %w", t.version, t.name, err)
		}
		log.Printf("session store: schema raised to version %d (%s)", t.version, t.name)
	}
	return nil
}

func (m *SessionMigrator) ensureVersionTable(ctx context.Context) error {
	_, err := m.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS session_schema_version (
			version INTEGER NOT NULL
		)`)
	return err
}

func (m *SessionMigrator) currentVersion(ctx context.Context) (int, error) {
	var version int
	err := m.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM session_schema_version`,
	).Scan(&version)
	return version, err
}

func (m *SessionMigrator) applyTransform(ctx context.Context, t transform) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := t.apply(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO session_schema_version (version) VALUES ($1)`, t.version,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func transforms() []transform {
	return []transform{
		{
			version: 1,
			name:    "sessions and per-session messages",
			apply:   createSessionStore,
		},
	}
}

// createSessionStore builds the sessions and messages tables. When a
// pre-versioning message log exists (a messages table without session_id)
// it is adopted: the old table is renamed to messages_old as a backup,
// a "Legacy Session" is created, and every old message is re-inserted
// under it in its original order.
func createSessionStore(ctx context.Context, tx pgx.Tx) error {
	legacy, err := hasLegacyMessageLog(ctx, tx)
	if err != nil {
		return err
	}

	if legacy {
		if err := verifyLegacyColumns(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			fmt.Sprintf(`ALTER TABLE messages RENAME TO %s`, legacyBackupTable),
		); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS sessions (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			session_id BIGINT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
			content TEXT NOT NULL,
			metadata JSONB,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS idx_messages_session_id ON messages(session_id)`,
	); err != nil {
		return err
	}

	if legacy {
		return adoptLegacyMessages(ctx, tx)
	}
	return nil
}

// hasLegacyMessageLog reports whether a messages table from before schema
// versioning exists. Such a table lacks session linkage, metadata support,
// or both.
func hasLegacyMessageLog(ctx context.Context, tx pgx.Tx) (bool, error) {
	var tableExists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = 'messages'
		)`).Scan(&tableExists)
	if err != nil || !tableExists {
		return false, err
	}

	for _, column := range []string{"session_id", "metadata"} {
		var exists bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_schema = current_schema()
				  AND table_name = 'messages' AND column_name = $1
			)`, column).Scan(&exists)
		if err != nil {
			return false, err
		}
		if !exists {
			return true, nil
		}
	}
	return false, nil
}

// verifyLegacyColumns aborts adoption when the old table is missing the
// columns whose data must survive. Losing them silently is worse than
// failing the migration.
func verifyLegacyColumns(ctx context.Context, tx pgx.Tx) error {
	for _, column := range []string{"role", "content"} {
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_schema = current_schema()
				  AND table_name = 'messages' AND column_name = $1
			)`, column).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return domain.NewMigrationIntegrityError(
				fmt.Errorf("legacy messages table is missing column %q", column))
		}
	}
	return nil
}

// adoptLegacyMessages re-homes the backed-up messages under a single
// session named for their origin. Order is preserved by the old table's
// insertion order.
func adoptLegacyMessages(ctx context.Context, tx pgx.Tx) error {
	var sessionID int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO sessions (title) VALUES ($1) RETURNING id`,
		domain.LegacySessionTitle,
	).Scan(&sessionID); err != nil {
		return err
	}

	var hasTimestamp bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = current_schema()
			  AND table_name = $1 AND column_name = 'timestamp'
		)`, legacyBackupTable).Scan(&hasTimestamp); err != nil {
		return err
	}

	var copySQL string
	if hasTimestamp {
		copySQL = fmt.Sprintf(
			`INSERT INTO messages (session_id, role, content, timestamp)
			 SELECT $1, role, content, timestamp FROM %s ORDER BY ctid`,
			legacyBackupTable)
	} else {
		copySQL = fmt.Sprintf(
			`INSERT INTO messages (session_id, role, content)
			 SELECT $1, role, content FROM %s ORDER BY ctid`,
			legacyBackupTable)
	}
	_, err := tx.Exec(ctx, copySQL, sessionID)
	return err
}
