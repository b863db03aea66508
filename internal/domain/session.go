package domain

import (
	"fmt"
	"time"
)

// DefaultSessionTitle is assigned when a session is created without an
// explicit title. The title worker later replaces it with a generated one.
const DefaultSessionTitle = "New Chat"

// LegacySessionTitle names the synthetic session that adopts messages from
// a pre-session database during migration.
const LegacySessionTitle = "Legacy Session"

// Session is a named conversation thread. Identifiers are assigned
// monotonically by the store.
type Session struct {
	ID        int64
	Title     string
	CreatedAt time.Time
}

// ValidateSession validates a Session instance.
func ValidateSession(s *Session) error {
	if s == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if s.Title == "" {
		return fmt.Errorf("session title is required")
	}
	return nil
}
