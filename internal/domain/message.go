package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValidRole checks whether a Role is one of the known values.
func IsValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is a (role, text) pair passed to the rewriter and answerer as
// conversation history. It carries none of the persistence attributes.
type Turn struct {
	Role    Role
	Content string
}

// MessageMetadata is the structured payload attached to a message.
// Currently the only variant is a list of source citations. A nil
// *MessageMetadata on a Message means metadata was never recorded (legacy
// rows), which is distinct from a recorded empty citation list.
type MessageMetadata struct {
	Sources []SourceRef `json:"sources"`
}

// Message is one turn in a session. Messages are append-only: never
// mutated or reordered after creation, and totally ordered within a
// session by timestamp.
type Message struct {
	ID        int64
	SessionID int64
	Role      Role
	Content   string
	Metadata  *MessageMetadata
	Timestamp time.Time
}

// Turn projects the message onto its (role, text) pair.
func (m *Message) Turn() Turn {
	return Turn{Role: m.Role, Content: m.Content}
}

// ValidateMessage validates a Message prior to persistence.
func ValidateMessage(m *Message) error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if m.SessionID <= 0 {
		return fmt.Errorf("message must reference a session")
	}
	if !IsValidRole(m.Role) {
		return fmt.Errorf("message role is invalid: %s", m.Role)
	}
	if m.Content == "" {
		return fmt.Errorf("message content is required")
	}
	return nil
}

// EncodeMetadata serializes metadata for storage. Nil metadata encodes to
// nil so the stored column stays NULL and legacy rows remain
// distinguishable from recorded-but-empty citation lists.
func EncodeMetadata(md *MessageMetadata) ([]byte, error) {
	if md == nil {
		return nil, nil
	}
	if md.Sources == nil {
		md.Sources = []SourceRef{}
	}
	return json.Marshal(md)
}

// DecodeMetadata deserializes stored metadata. Empty input yields nil.
func DecodeMetadata(raw []byte) (*MessageMetadata, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var md MessageMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, fmt.Errorf("failed to decode message metadata: %w", err)
	}
	if md.Sources == nil {
		md.Sources = []SourceRef{}
	}
	return &md, nil
}
