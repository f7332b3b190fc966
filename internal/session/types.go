// Package session persists chat sessions and their conversation turns.
//
// A session belongs to one tenant and is created lazily on the first chat
// query. Turns are append-only; history is read as a bounded recent window.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether the role is one the store accepts.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Session is one visitor conversation with a tenant's chat widget.
type Session struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Token     string
	ClientIP  string
	UserAgent string
	Active    bool
	CreatedAt time.Time
	EndedAt   *time.Time
}

// ClientInfo carries request attribution recorded on new sessions.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// TurnMetadata is stored alongside assistant turns.
type TurnMetadata struct {
	// Sources are the page URLs the answer was grounded on.
	Sources []string `json:"sources,omitempty"`

	// ContextChunks is how many retrieved chunks backed the answer.
	ContextChunks int `json:"contextChunks,omitempty"`
}

// Turn is a single message within a session. Seq totally orders turns
// within their session.
type Turn struct {
	ID        uuid.UUID
	Seq       int64
	SessionID uuid.UUID
	TenantID  uuid.UUID
	Role      Role
	Content   string
	Metadata  TurnMetadata
	CreatedAt time.Time
}
