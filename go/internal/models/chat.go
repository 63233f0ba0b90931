package models

import "time"

// Chat roles as sent by the server.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
	RoleSystem    = "system"
)

// Mention is an @username span inside a chat message. Indices are
// [start, end) offsets in UTF-16 code units, as produced by the server.
type Mention struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Indices  [2]int `json:"indices"`
}

// Start returns the first index of the span.
func (m Mention) Start() int { return m.Indices[0] }

// End returns the exclusive end index of the span.
func (m Mention) End() int { return m.Indices[1] }

// ChatMessage is one entry of the room chat log.
type ChatMessage struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Username   string    `json:"username"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	Mentions   []Mention `json:"mentions,omitempty"`
	Role       string    `json:"role,omitempty"`
	IsRejected bool      `json:"isRejected,omitempty"`
}

// CanModerate reports whether a chat role may issue moderation commands.
func CanModerate(role string) bool {
	return role == RoleModerator || role == RoleAdmin
}
