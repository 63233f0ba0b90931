package session

import (
	"time"

	"github.com/mcdev12/priceguess/go/internal/models"
	"github.com/mcdev12/priceguess/go/internal/session/gateway"
	"github.com/mcdev12/priceguess/go/internal/session/guess"
	"github.com/mcdev12/priceguess/go/internal/session/round"
)

// Slice names one independently observable part of the session state.
type Slice string

const (
	SliceRoom       Slice = "room"
	SliceRound      Slice = "round"
	SliceCountdown  Slice = "countdown"
	SlicePresence   Slice = "presence"
	SliceGuesses    Slice = "guesses"
	SliceChat       Slice = "chat"
	SliceNotices    Slice = "notices"
	SliceConnection Slice = "connection"
	SliceUser       Slice = "user"
)

// RoomState identifies the active room. An empty RoomID is the "no room"
// state.
type RoomState struct {
	RoomID      string `json:"roomId,omitempty"`
	JoinPending bool   `json:"joinPending"`
}

// Countdown holds whole seconds left, recomputed from absolute timestamps.
type Countdown struct {
	Round        int `json:"round"`
	Intermission int `json:"intermission"`
}

// ConnectionState mirrors the gateway status.
type ConnectionState struct {
	Status gateway.Status `json:"status"`
	Error  string         `json:"error,omitempty"`
}

// Snapshot is an immutable copy of the whole session state. Version grows
// with every mutation, so a subscriber can discard an older snapshot that
// reaches it late.
type Snapshot struct {
	Version    uint64                `json:"version"`
	Room       RoomState             `json:"room"`
	Round      round.State           `json:"round"`
	Countdown  Countdown             `json:"countdown"`
	Presence   []models.OnlinePlayer `json:"presence"`
	Guesses    guess.State           `json:"guesses"`
	Chat       []models.ChatMessage  `json:"chat"`
	Connection ConnectionState       `json:"connection"`
	User       *models.User          `json:"user,omitempty"`
}

// NoticeKind picks how a notice is presented.
type NoticeKind string

const (
	NoticeToast  NoticeKind = "toast"  // transient, dismissible
	NoticeBanner NoticeKind = "banner" // non-blocking, e.g. connection loss
	NoticeModal  NoticeKind = "modal"  // blocking, with retry after RetryAt
)

// Notice codes.
const (
	CodeValidation     = "validation"
	CodeServerError    = "server_error"
	CodeGuessRejected  = "guess_rejected"
	CodeGuessTimeout   = "guess_timeout"
	CodeJoinTimeout    = "join_timeout"
	CodeRoomFull       = "room_full"
	CodeBanned         = "banned"
	CodeConnectionLost = "connection_lost"
	CodeRateLimited    = "rate_limited"
)

// Notice is a one-shot user-visible message. It is delivered to subscribers
// once and never stored in the snapshot.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Code    string     `json:"code"`
	Message string     `json:"message"`
	RetryAt time.Time  `json:"retryAt,omitempty"`
}

// Update is what a subscriber receives after a mutation.
type Update struct {
	Slices   []Slice
	Snapshot Snapshot
	// One-shot signals, set only on the update that produced them.
	Notice      *Notice
	Celebration *guess.Celebration
	Mention     *models.ChatMessage
}

// Has reports whether the update touched slice.
func (u Update) Has(slice Slice) bool {
	for _, s := range u.Slices {
		if s == slice {
			return true
		}
	}
	return false
}
