package events

import (
	"time"

	"github.com/mcdev12/priceguess/go/internal/models"
	"github.com/shopspring/decimal"
)

// Payloads of server-pushed events. Times are Unix milliseconds and
// durations milliseconds, matching the push channel.

// GameStatePayload is the authoritative room snapshot sent on (re)join.
type GameStatePayload struct {
	Status                models.RoomStatus    `json:"status"`
	Listing               *models.Listing      `json:"listing"`
	RoundStartTime        int64                `json:"roundStartTime"`
	RoundDuration         int64                `json:"roundDuration"`
	RoundID               string               `json:"roundId,omitempty"`
	IntermissionStartTime int64                `json:"intermissionStartTime,omitempty"`
	IntermissionDuration  int64                `json:"intermissionDuration,omitempty"`
	Settings              *models.RoomSettings `json:"settings,omitempty"`
}

// IntermissionStartPayload announces the pause between rounds.
type IntermissionStartPayload struct {
	Duration  int64 `json:"duration"`
	StartTime int64 `json:"startTime,omitempty"`
}

// OnlinePlayersPayload replaces the presence set.
type OnlinePlayersPayload struct {
	Players []models.OnlinePlayer `json:"players"`
}

// RoundStartPayload opens a new round.
type RoundStartPayload struct {
	Listing     models.Listing `json:"listing"`
	Duration    int64          `json:"duration"`
	StartTime   int64          `json:"startTime,omitempty"`
	RoundID     string         `json:"roundId,omitempty"`
	RoundNumber int            `json:"roundNumber,omitempty"`
}

// RoundEndPayload closes the round with the answer and scores.
type RoundEndPayload struct {
	CorrectPrice decimal.Decimal `json:"correctPrice"`
	Scores       []models.Score  `json:"scores"`
	RoundID      string          `json:"roundId,omitempty"`
}

// GuessResultPayload is the feedback for the local player's own guess.
type GuessResultPayload struct {
	Direction models.Direction `json:"direction"`
	RoundID   string           `json:"roundId,omitempty"`
}

// GuessBroadcastPayload is sent to everyone when any player guesses.
type GuessBroadcastPayload struct {
	UserID   string `json:"userId"`
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
	RoundID  string `json:"roundId,omitempty"`
}

// ChatMessagePayload is an inbound chat line.
type ChatMessagePayload struct {
	ID         string           `json:"id,omitempty"`
	UserID     string           `json:"userId"`
	Username   string           `json:"username"`
	Message    string           `json:"message"`
	Timestamp  int64            `json:"timestamp,omitempty"`
	Mentions   []models.Mention `json:"mentions,omitempty"`
	Role       string           `json:"role,omitempty"`
	IsRejected bool             `json:"isRejected,omitempty"`
}

// PlayerPresencePayload is used for both playerJoined and playerLeft.
type PlayerPresencePayload struct {
	UserID       string `json:"userId"`
	PlayerID     string `json:"playerId"`
	Username     string `json:"username"`
	RoomScore    *int   `json:"roomScore,omitempty"`
	TotalScore   int    `json:"totalScore,omitempty"`
	IsPremium    bool   `json:"isPremium,omitempty"`
	PremiumLevel int    `json:"premiumLevel,omitempty"`
}

// Player converts the payload into a presence entry.
func (p PlayerPresencePayload) Player() models.OnlinePlayer {
	player := models.OnlinePlayer{
		PlayerID:     p.PlayerID,
		UserID:       p.UserID,
		Username:     p.Username,
		TotalScore:   p.TotalScore,
		IsPremium:    p.IsPremium,
		PremiumLevel: p.PremiumLevel,
	}
	if p.RoomScore != nil {
		player.RoomScore = *p.RoomScore
	}
	return player
}

// ErrorPayload is a generic server-side error notice.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GuessRejectedPayload is sent when the server declines a guess.
type GuessRejectedPayload struct {
	Reason string `json:"reason"`
}

// RoomFullPayload is sent when a join cannot be honoured.
type RoomFullPayload struct {
	RetryAfterMs int64 `json:"retryAfterMs,omitempty"`
}

// BannedPayload is sent to a player removed from the room.
type BannedPayload struct {
	Minutes int    `json:"minutes"`
	Reason  string `json:"reason,omitempty"`
}

// Millis converts a Unix millisecond timestamp, zero staying zero.
func Millis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Duration converts milliseconds to a duration.
func Duration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
