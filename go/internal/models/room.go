package models

import "time"

// RoomStatus is the phase of the room as reported by the server.
type RoomStatus string

const (
	RoomStatusWaiting      RoomStatus = "waiting"
	RoomStatusPlaying      RoomStatus = "playing"
	RoomStatusIntermission RoomStatus = "intermission"
	RoomStatusFinished     RoomStatus = "finished"
)

// Valid reports whether s is one of the known statuses.
func (s RoomStatus) Valid() bool {
	switch s {
	case RoomStatusWaiting, RoomStatusPlaying, RoomStatusIntermission, RoomStatusFinished:
		return true
	}
	return false
}

// RoomSettings are the per-room game settings chosen at creation time.
type RoomSettings struct {
	MaxGuessesPerRound int `json:"maxGuessesPerRound"`
	RoundDurationMs    int `json:"roundDuration"`
	TotalRounds        int `json:"totalRounds"`
	MaxPlayers         int `json:"maxPlayers"`
}

// RoundDuration returns the configured round duration.
func (s RoomSettings) RoundDuration() time.Duration {
	return time.Duration(s.RoundDurationMs) * time.Millisecond
}

// Room is the lobby-level description of a room returned by the room API.
type Room struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	CategoryID string       `json:"categoryId"`
	Status     RoomStatus   `json:"status"`
	Players    int          `json:"players"`
	IsPrivate  bool         `json:"isPrivate"`
	Settings   RoomSettings `json:"settings"`
}

// Category groups rooms by listing kind.
type Category struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Kind  ListingKind `json:"type"`
	Rooms int         `json:"activeRooms"`
}
