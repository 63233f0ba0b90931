package models

import "github.com/shopspring/decimal"

// OnlinePlayer is one room membership. PlayerID is unique per membership,
// UserID per account: a user reconnecting gets a new PlayerID.
type OnlinePlayer struct {
	PlayerID     string `json:"playerId"`
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	RoomScore    int    `json:"roomScore"`
	TotalScore   int    `json:"totalScore"`
	IsPremium    bool   `json:"isPremium"`
	PremiumLevel int    `json:"premiumLevel"`
}

// GuessResult is a broadcast outcome of some player's guess.
type GuessResult struct {
	UserID    string `json:"userId"`
	PlayerID  string `json:"playerId"`
	Username  string `json:"username"`
	IsCorrect bool   `json:"isCorrect"`
}

// Score is one row of the end-of-round score list.
type Score struct {
	PlayerID   string           `json:"playerId"`
	UserID     string           `json:"userId"`
	Username   string           `json:"username"`
	Score      int              `json:"score"`
	RoundScore int              `json:"roundScore"`
	Guess      *decimal.Decimal `json:"guess,omitempty"`
}

// User is the authenticated account as returned by the current-user API.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	IsPremium    bool   `json:"isPremium"`
	PremiumLevel int    `json:"premiumLevel"`
	TotalScore   int    `json:"totalScore"`
}

// LeaderboardEntry is a global ranking row.
type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	UserID     string `json:"userId"`
	Username   string `json:"username"`
	TotalScore int    `json:"totalScore"`
	IsPremium  bool   `json:"isPremium"`
}
