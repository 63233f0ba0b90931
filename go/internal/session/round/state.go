package round

import (
	"math"
	"time"

	"github.com/mcdev12/priceguess/go/internal/models"
	"github.com/shopspring/decimal"
)

// State represents the round lifecycle of the current room
type State struct {
	Status               models.RoomStatus   `json:"status"`
	Listing              *models.Listing     `json:"listing,omitempty"`
	Token                string              `json:"token,omitempty"`
	Number               int                 `json:"number"`
	StartedAt            time.Time           `json:"started_at"`
	Duration             time.Duration       `json:"duration"`
	IntermissionStart    time.Time           `json:"intermission_start"`
	IntermissionDuration time.Duration       `json:"intermission_duration"`
	ShowResults          bool                `json:"show_results"`
	CorrectPrice         *decimal.Decimal    `json:"correct_price,omitempty"`
	Scores               []models.Score      `json:"scores,omitempty"`
	Settings             models.RoomSettings `json:"settings"`
}

// EndsAt returns the absolute end of the round, zero if no round is timed.
func (s *State) EndsAt() time.Time {
	if s.StartedAt.IsZero() {
		return time.Time{}
	}
	return s.StartedAt.Add(s.Duration)
}

// RoundRemaining returns the whole seconds left in the round.
func (s *State) RoundRemaining(now time.Time) int {
	return Remaining(s.StartedAt, s.Duration, now)
}

// IntermissionRemaining returns the whole seconds left in the intermission.
func (s *State) IntermissionRemaining(now time.Time) int {
	return Remaining(s.IntermissionStart, s.IntermissionDuration, now)
}

// Remaining computes max(0, ceil((start+duration-now)/1s)). It only depends on
// absolute timestamps so it stays correct across suspension.
func Remaining(start time.Time, duration time.Duration, now time.Time) int {
	if start.IsZero() {
		return 0
	}
	left := start.Add(duration).Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}

func (s State) clone() State {
	out := s
	if s.Listing != nil {
		l := *s.Listing
		l.Images = append([]string(nil), s.Listing.Images...)
		out.Listing = &l
	}
	if s.CorrectPrice != nil {
		p := *s.CorrectPrice
		out.CorrectPrice = &p
	}
	out.Scores = append([]models.Score(nil), s.Scores...)
	return out
}
