package guess

import (
	"fmt"

	"github.com/mcdev12/priceguess/go/internal/models"
)

// RecentLimit is the size of the live "recent guesses" feed.
const RecentLimit = 5

// State is the guess/feedback slice of one round.
type State struct {
	Feedback         models.Direction     `json:"feedback,omitempty"`
	HasCorrectGuess  bool                 `json:"has_correct_guess"`
	Pending          bool                 `json:"pending"`
	GuessCount       int                  `json:"guess_count"`
	Recent           []models.GuessResult `json:"recent"`
	CorrectGuesses   []models.GuessResult `json:"correct_guesses"`
	IncorrectGuesses []models.GuessResult `json:"incorrect_guesses"`
}

// Celebration is a one-shot request to animate a correct guess.
type Celebration struct {
	Key    string
	Result models.GuessResult
}

// Sequencer tracks the local player's guesses and the broadcast feed for the
// current round. It is not safe for concurrent use.
type Sequencer struct {
	state State
	// round the pending guess was sent in
	round string

	// position of every recorded broadcast since the last reset, newest last
	positions []uint64
	appended  uint64
	animated  map[string]bool
}

// NewSequencer creates an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{animated: make(map[string]bool)}
}

// State returns a copy of the current guess state.
func (s *Sequencer) State() State {
	out := s.state
	out.Recent = append([]models.GuessResult(nil), s.state.Recent...)
	out.CorrectGuesses = append([]models.GuessResult(nil), s.state.CorrectGuesses...)
	out.IncorrectGuesses = append([]models.GuessResult(nil), s.state.IncorrectGuesses...)
	return out
}

// CanGuess reports whether the UI should accept another guess. maxGuesses of
// zero means unlimited. The server enforces the real limit. Only one guess is
// in flight at a time, so a result always belongs to the guess that is
// pending.
func (s *Sequencer) CanGuess(maxGuesses int) bool {
	if s.state.HasCorrectGuess || s.state.Pending {
		return false
	}
	return maxGuesses <= 0 || s.state.GuessCount < maxGuesses
}

// Begin records an outgoing guess for round: pending feedback is cleared
// immediately.
func (s *Sequencer) Begin(round string) {
	s.state.Feedback = ""
	s.state.Pending = true
	s.state.GuessCount++
	s.round = round
}

// ApplyResult applies feedback for our own guess sent in round. It reports
// false, changing nothing, when no guess is pending or the pending guess was
// sent in another round. A correct guess locks further guesses until Reset.
func (s *Sequencer) ApplyResult(round string, d models.Direction) bool {
	if !s.state.Pending || s.round != round {
		return false
	}
	s.state.Feedback = d
	s.state.Pending = false
	if d == models.DirectionCorrect {
		s.state.HasCorrectGuess = true
	}
	return true
}

// Rollback reverts an unconfirmed guess.
func (s *Sequencer) Rollback() {
	if !s.state.Pending {
		return
	}
	s.state.Pending = false
	s.state.Feedback = ""
	if s.state.GuessCount > 0 {
		s.state.GuessCount--
	}
}

// Record appends a broadcast guess outcome for any player.
func (s *Sequencer) Record(r models.GuessResult) {
	s.appended++

	s.state.Recent = append([]models.GuessResult{r}, s.state.Recent...)
	s.positions = append([]uint64{s.appended}, s.positions...)
	if len(s.state.Recent) > RecentLimit {
		s.state.Recent = s.state.Recent[:RecentLimit]
		s.positions = s.positions[:RecentLimit]
	}

	if r.IsCorrect {
		s.state.CorrectGuesses = append(s.state.CorrectGuesses, r)
	} else {
		s.state.IncorrectGuesses = append(s.state.IncorrectGuesses, r)
	}
}

// TakeCelebration returns the latest feed entry if it is a correct guess that
// has not been animated yet. Keys use the entry's stream position, so list
// churn never re-triggers an animation.
func (s *Sequencer) TakeCelebration() (Celebration, bool) {
	if len(s.state.Recent) == 0 || !s.state.Recent[0].IsCorrect {
		return Celebration{}, false
	}
	latest := s.state.Recent[0]
	key := celebrationKey(latest, s.positions[0])
	if s.animated[key] {
		return Celebration{}, false
	}
	s.animated[key] = true
	return Celebration{Key: key, Result: latest}, true
}

// Reset clears all per-round state.
func (s *Sequencer) Reset() {
	s.state = State{}
	s.round = ""
	s.positions = nil
	s.appended = 0
	s.animated = make(map[string]bool)
}

func celebrationKey(r models.GuessResult, position uint64) string {
	return fmt.Sprintf("%s|%t|%d", r.PlayerID, r.IsCorrect, position)
}
