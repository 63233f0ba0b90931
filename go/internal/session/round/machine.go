package round

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/priceguess/go/internal/models"
	"github.com/mcdev12/priceguess/go/internal/session/events"
	"github.com/rs/zerolog/log"
)

// Machine tracks the round lifecycle of one room. It is not safe for
// concurrent use; the session store serialises access.
type Machine struct {
	state State
}

// NewMachine creates a machine in the waiting state.
func NewMachine() *Machine {
	return &Machine{state: State{Status: models.RoomStatusWaiting}}
}

// State returns a copy of the current round state.
func (m *Machine) State() State {
	return m.state.clone()
}

// Token returns the identity of the current round.
func (m *Machine) Token() string {
	return m.state.Token
}

// IsStale reports whether an event tagged with token refers to a round other
// than the current one. Untagged events are never stale.
func (m *Machine) IsStale(token string) bool {
	return token != "" && m.state.Token != "" && token != m.state.Token
}

// ApplyGameState hard-sets the machine from an authoritative snapshot.
// Nothing from the previous state survives except the room settings when the
// snapshot omits them.
func (m *Machine) ApplyGameState(p events.GameStatePayload, token string) {
	settings := m.state.Settings
	if p.Settings != nil {
		settings = *p.Settings
	}

	if token == "" {
		token = p.RoundID
	}
	if token == "" && p.Listing != nil {
		token = p.Listing.ID
	}

	m.state = State{
		Status:               p.Status,
		Listing:              p.Listing,
		Token:                token,
		StartedAt:            events.Millis(p.RoundStartTime),
		Duration:             events.Duration(p.RoundDuration),
		IntermissionStart:    events.Millis(p.IntermissionStartTime),
		IntermissionDuration: events.Duration(p.IntermissionDuration),
		Settings:             settings,
	}

	log.Debug().
		Str("status", string(p.Status)).
		Str("round", token).
		Msg("round state resynchronised")
}

// StartRound moves to playing with a fresh round identity and returns it.
// Results of the previous round are cleared.
func (m *Machine) StartRound(p events.RoundStartPayload, token string, receivedAt time.Time) string {
	if token == "" {
		token = p.RoundID
	}
	if token == "" {
		token = p.Listing.ID
	}
	if token == "" {
		token = uuid.NewString()
	}

	startedAt := events.Millis(p.StartTime)
	if startedAt.IsZero() {
		startedAt = receivedAt
	}

	number := p.RoundNumber
	if number == 0 {
		number = m.state.Number + 1
	}

	listing := p.Listing
	m.state = State{
		Status:    models.RoomStatusPlaying,
		Listing:   &listing,
		Token:     token,
		Number:    number,
		StartedAt: startedAt,
		Duration:  events.Duration(p.Duration),
		Settings:  m.state.Settings,
	}

	log.Debug().
		Str("round", token).
		Str("listing_id", listing.ID).
		Int("number", number).
		Msg("round started")
	return token
}

// StartIntermission records the intermission window. Status is left alone;
// it changes on the next roundStart or gameState.
func (m *Machine) StartIntermission(p events.IntermissionStartPayload, receivedAt time.Time) {
	start := events.Millis(p.StartTime)
	if start.IsZero() {
		start = receivedAt
	}
	m.state.IntermissionStart = start
	m.state.IntermissionDuration = events.Duration(p.Duration)
}

// EndRound shows the results overlay. It returns false and changes nothing
// when token names a round other than the current one.
func (m *Machine) EndRound(p events.RoundEndPayload, token string) bool {
	if token == "" {
		token = p.RoundID
	}
	if m.IsStale(token) {
		log.Debug().
			Str("round", token).
			Str("current_round", m.state.Token).
			Msg("discarding stale roundEnd")
		return false
	}

	price := p.CorrectPrice
	m.state.ShowResults = true
	m.state.CorrectPrice = &price
	m.state.Scores = append([]models.Score(nil), p.Scores...)
	return true
}

// SetSettings records the room settings, e.g. from the room lookup API.
func (m *Machine) SetSettings(s models.RoomSettings) {
	m.state.Settings = s
}

// Clear returns the machine to its initial state (no room).
func (m *Machine) Clear() {
	m.state = State{Status: models.RoomStatusWaiting}
}
