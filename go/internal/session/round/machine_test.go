package round

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/priceguess/go/internal/models"
	"github.com/mcdev12/priceguess/go/internal/session/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func listing(id string) models.Listing {
	return models.Listing{ID: id, Title: "listing " + id, Kind: models.ListingKindCar, Details: models.CarDetails{Make: "Fiat"}}
}

func TestStartRound_ResetsResults(t *testing.T) {
	m := NewMachine()
	m.StartRound(events.RoundStartPayload{Listing: listing("A"), Duration: 30000}, "", t0)
	require.True(t, m.EndRound(events.RoundEndPayload{CorrectPrice: decimal.NewFromInt(100)}, ""))

	token := m.StartRound(events.RoundStartPayload{Listing: listing("B"), Duration: 30000}, "", t0.Add(time.Minute))

	s := m.State()
	assert.Equal(t, models.RoomStatusPlaying, s.Status)
	assert.Equal(t, "B", token)
	assert.False(t, s.ShowResults)
	assert.Nil(t, s.CorrectPrice)
	assert.Empty(t, s.Scores)
	assert.Equal(t, 2, s.Number)
	assert.Equal(t, t0.Add(time.Minute), s.StartedAt)
}

func TestStartRound_TokenPrecedence(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, "env", m.StartRound(events.RoundStartPayload{Listing: listing("A"), Duration: 1, RoundID: "payload"}, "env", t0))
	assert.Equal(t, "payload", m.StartRound(events.RoundStartPayload{Listing: listing("A"), Duration: 1, RoundID: "payload"}, "", t0))
	assert.Equal(t, "A", m.StartRound(events.RoundStartPayload{Listing: listing("A"), Duration: 1}, "", t0))
	assert.NotEmpty(t, m.StartRound(events.RoundStartPayload{Duration: 1}, "", t0))
}

func TestEndRound_StaleTokenDiscarded(t *testing.T) {
	m := NewMachine()
	m.StartRound(events.RoundStartPayload{Listing: listing("R0"), Duration: 30000}, "R0", t0)
	m.StartRound(events.RoundStartPayload{Listing: listing("R1"), Duration: 30000}, "R1", t0.Add(time.Second))

	applied := m.EndRound(events.RoundEndPayload{CorrectPrice: decimal.NewFromInt(5), Scores: []models.Score{{PlayerID: "p1"}}}, "R0")

	assert.False(t, applied)
	s := m.State()
	assert.False(t, s.ShowResults)
	assert.Nil(t, s.CorrectPrice)
	assert.Empty(t, s.Scores)
}

func TestEndRound_CurrentToken(t *testing.T) {
	m := NewMachine()
	m.StartRound(events.RoundStartPayload{Listing: listing("R1"), Duration: 30000}, "R1", t0)

	require.True(t, m.EndRound(events.RoundEndPayload{CorrectPrice: decimal.NewFromInt(5), RoundID: "R1"}, ""))
	s := m.State()
	assert.True(t, s.ShowResults)
	require.NotNil(t, s.CorrectPrice)
	assert.True(t, decimal.NewFromInt(5).Equal(*s.CorrectPrice))
}

func TestApplyGameState_FullOverwrite(t *testing.T) {
	m := NewMachine()
	m.SetSettings(models.RoomSettings{MaxGuessesPerRound: 3})
	m.StartRound(events.RoundStartPayload{Listing: listing("B"), Duration: 30000}, "", t0)
	m.EndRound(events.RoundEndPayload{CorrectPrice: decimal.NewFromInt(9)}, "")

	m.ApplyGameState(events.GameStatePayload{Status: models.RoomStatusIntermission}, "")

	s := m.State()
	assert.Equal(t, State{Status: models.RoomStatusIntermission, Settings: models.RoomSettings{MaxGuessesPerRound: 3}}, s)
}

func TestStartIntermission_KeepsStatus(t *testing.T) {
	m := NewMachine()
	m.StartRound(events.RoundStartPayload{Listing: listing("A"), Duration: 30000}, "", t0)
	m.StartIntermission(events.IntermissionStartPayload{Duration: 10000}, t0.Add(30*time.Second))

	s := m.State()
	assert.Equal(t, models.RoomStatusPlaying, s.Status)
	assert.Equal(t, 10, s.IntermissionRemaining(t0.Add(30*time.Second)))
	assert.Equal(t, 1, s.IntermissionRemaining(t0.Add(39*time.Second+time.Millisecond)))
	assert.Equal(t, 0, s.IntermissionRemaining(t0.Add(41*time.Second)))
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 30, Remaining(t0, 30*time.Second, t0))
	assert.Equal(t, 30, Remaining(t0, 30*time.Second, t0.Add(1)))
	assert.Equal(t, 29, Remaining(t0, 30*time.Second, t0.Add(time.Second)))
	assert.Equal(t, 0, Remaining(t0, 30*time.Second, t0.Add(time.Hour)))
	assert.Equal(t, 0, Remaining(time.Time{}, 30*time.Second, t0))
}

func TestClear(t *testing.T) {
	m := NewMachine()
	m.StartRound(events.RoundStartPayload{Listing: listing("A"), Duration: 30000}, "", t0)
	m.Clear()
	assert.Equal(t, State{Status: models.RoomStatusWaiting}, m.State())
	assert.Empty(t, m.Token())
}

func TestTicker(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var ticks atomic.Int32

	tk := NewTicker(clock, CountdownInterval, func(time.Time) { ticks.Add(1) })
	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))

	clock.Advance(CountdownInterval)
	assert.Eventually(t, func() bool { return ticks.Load() == 1 }, time.Second, time.Millisecond)

	tk.Stop()
	tk.Stop()
	clock.Advance(CountdownInterval * 5)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), ticks.Load())
}
