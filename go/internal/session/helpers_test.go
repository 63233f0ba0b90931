package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/priceguess/go/internal/models"
	"github.com/mcdev12/priceguess/go/internal/session/events"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	s := NewStore(clock, DefaultConfig())
	t.Cleanup(s.Close)
	return s, clock
}

func ev(typ events.EventType, data string) events.Event {
	e := events.Event{Session: 1, Type: typ, ReceivedAt: t0}
	if data != "" {
		e.Data = json.RawMessage(data)
	}
	return e
}

func seqEv(typ events.EventType, seq uint64, data string) events.Event {
	e := ev(typ, data)
	e.Seq = seq
	return e
}

func listingJSON(id string) string {
	return `{"id":"` + id + `","title":"Listing ` + id + `","type":"car","images":["a.jpg"],"details":{"make":"Fiat","model":"Egea","year":2021}}`
}

func roundStart(id string) string {
	return `{"listing":` + listingJSON(id) + `,"duration":30000,"startTime":` + itoa(t0.UnixMilli()) + `}`
}

func itoa(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// joined puts the store in roomID with the join already confirmed.
func joined(t *testing.T, s *Store, roomID string) {
	t.Helper()
	s.BeginJoin(roomID)
	s.Apply(ev(events.EventTypeOnlinePlayers, `{"players":[]}`))
	require.False(t, s.Snapshot().Room.JoinPending)
}

type updates struct {
	mu  sync.Mutex
	all []Update
}

func record(s *Store, slices ...Slice) *updates {
	u := &updates{}
	s.Subscribe(func(up Update) {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.all = append(u.all, up)
	}, slices...)
	return u
}

func (u *updates) notices() []Notice {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []Notice
	for _, up := range u.all {
		if up.Notice != nil {
			out = append(out, *up.Notice)
		}
	}
	return out
}

func (u *updates) last() Update {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.all[len(u.all)-1]
}

func (u *updates) len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.all)
}

type fakeGateway struct {
	mu      sync.Mutex
	calls   []string
	guesses []models.GuessValue
	sendErr error
	chatErr error
}

func (g *fakeGateway) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func (g *fakeGateway) Connect(context.Context) error   { g.record("connect"); return nil }
func (g *fakeGateway) Disconnect()                     { g.record("disconnect") }
func (g *fakeGateway) Reconnect(context.Context) error { g.record("reconnect"); return nil }

func (g *fakeGateway) JoinRoom(roomID string) error {
	g.record("join:" + roomID)
	return g.sendErr
}

func (g *fakeGateway) LeaveRoom(roomID string) error {
	g.record("leave:" + roomID)
	return g.sendErr
}

func (g *fakeGateway) SubmitGuess(roomID string, value models.GuessValue) error {
	g.record("guess:" + roomID)
	g.mu.Lock()
	g.guesses = append(g.guesses, value)
	g.mu.Unlock()
	return g.sendErr
}

func (g *fakeGateway) SendMessage(roomID, text string) error {
	g.record("chat:" + roomID + ":" + text)
	if g.chatErr != nil {
		return g.chatErr
	}
	return g.sendErr
}

func (g *fakeGateway) log() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}
