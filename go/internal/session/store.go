package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/priceguess/go/internal/models"
	"github.com/mcdev12/priceguess/go/internal/session/chat"
	"github.com/mcdev12/priceguess/go/internal/session/events"
	"github.com/mcdev12/priceguess/go/internal/session/gateway"
	"github.com/mcdev12/priceguess/go/internal/session/guess"
	"github.com/mcdev12/priceguess/go/internal/session/presence"
	"github.com/mcdev12/priceguess/go/internal/session/round"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoRoom       = errors.New("not in a room")
	ErrGuessLocked  = errors.New("guessing is closed")
	ErrInvalidGuess = errors.New("invalid guess")
)

// DefaultPendingTimeout is how long an optimistic join or guess waits for
// confirmation before it is rolled back.
const DefaultPendingTimeout = 10 * time.Second

// Config holds store timing settings.
type Config struct {
	PendingTimeout    time.Duration
	CountdownInterval time.Duration
}

// DefaultConfig returns default store settings.
func DefaultConfig() Config {
	return Config{
		PendingTimeout:    DefaultPendingTimeout,
		CountdownInterval: round.CountdownInterval,
	}
}

// Listener receives updates. It runs on the goroutine that caused the
// mutation and must not block.
type Listener func(Update)

type subscriber struct {
	slices map[Slice]bool
	fn     Listener
}

func (s subscriber) wants(u Update) bool {
	if len(s.slices) == 0 {
		return true
	}
	for _, sl := range u.Slices {
		if s.slices[sl] {
			return true
		}
	}
	return false
}

type change struct {
	slices      []Slice
	notice      *Notice
	celebration *guess.Celebration
	mention     *models.ChatMessage
}

func (c *change) touch(slices ...Slice) {
	c.slices = append(c.slices, slices...)
}

func (c *change) empty() bool {
	return len(c.slices) == 0 && c.notice == nil
}

// Store is the single source of truth for one client session. All mutation
// goes through its named reducers; reads go through Snapshot. Inject it
// where needed rather than sharing a package-level instance.
type Store struct {
	clock  clockwork.Clock
	config Config

	mu        sync.Mutex
	closed    bool
	version   uint64
	room      RoomState
	round     *round.Machine
	presence  *presence.Registry
	guesses   *guess.Sequencer
	chat      *chat.Buffer
	conn      ConnectionState
	user      *models.User
	countdown Countdown

	session uint64
	lastSeq map[string]uint64

	ticker     *round.Ticker
	guessTimer clockwork.Timer
	joinTimer  clockwork.Timer

	subMu   sync.RWMutex
	subs    map[int]subscriber
	nextSub int
}

// NewStore creates an empty store in the "no room" state.
func NewStore(clock clockwork.Clock, config Config) *Store {
	return &Store{
		clock:    clock,
		config:   config,
		round:    round.NewMachine(),
		presence: presence.NewRegistry(),
		guesses:  guess.NewSequencer(),
		chat:     chat.NewBuffer(),
		conn:     ConnectionState{Status: gateway.StatusDisconnected},
		lastSeq:  make(map[string]uint64),
		subs:     make(map[int]subscriber),
	}
}

// Subscribe registers fn for updates touching any of slices, or all updates
// when none are given. The returned function unsubscribes.
func (s *Store) Subscribe(fn Listener, slices ...Slice) func() {
	sub := subscriber{fn: fn, slices: make(map[Slice]bool, len(slices))}
	for _, sl := range slices {
		sub.slices[sl] = true
	}

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Snapshot returns an immutable copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Leaderboard returns the presence set ordered by room score.
func (s *Store) Leaderboard() []models.OnlinePlayer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence.Leaderboard()
}

// CanGuess reports whether a guess would currently be accepted locally.
func (s *Store) CanGuess() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canGuessLocked() == nil
}

// Close stops timers and drops all subscribers.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopTickerLocked()
	stopTimer(&s.guessTimer)
	stopTimer(&s.joinTimer)
	s.mu.Unlock()

	s.subMu.Lock()
	s.subs = make(map[int]subscriber)
	s.subMu.Unlock()
}

// Dispatch implements gateway.Dispatcher.
func (s *Store) Dispatch(ev events.Event) {
	s.Apply(ev)
}

// Apply reduces one inbound event into the state. Unknown event types are
// ignored, malformed payloads leave the state untouched, and events that are
// out of sequence, for another room or for a superseded round are dropped.
func (s *Store) Apply(ev events.Event) {
	payload, err := events.ParsePayload(&ev)
	if err != nil {
		log.Debug().
			Err(err).
			Str("event_type", string(ev.Type)).
			Uint64("seq", ev.Seq).
			Msg("dropping malformed event")
		return
	}
	if payload == nil {
		log.Debug().Str("event_type", string(ev.Type)).Msg("ignoring unknown event type")
		return
	}

	s.mutate(func(c *change) {
		if !s.acceptLocked(ev) {
			return
		}
		s.reduceLocked(ev, payload, c)
	})
}

// BeginJoin optimistically enters roomID, resetting every per-room slice in
// one step, and returns the room that was left (if any). Joining the current
// room again changes nothing.
func (s *Store) BeginJoin(roomID string) (previous string) {
	s.mutate(func(c *change) {
		previous = s.room.RoomID
		if roomID == previous {
			previous = ""
			return
		}
		s.resetRoomLocked(RoomState{RoomID: roomID, JoinPending: true}, c)
		// the server numbers a fresh membership from the start
		delete(s.lastSeq, roomID)
		s.armJoinTimerLocked(roomID)
	})
	return previous
}

// ResumeJoin marks the current room as joining again after a new push-channel
// session opened, and returns it, or "" without a room. Round, guess and chat
// state are kept until the server's gameState resyncs them; the join rolls
// back like any other if it is not confirmed in time.
func (s *Store) ResumeJoin() (roomID string) {
	s.mutate(func(c *change) {
		roomID = s.room.RoomID
		if roomID == "" {
			return
		}
		s.room.JoinPending = true
		s.armJoinTimerLocked(roomID)
		c.touch(SliceRoom)
	})
	return roomID
}

// Leave optimistically clears the room and returns the room left, or "".
func (s *Store) Leave() (roomID string) {
	s.mutate(func(c *change) {
		roomID = s.room.RoomID
		if roomID == "" {
			return
		}
		s.resetRoomLocked(RoomState{}, c)
	})
	return roomID
}

// BeginGuess records an outgoing guess and returns the room to send it to.
// Pending feedback is cleared at once; the guess rolls back if no result
// arrives within the pending timeout.
func (s *Store) BeginGuess() (roomID string, err error) {
	s.mutate(func(c *change) {
		if err = s.canGuessLocked(); err != nil {
			return
		}
		roomID = s.room.RoomID
		s.guesses.Begin(s.round.Token())
		s.armGuessTimerLocked()
		c.touch(SliceGuesses)
	})
	return roomID, err
}

// SetUser records the viewer. nil means anonymous.
func (s *Store) SetUser(u *models.User) {
	s.mutate(func(c *change) {
		if u != nil {
			cp := *u
			u = &cp
		}
		s.user = u
		c.touch(SliceUser)
	})
}

// SetSettings records room settings fetched from the room API.
func (s *Store) SetSettings(settings models.RoomSettings) {
	s.mutate(func(c *change) {
		s.round.SetSettings(settings)
		c.touch(SliceRound)
	})
}

// PushNotice delivers a one-shot notice to subscribers.
func (s *Store) PushNotice(n Notice) {
	s.mutate(func(c *change) {
		c.notice = &n
	})
}

// ConnectionStatusChanged implements gateway.StatusListener.
func (s *Store) ConnectionStatusChanged(status gateway.Status, err error) {
	s.mutate(func(c *change) {
		prev := s.conn.Status
		s.conn = ConnectionState{Status: status}
		if err != nil {
			s.conn.Error = err.Error()
		}
		c.touch(SliceConnection)

		if status == gateway.StatusReconnecting && prev != gateway.StatusReconnecting {
			c.notice = &Notice{
				Kind:    NoticeBanner,
				Code:    CodeConnectionLost,
				Message: "Connection lost, reconnecting",
			}
		}
	})
}

// mutate runs fn under the lock and publishes the result after releasing it.
func (s *Store) mutate(fn func(c *change)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	var c change
	fn(&c)
	if c.empty() {
		s.mu.Unlock()
		return
	}
	if c.notice != nil {
		c.touch(SliceNotices)
	}
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(c, snap)
}

func (s *Store) publish(c change, snap Snapshot) {
	u := Update{
		Slices:      c.slices,
		Snapshot:    snap,
		Notice:      c.notice,
		Celebration: c.celebration,
		Mention:     c.mention,
	}

	s.subMu.RLock()
	targets := make([]Listener, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.wants(u) {
			targets = append(targets, sub.fn)
		}
	}
	s.subMu.RUnlock()

	for _, fn := range targets {
		fn(u)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:    s.version,
		Room:       s.room,
		Round:      s.round.State(),
		Countdown:  s.countdownLocked(s.clock.Now()),
		Presence:   s.presence.Players(),
		Guesses:    s.guesses.State(),
		Chat:       s.chat.Messages(),
		Connection: s.conn,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// acceptLocked enforces per-room ordering: within one gateway session an
// event whose sequence number is not above the last applied one is dropped.
// Sessions only move forward; a late frame from a superseded session is
// dropped.
func (s *Store) acceptLocked(ev events.Event) bool {
	if ev.Session < s.session {
		log.Debug().
			Str("event_type", string(ev.Type)).
			Uint64("session", ev.Session).
			Uint64("current_session", s.session).
			Msg("dropping event from superseded session")
		return false
	}
	if ev.Session > s.session {
		s.session = ev.Session
		s.lastSeq = make(map[string]uint64)
	}
	if ev.Seq == 0 {
		return true
	}
	if last := s.lastSeq[ev.RoomID]; ev.Seq <= last {
		log.Debug().
			Str("event_type", string(ev.Type)).
			Str("room_id", ev.RoomID).
			Uint64("seq", ev.Seq).
			Uint64("last_seq", last).
			Msg("dropping out-of-order event")
		return false
	}
	s.lastSeq[ev.RoomID] = ev.Seq
	return true
}

func (s *Store) canGuessLocked() error {
	if s.room.RoomID == "" {
		return ErrNoRoom
	}
	st := s.round.State()
	if st.Status != models.RoomStatusPlaying || st.Listing == nil || st.ShowResults {
		return ErrGuessLocked
	}
	if !s.guesses.CanGuess(st.Settings.MaxGuessesPerRound) {
		return ErrGuessLocked
	}
	return nil
}

// resetRoomLocked atomically replaces the room and clears every per-room
// slice.
func (s *Store) resetRoomLocked(room RoomState, c *change) {
	s.stopTickerLocked()
	stopTimer(&s.guessTimer)
	stopTimer(&s.joinTimer)

	s.room = room
	s.round.Clear()
	s.presence.Reset()
	s.guesses.Reset()
	s.chat.Reset()
	s.countdown = Countdown{}

	c.touch(SliceRoom, SliceRound, SliceCountdown, SlicePresence, SliceGuesses, SliceChat)
}

func (s *Store) countdownLocked(now time.Time) Countdown {
	st := s.round.State()
	return Countdown{
		Round:        st.RoundRemaining(now),
		Intermission: st.IntermissionRemaining(now),
	}
}

// restartTickerLocked replaces the countdown ticker; called on every round
// change.
func (s *Store) restartTickerLocked() {
	s.stopTickerLocked()
	s.countdown = s.countdownLocked(s.clock.Now())
	s.ticker = round.NewTicker(s.clock, s.config.CountdownInterval, s.tick)
}

func (s *Store) stopTickerLocked() {
	s.ticker.Stop()
	s.ticker = nil
}

// tick reads the store clock rather than the tick time; ticks may be
// delivered late and only the current value matters.
func (s *Store) tick(time.Time) {
	s.mutate(func(c *change) {
		cd := s.countdownLocked(s.clock.Now())
		if cd != s.countdown {
			s.countdown = cd
			c.touch(SliceCountdown)
		}
		if cd == (Countdown{}) {
			s.stopTickerLocked()
		}
	})
}

func (s *Store) armGuessTimerLocked() {
	stopTimer(&s.guessTimer)
	token := s.round.Token()

	var t clockwork.Timer
	t = s.clock.AfterFunc(s.config.PendingTimeout, func() {
		s.mutate(func(c *change) {
			if s.guessTimer != t {
				return
			}
			s.guessTimer = nil
			if !s.guesses.State().Pending || s.round.Token() != token {
				return
			}
			log.Info().Str("round", token).Msg("guess not confirmed, rolling back")
			s.guesses.Rollback()
			c.touch(SliceGuesses)
			c.notice = &Notice{
				Kind:    NoticeToast,
				Code:    CodeGuessTimeout,
				Message: "Your guess was not confirmed, please try again",
				RetryAt: s.clock.Now(),
			}
		})
	})
	s.guessTimer = t
}

func (s *Store) armJoinTimerLocked(roomID string) {
	stopTimer(&s.joinTimer)

	var t clockwork.Timer
	t = s.clock.AfterFunc(s.config.PendingTimeout, func() {
		s.mutate(func(c *change) {
			if s.joinTimer != t {
				return
			}
			s.joinTimer = nil
			if !s.room.JoinPending || s.room.RoomID != roomID {
				return
			}
			log.Info().Str("room_id", roomID).Msg("join not confirmed, rolling back")
			s.resetRoomLocked(RoomState{}, c)
			c.notice = &Notice{
				Kind:    NoticeToast,
				Code:    CodeJoinTimeout,
				Message: "Could not join the room, please try again",
				RetryAt: s.clock.Now(),
			}
		})
	})
	s.joinTimer = t
}

// confirmJoinLocked ends the pending join window.
func (s *Store) confirmJoinLocked(c *change) {
	if !s.room.JoinPending {
		return
	}
	s.room.JoinPending = false
	stopTimer(&s.joinTimer)
	c.touch(SliceRoom)
}

func stopTimer(t *clockwork.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// newChatMessage converts a payload, filling the id and timestamp when the
// server leaves them out.
func newChatMessage(p events.ChatMessagePayload, receivedAt time.Time) models.ChatMessage {
	msg := models.ChatMessage{
		ID:         p.ID,
		UserID:     p.UserID,
		Username:   p.Username,
		Message:    p.Message,
		Timestamp:  events.Millis(p.Timestamp),
		Mentions:   p.Mentions,
		Role:       p.Role,
		IsRejected: p.IsRejected,
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = receivedAt
	}
	return msg
}
