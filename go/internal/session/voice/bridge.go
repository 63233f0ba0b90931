package voice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// LocalIdentity is the speaking-detector key for the local microphone.
const LocalIdentity = "local"

var ErrNotConnected = errors.New("voice not connected")

// Transport is the external real-time media library.
type Transport interface {
	Connect(ctx context.Context, url, token string) error
	Disconnect() error
	SetMicrophoneEnabled(enabled bool) error
	SetParticipantMuted(identity string, muted bool) error
}

// TokenSource issues voice room credentials.
type TokenSource interface {
	VoiceToken(ctx context.Context, roomID string) (url, token string, err error)
}

// MuteStore persists per-participant mute choices across sessions.
type MuteStore interface {
	MutedParticipants(ctx context.Context) (map[string]bool, error)
	SetParticipantMuted(ctx context.Context, identity string, muted bool) error
}

// Status of the voice connection.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// Participant is a remote voice participant as seen locally.
type Participant struct {
	Identity string `json:"identity"`
	Muted    bool   `json:"muted"`
	Speaking bool   `json:"speaking"`
}

// State is a snapshot of the bridge.
type State struct {
	Status        Status        `json:"status"`
	RoomID        string        `json:"roomId,omitempty"`
	MicMuted      bool          `json:"micMuted"`
	LocalSpeaking bool          `json:"localSpeaking"`
	RoomMuted     bool          `json:"roomMuted"`
	Participants  []Participant `json:"participants"`
}

// Bridge keeps mute and speaking bookkeeping on top of a Transport.
type Bridge struct {
	transport Transport
	tokens    TokenSource
	mutes     MuteStore
	speaking  *SpeakingDetector
	onChange  func(State)

	mu           sync.Mutex
	status       Status
	roomID       string
	micMuted     bool
	roomMuted    bool
	saved        map[string]bool
	participants map[string]*Participant
}

// NewBridge creates a disconnected bridge. onChange may be nil.
func NewBridge(transport Transport, tokens TokenSource, mutes MuteStore, clock clockwork.Clock, onChange func(State)) *Bridge {
	b := &Bridge{
		transport:    transport,
		tokens:       tokens,
		mutes:        mutes,
		onChange:     onChange,
		status:       StatusDisconnected,
		saved:        make(map[string]bool),
		participants: make(map[string]*Participant),
	}
	b.speaking = NewSpeakingDetector(clock, b.speakingChanged)
	return b
}

// State returns a snapshot.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

// Connect joins the voice room for roomID. Calling it while already
// connected to roomID does nothing; a different room is left first.
func (b *Bridge) Connect(ctx context.Context, roomID string) error {
	b.mu.Lock()
	if b.status != StatusDisconnected && b.roomID == roomID {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	if err := b.Disconnect(); err != nil {
		return err
	}

	b.mu.Lock()
	b.status = StatusConnecting
	b.roomID = roomID
	b.mu.Unlock()
	b.notify()

	if err := b.connect(ctx, roomID); err != nil {
		b.mu.Lock()
		b.status = StatusDisconnected
		b.roomID = ""
		b.participants = make(map[string]*Participant)
		b.mu.Unlock()
		b.notify()
		return err
	}

	b.mu.Lock()
	b.status = StatusConnected
	b.mu.Unlock()
	b.notify()

	log.Info().Str("room_id", roomID).Msg("voice connected")
	return nil
}

func (b *Bridge) connect(ctx context.Context, roomID string) error {
	url, token, err := b.tokens.VoiceToken(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to get voice token: %w", err)
	}

	saved, err := b.mutes.MutedParticipants(ctx)
	if err != nil {
		// saved mutes are a convenience, connect anyway
		log.Warn().Err(err).Msg("failed to load muted participants")
		saved = map[string]bool{}
	}

	// the transport reports participants already in the room while it
	// connects, so their saved mutes must be known first
	b.mu.Lock()
	b.saved = saved
	b.mu.Unlock()

	if err := b.transport.Connect(ctx, url, token); err != nil {
		return fmt.Errorf("failed to connect voice transport: %w", err)
	}

	b.mu.Lock()
	enabled := !b.micMuted
	b.mu.Unlock()

	if err := b.transport.SetMicrophoneEnabled(enabled); err != nil {
		log.Warn().Err(err).Msg("failed to apply microphone state")
	}
	return nil
}

// Disconnect leaves voice. Safe to call when already disconnected.
func (b *Bridge) Disconnect() error {
	b.mu.Lock()
	if b.status == StatusDisconnected {
		b.mu.Unlock()
		return nil
	}
	roomID := b.roomID
	b.status = StatusDisconnected
	b.roomID = ""
	b.participants = make(map[string]*Participant)
	b.mu.Unlock()

	b.speaking.Reset()
	err := b.transport.Disconnect()
	b.notify()

	if err != nil {
		return fmt.Errorf("failed to disconnect voice transport: %w", err)
	}
	log.Info().Str("room_id", roomID).Msg("voice disconnected")
	return nil
}

// ToggleMute flips the local microphone and returns the new muted flag.
func (b *Bridge) ToggleMute() (bool, error) {
	b.mu.Lock()
	if b.status != StatusConnected {
		b.mu.Unlock()
		return false, ErrNotConnected
	}
	muted := !b.micMuted
	if err := b.transport.SetMicrophoneEnabled(!muted); err != nil {
		b.mu.Unlock()
		return !muted, fmt.Errorf("failed to toggle microphone: %w", err)
	}
	b.micMuted = muted
	b.mu.Unlock()

	b.notify()
	return muted, nil
}

// ToggleRoomMute mutes or unmutes every remote participant. While room mute
// is on, participants joining later arrive muted. Turning it off restores
// each participant's saved preference.
func (b *Bridge) ToggleRoomMute() bool {
	b.mu.Lock()
	b.roomMuted = !b.roomMuted
	for id, p := range b.participants {
		b.applyMuteLocked(p, b.roomMuted || b.saved[id])
	}
	on := b.roomMuted
	b.mu.Unlock()

	b.notify()
	return on
}

// ToggleParticipantMute flips the mute preference for identity, persists it
// and returns the new value.
func (b *Bridge) ToggleParticipantMute(ctx context.Context, identity string) (bool, error) {
	b.mu.Lock()
	muted := !b.saved[identity]
	if p, ok := b.participants[identity]; ok {
		muted = !p.Muted
	}
	b.mu.Unlock()

	if err := b.mutes.SetParticipantMuted(ctx, identity, muted); err != nil {
		return !muted, fmt.Errorf("failed to persist mute for %s: %w", identity, err)
	}

	b.mu.Lock()
	if muted {
		b.saved[identity] = true
	} else {
		delete(b.saved, identity)
	}
	if p, ok := b.participants[identity]; ok {
		b.applyMuteLocked(p, muted)
	}
	b.mu.Unlock()

	b.notify()
	return muted, nil
}

// ParticipantJoined is called by the transport when a remote participant
// connects, including those already present while the bridge is still
// connecting. The saved preference or the room mute is applied immediately.
func (b *Bridge) ParticipantJoined(identity string) {
	b.mu.Lock()
	if b.status == StatusDisconnected {
		b.mu.Unlock()
		return
	}
	p, ok := b.participants[identity]
	if !ok {
		p = &Participant{Identity: identity}
		b.participants[identity] = p
	}
	b.applyMuteLocked(p, b.roomMuted || b.saved[identity])
	muted := p.Muted
	b.mu.Unlock()

	log.Debug().Str("identity", identity).Bool("muted", muted).Msg("voice participant joined")
	b.notify()
}

// ParticipantLeft is called by the transport when a remote participant
// disconnects.
func (b *Bridge) ParticipantLeft(identity string) {
	b.mu.Lock()
	_, ok := b.participants[identity]
	delete(b.participants, identity)
	b.mu.Unlock()

	if !ok {
		return
	}
	b.speaking.Forget(identity)
	b.notify()
}

// AudioLevel feeds a level sample (0-255) for identity, or LocalIdentity
// for the microphone.
func (b *Bridge) AudioLevel(identity string, level uint8) {
	b.speaking.Observe(identity, level)
}

// applyMuteLocked must be called with mu held.
func (b *Bridge) applyMuteLocked(p *Participant, muted bool) {
	if err := b.transport.SetParticipantMuted(p.Identity, muted); err != nil {
		log.Warn().Err(err).Str("identity", p.Identity).Msg("failed to apply participant mute")
		return
	}
	p.Muted = muted
}

func (b *Bridge) speakingChanged(identity string, speaking bool) {
	b.mu.Lock()
	p, ok := b.participants[identity]
	if ok {
		p.Speaking = speaking
	}
	b.mu.Unlock()

	if ok || identity == LocalIdentity {
		b.notify()
	}
}

func (b *Bridge) stateLocked() State {
	s := State{
		Status:        b.status,
		RoomID:        b.roomID,
		MicMuted:      b.micMuted,
		LocalSpeaking: b.speaking.Speaking(LocalIdentity),
		RoomMuted:     b.roomMuted,
		Participants:  make([]Participant, 0, len(b.participants)),
	}
	for _, p := range b.participants {
		s.Participants = append(s.Participants, *p)
	}
	sort.Slice(s.Participants, func(i, j int) bool {
		return s.Participants[i].Identity < s.Participants[j].Identity
	})
	return s
}

func (b *Bridge) notify() {
	if b.onChange == nil {
		return
	}
	b.onChange(b.State())
}
