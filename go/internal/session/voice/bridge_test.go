package voice

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/priceguess/go/internal/prefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect(ctx context.Context, url, token string) error {
	return m.Called(ctx, url, token).Error(0)
}

func (m *MockTransport) Disconnect() error {
	return m.Called().Error(0)
}

func (m *MockTransport) SetMicrophoneEnabled(enabled bool) error {
	return m.Called(enabled).Error(0)
}

func (m *MockTransport) SetParticipantMuted(identity string, muted bool) error {
	return m.Called(identity, muted).Error(0)
}

type MockTokens struct {
	mock.Mock
}

func (m *MockTokens) VoiceToken(ctx context.Context, roomID string) (string, string, error) {
	args := m.Called(ctx, roomID)
	return args.String(0), args.String(1), args.Error(2)
}

func newTestBridge(t *testing.T) (*Bridge, *MockTransport, *prefs.Prefs) {
	t.Helper()
	tr := &MockTransport{}
	tokens := &MockTokens{}
	p := prefs.New(prefs.NewMemoryStore())

	tokens.On("VoiceToken", mock.Anything, "room-1").Return("wss://voice", "vt", nil)
	tr.On("Connect", mock.Anything, "wss://voice", "vt").Return(nil)
	tr.On("Disconnect").Return(nil)
	tr.On("SetMicrophoneEnabled", mock.Anything).Return(nil)
	tr.On("SetParticipantMuted", mock.Anything, mock.Anything).Return(nil)

	return NewBridge(tr, tokens, p, clockwork.NewFakeClock(), nil), tr, p
}

func participant(s State, identity string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.Identity == identity {
			return p, true
		}
	}
	return Participant{}, false
}

func TestConnectDisconnect_Idempotent(t *testing.T) {
	ctx := context.Background()
	b, tr, _ := newTestBridge(t)

	require.NoError(t, b.Disconnect())
	require.NoError(t, b.Connect(ctx, "room-1"))
	require.NoError(t, b.Connect(ctx, "room-1"))
	assert.Equal(t, StatusConnected, b.State().Status)

	require.NoError(t, b.Disconnect())
	require.NoError(t, b.Disconnect())
	assert.Equal(t, StatusDisconnected, b.State().Status)

	tr.AssertNumberOfCalls(t, "Connect", 1)
	tr.AssertNumberOfCalls(t, "Disconnect", 1)
}

func TestConnect_TokenFailure(t *testing.T) {
	tr := &MockTransport{}
	tokens := &MockTokens{}
	tokens.On("VoiceToken", mock.Anything, "room-1").Return("", "", errors.New("unauthorized"))

	b := NewBridge(tr, tokens, prefs.New(prefs.NewMemoryStore()), clockwork.NewFakeClock(), nil)
	err := b.Connect(context.Background(), "room-1")

	assert.Error(t, err)
	assert.Equal(t, StatusDisconnected, b.State().Status)
	tr.AssertNotCalled(t, "Connect", mock.Anything, mock.Anything, mock.Anything)
}

func TestToggleMute(t *testing.T) {
	b, tr, _ := newTestBridge(t)

	_, err := b.ToggleMute()
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, b.Connect(context.Background(), "room-1"))
	muted, err := b.ToggleMute()
	require.NoError(t, err)
	assert.True(t, muted)
	assert.True(t, b.State().MicMuted)
	tr.AssertCalled(t, "SetMicrophoneEnabled", false)
}

func TestRoomMute_StickyForLaterJoins(t *testing.T) {
	b, tr, _ := newTestBridge(t)
	require.NoError(t, b.Connect(context.Background(), "room-1"))

	b.ParticipantJoined("P1")
	require.True(t, b.ToggleRoomMute())

	p1, _ := participant(b.State(), "P1")
	assert.True(t, p1.Muted)

	b.ParticipantJoined("P2")
	p2, ok := participant(b.State(), "P2")
	require.True(t, ok)
	assert.True(t, p2.Muted, "joined while room mute is active")
	tr.AssertCalled(t, "SetParticipantMuted", "P2", true)

	assert.False(t, b.ToggleRoomMute())
	p2, _ = participant(b.State(), "P2")
	assert.False(t, p2.Muted)
}

func TestParticipantMute_PersistsAcrossSessions(t *testing.T) {
	ctx := context.Background()
	b, _, p := newTestBridge(t)
	require.NoError(t, b.Connect(ctx, "room-1"))

	b.ParticipantJoined("carol")
	muted, err := b.ToggleParticipantMute(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, muted)

	saved, err := p.MutedParticipants(ctx)
	require.NoError(t, err)
	assert.True(t, saved["carol"])

	require.NoError(t, b.Disconnect())
	require.NoError(t, b.Connect(ctx, "room-1"))
	b.ParticipantJoined("carol")

	got, _ := participant(b.State(), "carol")
	assert.True(t, got.Muted, "saved mute reapplied on reconnect")

	// room unmute falls back to the saved preference
	b.ToggleRoomMute()
	b.ToggleRoomMute()
	got, _ = participant(b.State(), "carol")
	assert.True(t, got.Muted)
}

func TestParticipantsReportedDuringConnect(t *testing.T) {
	ctx := context.Background()
	tr := &MockTransport{}
	tokens := &MockTokens{}
	p := prefs.New(prefs.NewMemoryStore())
	require.NoError(t, p.SetParticipantMuted(ctx, "alice", true))

	b := NewBridge(tr, tokens, p, clockwork.NewFakeClock(), nil)
	tokens.On("VoiceToken", mock.Anything, "room-1").Return("wss://voice", "vt", nil)
	tr.On("Connect", mock.Anything, "wss://voice", "vt").Return(nil).Run(func(mock.Arguments) {
		// already in the room when we arrive
		b.ParticipantJoined("alice")
		b.ParticipantJoined("bob")
	})
	tr.On("SetMicrophoneEnabled", mock.Anything).Return(nil)
	tr.On("SetParticipantMuted", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, b.Connect(ctx, "room-1"))

	st := b.State()
	require.Len(t, st.Participants, 2)
	alice, _ := participant(st, "alice")
	assert.True(t, alice.Muted, "saved mute applied to a participant present at connect")
	bob, _ := participant(st, "bob")
	assert.False(t, bob.Muted)
	tr.AssertCalled(t, "SetParticipantMuted", "alice", true)
}

func TestParticipantJoinedIgnoredWhileDisconnected(t *testing.T) {
	b, tr, _ := newTestBridge(t)
	b.ParticipantJoined("P1")
	assert.Empty(t, b.State().Participants)
	tr.AssertNotCalled(t, "SetParticipantMuted", mock.Anything, mock.Anything)
}

func TestFailedConnectForgetsParticipants(t *testing.T) {
	tr := &MockTransport{}
	tokens := &MockTokens{}
	b := NewBridge(tr, tokens, prefs.New(prefs.NewMemoryStore()), clockwork.NewFakeClock(), nil)
	tokens.On("VoiceToken", mock.Anything, "room-1").Return("wss://voice", "vt", nil)
	tr.On("Connect", mock.Anything, "wss://voice", "vt").Return(errors.New("ice failed")).Run(func(mock.Arguments) {
		b.ParticipantJoined("alice")
	})
	tr.On("SetParticipantMuted", mock.Anything, mock.Anything).Return(nil)

	assert.Error(t, b.Connect(context.Background(), "room-1"))
	st := b.State()
	assert.Equal(t, StatusDisconnected, st.Status)
	assert.Empty(t, st.Participants)
}

func TestParticipantLeft(t *testing.T) {
	b, _, _ := newTestBridge(t)
	require.NoError(t, b.Connect(context.Background(), "room-1"))

	b.ParticipantJoined("P1")
	b.ParticipantLeft("P1")
	b.ParticipantLeft("P1")
	assert.Empty(t, b.State().Participants)
}

func TestSpeakingDetector_Debounce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var changes atomic.Int32
	d := NewSpeakingDetector(clock, func(string, bool) { changes.Add(1) })

	d.Observe("P1", 80)
	assert.True(t, d.Speaking("P1"))

	d.Observe("P1", 5)
	assert.True(t, d.Speaking("P1"), "held after the level drops")

	clock.Advance(SpeakingHold / 2)
	d.Observe("P1", 90)
	clock.Advance(SpeakingHold)
	assert.True(t, d.Speaking("P1"), "loud sample cancels the release")

	d.Observe("P1", 0)
	d.Observe("P1", 0)
	clock.Advance(SpeakingHold)
	assert.Eventually(t, func() bool { return changes.Load() == 2 }, time.Second, time.Millisecond)
	assert.False(t, d.Speaking("P1"))
}

func TestSpeakingDetector_BelowThresholdNeverSpeaks(t *testing.T) {
	d := NewSpeakingDetector(clockwork.NewFakeClock(), func(string, bool) {})
	d.Observe("P1", SpeakingThreshold-1)
	assert.False(t, d.Speaking("P1"))
}
