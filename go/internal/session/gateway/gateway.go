package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/priceguess/go/internal/models"
	"github.com/mcdev12/priceguess/go/internal/session/events"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var (
	ErrNotConnected    = errors.New("push channel not connected")
	ErrRateLimited     = errors.New("chat rate limit exceeded")
	ErrSendBufferFull  = errors.New("send buffer full")
	ErrReconnectFailed = errors.New("gave up reconnecting")
)

// Status of the push channel.
type Status string

const (
	// StatusAnonymous means no credential is available; the client runs
	// read-only without a push channel.
	StatusAnonymous    Status = "anonymous"
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
)

// Conn is one live push-channel session.
type Conn interface {
	// Frames yields raw inbound frames and is closed when the session ends.
	Frames() <-chan []byte
	// Send queues cmd without blocking.
	Send(cmd events.Command) error
	// Err reports why the session ended; nil after Close.
	Err() error
	Close() error
}

// Dialer opens push-channel sessions.
type Dialer interface {
	Dial(ctx context.Context, credential string) (Conn, error)
}

// CredentialSource supplies the bearer credential. An empty string means
// logged out.
type CredentialSource interface {
	Credential(ctx context.Context) (string, error)
}

// Dispatcher receives inbound events in arrival order.
type Dispatcher interface {
	Dispatch(ev events.Event)
}

// StatusListener is told about connection status changes.
type StatusListener interface {
	ConnectionStatusChanged(status Status, err error)
}

// StatusListenerFunc adapts a function to StatusListener.
type StatusListenerFunc func(status Status, err error)

func (f StatusListenerFunc) ConnectionStatusChanged(status Status, err error) { f(status, err) }

// Config holds gateway behaviour settings.
type Config struct {
	MaxReconnects int // -1 for unlimited
	ReconnectWait time.Duration
	ChatRate      rate.Limit
	ChatBurst     int
}

// DefaultConfig returns default gateway settings.
func DefaultConfig() Config {
	return Config{
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		ChatRate:      rate.Every(time.Second),
		ChatBurst:     5,
	}
}

// Gateway owns the single push-channel connection.
type Gateway struct {
	dialer     Dialer
	creds      CredentialSource
	dispatcher Dispatcher
	listener   StatusListener
	clock      clockwork.Clock
	config     Config
	chat       *rate.Limiter

	// dialMu serialises connection attempts; sends never take it.
	dialMu sync.Mutex

	mu      sync.Mutex
	status  Status
	conn    Conn
	gen     uint64 // bumped by Disconnect; stale goroutines compare against it
	session uint64
	seqs    map[string]uint64
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a disconnected gateway. listener may be nil.
func New(dialer Dialer, creds CredentialSource, dispatcher Dispatcher, listener StatusListener, clock clockwork.Clock, config Config) *Gateway {
	if listener == nil {
		listener = StatusListenerFunc(func(Status, error) {})
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		dialer:     dialer,
		creds:      creds,
		dispatcher: dispatcher,
		listener:   listener,
		clock:      clock,
		config:     config,
		chat:       rate.NewLimiter(config.ChatRate, config.ChatBurst),
		status:     StatusDisconnected,
		seqs:       make(map[string]uint64),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Status returns the current connection status.
func (g *Gateway) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Connect opens the push channel. Without a credential it does nothing and
// returns nil; the status becomes StatusAnonymous. Connecting while already
// connected is a no-op.
func (g *Gateway) Connect(ctx context.Context) error {
	g.dialMu.Lock()
	defer g.dialMu.Unlock()

	g.mu.Lock()
	if g.conn != nil || g.status == StatusReconnecting {
		g.mu.Unlock()
		return nil
	}
	gen := g.gen
	g.mu.Unlock()

	_, err := g.dial(ctx, gen, StatusDisconnected)
	return err
}

// Disconnect closes the push channel and stops any reconnect loop. Safe to
// call repeatedly.
func (g *Gateway) Disconnect() {
	g.mu.Lock()
	conn := g.conn
	prev := g.status
	g.conn = nil
	g.gen++
	g.cancel()
	g.ctx, g.cancel = context.WithCancel(context.Background())
	if prev == StatusDisconnected {
		g.mu.Unlock()
		return
	}
	g.status = StatusDisconnected
	g.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			log.Debug().Err(err).Msg("error closing push channel")
		}
	}
	log.Info().Msg("push channel disconnected")
	g.listener.ConnectionStatusChanged(StatusDisconnected, nil)
}

// Reconnect forces a fresh connection, e.g. after login.
func (g *Gateway) Reconnect(ctx context.Context) error {
	g.Disconnect()
	return g.Connect(ctx)
}

// JoinRoom emits joinRoom.
func (g *Gateway) JoinRoom(roomID string) error {
	return g.send(events.JoinRoom(roomID))
}

// LeaveRoom emits leaveRoom.
func (g *Gateway) LeaveRoom(roomID string) error {
	return g.send(events.LeaveRoom(roomID))
}

// SubmitGuess emits submitGuess.
func (g *Gateway) SubmitGuess(roomID string, value models.GuessValue) error {
	return g.send(events.SubmitGuess(roomID, value))
}

// SendMessage emits a chat message, subject to the chat rate limit.
func (g *Gateway) SendMessage(roomID, text string) error {
	if !g.chat.AllowN(g.clock.Now(), 1) {
		log.Debug().Str("room_id", roomID).Msg("chat message over rate limit")
		return ErrRateLimited
	}
	return g.send(events.ChatMessage(roomID, text))
}

// send never blocks and never queues: a command issued while the channel is
// down is dropped.
func (g *Gateway) send(cmd events.Command) error {
	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()

	if conn == nil {
		log.Debug().
			Str("command", string(cmd.Type)).
			Str("room_id", cmd.RoomID).
			Msg("dropping command, push channel down")
		return ErrNotConnected
	}
	if err := conn.Send(cmd); err != nil {
		log.Debug().Err(err).Str("command", string(cmd.Type)).Msg("dropping command")
		return fmt.Errorf("failed to send %s: %w", cmd.Type, err)
	}
	return nil
}

// dial makes one connection attempt for generation gen, moving to
// failStatus if it does not succeed. It reports whether the caller should
// keep trying.
func (g *Gateway) dial(ctx context.Context, gen uint64, failStatus Status) (retry bool, err error) {
	credential, err := g.creds.Credential(ctx)
	if err != nil {
		g.setStatus(gen, failStatus, err)
		return true, fmt.Errorf("failed to read credential: %w", err)
	}

	claims, err := inspectCredential(credential, g.clock.Now())
	if err != nil {
		log.Warn().Err(err).Msg("credential unusable, staying anonymous")
		credential = ""
	}
	if credential == "" {
		g.setStatus(gen, StatusAnonymous, nil)
		log.Info().Msg("no credential, push channel not opened")
		return false, nil
	}

	if failStatus != StatusReconnecting {
		g.setStatus(gen, StatusConnecting, nil)
	}
	conn, err := g.dialer.Dial(ctx, credential)
	if err != nil {
		g.setStatus(gen, failStatus, err)
		return true, fmt.Errorf("failed to open push channel: %w", err)
	}

	g.mu.Lock()
	if g.gen != gen {
		g.mu.Unlock()
		conn.Close()
		return false, nil
	}
	g.conn = conn
	g.session++
	session := g.session
	g.seqs = make(map[string]uint64)
	g.status = StatusConnected
	g.mu.Unlock()

	log.Info().
		Str("subject", claims.Subject).
		Uint64("session", session).
		Msg("push channel connected")
	g.listener.ConnectionStatusChanged(StatusConnected, nil)

	go g.run(gen, session, conn)
	return false, nil
}

// run dispatches frames from conn in arrival order until it closes.
func (g *Gateway) run(gen, session uint64, conn Conn) {
	for raw := range conn.Frames() {
		g.handleFrame(gen, session, raw)
	}

	g.mu.Lock()
	if g.gen != gen || g.conn != conn {
		g.mu.Unlock()
		return
	}
	g.conn = nil
	g.status = StatusReconnecting
	ctx := g.ctx
	g.mu.Unlock()

	err := conn.Err()
	log.Warn().Err(err).Uint64("session", session).Msg("push channel dropped")
	g.listener.ConnectionStatusChanged(StatusReconnecting, err)

	g.reconnect(ctx, gen)
}

func (g *Gateway) reconnect(ctx context.Context, gen uint64) {
	max := g.config.MaxReconnects
	for attempt := 1; max < 0 || attempt <= max; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-g.clock.After(g.config.ReconnectWait):
		}

		g.dialMu.Lock()
		retry, err := g.dial(ctx, gen, StatusReconnecting)
		g.dialMu.Unlock()
		if !retry {
			return
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect attempt failed")
	}
	g.setStatus(gen, StatusDisconnected, ErrReconnectFailed)
}

func (g *Gateway) handleFrame(gen, session uint64, raw []byte) {
	frame, err := events.DecodeFrame(raw)
	if err != nil {
		log.Debug().Err(err).Int("bytes", len(raw)).Msg("dropping undecodable frame")
		return
	}

	g.mu.Lock()
	if g.gen != gen {
		g.mu.Unlock()
		return
	}
	seq := frame.Seq
	if last := g.seqs[frame.RoomID]; seq == 0 {
		seq = last + 1
		g.seqs[frame.RoomID] = seq
	} else if seq > last {
		g.seqs[frame.RoomID] = seq
	}
	g.mu.Unlock()

	g.dispatcher.Dispatch(events.Event{
		Session:    session,
		Seq:        seq,
		Type:       frame.Type,
		RoomID:     frame.RoomID,
		Round:      frame.RoundID,
		ReceivedAt: g.clock.Now(),
		Data:       frame.Data,
	})
}

func (g *Gateway) setStatus(gen uint64, status Status, err error) {
	g.mu.Lock()
	if g.gen != gen || (g.status == status && err == nil) {
		g.mu.Unlock()
		return
	}
	g.status = status
	g.mu.Unlock()

	g.listener.ConnectionStatusChanged(status, err)
}
