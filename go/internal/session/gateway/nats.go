package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mcdev12/priceguess/go/internal/session/events"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds settings for the NATS transport.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	FrameBuffer   int
}

// DefaultNATSConfig returns default NATS transport settings.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "priceguess",
		Name:          "priceguess-client",
		MaxReconnects: 10,
		ReconnectWait: 2 * time.Second,
		FrameBuffer:   256,
	}
}

// RoomSubject is the wildcard carrying every room's events.
func (c NATSConfig) RoomSubject() string { return c.SubjectPrefix + ".rooms.>" }

// UserSubject carries events addressed to one user.
func (c NATSConfig) UserSubject(subject string) string { return c.SubjectPrefix + ".users." + subject }

// CommandSubject is where a command is published.
func (c NATSConfig) CommandSubject(cmd events.Command) string {
	return c.SubjectPrefix + ".commands." + cmd.Subject()
}

// NATSDialer opens push-channel sessions over NATS, authenticating with
// the bearer credential as the connection token.
type NATSDialer struct {
	config NATSConfig
}

func NewNATSDialer(config NATSConfig) *NATSDialer {
	return &NATSDialer{config: config}
}

func (d *NATSDialer) Dial(ctx context.Context, credential string) (Conn, error) {
	c := &natsConn{
		config: d.config,
		frames: make(chan []byte, d.config.FrameBuffer),
		done:   make(chan struct{}),
	}

	opts := []nats.Option{
		nats.Name(d.config.Name),
		nats.Token(credential),
		nats.MaxReconnects(d.config.MaxReconnects),
		nats.ReconnectWait(d.config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			c.finish(nc.LastError())
		}),
	}

	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	nc, err := nats.Connect(d.config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	c.nc = nc

	subjects := []string{d.config.RoomSubject()}
	if sub := CredentialSubject(credential); sub != "" {
		subjects = append(subjects, d.config.UserSubject(sub))
	}
	for _, subject := range subjects {
		if _, err := nc.Subscribe(subject, c.deliver); err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
	}

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Strs("subjects", subjects).
		Msg("NATS push channel connected")
	return c, nil
}

type natsConn struct {
	config NATSConfig
	nc     *nats.Conn
	frames chan []byte
	done   chan struct{}

	once   sync.Once
	mu     sync.RWMutex
	closed bool
	err    error
}

func (c *natsConn) Frames() <-chan []byte { return c.frames }

func (c *natsConn) Send(cmd events.Command) error {
	data, err := cmd.Encode()
	if err != nil {
		return err
	}
	if c.nc.IsClosed() {
		return ErrNotConnected
	}
	if err := c.nc.Publish(c.config.CommandSubject(cmd), data); err != nil {
		return fmt.Errorf("failed to publish command: %w", err)
	}
	return nil
}

func (c *natsConn) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

func (c *natsConn) Close() error {
	c.finish(nil)
	c.nc.Close()
	return nil
}

func (c *natsConn) deliver(msg *nats.Msg) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.frames <- msg.Data:
	case <-c.done:
	}
}

// finish closes the frame channel once. err is nil for a requested close.
func (c *natsConn) finish(err error) {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		c.closed = true
		c.err = err
		close(c.frames)
		c.mu.Unlock()
	})
}
