package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/priceguess/go/internal/session/events"
	"github.com/rs/zerolog/log"
)

// WebsocketConfig holds settings for the websocket transport.
type WebsocketConfig struct {
	URL              string
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
	MaxMessageSize   int64
	SendBuffer       int
	FrameBuffer      int
}

// DefaultWebsocketConfig returns default websocket settings for url.
func DefaultWebsocketConfig(url string) WebsocketConfig {
	return WebsocketConfig{
		URL:              url,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		MaxMessageSize:   64 * 1024, // gameState carries full listings
		SendBuffer:       64,
		FrameBuffer:      256,
	}
}

// WebsocketDialer opens push-channel sessions over a websocket.
type WebsocketDialer struct {
	config WebsocketConfig
	dialer *websocket.Dialer
}

func NewWebsocketDialer(config WebsocketConfig) *WebsocketDialer {
	return &WebsocketDialer{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
		},
	}
}

// Dial connects with the credential both as a bearer header and as a token
// query parameter, for servers that cannot read upgrade headers.
func (d *WebsocketDialer) Dial(ctx context.Context, credential string) (Conn, error) {
	u, err := url.Parse(d.config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket url: %w", err)
	}
	q := u.Query()
	q.Set("token", credential)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+credential)

	ws, resp, err := d.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	c := &wsConn{
		ws:     ws,
		config: d.config,
		frames: make(chan []byte, d.config.FrameBuffer),
		send:   make(chan []byte, d.config.SendBuffer),
		done:   make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()

	log.Debug().Str("host", u.Host).Msg("websocket connected")
	return c, nil
}

type wsConn struct {
	ws     *websocket.Conn
	config WebsocketConfig
	frames chan []byte
	send   chan []byte
	done   chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
	closed    bool
}

func (c *wsConn) Frames() <-chan []byte { return c.frames }

func (c *wsConn) Send(cmd events.Command) error {
	data, err := cmd.Encode()
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *wsConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close ends the session. The write pump sends a close frame on its way out.
func (c *wsConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.shutdown()
	return nil
}

func (c *wsConn) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *wsConn) fail(err error) {
	c.mu.Lock()
	if !c.closed && c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	c.shutdown()
}

// writePump sends queued commands and keeps the connection alive with pings.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Msg("failed to write command to websocket")
				c.fail(err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Msg("failed to send ping")
				c.fail(err)
				return
			}
		}
	}
}

// readPump forwards inbound frames until the connection ends, then closes
// the frame channel.
func (c *wsConn) readPump() {
	defer func() {
		close(c.frames)
		c.shutdown()
	}()

	c.ws.SetReadLimit(c.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Err(err).Msg("unexpected websocket close error")
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				err = errors.New("server closed the push channel")
			}
			c.fail(err)
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		select {
		case c.frames <- message:
		case <-c.done:
			return
		}
	}
}
