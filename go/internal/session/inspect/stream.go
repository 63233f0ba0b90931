package inspect

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/priceguess/go/internal/models"
	"github.com/mcdev12/priceguess/go/internal/session"
	"github.com/mcdev12/priceguess/go/internal/session/guess"
	"github.com/rs/zerolog/log"
)

// Message is one frame sent to a stream client.
type Message struct {
	Type        string              `json:"type"`
	Slices      []session.Slice     `json:"slices,omitempty"`
	Snapshot    *session.Snapshot   `json:"snapshot,omitempty"`
	Notice      *session.Notice     `json:"notice,omitempty"`
	Celebration *guess.Celebration  `json:"celebration,omitempty"`
	Mention     *models.ChatMessage `json:"mention,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// Message types.
const (
	MessageSnapshot = "snapshot"
	MessageUpdate   = "update"
	MessageError    = "error"
)

// Request is a command sent by a stream client.
type Request struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId,omitempty"`
	Text   string `json:"text,omitempty"`
}

var errCommandsDisabled = errors.New("commands are disabled")

// Stream pushes session updates to websocket clients and accepts commands
// from them.
type Stream struct {
	src      Source
	cmds     Commands
	config   Config
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*streamConn]bool
}

type streamConn struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	closed bool
}

// NewStream creates a stream handler.
func NewStream(src Source, cmds Commands, config Config) *Stream {
	return &Stream{
		src:    src,
		cmds:   cmds,
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*streamConn]bool),
	}
}

// RegisterRoutes registers the websocket route.
func (s *Stream) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/session", s.HandleConnection)
}

// Len returns the number of open stream connections.
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// HandleConnection handles GET /ws/session?slices=chat,round. Without a
// slices filter every update is streamed.
func (s *Stream) HandleConnection(w http.ResponseWriter, r *http.Request) {
	slices, err := parseSlices(r.URL.Query().Get("slices"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade inspect connection")
		return
	}

	c := &streamConn{
		id:   uuid.NewString(),
		conn: ws,
		send: make(chan []byte, s.config.SendBuffer),
	}
	s.register(c)

	// the initial snapshot goes first so that updates apply on top of it
	snap := s.src.Snapshot()
	s.enqueue(c, Message{Type: MessageSnapshot, Snapshot: &snap})
	unsubscribe := s.src.Subscribe(func(u session.Update) {
		s.enqueue(c, Message{
			Type:        MessageUpdate,
			Slices:      u.Slices,
			Snapshot:    &u.Snapshot,
			Notice:      u.Notice,
			Celebration: u.Celebration,
			Mention:     u.Mention,
		})
	}, slices...)

	log.Info().Str("connection_id", c.id).Int("slices", len(slices)).Msg("inspect stream opened")

	go s.writePump(c)
	s.readPump(c)

	unsubscribe()
	s.unregister(c)
	log.Info().Str("connection_id", c.id).Msg("inspect stream closed")
}

func (s *Stream) register(c *streamConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c] = true
}

func (s *Stream) unregister(c *streamConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.conns[c] {
		return
	}
	delete(s.conns, c)
	c.closed = true
	close(c.send)
}

// enqueue never blocks the store; a client that falls behind is dropped.
func (s *Stream) enqueue(c *streamConn, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("failed to marshal inspect message")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Warn().Str("connection_id", c.id).Msg("inspect send buffer full, closing connection")
		delete(s.conns, c)
		c.closed = true
		close(c.send)
	}
}

func (s *Stream) writePump(c *streamConn) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("failed to write inspect message")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Stream) readPump(c *streamConn) {
	c.conn.SetReadLimit(s.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("unexpected inspect close")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		if err := s.handleRequest(data); err != nil {
			s.enqueue(c, Message{Type: MessageError, Error: err.Error()})
		}
	}
}

func (s *Stream) handleRequest(data []byte) error {
	if s.cmds == nil {
		return errCommandsDisabled
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	switch req.Type {
	case "join":
		return s.cmds.JoinRoom(req.RoomID)
	case "leave":
		return s.cmds.LeaveRoom()
	case "guess":
		return s.cmds.SubmitGuess(req.Text)
	case "chat":
		return s.cmds.SendMessage(req.Text)
	default:
		return fmt.Errorf("unknown request type %q", req.Type)
	}
}

func parseSlices(raw string) ([]session.Slice, error) {
	if raw == "" {
		return nil, nil
	}

	known := map[session.Slice]bool{
		session.SliceRoom: true, session.SliceRound: true, session.SliceCountdown: true,
		session.SlicePresence: true, session.SliceGuesses: true, session.SliceChat: true,
		session.SliceNotices: true, session.SliceConnection: true, session.SliceUser: true,
	}

	var out []session.Slice
	for _, part := range strings.Split(raw, ",") {
		sl := session.Slice(strings.TrimSpace(part))
		if !known[sl] {
			return nil, fmt.Errorf("unknown slice %q", sl)
		}
		out = append(out, sl)
	}
	return out, nil
}
