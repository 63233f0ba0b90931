// Package inspect exposes a running session over HTTP so that out-of-process
// UIs can render it and drive it.
package inspect

import (
	"net/http"
	"time"

	"github.com/mcdev12/priceguess/go/internal/models"
	"github.com/mcdev12/priceguess/go/internal/session"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Source is the read side of a session store.
type Source interface {
	Snapshot() session.Snapshot
	Leaderboard() []models.OnlinePlayer
	Subscribe(fn session.Listener, slices ...session.Slice) func()
}

// Commands is the write side of a session; nil disables inbound commands on
// the stream.
type Commands interface {
	JoinRoom(roomID string) error
	LeaveRoom() error
	SubmitGuess(input string) error
	SendMessage(text string) error
}

// Config holds inspect server settings.
type Config struct {
	Addr           string
	AllowedOrigins []string
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// DefaultConfig returns default inspect settings.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8090",
		AllowedOrigins: []string{"*"},
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     64,
	}
}

// Handler builds the routes wrapped in CORS.
func Handler(src Source, cmds Commands, config Config) http.Handler {
	mux := http.NewServeMux()

	NewStateHandler(src).RegisterRoutes(mux)
	NewStream(src, cmds, config).RegisterRoutes(mux)
	setupHealthCheck(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: config.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

// NewServer returns an HTTP/2 cleartext capable server for the session.
func NewServer(src Source, cmds Commands, config Config) *http.Server {
	return &http.Server{
		Addr:              config.Addr,
		Handler:           h2c.NewHandler(Handler(src, cmds, config), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Warn().Err(err).Msg("failed to write health check response")
		}
	})
}
