package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mcdev12/priceguess/go/internal/models"
	"github.com/mcdev12/priceguess/go/internal/session/chat"
	"github.com/mcdev12/priceguess/go/internal/session/gateway"
	"github.com/rs/zerolog/log"
)

// Gateway is the push channel as seen by the client.
type Gateway interface {
	Connect(ctx context.Context) error
	Disconnect()
	Reconnect(ctx context.Context) error
	JoinRoom(roomID string) error
	LeaveRoom(roomID string) error
	SubmitGuess(roomID string, value models.GuessValue) error
	SendMessage(roomID, text string) error
}

// UserSource fetches the authenticated account.
type UserSource interface {
	CurrentUser(ctx context.Context) (*models.User, error)
}

// CredentialStore persists the bearer credential.
type CredentialStore interface {
	SetCredential(ctx context.Context, token string) error
	ClearCredential(ctx context.Context) error
}

// Client is the command side of a session: it applies optimistic updates to
// the store and emits the matching command through the gateway.
type Client struct {
	store *Store
	gw    Gateway
	users UserSource
	creds CredentialStore

	mu          sync.Mutex
	cancelFetch context.CancelFunc
	fetches     sync.WaitGroup
}

// NewClient wires a client. users and creds may be nil for anonymous use.
// Every time the push channel connects, the room held by the store is joined
// again on the new session.
func NewClient(store *Store, gw Gateway, users UserSource, creds CredentialStore) *Client {
	c := &Client{store: store, gw: gw, users: users, creds: creds}
	store.Subscribe(c.connectionChanged, SliceConnection)
	return c
}

// Store returns the underlying store.
func (c *Client) Store() *Store { return c.store }

// Start opens the push channel and loads the current user.
func (c *Client) Start(ctx context.Context) error {
	c.refreshUser(ctx)
	if err := c.gw.Connect(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	return nil
}

// Reconnect forces a fresh push channel, e.g. after the credential changed.
// Any in-flight user fetch is cancelled and a new one started.
func (c *Client) Reconnect(ctx context.Context) error {
	c.refreshUser(ctx)
	if err := c.gw.Reconnect(ctx); err != nil {
		return fmt.Errorf("failed to reconnect: %w", err)
	}
	return nil
}

// Login stores credential and reconnects with it.
func (c *Client) Login(ctx context.Context, credential string) error {
	if c.creds == nil {
		return errors.New("no credential store configured")
	}
	if err := c.creds.SetCredential(ctx, credential); err != nil {
		return err
	}
	return c.Reconnect(ctx)
}

// Logout clears the credential; the client drops to anonymous mode.
func (c *Client) Logout(ctx context.Context) error {
	if c.creds == nil {
		return errors.New("no credential store configured")
	}
	if err := c.creds.ClearCredential(ctx); err != nil {
		return err
	}
	c.store.SetUser(nil)
	return c.Reconnect(ctx)
}

// Close cancels background work and disconnects. The store stops publishing.
func (c *Client) Close() {
	c.mu.Lock()
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	c.mu.Unlock()

	c.fetches.Wait()
	c.gw.Disconnect()
	c.store.Close()
}

// JoinRoom enters roomID optimistically, leaving the current room first.
func (c *Client) JoinRoom(roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		err := fmt.Errorf("%w: room id is required", ErrNoRoom)
		c.validationNotice(err)
		return err
	}

	if previous := c.store.BeginJoin(roomID); previous != "" {
		c.emit(c.gw.LeaveRoom(previous))
	}
	c.emit(c.gw.JoinRoom(roomID))
	return nil
}

// LeaveRoom leaves the current room optimistically.
func (c *Client) LeaveRoom() error {
	roomID := c.store.Leave()
	if roomID == "" {
		return ErrNoRoom
	}
	c.emit(c.gw.LeaveRoom(roomID))
	return nil
}

// SubmitGuess parses input for the current listing and sends it. It is a
// no-op returning ErrGuessLocked once the round is decided for this player.
func (c *Client) SubmitGuess(input string) error {
	snap := c.store.Snapshot()
	numeric := true
	if snap.Round.Listing != nil {
		numeric = snap.Round.Listing.Kind.NumericGuess()
	}

	value, err := models.ParseGuess(input, numeric)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidGuess, err)
		c.validationNotice(err)
		return err
	}

	roomID, err := c.store.BeginGuess()
	if err != nil {
		return err
	}
	c.emit(c.gw.SubmitGuess(roomID, value))
	return nil
}

// SendMessage validates and sends a chat message. Chat is not optimistic:
// the message appears when the server echoes it.
func (c *Client) SendMessage(text string) error {
	roomID := c.store.Snapshot().Room.RoomID
	if roomID == "" {
		return ErrNoRoom
	}

	text, err := chat.ValidateMessage(text)
	if err != nil {
		c.validationNotice(err)
		return err
	}

	err = c.gw.SendMessage(roomID, text)
	if errors.Is(err, gateway.ErrRateLimited) {
		c.store.PushNotice(Notice{Kind: NoticeToast, Code: CodeRateLimited, Message: "You are sending messages too fast"})
		return err
	}
	c.emit(err)
	return nil
}

// Ban sends a moderation command for username.
func (c *Client) Ban(username string, minutes int) error {
	cmd, err := chat.BanCommand(username, minutes)
	if err != nil {
		c.validationNotice(err)
		return err
	}
	return c.SendMessage(cmd)
}

// connectionChanged rejoins the current room when a session opens. A new
// session is not a member of any room until it sends joinRoom, and the
// server answers that with the gameState the store resyncs from.
func (c *Client) connectionChanged(u Update) {
	if u.Snapshot.Connection.Status != gateway.StatusConnected {
		return
	}
	roomID := c.store.ResumeJoin()
	if roomID == "" {
		return
	}
	log.Info().Str("room_id", roomID).Msg("rejoining room on new session")
	c.emit(c.gw.JoinRoom(roomID))
}

// emit logs a command the gateway dropped. Commands are fire-and-forget, so
// this never fails the caller.
func (c *Client) emit(err error) {
	if err != nil {
		log.Debug().Err(err).Msg("command not delivered")
	}
}

func (c *Client) validationNotice(err error) {
	c.store.PushNotice(Notice{Kind: NoticeToast, Code: CodeValidation, Message: err.Error()})
}

// refreshUser cancels any running fetch and starts a new one. A cancelled
// fetch never writes to the store.
func (c *Client) refreshUser(parent context.Context) {
	if c.users == nil {
		return
	}

	c.mu.Lock()
	if c.cancelFetch != nil {
		c.cancelFetch()
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	c.cancelFetch = cancel
	c.fetches.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.fetches.Done()
		user, err := c.users.CurrentUser(ctx)
		if ctx.Err() != nil {
			log.Debug().Msg("current user fetch cancelled")
			return
		}
		if err != nil {
			log.Warn().Err(err).Msg("failed to fetch current user")
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		c.store.SetUser(user)
	}()
}
