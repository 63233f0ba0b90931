package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"
)

// Procedure paths of the collaborator services.
const (
	CurrentUserProcedure    = "/priceguess.v1.UserService/CurrentUser"
	ListCategoriesProcedure = "/priceguess.v1.LobbyService/ListCategories"
	CreateRoomProcedure     = "/priceguess.v1.LobbyService/CreateRoom"
	GetRoomProcedure        = "/priceguess.v1.LobbyService/GetRoom"
	LeaderboardProcedure    = "/priceguess.v1.LobbyService/Leaderboard"
	SubmitFeedbackProcedure = "/priceguess.v1.LobbyService/SubmitFeedback"
	VoiceTokenProcedure     = "/priceguess.v1.VoiceService/Token"
)

var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnavailable     = errors.New("service unavailable")
)

// CredentialSource supplies the bearer credential; "" means anonymous.
type CredentialSource interface {
	Credential(ctx context.Context) (string, error)
}

// Client talks to the collaborator REST-style services over the connect
// protocol with JSON bodies.
type Client struct {
	baseURL string
	http    *http.Client
	creds   CredentialSource
	headers map[string]string
	opts    []connect.ClientOption
}

// NewClient creates a client for baseURL. creds may be nil.
func NewClient(baseURL string, creds CredentialSource) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		creds:   creds,
		headers: make(map[string]string),
	}
	c.opts = []connect.ClientOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(connect.UnaryInterceptorFunc(c.authorize)),
	}
	return c
}

// SetHeader adds a header to every request.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetTimeout changes the per-request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.http.Timeout = timeout
}

func (c *Client) authorize(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		for key, value := range c.headers {
			req.Header().Set(key, value)
		}
		if c.creds != nil {
			token, err := c.creds.Credential(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to read credential: %w", err)
			}
			if token != "" {
				req.Header().Set("Authorization", "Bearer "+token)
			}
		}
		return next(ctx, req)
	}
}

func (c *Client) anonymous(ctx context.Context) (bool, error) {
	if c.creds == nil {
		return true, nil
	}
	token, err := c.creds.Credential(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read credential: %w", err)
	}
	return token == "", nil
}

// call performs one unary request.
func call[Req, Res any](ctx context.Context, c *Client, procedure string, msg *Req) (*Res, error) {
	client := connect.NewClient[Req, Res](c.http, c.baseURL+procedure, c.opts...)
	resp, err := client.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		err = mapError(err)
		log.Debug().Err(err).Str("procedure", procedure).Msg("api call failed")
		return nil, err
	}
	return resp.Msg, nil
}

func mapError(err error) error {
	var sentinel error
	switch connect.CodeOf(err) {
	case connect.CodeUnauthenticated, connect.CodePermissionDenied:
		sentinel = ErrUnauthenticated
	case connect.CodeNotFound:
		sentinel = ErrNotFound
	case connect.CodeInvalidArgument:
		sentinel = ErrInvalidArgument
	case connect.CodeUnavailable, connect.CodeDeadlineExceeded:
		sentinel = ErrUnavailable
	default:
		return fmt.Errorf("api request failed: %w", err)
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
