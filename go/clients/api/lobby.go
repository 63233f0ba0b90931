package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mcdev12/priceguess/go/internal/models"
	"google.golang.org/protobuf/types/known/emptypb"
)

// Room setting limits enforced before a create request is sent.
const (
	MinRoundDurationMs = 10_000
	MaxRoundDurationMs = 300_000
	MaxTotalRounds     = 50
	MinPlayers         = 2
	MaxPlayers         = 100
	MaxRoomNameRunes   = 40
)

type CurrentUserResponse struct {
	User *models.User `json:"user"`
}

type ListCategoriesResponse struct {
	Categories []models.Category `json:"categories"`
}

type CreateRoomRequest struct {
	Name       string              `json:"name"`
	CategoryID string              `json:"categoryId"`
	IsPrivate  bool                `json:"isPrivate"`
	Settings   models.RoomSettings `json:"settings"`
}

// Validate checks a create request the way the room service will.
func (r CreateRoomRequest) Validate() error {
	var problems []string
	name := strings.TrimSpace(r.Name)
	switch {
	case name == "":
		problems = append(problems, "room name is required")
	case len([]rune(name)) > MaxRoomNameRunes:
		problems = append(problems, fmt.Sprintf("room name is longer than %d characters", MaxRoomNameRunes))
	}
	if r.CategoryID == "" {
		problems = append(problems, "category is required")
	}

	s := r.Settings
	if s.MaxGuessesPerRound < 0 {
		problems = append(problems, "max guesses per round cannot be negative")
	}
	if s.RoundDurationMs < MinRoundDurationMs || s.RoundDurationMs > MaxRoundDurationMs {
		problems = append(problems, fmt.Sprintf("round duration must be between %ds and %ds", MinRoundDurationMs/1000, MaxRoundDurationMs/1000))
	}
	if s.TotalRounds < 1 || s.TotalRounds > MaxTotalRounds {
		problems = append(problems, fmt.Sprintf("total rounds must be between 1 and %d", MaxTotalRounds))
	}
	if s.MaxPlayers < MinPlayers || s.MaxPlayers > MaxPlayers {
		problems = append(problems, fmt.Sprintf("max players must be between %d and %d", MinPlayers, MaxPlayers))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidArgument, strings.Join(problems, "; "))
	}
	return nil
}

type RoomResponse struct {
	Room models.Room `json:"room"`
}

type GetRoomRequest struct {
	RoomID string `json:"roomId"`
}

type LeaderboardRequest struct {
	Limit int `json:"limit,omitempty"`
}

type LeaderboardResponse struct {
	Entries []models.LeaderboardEntry `json:"entries"`
}

type SubmitFeedbackRequest struct {
	Message string `json:"message"`
	RoomID  string `json:"roomId,omitempty"`
}

// CurrentUser returns the authenticated account, or nil when no credential is
// stored.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	anon, err := c.anonymous(ctx)
	if err != nil || anon {
		return nil, err
	}

	resp, err := call[emptypb.Empty, CurrentUserResponse](ctx, c, CurrentUserProcedure, &emptypb.Empty{})
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return resp.User, nil
}

// Categories lists the lobby categories.
func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	resp, err := call[emptypb.Empty, ListCategoriesResponse](ctx, c, ListCategoriesProcedure, &emptypb.Empty{})
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return resp.Categories, nil
}

// CreateRoom validates req and creates the room.
func (c *Client) CreateRoom(ctx context.Context, req CreateRoomRequest) (*models.Room, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp, err := call[CreateRoomRequest, RoomResponse](ctx, c, CreateRoomProcedure, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return &resp.Room, nil
}

// GetRoom looks a room up by id.
func (c *Client) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	if roomID == "" {
		return nil, fmt.Errorf("%w: room id is required", ErrInvalidArgument)
	}

	resp, err := call[GetRoomRequest, RoomResponse](ctx, c, GetRoomProcedure, &GetRoomRequest{RoomID: roomID})
	if err != nil {
		return nil, fmt.Errorf("failed to get room %s: %w", roomID, err)
	}
	return &resp.Room, nil
}

// Leaderboard fetches the global ranking; limit 0 uses the server default.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	resp, err := call[LeaderboardRequest, LeaderboardResponse](ctx, c, LeaderboardProcedure, &LeaderboardRequest{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	return resp.Entries, nil
}

// SubmitFeedback sends free-form player feedback.
func (c *Client) SubmitFeedback(ctx context.Context, roomID, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return errors.Join(ErrInvalidArgument, errors.New("feedback message is empty"))
	}

	_, err := call[SubmitFeedbackRequest, emptypb.Empty](ctx, c, SubmitFeedbackProcedure, &SubmitFeedbackRequest{Message: message, RoomID: roomID})
	if err != nil {
		return fmt.Errorf("failed to submit feedback: %w", err)
	}
	return nil
}
