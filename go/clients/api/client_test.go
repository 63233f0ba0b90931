package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/mcdev12/priceguess/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/emptypb"
)

type staticCreds string

func (s staticCreds) Credential(context.Context) (string, error) { return string(s), nil }

type failingCreds struct{}

func (failingCreds) Credential(context.Context) (string, error) { return "", errors.New("locked") }

func handle[Req, Res any](mux *http.ServeMux, procedure string, fn func(context.Context, *connect.Request[Req]) (*Res, error)) {
	mux.Handle(procedure, connect.NewUnaryHandler(procedure,
		func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
			res, err := fn(ctx, req)
			if err != nil {
				return nil, err
			}
			return connect.NewResponse(res), nil
		},
		connect.WithCodec(jsonCodec{}),
	))
}

func newServer(t *testing.T) (*http.ServeMux, string) {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return mux, srv.URL
}

func TestCurrentUser(t *testing.T) {
	mux, url := newServer(t)
	var auth string
	handle(mux, CurrentUserProcedure, func(_ context.Context, req *connect.Request[emptypb.Empty]) (*CurrentUserResponse, error) {
		auth = req.Header().Get("Authorization")
		return &CurrentUserResponse{User: &models.User{ID: "u1", Username: "ayşe"}}, nil
	})

	user, err := NewClient(url, staticCreds("tok")).CurrentUser(context.Background())
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "ayşe", user.Username)
	assert.Equal(t, "Bearer tok", auth)
}

func TestCurrentUser_Anonymous(t *testing.T) {
	mux, url := newServer(t)
	called := false
	handle(mux, CurrentUserProcedure, func(context.Context, *connect.Request[emptypb.Empty]) (*CurrentUserResponse, error) {
		called = true
		return &CurrentUserResponse{}, nil
	})

	user, err := NewClient(url, staticCreds("")).CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.False(t, called)

	_, err = NewClient(url, failingCreds{}).CurrentUser(context.Background())
	assert.Error(t, err)
}

func TestCurrentUser_Unauthenticated(t *testing.T) {
	mux, url := newServer(t)
	handle(mux, CurrentUserProcedure, func(context.Context, *connect.Request[emptypb.Empty]) (*CurrentUserResponse, error) {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("token expired"))
	})

	_, err := NewClient(url, staticCreds("old")).CurrentUser(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestCategories(t *testing.T) {
	mux, url := newServer(t)
	handle(mux, ListCategoriesProcedure, func(context.Context, *connect.Request[emptypb.Empty]) (*ListCategoriesResponse, error) {
		return &ListCategoriesResponse{Categories: []models.Category{
			{ID: "c1", Name: "Arabalar", Kind: models.ListingKindCar, Rooms: 3},
			{ID: "c2", Name: "Futbolcular", Kind: models.ListingKindSportsPlayer},
		}}, nil
	})

	cats, err := NewClient(url, nil).Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, models.ListingKindSportsPlayer, cats[1].Kind)
	assert.Equal(t, 3, cats[0].Rooms)
}

func validRoom() CreateRoomRequest {
	return CreateRoomRequest{
		Name:       " Friday night ",
		CategoryID: "c1",
		Settings: models.RoomSettings{
			MaxGuessesPerRound: 3,
			RoundDurationMs:    30_000,
			TotalRounds:        10,
			MaxPlayers:         8,
		},
	}
}

func TestCreateRoom(t *testing.T) {
	mux, url := newServer(t)
	var got CreateRoomRequest
	handle(mux, CreateRoomProcedure, func(_ context.Context, req *connect.Request[CreateRoomRequest]) (*RoomResponse, error) {
		got = *req.Msg
		return &RoomResponse{Room: models.Room{ID: "R1", Name: req.Msg.Name, Settings: req.Msg.Settings}}, nil
	})

	room, err := NewClient(url, staticCreds("tok")).CreateRoom(context.Background(), validRoom())
	require.NoError(t, err)
	assert.Equal(t, "R1", room.ID)
	assert.Equal(t, "Friday night", got.Name)
	assert.Equal(t, 30_000, got.Settings.RoundDurationMs)
}

func TestCreateRoom_ValidatesBeforeSending(t *testing.T) {
	mux, url := newServer(t)
	called := false
	handle(mux, CreateRoomProcedure, func(context.Context, *connect.Request[CreateRoomRequest]) (*RoomResponse, error) {
		called = true
		return &RoomResponse{}, nil
	})
	client := NewClient(url, nil)

	tests := []struct {
		name   string
		mutate func(*CreateRoomRequest)
		want   string
	}{
		{"blank name", func(r *CreateRoomRequest) { r.Name = "  " }, "room name is required"},
		{"no category", func(r *CreateRoomRequest) { r.CategoryID = "" }, "category is required"},
		{"short rounds", func(r *CreateRoomRequest) { r.Settings.RoundDurationMs = 1000 }, "round duration"},
		{"no rounds", func(r *CreateRoomRequest) { r.Settings.TotalRounds = 0 }, "total rounds"},
		{"solo", func(r *CreateRoomRequest) { r.Settings.MaxPlayers = 1 }, "max players"},
		{"negative guesses", func(r *CreateRoomRequest) { r.Settings.MaxGuessesPerRound = -1 }, "max guesses"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRoom()
			tt.mutate(&req)
			_, err := client.CreateRoom(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.ErrorContains(t, err, tt.want)
		})
	}
	assert.False(t, called)
}

func TestGetRoom_NotFound(t *testing.T) {
	mux, url := newServer(t)
	handle(mux, GetRoomProcedure, func(_ context.Context, req *connect.Request[GetRoomRequest]) (*RoomResponse, error) {
		if req.Msg.RoomID == "R1" {
			return &RoomResponse{Room: models.Room{ID: "R1", Status: models.RoomStatusPlaying}}, nil
		}
		return nil, connect.NewError(connect.CodeNotFound, errors.New("no such room"))
	})
	client := NewClient(url, nil)

	room, err := client.GetRoom(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusPlaying, room.Status)

	_, err = client.GetRoom(context.Background(), "R9")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = client.GetRoom(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestLeaderboard(t *testing.T) {
	mux, url := newServer(t)
	handle(mux, LeaderboardProcedure, func(_ context.Context, req *connect.Request[LeaderboardRequest]) (*LeaderboardResponse, error) {
		entries := []models.LeaderboardEntry{{Rank: 1, Username: "ali", TotalScore: 900}, {Rank: 2, Username: "veli", TotalScore: 700}}
		if req.Msg.Limit > 0 && req.Msg.Limit < len(entries) {
			entries = entries[:req.Msg.Limit]
		}
		return &LeaderboardResponse{Entries: entries}, nil
	})

	entries, err := NewClient(url, nil).Leaderboard(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ali", entries[0].Username)
}

func TestSubmitFeedback(t *testing.T) {
	mux, url := newServer(t)
	var got SubmitFeedbackRequest
	handle(mux, SubmitFeedbackProcedure, func(_ context.Context, req *connect.Request[SubmitFeedbackRequest]) (*emptypb.Empty, error) {
		got = *req.Msg
		return &emptypb.Empty{}, nil
	})
	client := NewClient(url, nil)

	require.NoError(t, client.SubmitFeedback(context.Background(), "R1", " fiyatlar çok zor "))
	assert.Equal(t, SubmitFeedbackRequest{Message: "fiyatlar çok zor", RoomID: "R1"}, got)

	assert.ErrorIs(t, client.SubmitFeedback(context.Background(), "R1", " "), ErrInvalidArgument)
}

func TestVoiceToken(t *testing.T) {
	mux, url := newServer(t)
	handle(mux, VoiceTokenProcedure, func(_ context.Context, req *connect.Request[VoiceTokenRequest]) (*VoiceTokenResponse, error) {
		return &VoiceTokenResponse{URL: "wss://voice.example", Token: "v-" + req.Msg.RoomID}, nil
	})

	u, tok, err := NewClient(url, staticCreds("tok")).VoiceToken(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, "wss://voice.example", u)
	assert.Equal(t, "v-R1", tok)

	_, _, err = NewClient(url, nil).VoiceToken(context.Background(), "R1")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestCustomHeaders(t *testing.T) {
	mux, url := newServer(t)
	var agent string
	handle(mux, ListCategoriesProcedure, func(_ context.Context, req *connect.Request[emptypb.Empty]) (*ListCategoriesResponse, error) {
		agent = req.Header().Get("X-Client")
		return &ListCategoriesResponse{}, nil
	})

	client := NewClient(url+"/", nil)
	client.SetHeader("X-Client", "priceguess-cli")
	_, err := client.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "priceguess-cli", agent)
}
