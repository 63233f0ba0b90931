package api

import (
	"context"
	"fmt"
)

type VoiceTokenRequest struct {
	RoomID string `json:"roomId"`
}

type VoiceTokenResponse struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// VoiceToken issues a media-server token for the voice channel of roomID.
// Voice requires an account.
func (c *Client) VoiceToken(ctx context.Context, roomID string) (url, token string, err error) {
	anon, err := c.anonymous(ctx)
	if err != nil {
		return "", "", err
	}
	if anon {
		return "", "", ErrUnauthenticated
	}

	resp, err := call[VoiceTokenRequest, VoiceTokenResponse](ctx, c, VoiceTokenProcedure, &VoiceTokenRequest{RoomID: roomID})
	if err != nil {
		return "", "", fmt.Errorf("failed to get voice token: %w", err)
	}
	return resp.URL, resp.Token, nil
}
