package events

import (
	"encoding/json"
	"testing"

	"github.com/mcdev12/priceguess/go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame_Object(t *testing.T) {
	f, err := DecodeFrame([]byte(`{"type":"roundEnd","roomId":"r1","seq":7,"data":{"correctPrice":1500,"roundId":"R2","scores":[]}}`))
	require.NoError(t, err)

	assert.Equal(t, EventTypeRoundEnd, f.Type)
	assert.Equal(t, "r1", f.RoomID)
	assert.Equal(t, uint64(7), f.Seq)
	assert.Equal(t, "R2", f.RoundID)
	assert.JSONEq(t, `{"correctPrice":1500,"roundId":"R2","scores":[]}`, string(f.Data))
}

func TestDecodeFrame_Array(t *testing.T) {
	f, err := DecodeFrame([]byte(`["guessResult",{"direction":"go_higher","roomId":"r9"}]`))
	require.NoError(t, err)

	assert.Equal(t, EventTypeGuessResult, f.Type)
	assert.Equal(t, "r9", f.RoomID)
	assert.Zero(t, f.Seq)
}

func TestDecodeFrame_NoData(t *testing.T) {
	f, err := DecodeFrame([]byte(`{"type":"roomEnd"}`))
	require.NoError(t, err)
	assert.Equal(t, EventTypeRoomEnd, f.Type)
	assert.Nil(t, f.Data)
}

func TestDecodeFrame_Malformed(t *testing.T) {
	for _, raw := range []string{`not json`, `{"data":{}}`, `[]`, `[1,{}]`, `"roundStart"`, `{"type":""}`} {
		_, err := DecodeFrame([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformedFrame, raw)
	}
}

func TestParsePayload_Known(t *testing.T) {
	ev := &Event{Type: EventTypeRoundEnd, Data: json.RawMessage(`{"correctPrice":"1250000","scores":[{"playerId":"p1","score":40}]}`)}
	payload, err := ParsePayload(ev)
	require.NoError(t, err)

	p, ok := payload.(RoundEndPayload)
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(1250000).Equal(p.CorrectPrice))
	require.Len(t, p.Scores, 1)
	assert.Equal(t, 40, p.Scores[0].Score)
}

func TestParsePayload_OnlinePlayersBareArray(t *testing.T) {
	ev := &Event{Type: EventTypeOnlinePlayers, Data: json.RawMessage(`[{"playerId":"p1","username":"ayse"}]`)}
	payload, err := ParsePayload(ev)
	require.NoError(t, err)
	assert.Equal(t, []models.OnlinePlayer{{PlayerID: "p1", Username: "ayse"}}, payload.(OnlinePlayersPayload).Players)
}

func TestParsePayload_Unknown(t *testing.T) {
	payload, err := ParsePayload(&Event{Type: "somethingNew", Data: json.RawMessage(`{}`)})
	assert.NoError(t, err)
	assert.Nil(t, payload)
}

func TestParsePayload_Malformed(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
	}{
		{"bad status", Event{Type: EventTypeGameState, Data: json.RawMessage(`{"status":"paused"}`)}},
		{"bad direction", Event{Type: EventTypeGuessResult, Data: json.RawMessage(`{"direction":"sideways"}`)}},
		{"no player", Event{Type: EventTypePlayerJoined, Data: json.RawMessage(`{"username":"x"}`)}},
		{"no data", Event{Type: EventTypeRoundStart}},
		{"zero duration", Event{Type: EventTypeRoundStart, Data: json.RawMessage(`{"listing":{"id":"a"},"duration":0}`)}},
		{"wrong shape", Event{Type: EventTypeChatMessage, Data: json.RawMessage(`[1,2]`)}},
		{"empty chat", Event{Type: EventTypeChatMessage, Data: json.RawMessage(`{"userId":"u","message":""}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePayload(&tt.ev)
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestCommandEncode(t *testing.T) {
	cmd := SubmitGuess("r1", models.PriceGuess(decimal.NewFromInt(1000)))
	b, err := cmd.Encode()
	require.NoError(t, err)

	var wire map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &wire))
	assert.Equal(t, "submitGuess", wire["type"])
	assert.Equal(t, cmd.ID.String(), wire["id"])
	assert.Equal(t, map[string]interface{}{"roomId": "r1", "price": float64(1000)}, wire["data"])
	assert.Equal(t, "submitguess", cmd.Subject())
}
