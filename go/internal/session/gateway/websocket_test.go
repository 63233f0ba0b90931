package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/priceguess/go/internal/session/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestWebsocketDialer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan []byte, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" || r.URL.Query().Get("token") != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"roomEnd","roomId":"r1"}`))
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}
		received <- msg
		ws.ReadMessage()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	d := NewWebsocketDialer(DefaultWebsocketConfig(url))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := d.Dial(ctx, "wrong")
	assert.Error(t, err)

	conn, err := d.Dial(ctx, "secret")
	require.NoError(t, err)

	select {
	case frame := <-conn.Frames():
		assert.Equal(t, "roomEnd", gjson.GetBytes(frame, "type").String())
	case <-ctx.Done():
		t.Fatal("no frame received")
	}

	require.NoError(t, conn.Send(events.JoinRoom("r1")))
	select {
	case msg := <-received:
		assert.Equal(t, "joinRoom", gjson.GetBytes(msg, "type").String())
		assert.Equal(t, "r1", gjson.GetBytes(msg, "data.roomId").String())
	case <-ctx.Done():
		t.Fatal("command not received")
	}

	require.NoError(t, conn.Close())
	for range conn.Frames() {
	}
	assert.NoError(t, conn.Err(), "requested close is not an error")
	assert.ErrorIs(t, conn.Send(events.LeaveRoom("r1")), ErrNotConnected)
}
