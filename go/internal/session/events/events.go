package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// Event is one server-pushed event after it crossed the gateway boundary.
// Seq is monotonically increasing per room within a Session (one push-channel
// connection); Round is the round identity the event refers to, empty when
// the server did not say.
type Event struct {
	Session    uint64          `json:"session"`
	Seq        uint64          `json:"seq"`
	Type       EventType       `json:"type"`
	RoomID     string          `json:"room_id,omitempty"`
	Round      string          `json:"round,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// EventType names a push-channel event.
type EventType string

const (
	EventTypeGameState         EventType = "gameState"
	EventTypeIntermissionStart EventType = "intermissionStart"
	EventTypeOnlinePlayers     EventType = "onlinePlayers"
	EventTypeRoundStart        EventType = "roundStart"
	EventTypeRoundEnd          EventType = "roundEnd"
	EventTypeGuessResult       EventType = "guessResult"
	EventTypeCorrectGuess      EventType = "correctGuess"
	EventTypeIncorrectGuess    EventType = "incorrectGuess"
	EventTypeChatMessage       EventType = "chatMessage"
	EventTypePlayerJoined      EventType = "playerJoined"
	EventTypePlayerLeft        EventType = "playerLeft"
	EventTypeRoomEnd           EventType = "roomEnd"
	EventTypeError             EventType = "error"
	EventTypeGuessRejected     EventType = "guessRejected"
	EventTypeRoomFull          EventType = "roomFull"
	EventTypeBanned            EventType = "banned"
)

var (
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrMalformedPayload = errors.New("malformed payload")
)

// Frame is the decoded wire form before sequencing.
type Frame struct {
	Type    EventType
	RoomID  string
	Seq     uint64 // zero when the server does not number its events
	RoundID string
	Data    json.RawMessage
}

// DecodeFrame reads either an object frame {"type","roomId","seq","data"} or
// an array frame ["type", data].
func DecodeFrame(raw []byte) (Frame, error) {
	if !gjson.ValidBytes(raw) {
		return Frame{}, ErrMalformedFrame
	}

	root := gjson.ParseBytes(raw)
	var f Frame
	var data gjson.Result

	switch {
	case root.IsArray():
		parts := root.Array()
		if len(parts) == 0 || parts[0].Type != gjson.String {
			return Frame{}, ErrMalformedFrame
		}
		f.Type = EventType(parts[0].String())
		if len(parts) > 1 {
			data = parts[1]
		}
	case root.IsObject():
		typ := root.Get("type")
		if typ.Type != gjson.String || typ.String() == "" {
			return Frame{}, ErrMalformedFrame
		}
		f.Type = EventType(typ.String())
		data = root.Get("data")
		f.RoomID = root.Get("roomId").String()
		f.Seq = root.Get("seq").Uint()
		f.RoundID = root.Get("roundId").String()
	default:
		return Frame{}, ErrMalformedFrame
	}

	if f.RoomID == "" {
		f.RoomID = data.Get("roomId").String()
	}
	if f.RoundID == "" {
		f.RoundID = data.Get("roundId").String()
	}
	if data.Exists() {
		f.Data = json.RawMessage(data.Raw)
	}
	return f, nil
}

// ParsePayload parses event data into the appropriate payload struct.
// Unknown event types return (nil, nil); known types with missing or invalid
// fields return ErrMalformedPayload.
func ParsePayload(event *Event) (interface{}, error) {
	switch event.Type {
	case EventTypeGameState:
		var payload GameStatePayload
		if err := decode(event, &payload); err != nil {
			return nil, err
		}
		if !payload.Status.Valid() {
			return nil, fmt.Errorf("%w: status %q", ErrMalformedPayload, payload.Status)
		}
		return payload, nil

	case EventTypeIntermissionStart:
		var payload IntermissionStartPayload
		if err := decode(event, &payload); err != nil {
			return nil, err
		}
		if payload.Duration < 0 {
			return nil, fmt.Errorf("%w: negative duration", ErrMalformedPayload)
		}
		return payload, nil

	case EventTypeOnlinePlayers:
		var payload OnlinePlayersPayload
		if gjson.ParseBytes(event.Data).IsArray() {
			if err := json.Unmarshal(event.Data, &payload.Players); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
			}
			return payload, nil
		}
		if err := decode(event, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeRoundStart:
		var payload RoundStartPayload
		if err := decode(event, &payload); err != nil {
			return nil, err
		}
		if payload.Duration <= 0 {
			return nil, fmt.Errorf("%w: round duration %d", ErrMalformedPayload, payload.Duration)
		}
		return payload, nil

	case EventTypeRoundEnd:
		var payload RoundEndPayload
		if err := decode(event, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeGuessResult:
		var payload GuessResultPayload
		if err := decode(event, &payload); err != nil {
			return nil, err
		}
		if !payload.Direction.Valid() {
			return nil, fmt.Errorf("%w: direction %q", ErrMalformedPayload, payload.Direction)
		}
		return payload, nil

	case EventTypeCorrectGuess, EventTypeIncorrectGuess:
		var payload GuessBroadcastPayload
		if err := decode(event, &payload); err != nil {
			return nil, err
		}
		if payload.PlayerID == "" {
			return nil, fmt.Errorf("%w: missing playerId", ErrMalformedPayload)
		}
		return payload, nil

	case EventTypeChatMessage:
		var payload ChatMessagePayload
		if err := decode(event, &payload); err != nil {
			return nil, err
		}
		if payload.Message == "" {
			return nil, fmt.Errorf("%w: empty chat message", ErrMalformedPayload)
		}
		return payload, nil

	case EventTypePlayerJoined, EventTypePlayerLeft:
		var payload PlayerPresencePayload
		if err := decode(event, &payload); err != nil {
			return nil, err
		}
		if payload.PlayerID == "" {
			return nil, fmt.Errorf("%w: missing playerId", ErrMalformedPayload)
		}
		return payload, nil

	case EventTypeRoomEnd:
		return struct{}{}, nil

	case EventTypeError:
		var payload ErrorPayload
		if err := decode(event, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeGuessRejected:
		var payload GuessRejectedPayload
		if err := decode(event, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeRoomFull:
		var payload RoomFullPayload
		if err := decode(event, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeBanned:
		var payload BannedPayload
		if err := decode(event, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}

func decode(event *Event, v interface{}) error {
	if len(event.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrMalformedPayload, event.Type)
	}
	if err := json.Unmarshal(event.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedPayload, event.Type, err)
	}
	return nil
}
