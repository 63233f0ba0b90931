package events

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/priceguess/go/internal/models"
)

// CommandType names a client-to-server command.
type CommandType string

const (
	CommandJoinRoom    CommandType = "joinRoom"
	CommandLeaveRoom   CommandType = "leaveRoom"
	CommandSubmitGuess CommandType = "submitGuess"
	CommandChatMessage CommandType = "chatMessage"
)

// Command is an outbound command. ID correlates optimistic state with the
// confirmation event; the server is free to ignore it.
type Command struct {
	ID     uuid.UUID   `json:"id"`
	Type   CommandType `json:"type"`
	RoomID string      `json:"-"`
	Data   interface{} `json:"data"`
}

type roomData struct {
	RoomID string `json:"roomId"`
}

type guessData struct {
	RoomID string            `json:"roomId"`
	Price  models.GuessValue `json:"price"`
}

type chatData struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

// JoinRoom builds a joinRoom command.
func JoinRoom(roomID string) Command {
	return newCommand(CommandJoinRoom, roomID, roomData{RoomID: roomID})
}

// LeaveRoom builds a leaveRoom command.
func LeaveRoom(roomID string) Command {
	return newCommand(CommandLeaveRoom, roomID, roomData{RoomID: roomID})
}

// SubmitGuess builds a submitGuess command.
func SubmitGuess(roomID string, value models.GuessValue) Command {
	return newCommand(CommandSubmitGuess, roomID, guessData{RoomID: roomID, Price: value})
}

// ChatMessage builds a chatMessage command. Slash commands travel the same way.
func ChatMessage(roomID, message string) Command {
	return newCommand(CommandChatMessage, roomID, chatData{RoomID: roomID, Message: message})
}

func newCommand(t CommandType, roomID string, data interface{}) Command {
	return Command{ID: uuid.New(), Type: t, RoomID: roomID, Data: data}
}

// Encode marshals the command into its wire frame.
func (c Command) Encode() ([]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal %s command: %w", c.Type, err)
	}
	return b, nil
}

// Subject returns the NATS subject suffix for the command.
func (c Command) Subject() string {
	return strings.ToLower(string(c.Type))
}
