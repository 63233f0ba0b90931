package chat

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// CommandPrefix marks a chat message as a moderation command. Commands are
// plain chat messages; the server interprets them.
const CommandPrefix = "/"

var ErrInvalidCommand = errors.New("invalid command")

// IsCommand reports whether text is a slash command.
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), CommandPrefix)
}

// BanCommand builds "/ban username --minutes=N".
func BanCommand(username string, minutes int) (string, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" || strings.IndexFunc(username, unicode.IsSpace) >= 0 {
		return "", fmt.Errorf("%w: bad username %q", ErrInvalidCommand, username)
	}
	if minutes <= 0 {
		return "", fmt.Errorf("%w: minutes must be positive", ErrInvalidCommand)
	}
	return fmt.Sprintf("/ban %s --minutes=%d", username, minutes), nil
}
