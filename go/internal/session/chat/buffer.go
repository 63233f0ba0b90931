package chat

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mcdev12/priceguess/go/internal/models"
)

const (
	// BufferLimit is the number of messages kept in the log.
	BufferLimit = 100
	// MaxMessageRunes is the longest message accepted for sending.
	MaxMessageRunes = 500
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message is too long")
)

// Buffer is an append-only chat log holding the most recent BufferLimit
// messages in arrival order. It is not safe for concurrent use.
type Buffer struct {
	limit    int
	messages []models.ChatMessage
}

// NewBuffer creates a buffer with the default limit.
func NewBuffer() *Buffer {
	return &Buffer{limit: BufferLimit}
}

// Append adds msg to the tail, evicting the oldest entries beyond the limit.
func (b *Buffer) Append(msg models.ChatMessage) {
	b.messages = append(b.messages, msg)
	if over := len(b.messages) - b.limit; over > 0 {
		// copy so the evicted prefix can be collected
		b.messages = append([]models.ChatMessage(nil), b.messages[over:]...)
	}
}

// Messages returns a copy of the log, oldest first.
func (b *Buffer) Messages() []models.ChatMessage {
	return append([]models.ChatMessage(nil), b.messages...)
}

// Len returns the number of buffered messages.
func (b *Buffer) Len() int { return len(b.messages) }

// Reset empties the log.
func (b *Buffer) Reset() {
	b.messages = nil
}

// ValidateMessage checks an outgoing message before it is sent.
func ValidateMessage(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(text); n > MaxMessageRunes {
		return "", fmt.Errorf("%w: %d characters, limit %d", ErrMessageTooLong, n, MaxMessageRunes)
	}
	return text, nil
}
