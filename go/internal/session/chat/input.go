package chat

import (
	"sort"
	"strings"
	"unicode"

	"github.com/mcdev12/priceguess/go/internal/models"
)

// MentionState is the per-keystroke parse of the chat input around the
// cursor. StartPosition is the rune index of the '@'.
type MentionState struct {
	IsActive      bool   `json:"isActive"`
	StartPosition int    `json:"startPosition"`
	Text          string `json:"text"`
}

// ParseMentionInput finds an @-mention being typed immediately before cursor
// (a rune index). The '@' must start the input or follow whitespace, and no
// whitespace may appear between it and the cursor.
func ParseMentionInput(text string, cursor int) MentionState {
	runes := []rune(text)
	cursor = clamp(cursor, 0, len(runes))

	for i := cursor - 1; i >= 0; i-- {
		r := runes[i]
		if unicode.IsSpace(r) {
			return MentionState{}
		}
		if r != '@' {
			continue
		}
		if i > 0 && !unicode.IsSpace(runes[i-1]) {
			return MentionState{}
		}
		return MentionState{
			IsActive:      true,
			StartPosition: i,
			Text:          string(runes[i+1 : cursor]),
		}
	}
	return MentionState{}
}

// CompleteMention replaces the active mention with "@username " and returns
// the new text and cursor.
func CompleteMention(text string, state MentionState, username string) (string, int) {
	runes := []rune(text)
	if !state.IsActive || state.StartPosition < 0 || state.StartPosition >= len(runes) {
		return text, len(runes)
	}

	end := clamp(state.StartPosition+1+len([]rune(state.Text)), 0, len(runes))
	insert := []rune("@" + username + " ")

	out := make([]rune, 0, len(runes)+len(insert))
	out = append(out, runes[:state.StartPosition]...)
	out = append(out, insert...)
	cursor := len(out)
	out = append(out, runes[end:]...)
	return string(out), cursor
}

// Suggest returns online players whose username starts with the typed mention
// text, case-insensitively, sorted by username and excluding the viewer.
func Suggest(players []models.OnlinePlayer, state MentionState, viewer string, limit int) []models.OnlinePlayer {
	if !state.IsActive {
		return nil
	}

	prefix := strings.ToLower(state.Text)
	seen := make(map[string]bool)
	var out []models.OnlinePlayer
	for _, p := range players {
		if p.Username == "" || p.Username == viewer || seen[p.Username] {
			continue
		}
		if strings.HasPrefix(strings.ToLower(p.Username), prefix) {
			seen[p.Username] = true
			out = append(out, p)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
