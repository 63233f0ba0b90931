package chat

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/mcdev12/priceguess/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_KeepsMostRecent(t *testing.T) {
	b := NewBuffer()
	for i := 0; i < 250; i++ {
		b.Append(models.ChatMessage{ID: fmt.Sprint(i)})
	}

	msgs := b.Messages()
	require.Len(t, msgs, BufferLimit)
	for i, m := range msgs {
		assert.Equal(t, fmt.Sprint(150+i), m.ID)
	}
}

func TestBuffer_Reset(t *testing.T) {
	b := NewBuffer()
	b.Append(models.ChatMessage{ID: "1"})
	b.Reset()
	assert.Zero(t, b.Len())
}

func TestValidateMessage(t *testing.T) {
	_, err := ValidateMessage("   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = ValidateMessage(strings.Repeat("ş", MaxMessageRunes+1))
	assert.ErrorIs(t, err, ErrMessageTooLong)

	text, err := ValidateMessage("  selam  ")
	require.NoError(t, err)
	assert.Equal(t, "selam", text)
}

func join(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
	}
	return b.String()
}

func TestSegments_Basic(t *testing.T) {
	msg := models.ChatMessage{
		Message: "hi @ali and @veli!",
		Mentions: []models.Mention{
			{Username: "veli", Indices: [2]int{12, 17}},
			{Username: "ali", Indices: [2]int{3, 7}},
		},
	}

	segs := Segments(msg, "veli")
	require.Len(t, segs, 5)
	assert.Equal(t, Segment{Kind: SegmentText, Text: "hi "}, segs[0])
	assert.Equal(t, "@ali", segs[1].Text)
	assert.False(t, segs[1].Self)
	assert.Equal(t, " and ", segs[2].Text)
	assert.Equal(t, "@veli", segs[3].Text)
	assert.True(t, segs[3].Self)
	assert.Equal(t, "!", segs[4].Text)
	assert.Equal(t, msg.Message, join(segs))
}

func TestSegments_OverlapLaterWins(t *testing.T) {
	msg := models.ChatMessage{
		Message: "@alice@bob",
		Mentions: []models.Mention{
			{Username: "alice", Indices: [2]int{0, 8}},
			{Username: "bob", Indices: [2]int{6, 10}},
		},
	}

	segs := Segments(msg, "")
	require.Len(t, segs, 2)
	assert.Equal(t, "@alice", segs[0].Text)
	assert.Equal(t, "alice", segs[0].Mention.Username)
	assert.Equal(t, "@bob", segs[1].Text)
}

func TestSegments_Malformed(t *testing.T) {
	msg := models.ChatMessage{
		Message: "short",
		Mentions: []models.Mention{
			{Username: "x", Indices: [2]int{-4, 2}},
			{Username: "y", Indices: [2]int{4, 99}},
			{Username: "z", Indices: [2]int{3, 1}},
		},
	}

	segs := Segments(msg, "")
	assert.Equal(t, msg.Message, join(segs))
	assert.Equal(t, "sh", segs[0].Text)
	assert.Equal(t, "t", segs[len(segs)-1].Text)
}

func TestSegments_SurrogatePairs(t *testing.T) {
	// "🎉" is two UTF-16 units
	msg := models.ChatMessage{
		Message:  "🎉 @ayşe",
		Mentions: []models.Mention{{Username: "ayşe", Indices: [2]int{3, 8}}},
	}
	segs := Segments(msg, "ayşe")
	require.Len(t, segs, 2)
	assert.Equal(t, "🎉 ", segs[0].Text)
	assert.Equal(t, "@ayşe", segs[1].Text)

	// an index inside the pair never splits it
	split := models.ChatMessage{Message: "🎉x", Mentions: []models.Mention{{Indices: [2]int{1, 3}}}}
	assert.Equal(t, split.Message, join(Segments(split, "")))
}

func TestSegments_ReconstructionProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	texts := []string{"", "a", "hello @bob and @carol", "çok güzel 🎉🎉 @ayşe", "@@@", "x🎉y🎉z"}

	for i := 0; i < 2000; i++ {
		text := texts[rng.Intn(len(texts))]
		var mentions []models.Mention
		for j := rng.Intn(5); j > 0; j-- {
			mentions = append(mentions, models.Mention{
				Username: "u",
				Indices:  [2]int{rng.Intn(30) - 5, rng.Intn(30) - 5},
			})
		}
		msg := models.ChatMessage{Message: text, Mentions: mentions}
		require.Equal(t, text, join(Segments(msg, "u")), "mentions %v", mentions)
	}
}

func TestMentionsUser(t *testing.T) {
	msg := models.ChatMessage{Mentions: []models.Mention{{Username: "Ali"}}}
	assert.True(t, MentionsUser(msg, "Ali"))
	assert.False(t, MentionsUser(msg, "ali"))
	assert.False(t, MentionsUser(msg, ""))
}

func TestParseMentionInput(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		cursor int
		want   MentionState
	}{
		{"start", "@al", 3, MentionState{IsActive: true, StartPosition: 0, Text: "al"}},
		{"after space", "hey @ve", 7, MentionState{IsActive: true, StartPosition: 4, Text: "ve"}},
		{"just at", "hey @", 5, MentionState{IsActive: true, StartPosition: 4, Text: ""}},
		{"email", "mail@host", 9, MentionState{}},
		{"space after", "@ali x", 6, MentionState{}},
		{"cursor mid", "@alice", 3, MentionState{IsActive: true, StartPosition: 0, Text: "al"}},
		{"unicode", "selam @ay", 9, MentionState{IsActive: true, StartPosition: 6, Text: "ay"}},
		{"cursor past end", "@a", 10, MentionState{IsActive: true, StartPosition: 0, Text: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMentionInput(tt.text, tt.cursor))
		})
	}
}

func TestCompleteMention(t *testing.T) {
	state := ParseMentionInput("hi @ay there", 6)
	require.True(t, state.IsActive)

	text, cursor := CompleteMention("hi @ay there", state, "ayşe")
	assert.Equal(t, "hi @ayşe  there", text)
	assert.Equal(t, 9, cursor)
}

func TestSuggest(t *testing.T) {
	players := []models.OnlinePlayer{
		{PlayerID: "1", Username: "Ayse"},
		{PlayerID: "2", Username: "ali"},
		{PlayerID: "3", Username: "bora"},
		{PlayerID: "4", Username: "ali"},
		{PlayerID: "5", Username: "me"},
	}

	got := Suggest(players, MentionState{IsActive: true, Text: "A"}, "me", 0)
	require.Len(t, got, 2)
	assert.Equal(t, "ali", got[0].Username)
	assert.Equal(t, "Ayse", got[1].Username)

	assert.Len(t, Suggest(players, MentionState{IsActive: true}, "me", 2), 2)
	assert.Nil(t, Suggest(players, MentionState{}, "me", 0))
}

func TestBanCommand(t *testing.T) {
	cmd, err := BanCommand("@troll", 15)
	require.NoError(t, err)
	assert.Equal(t, "/ban troll --minutes=15", cmd)
	assert.True(t, IsCommand(cmd))

	_, err = BanCommand("two words", 5)
	assert.ErrorIs(t, err, ErrInvalidCommand)
	_, err = BanCommand("troll", 0)
	assert.ErrorIs(t, err, ErrInvalidCommand)
}
