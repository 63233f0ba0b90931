package chat

import (
	"sort"
	"unicode/utf16"

	"github.com/mcdev12/priceguess/go/internal/models"
)

// SegmentKind tells plain text and mention spans apart.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentMention
)

// Segment is one piece of a rendered chat message.
type Segment struct {
	Kind    SegmentKind     `json:"kind"`
	Text    string          `json:"text"`
	Mention *models.Mention `json:"mention,omitempty"`
	// Self is set on mentions of the viewing user.
	Self bool `json:"self,omitempty"`
}

type span struct {
	start, end int
	mention    models.Mention
}

// Segments splits msg into interleaved text and mention segments. Mention
// indices are UTF-16 offsets; out-of-range indices are clamped, inverted ones
// dropped, and when spans overlap the later one (by start) wins and the
// earlier one is cut at its start. Concatenating the Text of all segments
// always yields msg.Message.
func Segments(msg models.ChatMessage, viewer string) []Segment {
	units := utf16.Encode([]rune(msg.Message))
	spans := normalizeSpans(units, msg.Mentions)

	var out []Segment
	pos := 0
	for _, s := range spans {
		if s.start > pos {
			out = append(out, Segment{Kind: SegmentText, Text: decode(units[pos:s.start])})
		}
		m := s.mention
		out = append(out, Segment{
			Kind:    SegmentMention,
			Text:    decode(units[s.start:s.end]),
			Mention: &m,
			Self:    viewer != "" && m.Username == viewer,
		})
		pos = s.end
	}
	if pos < len(units) {
		out = append(out, Segment{Kind: SegmentText, Text: decode(units[pos:])})
	}
	return out
}

// MentionsUser reports whether msg mentions the viewer by username.
func MentionsUser(msg models.ChatMessage, viewer string) bool {
	if viewer == "" {
		return false
	}
	for _, m := range msg.Mentions {
		if m.Username == viewer {
			return true
		}
	}
	return false
}

func normalizeSpans(units []uint16, mentions []models.Mention) []span {
	n := len(units)
	spans := make([]span, 0, len(mentions))
	for _, m := range mentions {
		start := snap(units, clamp(m.Start(), 0, n))
		end := snap(units, clamp(m.End(), 0, n))
		if start >= end {
			continue
		}
		spans = append(spans, span{start: start, end: end, mention: m})
	}

	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	out := spans[:0]
	for _, s := range spans {
		for len(out) > 0 && out[len(out)-1].end > s.start {
			last := &out[len(out)-1]
			last.end = s.start
			if last.start >= last.end {
				out = out[:len(out)-1]
				continue
			}
			break
		}
		out = append(out, s)
	}
	return out
}

// snap moves an index off the low half of a surrogate pair.
func snap(units []uint16, i int) int {
	if i > 0 && i < len(units) && utf16.IsSurrogate(rune(units[i])) && units[i] >= 0xDC00 && units[i-1] >= 0xD800 && units[i-1] < 0xDC00 {
		return i + 1
	}
	return i
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func decode(units []uint16) string {
	return string(utf16.Decode(units))
}
