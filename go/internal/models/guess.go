package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Direction is the feedback for the local player's own guess.
type Direction string

const (
	DirectionCorrect  Direction = "correct"
	DirectionGoHigher Direction = "go_higher"
	DirectionGoLower  Direction = "go_lower"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	switch d {
	case DirectionCorrect, DirectionGoHigher, DirectionGoLower:
		return true
	}
	return false
}

var (
	ErrEmptyGuess    = errors.New("guess is empty")
	ErrInvalidNumber = errors.New("guess is not a valid price")
	ErrNonPositive   = errors.New("guess must be greater than zero")
)

// GuessValue is either a price or, for text rooms, a free-form answer.
type GuessValue struct {
	Price *decimal.Decimal
	Text  string
}

// IsNumeric reports whether the guess carries a price.
func (g GuessValue) IsNumeric() bool { return g.Price != nil }

func (g GuessValue) String() string {
	if g.Price != nil {
		return g.Price.String()
	}
	return g.Text
}

// MarshalJSON encodes prices as JSON numbers and text answers as strings.
func (g GuessValue) MarshalJSON() ([]byte, error) {
	if g.Price != nil {
		return []byte(g.Price.String()), nil
	}
	return json.Marshal(g.Text)
}

// PriceGuess wraps a price.
func PriceGuess(p decimal.Decimal) GuessValue {
	return GuessValue{Price: &p}
}

// ParseGuess parses user input. Numeric input accepts currency symbols and
// either "." or "," as thousands separators, e.g. "1.250.000 TL" or "$1,250.50".
func ParseGuess(input string, numeric bool) (GuessValue, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return GuessValue{}, ErrEmptyGuess
	}
	if !numeric {
		return GuessValue{Text: input}, nil
	}

	price, err := ParsePrice(input)
	if err != nil {
		return GuessValue{}, err
	}
	return PriceGuess(price), nil
}

// ParsePrice normalises a human-typed price into a decimal.
func ParsePrice(input string) (decimal.Decimal, error) {
	var b strings.Builder
	for _, r := range input {
		switch {
		case unicode.IsDigit(r), r == '.', r == ',':
			b.WriteRune(r)
		case unicode.IsSpace(r), unicode.IsLetter(r), unicode.Is(unicode.Sc, r), r == '\'':
			// currency codes, symbols and grouping spaces
		default:
			return decimal.Zero, fmt.Errorf("%w: unexpected %q", ErrInvalidNumber, r)
		}
	}

	normalized := normalizeSeparators(b.String())
	if normalized == "" {
		return decimal.Zero, ErrInvalidNumber
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", ErrInvalidNumber, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrNonPositive
	}
	return d, nil
}

func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// the separator that appears last is the decimal mark
		if lastDot > lastComma {
			return strings.ReplaceAll(s, ",", "")
		}
		s = strings.ReplaceAll(s, ".", "")
		return strings.Replace(s, ",", ".", 1)
	case lastDot >= 0:
		return resolveSingleSeparator(s, ".")
	case lastComma >= 0:
		return resolveSingleSeparator(s, ",")
	}
	return s
}

func resolveSingleSeparator(s, sep string) string {
	if strings.Count(s, sep) > 1 {
		return strings.ReplaceAll(s, sep, "")
	}
	idx := strings.Index(s, sep)
	if len(s)-idx-1 == 3 {
		return strings.Replace(s, sep, "", 1)
	}
	return strings.Replace(s, sep, ".", 1)
}
