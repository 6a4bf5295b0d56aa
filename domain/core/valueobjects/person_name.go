package valueobjects

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// nameKeySeparator joins first and last name into an identity key.
// It cannot appear in a key unless a name itself contains it.
const nameKeySeparator = "|||"

// ErrBlankName is returned when either half of a name is missing
var ErrBlankName = errors.New("first_name and last_name are required")

// PersonName is the (first, last) pair used to identify a person within a graph
type PersonName struct {
	first string
	last  string
}

// NewPersonName trims both parts and rejects blanks or names over maxLen runes.
// A maxLen of zero disables the length check.
func NewPersonName(first, last string, maxLen int) (PersonName, error) {
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)
	if first == "" || last == "" {
		return PersonName{}, ErrBlankName
	}
	if maxLen > 0 && (utf8.RuneCountInString(first) > maxLen || utf8.RuneCountInString(last) > maxLen) {
		return PersonName{}, fmt.Errorf("names must be at most %d characters", maxLen)
	}
	return PersonName{first: first, last: last}, nil
}

// First returns the first name
func (n PersonName) First() string { return n.first }

// Last returns the last name
func (n PersonName) Last() string { return n.last }

// Key returns the identity key "first|||last"
func (n PersonName) Key() string {
	return n.first + nameKeySeparator + n.last
}

// String returns "First Last"
func (n PersonName) String() string {
	return n.first + " " + n.last
}

// ParseFullName splits "First Last" before the final word. Multi-word first
// names such as "Mary Anne Smith" keep everything before it, and runs of
// whitespace collapse to a single space.
func ParseFullName(full string, maxLen int) (PersonName, error) {
	words := strings.Fields(full)
	if len(words) < 2 {
		return PersonName{}, ErrBlankName
	}
	last := len(words) - 1
	return NewPersonName(strings.Join(words[:last], " "), words[last], maxLen)
}
