package valueobjects

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// GraphIDLength is the number of characters in a graph identifier
const GraphIDLength = 12

// GraphIDAlphabet contains digits and letters that are hard to confuse when
// read aloud or copied by hand. 0, 1, I, L, O and their lowercase forms are
// left out.
const GraphIDAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz"

var alphabetSize = big.NewInt(int64(len(GraphIDAlphabet)))

// GraphID is a value object representing a shareable graph identifier
type GraphID struct {
	value string
}

// NewGraphID generates a random GraphID.
// Collisions are not checked here; the store's primary key rejects them.
func NewGraphID() GraphID {
	var b strings.Builder
	b.Grow(GraphIDLength)
	for i := 0; i < GraphIDLength; i++ {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken
			panic("valueobjects: reading random source: " + err.Error())
		}
		b.WriteByte(GraphIDAlphabet[n.Int64()])
	}
	return GraphID{value: b.String()}
}

// ParseGraphID creates a GraphID from an existing string
func ParseGraphID(id string) (GraphID, error) {
	if id == "" {
		return GraphID{}, errors.New("graph ID cannot be empty")
	}
	if !IsValidGraphID(id) {
		return GraphID{}, errors.New("graph ID must be 12 characters from the graph ID alphabet")
	}
	return GraphID{value: id}, nil
}

// IsValidGraphID reports whether s has the exact length and alphabet of a generated id
func IsValidGraphID(s string) bool {
	if len(s) != GraphIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(GraphIDAlphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}

// String returns the string representation of the GraphID
func (id GraphID) String() string {
	return id.value
}

// IsZero checks if the GraphID is the zero value
func (id GraphID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id GraphID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *GraphID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("GraphID must be a string")
	}
	parsed, err := ParseGraphID(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
