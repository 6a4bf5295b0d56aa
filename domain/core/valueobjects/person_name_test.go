package valueobjects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersonName(t *testing.T) {
	tests := []struct {
		name      string
		first     string
		last      string
		maxLen    int
		wantKey   string
		wantError bool
	}{
		{name: "simple", first: "Alice", last: "Smith", wantKey: "Alice|||Smith"},
		{name: "trims whitespace", first: "  Bob ", last: "\tJones", wantKey: "Bob|||Jones"},
		{name: "blank first", first: "   ", last: "Jones", wantError: true},
		{name: "missing last", first: "Bob", last: "", wantError: true},
		{name: "too long", first: "Bartholomew", last: "Jones", maxLen: 5, wantError: true},
		{name: "length limit disabled", first: "Bartholomew", last: "Jones", maxLen: 0, wantKey: "Bartholomew|||Jones"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewPersonName(tt.first, tt.last, tt.maxLen)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, n.Key())
		})
	}
}

func TestPersonName_KeyIsCaseSensitive(t *testing.T) {
	a, err := NewPersonName("alice", "smith", 0)
	require.NoError(t, err)
	b, err := NewPersonName("Alice", "Smith", 0)
	require.NoError(t, err)
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestParseFullName(t *testing.T) {
	n, err := ParseFullName("Mary Anne Smith", 0)
	require.NoError(t, err)
	assert.Equal(t, "Mary Anne", n.First())
	assert.Equal(t, "Smith", n.Last())
	assert.Equal(t, "Mary Anne Smith", n.String())

	n, err = ParseFullName("  Mary \t Ann  Evans ", 0)
	require.NoError(t, err)
	assert.Equal(t, "Mary Ann", n.First())
	assert.Equal(t, "Evans", n.Last())

	_, err = ParseFullName("Cher", 0)
	assert.ErrorIs(t, err, ErrBlankName)

	_, err = ParseFullName("   ", 0)
	assert.ErrorIs(t, err, ErrBlankName)

	_, err = ParseFullName("Ann Abcdefghij", 5)
	assert.Error(t, err)
}
