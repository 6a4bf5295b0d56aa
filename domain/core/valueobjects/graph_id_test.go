package valueobjects

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGraphID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id := NewGraphID()
		require.Len(t, id.String(), GraphIDLength)
		assert.True(t, IsValidGraphID(id.String()), "generated id %q should validate", id)
		seen[id.String()] = true
	}
	assert.Len(t, seen, 500)
}

func TestNewGraphID_AvoidsAmbiguousCharacters(t *testing.T) {
	for i := 0; i < 200; i++ {
		id := NewGraphID().String()
		assert.False(t, strings.ContainsAny(id, "01ILOilo"), "id %q contains an ambiguous character", id)
	}
}

func TestIsValidGraphID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "valid", input: "abcDEF234567", want: true},
		{name: "too short", input: "abcDEF23456", want: false},
		{name: "too long", input: "abcDEF2345678", want: false},
		{name: "empty", input: "", want: false},
		{name: "contains zero", input: "abcDEF234560", want: false},
		{name: "contains lowercase l", input: "abcDEF23456l", want: false},
		{name: "contains punctuation", input: "abcDEF23456-", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidGraphID(tt.input))
		})
	}
}

func TestParseGraphID(t *testing.T) {
	id, err := ParseGraphID("Hk7mPq2RsTuV")
	require.NoError(t, err)
	assert.Equal(t, "Hk7mPq2RsTuV", id.String())

	_, err = ParseGraphID("")
	assert.Error(t, err)

	_, err = ParseGraphID("not-valid")
	assert.Error(t, err)
}

func TestGraphID_JSON(t *testing.T) {
	id, err := ParseGraphID("Hk7mPq2RsTuV")
	require.NoError(t, err)

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"Hk7mPq2RsTuV"`, string(data))

	var decoded GraphID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)

	assert.Error(t, json.Unmarshal([]byte(`"bad"`), &decoded))
}
