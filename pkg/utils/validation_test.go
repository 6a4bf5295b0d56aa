package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
)

type sample struct {
	GraphID string   `json:"graph_id" validate:"required,graphid"`
	Name    string   `json:"name" validate:"max=5"`
	Tags    []string `json:"tags" validate:"required,max=2"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		in      sample
		wantErr string
	}{
		{"valid", sample{GraphID: "AbCdEfGhJkMn", Tags: []string{}}, ""},
		{"missing graph id", sample{Tags: []string{}}, "graph_id is required"},
		{"bad graph id", sample{GraphID: "O0O0O0O0O0O0", Tags: []string{}}, "graph_id is not a valid graph id"},
		{"long name", sample{GraphID: "AbCdEfGhJkMn", Name: "toolong", Tags: []string{}}, "name must be at most 5 characters"},
		{"nil slice", sample{GraphID: "AbCdEfGhJkMn"}, "tags is required"},
		{"too many tags", sample{GraphID: "AbCdEfGhJkMn", Tags: []string{"a", "b", "c"}}, "tags must contain at most 2 entries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.in)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
			appErr := pkgerrors.GetAppError(err)
			assert.Equal(t, tt.wantErr, appErr.Message)
			assert.Len(t, appErr.Details, 1)
		})
	}
}
