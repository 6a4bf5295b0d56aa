package valueobjects

import "github.com/google/uuid"

// NewProfileID returns a fresh identifier for a profile created during ingestion
func NewProfileID() string {
	return uuid.New().String()
}
