// Package persistence holds helpers shared by the GraphStore variants and the
// instrumented decorator that wraps them.
package persistence

import (
	"github.com/narulaskaran/social-graph/application/ports"
	"github.com/narulaskaran/social-graph/domain/core/entities"
	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
)

// ValidateBatch checks every record for missing fields before any storage access
func ValidateBatch(batch ports.Batch) error {
	for _, p := range batch.Profiles {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	for _, c := range batch.Connections {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// NewBatchResult returns an empty result ready for a batch of n profiles
func NewBatchResult(n int) *ports.BatchResult {
	return &ports.BatchResult{ProfileIDs: make(map[string]string, n)}
}

// ProfilesOnly wraps profiles in a batch
func ProfilesOnly(profiles ...entities.Profile) ports.Batch {
	return ports.Batch{Profiles: profiles}
}

// ConnectionsOnly wraps connections in a batch
func ConnectionsOnly(conns ...entities.Connection) ports.Batch {
	return ports.Batch{Connections: conns}
}

// ErrGraphNotFound reports a write against a graph that does not exist
func ErrGraphNotFound(graphID string) error {
	return pkgerrors.NewNotFoundError("graph").WithDetail("graph_id", graphID)
}

// ErrProfileNotFound reports a connection endpoint that is not a profile of the graph
func ErrProfileNotFound(profileID, graphID string) error {
	return pkgerrors.NewNotFoundError("profile").
		WithDetail("profile_id", profileID).
		WithDetail("graph_id", graphID)
}

// ErrProfileIDConflict reports a profile id already taken by a different person
func ErrProfileIDConflict(profileID string) error {
	return pkgerrors.NewConflictError("profile id is already in use").WithDetail("profile_id", profileID)
}
