package ports

import (
	"context"

	"github.com/narulaskaran/social-graph/domain/core/entities"
	"github.com/narulaskaran/social-graph/domain/core/valueobjects"
)

// GraphStore is the persistence boundary for graphs, profiles and connections.
//
// Lookups of a single record return (nil, nil) when the record is absent.
// Failures are *errors.AppError values: VALIDATION for malformed input,
// NOT_FOUND for a missing graph or profile that a write depends on, CONFLICT
// for an id collision or a race lost on a unique key, DATABASE for anything
// else. Duplicate profiles, duplicate edges and self-loops are silent no-ops.
// Implementations never retry.
type GraphStore interface {
	// CreateGraph allocates and persists a new graph
	CreateGraph(ctx context.Context) (*entities.Graph, error)
	GetGraph(ctx context.Context, id string) (*entities.Graph, error)
	// DeleteGraph removes the graph with its profiles and connections.
	// Deleting an unknown graph is a no-op.
	DeleteGraph(ctx context.Context, id string) error

	UpsertProfile(ctx context.Context, profile entities.Profile) error
	UpsertProfiles(ctx context.Context, profiles []entities.Profile) error
	GetProfile(ctx context.Context, id string) (*entities.Profile, error)
	// GetProfiles lists the profiles of graphID, or of every graph when graphID is empty
	GetProfiles(ctx context.Context, graphID string) ([]entities.Profile, error)
	FindProfileByName(ctx context.Context, graphID string, name valueobjects.PersonName) (*entities.Profile, error)

	UpsertConnection(ctx context.Context, conn entities.Connection) error
	UpsertConnections(ctx context.Context, conns []entities.Connection) error
	// GetConnections lists the connections of graphID, or of every graph when graphID is empty
	GetConnections(ctx context.Context, graphID string) ([]entities.Connection, error)
	// DeleteConnection removes the edge between a and b in either orientation
	DeleteConnection(ctx context.Context, a, b, graphID string) error

	// ApplyBatch writes profiles then connections as one atomic unit
	ApplyBatch(ctx context.Context, batch Batch) (*BatchResult, error)

	// ClearDatabase wipes every record. Intended for test isolation.
	ClearDatabase(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Batch is a set of writes applied all-or-nothing.
//
// Profiles are applied in order. A profile whose (first, last, graph) already
// exists, in storage or earlier in the batch, is not inserted and its id is
// remapped to the stored profile's id. Connection endpoints are rewritten
// through that remap before canonicalization, so a batch can reference the ids
// it proposed even when another writer got there first. A connection whose
// endpoint is not a profile of its graph rejects the whole batch.
type Batch struct {
	Profiles    []entities.Profile
	Connections []entities.Connection
}

// IsEmpty reports whether the batch has nothing to write
func (b Batch) IsEmpty() bool {
	return len(b.Profiles) == 0 && len(b.Connections) == 0
}

// BatchResult describes what a committed batch changed
type BatchResult struct {
	// ProfileIDs maps each requested profile id to the id actually stored
	ProfileIDs         map[string]string
	ProfilesCreated    int
	ConnectionsCreated int
}

// Resolve returns the stored id for a requested profile id
func (r *BatchResult) Resolve(id string) string {
	if r == nil {
		return id
	}
	if stored, ok := r.ProfileIDs[id]; ok {
		return stored
	}
	return id
}
