package entities

import (
	"time"

	"github.com/narulaskaran/social-graph/domain/core/valueobjects"
)

// Graph is a shareable container of profiles and connections.
// A graph is never updated after creation; deleting it removes everything it owns.
type Graph struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewGraph allocates a graph with a fresh identifier stamped at now
func NewGraph(now time.Time) *Graph {
	now = now.UTC()
	return &Graph{
		ID:        valueobjects.NewGraphID().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SharePath returns the front-end path used to share the graph
func (g *Graph) SharePath() string {
	return "/graph/" + g.ID
}
