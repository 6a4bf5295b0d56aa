package entities

import (
	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
)

// Connection is an undirected edge between two profiles of the same graph.
// Stored connections are canonical: ProfileAID sorts before ProfileBID.
type Connection struct {
	ProfileAID string `json:"profile_a_id"`
	ProfileBID string `json:"profile_b_id"`
	GraphID    string `json:"graph_id"`
}

// NewConnection returns the canonical edge between a and b.
// ok is false for a self-loop, which is never stored.
func NewConnection(a, b, graphID string) (c Connection, ok bool) {
	if a == b {
		return Connection{}, false
	}
	if b < a {
		a, b = b, a
	}
	return Connection{ProfileAID: a, ProfileBID: b, GraphID: graphID}, true
}

// Canonical reorders the endpoints so that ProfileAID < ProfileBID
func (c Connection) Canonical() (Connection, bool) {
	return NewConnection(c.ProfileAID, c.ProfileBID, c.GraphID)
}

// IsCanonical reports whether the endpoints are already ordered
func (c Connection) IsCanonical() bool {
	return c.ProfileAID < c.ProfileBID
}

// Key identifies the edge regardless of endpoint order
func (c Connection) Key() string {
	canonical, ok := c.Canonical()
	if !ok {
		canonical = c
	}
	return canonical.GraphID + "/" + canonical.ProfileAID + "/" + canonical.ProfileBID
}

// Involves reports whether id is one of the endpoints
func (c Connection) Involves(id string) bool {
	return c.ProfileAID == id || c.ProfileBID == id
}

// Validate checks that every field is populated
func (c Connection) Validate() error {
	if c.ProfileAID == "" || c.ProfileBID == "" {
		return pkgerrors.NewValidationError("connection endpoints are required")
	}
	if c.GraphID == "" {
		return pkgerrors.NewValidationError("connection graph_id is required")
	}
	return nil
}

// StarConnections connects center to each of others.
// Self-pairs and repeats are dropped; order follows others.
func StarConnections(graphID, center string, others []string) []Connection {
	conns := make([]Connection, 0, len(others))
	seen := make(map[string]bool, len(others))
	for _, other := range others {
		c, ok := NewConnection(center, other, graphID)
		if !ok || seen[c.Key()] {
			continue
		}
		seen[c.Key()] = true
		conns = append(conns, c)
	}
	return conns
}

// PairwiseConnections connects every unordered pair of distinct ids, giving
// n(n-1)/2 edges for n distinct ids.
func PairwiseConnections(graphID string, ids []string) []Connection {
	unique := make([]string, 0, len(ids))
	seenID := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seenID[id] {
			continue
		}
		seenID[id] = true
		unique = append(unique, id)
	}

	conns := make([]Connection, 0, len(unique)*(len(unique)-1)/2)
	for i := 0; i < len(unique); i++ {
		for j := i + 1; j < len(unique); j++ {
			c, _ := NewConnection(unique[i], unique[j], graphID)
			conns = append(conns, c)
		}
	}
	return conns
}

// DedupeConnections canonicalizes conns, dropping self-loops and repeats
func DedupeConnections(conns []Connection) []Connection {
	out := make([]Connection, 0, len(conns))
	seen := make(map[string]bool, len(conns))
	for _, c := range conns {
		canonical, ok := c.Canonical()
		if !ok || seen[canonical.Key()] {
			continue
		}
		seen[canonical.Key()] = true
		out = append(out, canonical)
	}
	return out
}
