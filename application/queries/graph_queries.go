package queries

import "github.com/narulaskaran/social-graph/pkg/utils"

// GetGraphBundleQuery fetches a graph with all its profiles and connections
type GetGraphBundleQuery struct {
	GraphID string `json:"graph_id" validate:"required,graphid"`
}

func (q GetGraphBundleQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// ListProfilesQuery lists the profiles of one graph, or of every graph
// when GraphID is empty
type ListProfilesQuery struct {
	GraphID string `json:"graph_id" validate:"omitempty,graphid"`
}

func (q ListProfilesQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// ListConnectionsQuery lists the connections of one graph, or of every
// graph when GraphID is empty
type ListConnectionsQuery struct {
	GraphID string `json:"graph_id" validate:"omitempty,graphid"`
}

func (q ListConnectionsQuery) Validate() error {
	return utils.ValidateStruct(q)
}
