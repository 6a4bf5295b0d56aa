package commands

import (
	"github.com/narulaskaran/social-graph/application/services"
	"github.com/narulaskaran/social-graph/domain/core/entities"
	"github.com/narulaskaran/social-graph/pkg/utils"
)

// CreateGraphCommand allocates a new, empty graph
type CreateGraphCommand struct{}

func (c CreateGraphCommand) Validate() error { return nil }

// CreateGraphResult is the new graph and the path it can be shared at
type CreateGraphResult struct {
	Graph     *entities.Graph `json:"graph"`
	SharePath string          `json:"share_path"`
}

// DeleteGraphCommand removes a graph with everything in it
type DeleteGraphCommand struct {
	GraphID string `json:"graph_id" validate:"required,graphid"`
}

func (c DeleteGraphCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// AddToGraphCommand submits a person and the people they know.
// Name checks happen in the ingestion service, which filters bad
// connection entries instead of rejecting the request.
type AddToGraphCommand struct {
	GraphID         string            `json:"graph_id" validate:"required,graphid"`
	Self            services.Person   `json:"self"`
	Connections     []services.Person `json:"connections" validate:"required"`
	ConnectEveryone bool              `json:"connect_everyone"`
}

func (c AddToGraphCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// CreateConnectionCommand links two existing profiles of a graph
type CreateConnectionCommand struct {
	GraphID string `json:"graph_id" validate:"required,graphid"`
	Source  string `json:"source" validate:"required"`
	Target  string `json:"target" validate:"required"`
}

func (c CreateConnectionCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// DeleteConnectionCommand unlinks two profiles. Either orientation matches.
type DeleteConnectionCommand struct {
	GraphID string `json:"graph_id" validate:"required,graphid"`
	Source  string `json:"source" validate:"required"`
	Target  string `json:"target" validate:"required"`
}

func (c DeleteConnectionCommand) Validate() error {
	return utils.ValidateStruct(c)
}
