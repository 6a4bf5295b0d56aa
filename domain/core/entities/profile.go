package entities

import (
	"github.com/narulaskaran/social-graph/domain/core/valueobjects"
	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
)

// Profile is a person within exactly one graph.
// (FirstName, LastName, GraphID) is unique, so two people with the same name
// in one graph share a profile.
type Profile struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	GraphID   string `json:"graph_id"`
}

// NewProfile creates a profile with a fresh identifier
func NewProfile(graphID string, name valueobjects.PersonName) Profile {
	return Profile{
		ID:        valueobjects.NewProfileID(),
		FirstName: name.First(),
		LastName:  name.Last(),
		GraphID:   graphID,
	}
}

// NameKey returns the identity key used for de-duplication
func (p Profile) NameKey() string {
	return p.FirstName + "|||" + p.LastName
}

// Validate checks that every field is populated
func (p Profile) Validate() error {
	switch {
	case p.ID == "":
		return pkgerrors.NewValidationError("profile id is required")
	case p.GraphID == "":
		return pkgerrors.NewValidationError("profile graph_id is required")
	case p.FirstName == "" || p.LastName == "":
		return pkgerrors.NewValidationError("profile first_name and last_name are required")
	}
	return nil
}
