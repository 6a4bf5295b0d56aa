package dynamodb

import (
	"time"

	"github.com/narulaskaran/social-graph/domain/core/entities"
)

// Single table layout:
//
//	GRAPH#<g>   METADATA           graph
//	GRAPH#<g>   NAME#<first|||last> profile, keyed by identity within the graph
//	GRAPH#<g>   CONN#<a>#<b>        connection, a < b
//	PROFILE#<p> PROFILE            profile, keyed by id for global uniqueness
const (
	attrPK         = "PK"
	attrSK         = "SK"
	attrEntityType = "EntityType"
	attrGraphID    = "GraphID"

	entityGraph      = "GRAPH"
	entityProfile    = "PROFILE"
	entityName       = "PROFILE_NAME"
	entityConnection = "CONNECTION"

	skMetadata   = "METADATA"
	skProfile    = "PROFILE"
	skNamePrefix = "NAME#"
	skConnPrefix = "CONN#"
)

type item struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	GraphID    string `dynamodbav:"GraphID"`
	ProfileID  string `dynamodbav:"ProfileID,omitempty"`
	FirstName  string `dynamodbav:"FirstName,omitempty"`
	LastName   string `dynamodbav:"LastName,omitempty"`
	ProfileAID string `dynamodbav:"ProfileAID,omitempty"`
	ProfileBID string `dynamodbav:"ProfileBID,omitempty"`
	CreatedAt  string `dynamodbav:"CreatedAt,omitempty"`
	UpdatedAt  string `dynamodbav:"UpdatedAt,omitempty"`
}

type key struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
}

func graphPK(graphID string) string {
	return "GRAPH#" + graphID
}

func profilePK(profileID string) string {
	return "PROFILE#" + profileID
}

func nameSK(identity string) string {
	return skNamePrefix + identity
}

func connectionSK(a, b string) string {
	return skConnPrefix + a + "#" + b
}

func graphKey(graphID string) key {
	return key{PK: graphPK(graphID), SK: skMetadata}
}

func profileKey(profileID string) key {
	return key{PK: profilePK(profileID), SK: skProfile}
}

func nameKey(graphID, identity string) key {
	return key{PK: graphPK(graphID), SK: nameSK(identity)}
}

func connectionKey(c entities.Connection) key {
	return key{PK: graphPK(c.GraphID), SK: connectionSK(c.ProfileAID, c.ProfileBID)}
}

func graphItem(g *entities.Graph) item {
	return item{
		PK:         graphPK(g.ID),
		SK:         skMetadata,
		EntityType: entityGraph,
		GraphID:    g.ID,
		CreatedAt:  g.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  g.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func nameItem(p entities.Profile) item {
	return item{
		PK:         graphPK(p.GraphID),
		SK:         nameSK(p.NameKey()),
		EntityType: entityName,
		GraphID:    p.GraphID,
		ProfileID:  p.ID,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
	}
}

func profileItem(p entities.Profile) item {
	return item{
		PK:         profilePK(p.ID),
		SK:         skProfile,
		EntityType: entityProfile,
		GraphID:    p.GraphID,
		ProfileID:  p.ID,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
	}
}

func connectionItem(c entities.Connection) item {
	return item{
		PK:         graphPK(c.GraphID),
		SK:         connectionSK(c.ProfileAID, c.ProfileBID),
		EntityType: entityConnection,
		GraphID:    c.GraphID,
		ProfileAID: c.ProfileAID,
		ProfileBID: c.ProfileBID,
	}
}

func (it item) graph() (*entities.Graph, error) {
	created, err := time.Parse(time.RFC3339Nano, it.CreatedAt)
	if err != nil {
		return nil, err
	}
	updated, err := time.Parse(time.RFC3339Nano, it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &entities.Graph{ID: it.GraphID, CreatedAt: created, UpdatedAt: updated}, nil
}

func (it item) profile() entities.Profile {
	return entities.Profile{ID: it.ProfileID, FirstName: it.FirstName, LastName: it.LastName, GraphID: it.GraphID}
}

func (it item) connection() entities.Connection {
	return entities.Connection{ProfileAID: it.ProfileAID, ProfileBID: it.ProfileBID, GraphID: it.GraphID}
}
