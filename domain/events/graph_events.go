package events

import "time"

// GraphCreated is raised when a new graph is allocated
type GraphCreated struct {
	BaseEvent
	GraphID string `json:"graph_id"`
}

// NewGraphCreated creates a GraphCreated event
func NewGraphCreated(graphID string, at time.Time) GraphCreated {
	return GraphCreated{BaseEvent: newBase(graphID, TypeGraphCreated, at), GraphID: graphID}
}

// GraphDeleted is raised after a graph and everything it owns are removed
type GraphDeleted struct {
	BaseEvent
	GraphID string `json:"graph_id"`
}

// NewGraphDeleted creates a GraphDeleted event
func NewGraphDeleted(graphID string, at time.Time) GraphDeleted {
	return GraphDeleted{BaseEvent: newBase(graphID, TypeGraphDeleted, at), GraphID: graphID}
}

// PeopleAdded is raised when an ingestion request commits
type PeopleAdded struct {
	BaseEvent
	GraphID            string `json:"graph_id"`
	SelfID             string `json:"self_id"`
	ProfilesCreated    int    `json:"profiles_created"`
	ConnectionsCreated int    `json:"connections_created"`
	ConnectEveryone    bool   `json:"connect_everyone"`
}

// NewPeopleAdded creates a PeopleAdded event
func NewPeopleAdded(graphID, selfID string, profiles, connections int, everyone bool, at time.Time) PeopleAdded {
	return PeopleAdded{
		BaseEvent:          newBase(graphID, TypePeopleAdded, at),
		GraphID:            graphID,
		SelfID:             selfID,
		ProfilesCreated:    profiles,
		ConnectionsCreated: connections,
		ConnectEveryone:    everyone,
	}
}

// ConnectionCreated is raised when an edge is requested directly
type ConnectionCreated struct {
	BaseEvent
	GraphID    string `json:"graph_id"`
	ProfileAID string `json:"profile_a_id"`
	ProfileBID string `json:"profile_b_id"`
}

// NewConnectionCreated creates a ConnectionCreated event
func NewConnectionCreated(graphID, a, b string, at time.Time) ConnectionCreated {
	return ConnectionCreated{
		BaseEvent:  newBase(graphID, TypeConnectionCreated, at),
		GraphID:    graphID,
		ProfileAID: a,
		ProfileBID: b,
	}
}

// ConnectionDeleted is raised when an edge removal is requested
type ConnectionDeleted struct {
	BaseEvent
	GraphID    string `json:"graph_id"`
	ProfileAID string `json:"profile_a_id"`
	ProfileBID string `json:"profile_b_id"`
}

// NewConnectionDeleted creates a ConnectionDeleted event
func NewConnectionDeleted(graphID, a, b string, at time.Time) ConnectionDeleted {
	return ConnectionDeleted{
		BaseEvent:  newBase(graphID, TypeConnectionDeleted, at),
		GraphID:    graphID,
		ProfileAID: a,
		ProfileBID: b,
	}
}
