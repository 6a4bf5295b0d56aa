package events

import "time"

// Source identifies this service on the event bus
const Source = "social-graph"

// Event types
const (
	TypeGraphCreated      = "graph.created"
	TypeGraphDeleted      = "graph.deleted"
	TypePeopleAdded       = "graph.people_added"
	TypeConnectionCreated = "connection.created"
	TypeConnectionDeleted = "connection.deleted"
)

// DomainEvent is the base interface for all domain events.
// Events describe something that has already happened.
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields. The aggregate is always a graph.
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(graphID, eventType string, at time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: graphID,
		EventType:   eventType,
		Timestamp:   at.UTC(),
		Version:     1,
	}
}
