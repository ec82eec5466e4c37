package events

import "time"

// DomainEvent is the contract every published event satisfies; the broker
// layer keys and tags records from it.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}
