package domain

import "time"

// AuditEvent is one append-only record of a staff action. Actor fields are
// denormalised onto the event at read time so reports do not need a second
// lookup.
type AuditEvent struct {
	ID         string
	TenantID   string
	ActorID    string
	ActorEmail string
	ActorName  string
	ActorRole  string
	Action     string
	EntityType string
	EntityID   string
	OccurredAt time.Time
}
