package models

// Outbox event types emitted by the split engine.
const (
	EventGroupCompleted    = "split.group_completed"
	EventInstallmentFailed = "split.installment_failed"
)

// OutboxEvent is a notification recorded inside the same database transaction
// as the ledger change it describes. A dispatcher delivers events after
// commit, so delivery failure can never roll back a verified payment.
// Delivery is at-least-once; consumers deduplicate on ID.
type OutboxEvent struct {
	// ID is the unique identifier for the event (UUID format).
	ID string

	// GroupID is the split group the event concerns.
	GroupID string

	// EventType is one of the Event* constants.
	EventType string

	// Payload is a JSON document describing the event.
	Payload string

	// CreatedAt is the Unix timestamp when the event was recorded.
	CreatedAt int64

	// DispatchedAt is the Unix timestamp of successful delivery, 0 while
	// the event is still pending.
	DispatchedAt int64
}
