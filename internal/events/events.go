package events

import "time"

// CanonicalEvent represents a versioned domain event.
type CanonicalEvent interface {
	EventType() string
}

// AccountDeletedV1 is published when a user asks for their account to
// be removed. The teardown worker consumes it and purges everything the
// account owns.
type AccountDeletedV1 struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventType implements CanonicalEvent.
func (AccountDeletedV1) EventType() string { return "account_deleted.v1" }

// PaymentRequestCreatedV1 is emitted when a payment-request document is
// appended to a user's payments subcollection. The orchestration worker
// consumes it when orchestration runs out of process.
type PaymentRequestCreatedV1 struct {
	UserID     string    `json:"user_id"`
	PushID     string    `json:"push_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventType implements CanonicalEvent.
func (PaymentRequestCreatedV1) EventType() string { return "payment_request_created.v1" }
