// Package queue defines the registration events exchanged over RabbitMQ and
// the consumer that turns them into participant notifications.
package queue

import (
	"time"

	"github.com/esplendidez/fest-registration/internal/model"
)

// Queue names double as routing keys on the default exchange.
const (
	QueueRegistrationSubmitted = "registration.submitted"
	QueuePaymentConfirmed      = "payment.confirmed"
)

// Queues lists every queue the consumer declares.
var Queues = []string{QueueRegistrationSubmitted, QueuePaymentConfirmed}

// RegistrationEvent carries enough of the registration for a notification
// to be rendered without querying the database.
type RegistrationEvent struct {
	Type       string             `json:"type"`
	Summary    model.EmailSummary `json:"summary"`
	UTR        string             `json:"utr,omitempty"`
	OccurredAt string             `json:"occurred_at"`
}

// NewRegistrationSubmitted builds the event published after a successful insert.
func NewRegistrationSubmitted(reg *model.Registration) RegistrationEvent {
	return RegistrationEvent{
		Type:       QueueRegistrationSubmitted,
		Summary:    reg.Summary(),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// NewPaymentConfirmed builds the event published when a payment moves to
// confirmed, either through UTR verification or an admin action.
func NewPaymentConfirmed(reg *model.Registration) RegistrationEvent {
	ev := RegistrationEvent{
		Type:       QueuePaymentConfirmed,
		Summary:    reg.Summary(),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	if reg.UTRNumber != nil {
		ev.UTR = *reg.UTRNumber
	}
	return ev
}
