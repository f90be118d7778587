package enums

import "fmt"

// OutboxAggregateType identifies the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateAppointment OutboxAggregateType = "appointment"
	AggregateOrder       OutboxAggregateType = "order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateAppointment,
	AggregateOrder,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a domain event written to the outbox.
type OutboxEventType string

const (
	EventAppointmentRequested   OutboxEventType = "appointment.requested"
	EventAppointmentConfirmed   OutboxEventType = "appointment.confirmed"
	EventAppointmentCancelled   OutboxEventType = "appointment.cancelled"
	EventAppointmentRescheduled OutboxEventType = "appointment.rescheduled"
	EventOrderCreated           OutboxEventType = "order.created"
	EventOrderPaid              OutboxEventType = "order.paid"
	EventOrderFailed            OutboxEventType = "order.failed"
	EventOrderCompleted         OutboxEventType = "order.completed"
	EventOrderExpired           OutboxEventType = "order.expired"
)

var validOutboxEventTypes = []OutboxEventType{
	EventAppointmentRequested,
	EventAppointmentConfirmed,
	EventAppointmentCancelled,
	EventAppointmentRescheduled,
	EventOrderCreated,
	EventOrderPaid,
	EventOrderFailed,
	EventOrderCompleted,
	EventOrderExpired,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
