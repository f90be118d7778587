package orders

import (
	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
	"github.com/halcyon-wellness/storefront-api/pkg/enums"
	"github.com/halcyon-wellness/storefront-api/pkg/outbox"
)

// Event builds the outbox record for an order lifecycle change.
func Event(eventType enums.OutboxEventType, o *models.Order) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   o.ID,
		Data: outbox.OrderEvent{
			OrderID:          o.ID,
			UserID:           o.UserID,
			Status:           string(o.Status),
			TotalCents:       o.TotalCents,
			Currency:         o.Currency,
			PaymentIntentRef: o.PaymentIntentRef,
			FailureReason:    o.FailureReason,
		},
	}
}
