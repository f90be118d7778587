package outbox

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentEvent is the data block for appointment.* events.
type AppointmentEvent struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
	FullName      string    `json:"fullName"`
	Phone         string    `json:"phone"`
	Email         *string   `json:"email,omitempty"`
	StartsAt      time.Time `json:"startsAt"`
	EndsAt        time.Time `json:"endsAt"`
	Status        string    `json:"status"`
}

// OrderEvent is the data block for order.* events.
type OrderEvent struct {
	OrderID          uuid.UUID `json:"orderId"`
	UserID           uuid.UUID `json:"userId"`
	Status           string    `json:"status"`
	TotalCents       int64     `json:"totalCents"`
	Currency         string    `json:"currency"`
	PaymentIntentRef *string   `json:"paymentIntentRef,omitempty"`
	FailureReason    *string   `json:"failureReason,omitempty"`
}
