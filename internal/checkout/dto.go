package checkout

import (
	"github.com/google/uuid"

	"github.com/halcyon-wellness/storefront-api/internal/orders"
)

// BeginPaymentRequest is the body of POST /checkout/payment.
type BeginPaymentRequest struct {
	AddressID string `json:"address_id"`
}

// PaymentSession is what the client needs to confirm the payment.
type PaymentSession struct {
	ClientSecret string        `json:"client_secret"`
	OrderID      uuid.UUID     `json:"order_id"`
	Totals       orders.Totals `json:"totals"`
}
