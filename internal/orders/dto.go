package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
	"github.com/halcyon-wellness/storefront-api/pkg/enums"
)

// Totals is the server-computed money breakdown of an order.
type Totals struct {
	SubtotalCents int64  `json:"subtotal_cents"`
	ShippingCents int64  `json:"shipping_cents"`
	TaxCents      int64  `json:"tax_cents"`
	TotalCents    int64  `json:"total_cents"`
	Currency      string `json:"currency"`
}

type OrderItemDTO struct {
	ProductID  uuid.UUID `json:"product_id"`
	Name       string    `json:"name"`
	Variant    string    `json:"variant,omitempty"`
	Quantity   int       `json:"quantity"`
	UnitCents  int64     `json:"unit_cents"`
	TotalCents int64     `json:"total_cents"`
}

type OrderDTO struct {
	ID               uuid.UUID         `json:"id"`
	UserID           uuid.UUID         `json:"user_id"`
	AddressID        uuid.UUID         `json:"address_id"`
	Status           enums.OrderStatus `json:"status"`
	Totals           Totals            `json:"totals"`
	PaymentIntentRef *string           `json:"payment_intent_ref,omitempty"`
	FailureReason    *string           `json:"failure_reason,omitempty"`
	PaidAt           *time.Time        `json:"paid_at,omitempty"`
	Items            []OrderItemDTO    `json:"items"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

type OrderList struct {
	Items      []OrderDTO `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func TotalsOf(o *models.Order) Totals {
	return Totals{
		SubtotalCents: o.SubtotalCents,
		ShippingCents: o.ShippingCents,
		TaxCents:      o.TaxCents,
		TotalCents:    o.TotalCents,
		Currency:      o.Currency,
	}
}

func FromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID:  item.ProductID,
			Name:       item.Name,
			Variant:    item.Variant,
			Quantity:   item.Quantity,
			UnitCents:  item.UnitCents,
			TotalCents: item.TotalCents,
		})
	}
	return &OrderDTO{
		ID:               o.ID,
		UserID:           o.UserID,
		AddressID:        o.AddressID,
		Status:           o.Status,
		Totals:           TotalsOf(o),
		PaymentIntentRef: o.PaymentIntentRef,
		FailureReason:    o.FailureReason,
		PaidAt:           o.PaidAt,
		Items:            items,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}
