package cart

import (
	"time"

	"github.com/google/uuid"
)

// CheckoutPath is the handoff returned once a cart is persisted.
const CheckoutPath = "/checkout"

// ItemInput is one client-side line submitted for persistence. ProductRef is
// a product UUID or slug.
type ItemInput struct {
	ProductRef string `json:"product_ref" validate:"required"`
	Variant    string `json:"variant,omitempty"`
	Quantity   int    `json:"quantity" validate:"gte=0"`
}

// PersistCartRequest is the body of PUT /cart.
type PersistCartRequest struct {
	Items []ItemInput `json:"items" validate:"dive"`
}

// PreviewRequest applies reducer actions to a client-supplied state.
type PreviewRequest struct {
	State   State    `json:"state"`
	Actions []Action `json:"actions"`
}

type CartItemDTO struct {
	ProductID  uuid.UUID `json:"product_id"`
	Slug       string    `json:"slug,omitempty"`
	Name       string    `json:"name,omitempty"`
	Variant    string    `json:"variant,omitempty"`
	Quantity   int       `json:"quantity"`
	UnitCents  int64     `json:"unit_cents"`
	TotalCents int64     `json:"total_cents"`
	Available  bool      `json:"available"`
}

type CartDTO struct {
	ID            uuid.UUID     `json:"id"`
	UserID        uuid.UUID     `json:"user_id"`
	Items         []CartItemDTO `json:"items"`
	SubtotalCents int64         `json:"subtotal_cents"`
	Currency      string        `json:"currency"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Next          string        `json:"next,omitempty"`
}
