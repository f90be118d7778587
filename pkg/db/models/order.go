package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/halcyon-wellness/storefront-api/pkg/enums"
)

// Order is the authoritative record created when payment begins.
type Order struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	AddressID        uuid.UUID         `gorm:"column:address_id;type:uuid;not null"`
	Status           enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'PENDING'"`
	SubtotalCents    int64             `gorm:"column:subtotal_cents;not null"`
	ShippingCents    int64             `gorm:"column:shipping_cents;not null;default:0"`
	TaxCents         int64             `gorm:"column:tax_cents;not null;default:0"`
	TotalCents       int64             `gorm:"column:total_cents;not null"`
	Currency         string            `gorm:"column:currency;not null"`
	PaymentIntentRef *string           `gorm:"column:payment_intent_ref"`
	FailureReason    *string           `gorm:"column:failure_reason"`
	PaidAt           *time.Time        `gorm:"column:paid_at"`
	Items            []OrderItem       `gorm:"foreignKey:OrderID;references:ID"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem freezes the product name and unit price at order time.
type OrderItem struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Name       string    `gorm:"column:name;not null"`
	Variant    string    `gorm:"column:variant;not null;default:''"`
	Quantity   int       `gorm:"column:quantity;not null"`
	UnitCents  int64     `gorm:"column:unit_cents;not null"`
	TotalCents int64     `gorm:"column:total_cents;not null"`
}
