package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product is a sellable catalog entry.
type Product struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Slug        string         `gorm:"column:slug;not null;uniqueIndex"`
	Name        string         `gorm:"column:name;not null"`
	Description *string        `gorm:"column:description"`
	PriceCents  int64          `gorm:"column:price_cents;not null"`
	Currency    string         `gorm:"column:currency;not null;default:'usd'"`
	Variants    pq.StringArray `gorm:"column:variants;type:text[];not null;default:'{}'"`
	IsActive    bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// HasVariant reports whether variant is offered; products without variants
// accept only the empty variant.
func (p Product) HasVariant(variant string) bool {
	if len(p.Variants) == 0 {
		return variant == ""
	}
	for _, v := range p.Variants {
		if v == variant {
			return true
		}
	}
	return false
}
