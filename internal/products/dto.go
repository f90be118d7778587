package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
	"github.com/halcyon-wellness/storefront-api/pkg/pagination"
)

// ProductDTO is the catalog payload returned to clients.
type ProductDTO struct {
	ID          uuid.UUID `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	Price       string    `json:"price"`
	Currency    string    `json:"currency"`
	Variants    []string  `json:"variants"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateProductInput holds the validated admin payload. Price is a decimal
// string in major units ("24.50").
type CreateProductInput struct {
	Slug        string   `json:"slug" validate:"omitempty,max=120"`
	Name        string   `json:"name" validate:"required,notblank"`
	Description *string  `json:"description,omitempty"`
	Price       string   `json:"price" validate:"required"`
	Currency    string   `json:"currency" validate:"omitempty,currency"`
	Variants    []string `json:"variants,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Slug        *string   `json:"slug,omitempty"`
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Price       *string   `json:"price,omitempty"`
	Variants    *[]string `json:"variants,omitempty"`
	IsActive    *bool     `json:"is_active,omitempty"`
}

// ListProductsInput captures catalog browse filters.
type ListProductsInput struct {
	Query           string
	IncludeInactive bool
	Pagination      pagination.Params
}

type ProductListResult struct {
	Items      []ProductDTO `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// FormatCents renders integer minor units as a fixed two-decimal amount.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

func FromModel(m *models.Product) *ProductDTO {
	if m == nil {
		return nil
	}
	variants := append([]string{}, m.Variants...)
	return &ProductDTO{
		ID:          m.ID,
		Slug:        m.Slug,
		Name:        m.Name,
		Description: m.Description,
		PriceCents:  m.PriceCents,
		Price:       FormatCents(m.PriceCents),
		Currency:    m.Currency,
		Variants:    variants,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
