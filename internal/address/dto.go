package address

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
)

// AddressInput is the validated payload for creating an address.
type AddressInput struct {
	FullName   string  `json:"full_name" validate:"required,notblank"`
	Line1      string  `json:"line1" validate:"required,notblank"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city" validate:"required,notblank"`
	Province   string  `json:"province" validate:"required"`
	PostalCode string  `json:"postal_code" validate:"required"`
	Country    string  `json:"country" validate:"required,country"`
	Phone      *string `json:"phone,omitempty"`
	IsDefault  bool    `json:"is_default"`
}

// UpdateAddressInput carries optional field replacements.
type UpdateAddressInput struct {
	FullName   *string `json:"full_name,omitempty"`
	Line1      *string `json:"line1,omitempty"`
	Line2      *string `json:"line2,omitempty"`
	City       *string `json:"city,omitempty"`
	Province   *string `json:"province,omitempty"`
	PostalCode *string `json:"postal_code,omitempty"`
	Country    *string `json:"country,omitempty" validate:"omitempty,country"`
	Phone      *string `json:"phone,omitempty"`
}

type AddressDTO struct {
	ID         uuid.UUID `json:"id"`
	FullName   string    `json:"full_name"`
	Line1      string    `json:"line1"`
	Line2      *string   `json:"line2,omitempty"`
	City       string    `json:"city"`
	Province   string    `json:"province"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	Phone      *string   `json:"phone,omitempty"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func FromModel(m *models.Address) *AddressDTO {
	if m == nil {
		return nil
	}
	return &AddressDTO{
		ID:         m.ID,
		FullName:   m.FullName,
		Line1:      m.Line1,
		Line2:      m.Line2,
		City:       m.City,
		Province:   m.Province,
		PostalCode: m.PostalCode,
		Country:    m.Country,
		Phone:      m.Phone,
		IsDefault:  m.IsDefault,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func (in AddressInput) toModel(userID uuid.UUID) *models.Address {
	return &models.Address{
		ID:         uuid.New(),
		UserID:     userID,
		FullName:   strings.TrimSpace(in.FullName),
		Line1:      strings.TrimSpace(in.Line1),
		Line2:      trimmedOrNil(in.Line2),
		City:       strings.TrimSpace(in.City),
		Province:   strings.TrimSpace(in.Province),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(in.Country)),
		Phone:      trimmedOrNil(in.Phone),
		IsDefault:  in.IsDefault,
	}
}

func (in UpdateAddressInput) apply(m *models.Address) {
	setString(&m.FullName, in.FullName)
	setString(&m.Line1, in.Line1)
	setString(&m.City, in.City)
	setString(&m.Province, in.Province)
	setString(&m.PostalCode, in.PostalCode)
	if in.Country != nil {
		m.Country = strings.ToUpper(strings.TrimSpace(*in.Country))
	}
	if in.Line2 != nil {
		m.Line2 = trimmedOrNil(in.Line2)
	}
	if in.Phone != nil {
		m.Phone = trimmedOrNil(in.Phone)
	}
}

func setString(dst *string, value *string) {
	if value == nil {
		return
	}
	if trimmed := strings.TrimSpace(*value); trimmed != "" {
		*dst = trimmed
	}
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
