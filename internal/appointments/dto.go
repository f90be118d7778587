package appointments

import (
	"time"

	"github.com/google/uuid"

	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
	"github.com/halcyon-wellness/storefront-api/pkg/enums"
	"github.com/halcyon-wellness/storefront-api/pkg/pagination"
)

// CreateAppointmentInput is a public booking request. Timestamps are RFC3339.
type CreateAppointmentInput struct {
	FullName string  `json:"full_name" validate:"required,notblank"`
	Phone    string  `json:"phone" validate:"required,notblank"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Notes    *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	StartsAt string  `json:"starts_at" validate:"required"`
	EndsAt   string  `json:"ends_at" validate:"required"`
}

// RescheduleInput carries optional replacements for an existing appointment.
type RescheduleInput struct {
	FullName *string                  `json:"full_name,omitempty"`
	Phone    *string                  `json:"phone,omitempty"`
	Email    *string                  `json:"email,omitempty" validate:"omitempty,email"`
	Notes    *string                  `json:"notes,omitempty"`
	StartsAt *string                  `json:"starts_at,omitempty"`
	EndsAt   *string                  `json:"ends_at,omitempty"`
	Status   *enums.AppointmentStatus `json:"status,omitempty"`
}

// ListAppointmentsInput filters the admin listing. From/To bound starts_at.
type ListAppointmentsInput struct {
	From       *time.Time
	To         *time.Time
	Status     *enums.AppointmentStatus
	Pagination pagination.Params
}

type AppointmentDTO struct {
	ID        uuid.UUID               `json:"id"`
	FullName  string                  `json:"full_name"`
	Phone     string                  `json:"phone"`
	Email     *string                 `json:"email,omitempty"`
	Notes     *string                 `json:"notes,omitempty"`
	StartsAt  time.Time               `json:"starts_at"`
	EndsAt    time.Time               `json:"ends_at"`
	Status    enums.AppointmentStatus `json:"status"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

type AppointmentListResult struct {
	Items      []AppointmentDTO `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// SlotDTO is one generated slot with its availability.
type SlotDTO struct {
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Available bool      `json:"available"`
}

// AvailabilityDTO answers the public slot query for one calendar day.
type AvailabilityDTO struct {
	Date     string      `json:"date"`
	Timezone string      `json:"timezone"`
	Slots    []SlotDTO   `json:"slots"`
	Booked   []time.Time `json:"booked"`
}

func FromModel(m *models.Appointment) *AppointmentDTO {
	if m == nil {
		return nil
	}
	return &AppointmentDTO{
		ID:        m.ID,
		FullName:  m.FullName,
		Phone:     m.Phone,
		Email:     m.Email,
		Notes:     m.Notes,
		StartsAt:  m.StartsAt.UTC(),
		EndsAt:    m.EndsAt.UTC(),
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
