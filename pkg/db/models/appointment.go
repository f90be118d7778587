package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/halcyon-wellness/storefront-api/pkg/enums"
)

// Appointment is a booking over the half-open range [StartsAt, EndsAt).
type Appointment struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FullName  string                  `gorm:"column:full_name;not null"`
	Phone     string                  `gorm:"column:phone;not null"`
	Email     *string                 `gorm:"column:email"`
	Notes     *string                 `gorm:"column:notes"`
	StartsAt  time.Time               `gorm:"column:starts_at;not null"`
	EndsAt    time.Time               `gorm:"column:ends_at;not null"`
	Status    enums.AppointmentStatus `gorm:"column:status;type:appointment_status;not null;default:'pending'"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
