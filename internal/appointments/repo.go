package appointments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/halcyon-wellness/storefront-api/internal/repo"
	"github.com/halcyon-wellness/storefront-api/pkg/db"
	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
	"github.com/halcyon-wellness/storefront-api/pkg/enums"
	"github.com/halcyon-wellness/storefront-api/pkg/pagination"
)

// scheduleLockKey is the pg_advisory_xact_lock key serializing bookings.
const scheduleLockKey int64 = 0x68616c6379_01

type Repository struct {
	repo.Base
	conn *gorm.DB
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(conn), conn: conn}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}

// LockSchedule takes the transaction-scoped schedule lock. Other dialects rely
// on their own write serialization.
func (r *Repository) LockSchedule(ctx context.Context) error {
	if !db.IsPostgres(r.conn) {
		return nil
	}
	return r.DB(ctx).Exec("SELECT pg_advisory_xact_lock(?)", scheduleLockKey).Error
}

// FindOverlap returns a blocking appointment intersecting [start, end), or nil.
func (r *Repository) FindOverlap(ctx context.Context, start, end time.Time, exclude *uuid.UUID) (*models.Appointment, error) {
	q := r.DB(ctx).
		Where("starts_at < ? AND ends_at > ?", end, start).
		Where("status <> ?", enums.AppointmentStatusCancelled)
	if exclude != nil {
		q = q.Where("id <> ?", *exclude)
	}
	var m models.Appointment
	err := q.Order("starts_at ASC").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListBlockingBetween returns blocking appointments intersecting [from, to).
func (r *Repository) ListBlockingBetween(ctx context.Context, from, to time.Time) ([]models.Appointment, error) {
	var rows []models.Appointment
	err := r.DB(ctx).
		Where("starts_at < ? AND ends_at > ?", to, from).
		Where("status <> ?", enums.AppointmentStatusCancelled).
		Order("starts_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) Create(ctx context.Context, m *models.Appointment) error {
	return r.DB(ctx).Create(m).Error
}

func (r *Repository) Save(ctx context.Context, m *models.Appointment) error {
	return r.DB(ctx).Save(m).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	var m models.Appointment
	if err := r.DB(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByIDForUpdate row-locks the appointment on Postgres.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	q := r.DB(ctx)
	if db.IsPostgres(r.conn) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var m models.Appointment
	if err := q.First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.DB(ctx).Where("id = ?", id).Delete(&models.Appointment{})
	return res.RowsAffected, res.Error
}

// List pages by (starts_at, id) ascending; the cursor's time is starts_at.
func (r *Repository) List(ctx context.Context, input ListAppointmentsInput, cursor *pagination.Cursor) ([]models.Appointment, error) {
	q := r.DB(ctx).Model(&models.Appointment{})
	if input.From != nil {
		q = q.Where("starts_at >= ?", input.From.UTC())
	}
	if input.To != nil {
		q = q.Where("starts_at < ?", input.To.UTC())
	}
	if input.Status != nil {
		q = q.Where("status = ?", *input.Status)
	}
	if cursor != nil {
		q = q.Where("(starts_at > ?) OR (starts_at = ? AND id > ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Appointment
	err := q.Order("starts_at ASC").Order("id ASC").
		Limit(pagination.NormalizeLimit(input.Pagination.Limit) + 1).
		Find(&rows).Error
	return rows, err
}
