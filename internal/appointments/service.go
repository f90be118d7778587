package appointments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/halcyon-wellness/storefront-api/internal/repo"
	"github.com/halcyon-wellness/storefront-api/pkg/db"
	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
	"github.com/halcyon-wellness/storefront-api/pkg/enums"
	pkgerrors "github.com/halcyon-wellness/storefront-api/pkg/errors"
	"github.com/halcyon-wellness/storefront-api/pkg/logger"
	"github.com/halcyon-wellness/storefront-api/pkg/outbox"
	"github.com/halcyon-wellness/storefront-api/pkg/pagination"
)

const dateLayout = "2006-01-02"

// Service is the appointment scheduler: availability reads, overlap-free
// booking and the admin lifecycle.
type Service interface {
	Availability(ctx context.Context, date string, now time.Time) (*AvailabilityDTO, error)
	Create(ctx context.Context, input CreateAppointmentInput) (*AppointmentDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*AppointmentDTO, error)
	List(ctx context.Context, input ListAppointmentsInput) (*AppointmentListResult, error)
	Confirm(ctx context.Context, id uuid.UUID) (*AppointmentDTO, error)
	Cancel(ctx context.Context, id uuid.UUID) (*AppointmentDTO, error)
	Reschedule(ctx context.Context, id uuid.UUID, input RescheduleInput) (*AppointmentDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type conflictRecorder interface {
	IncAppointmentConflict()
}

// ServiceParams bundles the scheduler dependencies.
type ServiceParams struct {
	DB      txRunner
	Repo    *Repository
	Outbox  outboxEmitter
	Hours   BusinessHours
	Metrics conflictRecorder
	Logger  *logger.Logger
	// EnforceHours rejects public bookings outside the business windows.
	EnforceHours bool
}

type service struct {
	db           txRunner
	repo         *Repository
	outbox       outboxEmitter
	hours        BusinessHours
	metrics      conflictRecorder
	logg         *logger.Logger
	enforceHours bool
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("appointment repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	hours := params.Hours
	if len(hours.Windows) == 0 {
		hours = DefaultBusinessHours()
	}
	return &service{
		db:           params.DB,
		repo:         params.Repo,
		outbox:       params.Outbox,
		hours:        hours,
		metrics:      params.Metrics,
		logg:         params.Logger,
		enforceHours: params.EnforceHours,
	}, nil
}

func (s *service) Availability(ctx context.Context, date string, now time.Time) (*AvailabilityDTO, error) {
	loc := s.hours.location()
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date must be YYYY-MM-DD").
			WithDetails(map[string]string{"date": "invalid"})
	}
	dayStart, dayEnd := s.hours.DayBounds(day)

	booked, err := s.repo.ListBlockingBetween(ctx, dayStart.UTC(), dayEnd.UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load bookings")
	}

	bookedStarts := []time.Time{}
	for _, b := range booked {
		if !b.StartsAt.Before(dayStart) && b.StartsAt.Before(dayEnd) {
			bookedStarts = append(bookedStarts, b.StartsAt.UTC())
		}
	}

	slots := []SlotDTO{}
	for _, start := range GenerateSlots(day, s.hours) {
		end := start.Add(s.hours.Slot)
		available := !start.Before(now)
		for _, b := range booked {
			if b.StartsAt.Before(end) && b.EndsAt.After(start) {
				available = false
				break
			}
		}
		slots = append(slots, SlotDTO{StartsAt: start.UTC(), EndsAt: end.UTC(), Available: available})
	}

	return &AvailabilityDTO{
		Date:     dayStart.Format(dateLayout),
		Timezone: loc.String(),
		Slots:    slots,
		Booked:   bookedStarts,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateAppointmentInput) (*AppointmentDTO, error) {
	fullName := strings.TrimSpace(input.FullName)
	phone := strings.TrimSpace(input.Phone)
	missing := map[string]string{}
	if fullName == "" {
		missing["full_name"] = "required"
	}
	if phone == "" {
		missing["phone"] = "required"
	}
	start, startErr := parseTimestamp(input.StartsAt)
	if startErr != nil {
		missing["starts_at"] = "must be an RFC3339 timestamp"
	}
	end, endErr := parseTimestamp(input.EndsAt)
	if endErr != nil {
		missing["ends_at"] = "must be an RFC3339 timestamp"
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid appointment request").WithDetails(missing)
	}
	if !end.After(start) {
		return nil, invalidRange()
	}
	if s.enforceHours && !s.hours.Contains(start, end) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requested time is outside business hours").
			WithDetails(map[string]string{"starts_at": "outside business hours"})
	}

	appt := &models.Appointment{
		ID:       uuid.New(),
		FullName: fullName,
		Phone:    phone,
		Email:    trimmedOrNil(input.Email),
		Notes:    trimmedOrNil(input.Notes),
		StartsAt: start,
		EndsAt:   end,
		Status:   enums.AppointmentStatusPending,
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		if err := r.LockSchedule(ctx); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock schedule")
		}
		if err := s.ensureFree(ctx, r, start, end, nil); err != nil {
			return err
		}
		if err := r.Create(ctx, appt); err != nil {
			if db.IsExclusionViolation(err) {
				return s.slotUnavailable()
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create appointment")
		}
		return s.emit(ctx, tx, enums.EventAppointmentRequested, appt)
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithAppointmentID(ctx, appt.ID.String()), "appointment.requested")
	}
	return FromModel(appt), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*AppointmentDTO, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repo.NotFound(err, "appointment")
	}
	return FromModel(m), nil
}

func (s *service) List(ctx context.Context, input ListAppointmentsInput) (*AppointmentListResult, error) {
	if input.From != nil && input.To != nil && !input.To.After(*input.From) {
		return nil, invalidRange()
	}
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, input, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list appointments")
	}
	page, next := pagination.Trim(rows, input.Pagination.Limit, func(a models.Appointment) pagination.Cursor {
		return pagination.Cursor{CreatedAt: a.StartsAt, ID: a.ID}
	})
	items := make([]AppointmentDTO, 0, len(page))
	for i := range page {
		items = append(items, *FromModel(&page[i]))
	}
	return &AppointmentListResult{Items: items, NextCursor: next}, nil
}

func (s *service) Confirm(ctx context.Context, id uuid.UUID) (*AppointmentDTO, error) {
	return s.transition(ctx, id, enums.AppointmentStatusConfirmed, enums.EventAppointmentConfirmed)
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID) (*AppointmentDTO, error) {
	return s.transition(ctx, id, enums.AppointmentStatusCancelled, enums.EventAppointmentCancelled)
}

func (s *service) transition(ctx context.Context, id uuid.UUID, next enums.AppointmentStatus, event enums.OutboxEventType) (*AppointmentDTO, error) {
	var out *models.Appointment
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		m, err := r.FindByIDForUpdate(ctx, id)
		if err != nil {
			return repo.NotFound(err, "appointment")
		}
		if m.Status == next {
			out = m
			return nil
		}
		if !m.Status.CanTransitionTo(next) {
			return stateConflict(m.Status, next)
		}
		m.Status = next
		if err := r.Save(ctx, m); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update appointment")
		}
		out = m
		return s.emit(ctx, tx, event, m)
	})
	if err != nil {
		return nil, err
	}
	return FromModel(out), nil
}

// Reschedule applies field replacements and re-runs the overlap check
// against the new range, excluding the appointment itself. A supplied end
// at or before the start is rejected.
func (s *service) Reschedule(ctx context.Context, id uuid.UUID, input RescheduleInput) (*AppointmentDTO, error) {
	var start, end *time.Time
	if input.StartsAt != nil {
		t, err := parseTimestamp(*input.StartsAt)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid appointment request").
				WithDetails(map[string]string{"starts_at": "must be an RFC3339 timestamp"})
		}
		start = &t
	}
	if input.EndsAt != nil {
		t, err := parseTimestamp(*input.EndsAt)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid appointment request").
				WithDetails(map[string]string{"ends_at": "must be an RFC3339 timestamp"})
		}
		end = &t
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status").
			WithDetails(map[string]string{"status": "invalid"})
	}

	var out *models.Appointment
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		if err := r.LockSchedule(ctx); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock schedule")
		}
		m, err := r.FindByIDForUpdate(ctx, id)
		if err != nil {
			return repo.NotFound(err, "appointment")
		}
		statusChanged := input.Status != nil && *input.Status != m.Status
		if statusChanged {
			if !m.Status.CanTransitionTo(*input.Status) {
				return stateConflict(m.Status, *input.Status)
			}
		} else if m.Status == enums.AppointmentStatusCancelled && (start != nil || end != nil) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled appointments cannot be rescheduled")
		}

		if v := trimmedOrNil(input.FullName); v != nil {
			m.FullName = *v
		}
		if v := trimmedOrNil(input.Phone); v != nil {
			m.Phone = *v
		}
		if input.Email != nil {
			m.Email = trimmedOrNil(input.Email)
		}
		if input.Notes != nil {
			m.Notes = trimmedOrNil(input.Notes)
		}
		if start != nil {
			m.StartsAt = *start
		}
		if end != nil {
			m.EndsAt = *end
		}
		if input.Status != nil {
			m.Status = *input.Status
		}
		m.StartsAt = m.StartsAt.UTC()
		m.EndsAt = m.EndsAt.UTC()

		if !m.EndsAt.After(m.StartsAt) {
			return invalidRange()
		}
		if m.Status.Blocks() {
			if err := s.ensureFree(ctx, r, m.StartsAt, m.EndsAt, &m.ID); err != nil {
				return err
			}
		}
		if err := r.Save(ctx, m); err != nil {
			if db.IsExclusionViolation(err) {
				return s.slotUnavailable()
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update appointment")
		}
		out = m
		switch {
		case statusChanged && m.Status == enums.AppointmentStatusCancelled:
			return s.emit(ctx, tx, enums.EventAppointmentCancelled, m)
		case start != nil || end != nil:
			return s.emit(ctx, tx, enums.EventAppointmentRescheduled, m)
		case statusChanged:
			return s.emit(ctx, tx, enums.EventAppointmentConfirmed, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(out), nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete appointment")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
	}
	return nil
}

func (s *service) ensureFree(ctx context.Context, r *Repository, start, end time.Time, exclude *uuid.UUID) error {
	clash, err := r.FindOverlap(ctx, start, end, exclude)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check overlap")
	}
	if clash != nil {
		return s.slotUnavailable()
	}
	return nil
}

func (s *service) slotUnavailable() error {
	if s.metrics != nil {
		s.metrics.IncAppointmentConflict()
	}
	return pkgerrors.New(pkgerrors.CodeSlotUnavailable, "slot no longer available, pick another")
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, m *models.Appointment) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateAppointment,
		AggregateID:   m.ID,
		Data: outbox.AppointmentEvent{
			AppointmentID: m.ID,
			FullName:      m.FullName,
			Phone:         m.Phone,
			Email:         m.Email,
			StartsAt:      m.StartsAt.UTC(),
			EndsAt:        m.EndsAt.UTC(),
			Status:        string(m.Status),
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit appointment event")
	}
	return nil
}

func invalidRange() error {
	return pkgerrors.New(pkgerrors.CodeInvalidRange, "end must be after start").
		WithDetails(map[string]string{"ends_at": "must be after starts_at"})
}

func stateConflict(from, to enums.AppointmentStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move appointment from %s to %s", from, to))
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
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
