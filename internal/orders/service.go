package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/halcyon-wellness/storefront-api/internal/cart"
	"github.com/halcyon-wellness/storefront-api/internal/repo"
	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
	"github.com/halcyon-wellness/storefront-api/pkg/enums"
	pkgerrors "github.com/halcyon-wellness/storefront-api/pkg/errors"
	"github.com/halcyon-wellness/storefront-api/pkg/logger"
	"github.com/halcyon-wellness/storefront-api/pkg/outbox"
	"github.com/halcyon-wellness/storefront-api/pkg/pagination"
)

// Service exposes order reads for owners and the admin lifecycle.
type Service interface {
	GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	AdminGet(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
	AdminList(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
	Complete(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
	Delete(ctx context.Context, orderID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxEmitter
	carts  *cart.Repository
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds the order service. carts is cleared of the paid lines
// whenever an order becomes PAID, matching the payment webhook.
func NewService(repo Repository, tx txRunner, emitter outboxEmitter, carts *cart.Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	return &service{repo: repo, tx: tx, outbox: emitter, carts: carts, logg: logg, now: time.Now}, nil
}

func (s *service) GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, repo.NotFound(err, "order")
	}
	// other users' orders are reported as missing
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return FromModel(order), nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	return s.list(ctx, ListFilters{UserID: &userID}, params)
}

func (s *service) AdminGet(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, repo.NotFound(err, "order")
	}
	return FromModel(order), nil
}

func (s *service) AdminList(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status").
			WithDetails(map[string]string{"status": "invalid"})
	}
	return s.list(ctx, filters, params)
}

func (s *service) list(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, filters, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	page, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	items := make([]OrderDTO, 0, len(page))
	for i := range page {
		items = append(items, *FromModel(&page[i]))
	}
	return &OrderList{Items: items, NextCursor: next}, nil
}

// MarkPaid records an out-of-band payment and clears the paid cart lines.
// Already-paid orders are returned unchanged.
func (s *service) MarkPaid(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	now := s.now().UTC()
	return s.transition(ctx, orderID,
		[]enums.OrderStatus{enums.OrderStatusPending}, enums.OrderStatusPaid,
		map[string]any{"paid_at": now}, enums.EventOrderPaid,
		func(tx *gorm.DB, paid *models.Order) error {
			if _, err := s.carts.WithTx(tx).ClearOrderedLines(ctx, paid.UserID, paid.Items); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
			}
			return nil
		})
}

func (s *service) Complete(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	return s.transition(ctx, orderID,
		[]enums.OrderStatus{enums.OrderStatusPaid}, enums.OrderStatusCompleted,
		nil, enums.EventOrderCompleted, nil)
}

// transition applies a guarded status change, runs afterChange in the same
// transaction and emits event.
func (s *service) transition(ctx context.Context, orderID uuid.UUID, from []enums.OrderStatus, next enums.OrderStatus, extra map[string]any, event enums.OutboxEventType, afterChange func(tx *gorm.DB, order *models.Order) error) (*OrderDTO, error) {
	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		current, err := r.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return repo.NotFound(err, "order")
		}
		if current.Status == next {
			out = current
			return nil
		}
		changed, err := r.TransitionStatus(ctx, orderID, from, next, extra)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order cannot move from %s to %s", current.Status, next))
		}
		updated, err := r.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		out = updated
		if afterChange != nil {
			if err := afterChange(tx, updated); err != nil {
				return err
			}
		}
		if err := s.outbox.Emit(ctx, tx, Event(event, updated)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		ctx = s.logg.WithOrderID(ctx, orderID.String())
		s.logg.Info(ctx, "order.status_changed")
	}
	return FromModel(out), nil
}

func (s *service) Delete(ctx context.Context, orderID uuid.UUID) error {
	var affected int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		affected, err = s.repo.WithTx(tx).Delete(ctx, orderID)
		return err
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete order")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}
