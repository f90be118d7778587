package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/halcyon-wellness/storefront-api/internal/orders"
	"github.com/halcyon-wellness/storefront-api/pkg/enums"
	"github.com/halcyon-wellness/storefront-api/pkg/logger"
	"github.com/halcyon-wellness/storefront-api/pkg/metrics"
	"github.com/halcyon-wellness/storefront-api/pkg/outbox"
)

const (
	pendingOrderExpiryJobName = "pending-order-expiry"
	defaultPendingOrderTTL    = 72 * time.Hour
	expiryBatchSize           = 100
	maxExpiryBatches          = 50
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type PendingOrderExpiryJobParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Orders  orders.Repository
	Outbox  outboxEmitter
	TTL     time.Duration
	Metrics *metrics.CronJobMetrics
}

// NewPendingOrderExpiryJob expires PENDING orders whose payment never settled.
func NewPendingOrderExpiryJob(params PendingOrderExpiryJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	return &pendingOrderExpiryJob{
		logg:    params.Logger,
		db:      params.DB,
		orders:  params.Orders,
		outbox:  params.Outbox,
		ttl:     ttl,
		metrics: params.Metrics,
		now:     time.Now,
	}, nil
}

type pendingOrderExpiryJob struct {
	logg    *logger.Logger
	db      txRunner
	orders  orders.Repository
	outbox  outboxEmitter
	ttl     time.Duration
	metrics *metrics.CronJobMetrics
	now     func() time.Time
}

func (j *pendingOrderExpiryJob) Name() string { return pendingOrderExpiryJobName }

func (j *pendingOrderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	var (
		expired int64
		errs    error
	)
	for batch := 0; batch < maxExpiryBatches; batch++ {
		rows, err := j.orders.ListPendingBefore(ctx, cutoff, expiryBatchSize)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("list pending orders: %w", err))
			break
		}
		failed := false
		for _, row := range rows {
			changed, err := j.expire(ctx, row.ID)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", row.ID, err))
				failed = true
				continue
			}
			if changed {
				expired++
			}
		}
		// failed rows stay PENDING and would be listed again
		if failed || len(rows) < expiryBatchSize {
			break
		}
	}

	j.metrics.AddAffected(j.Name(), expired)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"orders_expired": expired,
	}), "cron.pending_order_expiry_complete")
	return errs
}

// expire flips a single order under its own transaction. An order paid in
// the meantime is left alone.
func (j *pendingOrderExpiryJob) expire(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var changed bool
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.orders.WithTx(tx)
		if _, err := repo.FindByIDForUpdate(ctx, orderID); err != nil {
			return err
		}
		ok, err := repo.TransitionStatus(ctx, orderID,
			[]enums.OrderStatus{enums.OrderStatusPending}, enums.OrderStatusExpired, nil)
		if err != nil || !ok {
			return err
		}
		changed = true
		updated, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		return j.outbox.Emit(ctx, tx, orders.Event(enums.EventOrderExpired, updated))
	})
	return changed, err
}
