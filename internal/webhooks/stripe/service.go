package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/halcyon-wellness/storefront-api/internal/cart"
	"github.com/halcyon-wellness/storefront-api/internal/orders"
	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
	"github.com/halcyon-wellness/storefront-api/pkg/enums"
	pkgerrors "github.com/halcyon-wellness/storefront-api/pkg/errors"
	"github.com/halcyon-wellness/storefront-api/pkg/logger"
	"github.com/halcyon-wellness/storefront-api/pkg/outbox"
)

// Outcome labels recorded per delivery.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeUnmatched = "unmatched"
	// OutcomeLateSuccess marks captured funds on an order that already
	// failed or expired. The order is left alone for manual reconciliation.
	OutcomeLateSuccess = "late_success"
	OutcomeError       = "error"
)

const defaultFailureReason = "payment failed"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type eventRecorder interface {
	IncWebhookEvent(eventType, outcome string)
}

type ServiceParams struct {
	Orders            orders.Repository
	Carts             *cart.Repository
	Outbox            outboxPublisher
	TransactionRunner txRunner
	Metrics           eventRecorder
	Logger            *logger.Logger
}

// Service reconciles orders with Stripe payment intent outcomes.
type Service struct {
	orders   orders.Repository
	carts    *cart.Repository
	outbox   outboxPublisher
	txRunner txRunner
	metrics  eventRecorder
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.Carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart repo required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		orders:   params.Orders,
		carts:    params.Carts,
		outbox:   params.Outbox,
		txRunner: params.TransactionRunner,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

// HandleEvent applies a verified Stripe event. Unhandled types are acknowledged.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	eventType := string(event.Type)

	var (
		outcome string
		err     error
	)
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if decodeErr := json.Unmarshal(event.Data.Raw, &intent); decodeErr != nil {
			err = pkgerrors.Wrap(pkgerrors.CodeValidation, decodeErr, "decode payment intent")
			outcome = OutcomeError
			break
		}
		if event.Type == stripe.EventTypePaymentIntentSucceeded {
			outcome, err = s.markPaid(ctx, &intent)
		} else {
			outcome, err = s.markFailed(ctx, &intent)
		}
	default:
		outcome = OutcomeIgnored
	}

	if err != nil {
		outcome = OutcomeError
	}
	if s.metrics != nil {
		s.metrics.IncWebhookEvent(eventType, outcome)
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"stripe_event_id":   event.ID,
			"stripe_event_type": eventType,
			"outcome":           outcome,
		})
		if err != nil {
			s.logg.Error(logCtx, "stripe.webhook_failed", err)
		} else {
			s.logg.Info(logCtx, "stripe.webhook_handled")
		}
	}
	return err
}

// markPaid moves a PENDING order to PAID, links the intent when checkout
// could not, clears the cart lines it paid for and emits order.paid. Repeats
// are no-ops and FAILED or EXPIRED orders never leave their state.
func (s *Service) markPaid(ctx context.Context, intent *stripe.PaymentIntent) (string, error) {
	outcome := OutcomeApplied
	var late *models.Order
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := s.locate(ctx, repo, intent)
		if err != nil {
			return err
		}
		if order == nil {
			outcome = OutcomeUnmatched
			return nil
		}
		switch order.Status {
		case enums.OrderStatusPaid, enums.OrderStatusCompleted:
			outcome = OutcomeDuplicate
			return nil
		case enums.OrderStatusFailed, enums.OrderStatusExpired:
			outcome = OutcomeLateSuccess
			late = order
			return nil
		}

		extra := map[string]any{"paid_at": s.now().UTC()}
		if order.PaymentIntentRef == nil {
			extra["payment_intent_ref"] = intent.ID
		}
		changed, err := repo.TransitionStatus(ctx, order.ID,
			[]enums.OrderStatus{enums.OrderStatusPending}, enums.OrderStatusPaid, extra)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order paid")
		}
		if !changed {
			outcome = OutcomeDuplicate
			return nil
		}
		paid, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		if _, err := s.carts.WithTx(tx).ClearOrderedLines(ctx, paid.UserID, paid.Items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}
		return s.emit(ctx, tx, paid, enums.EventOrderPaid)
	})
	if err == nil && late != nil && s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, late.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"payment_intent_id": intent.ID,
			"order_status":      string(late.Status),
			"amount_cents":      intent.Amount,
		})
		s.logg.Warn(logCtx, "stripe.webhook_late_success")
	}
	return outcome, err
}

// markFailed records the processor's reason on a PENDING order. PAID orders
// are never downgraded.
func (s *Service) markFailed(ctx context.Context, intent *stripe.PaymentIntent) (string, error) {
	reason := defaultFailureReason
	if intent.LastPaymentError != nil && strings.TrimSpace(intent.LastPaymentError.Msg) != "" {
		reason = strings.TrimSpace(intent.LastPaymentError.Msg)
	}

	outcome := OutcomeApplied
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := s.locate(ctx, repo, intent)
		if err != nil {
			return err
		}
		if order == nil {
			outcome = OutcomeUnmatched
			return nil
		}
		if order.Status != enums.OrderStatusPending {
			outcome = OutcomeDuplicate
			return nil
		}
		extra := map[string]any{"failure_reason": reason}
		if order.PaymentIntentRef == nil {
			extra["payment_intent_ref"] = intent.ID
		}
		changed, err := repo.TransitionStatus(ctx, order.ID,
			[]enums.OrderStatus{enums.OrderStatusPending}, enums.OrderStatusFailed, extra)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order failed")
		}
		if !changed {
			outcome = OutcomeDuplicate
			return nil
		}
		failed, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		return s.emit(ctx, tx, failed, enums.EventOrderFailed)
	})
	return outcome, err
}

// locate finds the order by the order_id metadata set at checkout, falling
// back to the stored intent reference.
func (s *Service) locate(ctx context.Context, repo orders.Repository, intent *stripe.PaymentIntent) (*models.Order, error) {
	if raw, ok := intent.Metadata["order_id"]; ok {
		if id, err := uuid.Parse(raw); err == nil {
			order, err := repo.FindByIDForUpdate(ctx, id)
			if err == nil {
				return order, nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
			}
		}
	}
	if intent.ID == "" {
		return nil, nil
	}
	byRef, err := repo.FindByPaymentIntentRef(ctx, intent.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order by intent")
	}
	return repo.FindByIDForUpdate(ctx, byRef.ID)
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, order *models.Order, eventType enums.OutboxEventType) error {
	if err := s.outbox.Emit(ctx, tx, orders.Event(eventType, order)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order event")
	}
	return nil
}
