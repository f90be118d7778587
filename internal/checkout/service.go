package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/halcyon-wellness/storefront-api/internal/checkout/helpers"
	"github.com/halcyon-wellness/storefront-api/internal/orders"
	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
	"github.com/halcyon-wellness/storefront-api/pkg/enums"
	pkgerrors "github.com/halcyon-wellness/storefront-api/pkg/errors"
	"github.com/halcyon-wellness/storefront-api/pkg/logger"
	"github.com/halcyon-wellness/storefront-api/pkg/outbox"
	"github.com/halcyon-wellness/storefront-api/pkg/stripe"
)

// Service creates the authoritative order for a cart and opens a payment for it.
type Service interface {
	BeginPayment(ctx context.Context, userID, addressID uuid.UUID) (*PaymentSession, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartReader interface {
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
}

type addressFinder interface {
	FindOwned(ctx context.Context, userID, id uuid.UUID) (*models.Address, error)
}

type catalog interface {
	ResolveActive(ctx context.Context, refs []string) (map[string]models.Product, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type paymentIntentCreator interface {
	CreatePaymentIntent(ctx context.Context, req stripe.PaymentIntentRequest) (*stripe.PaymentIntent, error)
}

type intentRecorder interface {
	IncPaymentIntent(outcome string)
}

type ServiceParams struct {
	DB        txRunner
	Carts     cartReader
	Addresses addressFinder
	Catalog   catalog
	Orders    orders.Repository
	Outbox    outboxPublisher
	Payments  paymentIntentCreator
	Shipping  ShippingRule
	Tax       TaxRule
	Currency  string
	Metrics   intentRecorder
	Logger    *logger.Logger
}

type service struct {
	db        txRunner
	carts     cartReader
	addresses addressFinder
	catalog   catalog
	orders    orders.Repository
	outbox    outboxPublisher
	payments  paymentIntentCreator
	shipping  ShippingRule
	tax       TaxRule
	currency  string
	metrics   intentRecorder
	logg      *logger.Logger
}

// NewService builds the checkout service.
func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.DB == nil:
		return nil, fmt.Errorf("tx runner required")
	case p.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case p.Addresses == nil:
		return nil, fmt.Errorf("address repository required")
	case p.Catalog == nil:
		return nil, fmt.Errorf("catalog required")
	case p.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case p.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case p.Payments == nil:
		return nil, fmt.Errorf("payment intent creator required")
	}
	shipping, tax := p.Shipping, p.Tax
	if shipping == nil {
		shipping = FlatShipping(0)
	}
	if tax == nil {
		tax = PercentTax{}
	}
	currency := strings.ToLower(strings.TrimSpace(p.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &service{
		db:        p.DB,
		carts:     p.Carts,
		addresses: p.Addresses,
		catalog:   p.Catalog,
		orders:    p.Orders,
		outbox:    p.Outbox,
		payments:  p.Payments,
		shipping:  shipping,
		tax:       tax,
		currency:  currency,
		metrics:   p.Metrics,
		logg:      p.Logger,
	}, nil
}

func (s *service) BeginPayment(ctx context.Context, userID, addressID uuid.UUID) (*PaymentSession, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	// an empty cart wins over a missing address
	cart, err := s.carts.FindByUser(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, emptyCart()
	}

	if addressID == uuid.Nil {
		return nil, missingAddress()
	}
	if _, err := s.addresses.FindOwned(ctx, userID, addressID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, missingAddress()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load address")
	}

	resolved, err := s.catalog.ResolveActive(ctx, helpers.ProductRefs(cart.Items))
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Product, len(resolved))
	for _, p := range resolved {
		byID[p.ID] = p
	}
	lines, subtotal := helpers.FreezeLines(cart.Items, byID)
	if len(lines) == 0 {
		return nil, emptyCart()
	}
	shipping := s.shipping.ShippingCents(subtotal)
	tax := s.tax.TaxCents(subtotal)
	total := subtotal + shipping + tax
	if total <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}

	order := &models.Order{
		ID:            uuid.New(),
		UserID:        userID,
		AddressID:     addressID,
		Status:        enums.OrderStatusPending,
		SubtotalCents: subtotal,
		ShippingCents: shipping,
		TaxCents:      tax,
		TotalCents:    total,
		Currency:      s.currency,
		Items:         lines,
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}
		if err := s.outbox.Emit(ctx, tx, orders.Event(enums.EventOrderCreated, order)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.withOrder(ctx, userID, order.ID)
	intent, err := s.payments.CreatePaymentIntent(ctx, stripe.PaymentIntentRequest{
		AmountCents: total,
		Currency:    s.currency,
		Metadata: map[string]string{
			"order_id": order.ID.String(),
			"user_id":  userID.String(),
		},
		IdempotencyKey: "order:" + order.ID.String(),
		Description:    fmt.Sprintf("Order %s", order.ID),
	})
	if err != nil {
		s.record("error")
		if s.logg != nil {
			s.logg.Error(ctx, "checkout.payment_intent_failed", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment processor unavailable, retry shortly").
			WithDetails(map[string]string{"order_id": order.ID.String()})
	}

	if err := s.orders.SetPaymentIntentRef(ctx, order.ID, intent.ID); err != nil {
		s.record("unlinked")
		if s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "payment_intent_ref", intent.ID), "checkout.payment_intent_unlinked", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "could not record payment, retry shortly")
	}
	s.record("created")
	if s.logg != nil {
		s.logg.Info(ctx, "checkout.payment_started")
	}

	order.PaymentIntentRef = &intent.ID
	return &PaymentSession{
		ClientSecret: intent.ClientSecret,
		OrderID:      order.ID,
		Totals:       orders.TotalsOf(order),
	}, nil
}

func (s *service) withOrder(ctx context.Context, userID, orderID uuid.UUID) context.Context {
	if s.logg == nil {
		return ctx
	}
	ctx = s.logg.WithUserID(ctx, userID.String())
	return s.logg.WithOrderID(ctx, orderID.String())
}

func (s *service) record(outcome string) {
	if s.metrics != nil {
		s.metrics.IncPaymentIntent(outcome)
	}
}

func emptyCart() error {
	return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
}

func missingAddress() error {
	return pkgerrors.New(pkgerrors.CodeMissingAddress, "a shipping address is required").
		WithDetails(map[string]string{"address_id": "required"})
}
