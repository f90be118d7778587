package checkout

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/halcyon-wellness/storefront-api/internal/address"
	"github.com/halcyon-wellness/storefront-api/internal/cart"
	"github.com/halcyon-wellness/storefront-api/internal/orders"
	"github.com/halcyon-wellness/storefront-api/internal/products"
	dbpkg "github.com/halcyon-wellness/storefront-api/pkg/db"
	"github.com/halcyon-wellness/storefront-api/pkg/db/dbtest"
	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
	"github.com/halcyon-wellness/storefront-api/pkg/enums"
	pkgerrors "github.com/halcyon-wellness/storefront-api/pkg/errors"
	"github.com/halcyon-wellness/storefront-api/pkg/logger"
	"github.com/halcyon-wellness/storefront-api/pkg/outbox"
	"github.com/halcyon-wellness/storefront-api/pkg/stripe"
)

type stubPayments struct {
	calls []stripe.PaymentIntentRequest
	err   error
}

func (s *stubPayments) CreatePaymentIntent(_ context.Context, req stripe.PaymentIntentRequest) (*stripe.PaymentIntent, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, s.err
	}
	return &stripe.PaymentIntent{ID: "pi_" + req.Metadata["order_id"][:8], ClientSecret: "secret_123", Status: "requires_payment_method"}, nil
}

type outcomes map[string]int

func (o outcomes) IncPaymentIntent(outcome string) { o[outcome]++ }

type checkoutFixture struct {
	svc      Service
	conn     *gorm.DB
	carts    *cart.Repository
	orders   orders.Repository
	payments *stubPayments
	metrics  outcomes
	userID   uuid.UUID
	address  uuid.UUID
	balm     models.Product
	tea      models.Product
}

func newCheckoutFixture(t *testing.T) checkoutFixture {
	t.Helper()
	ctx := context.Background()
	conn := dbtest.Open(t, dbtest.Products, dbtest.Carts, dbtest.Addresses, dbtest.Orders, dbtest.OutboxEvents)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	productRepo := products.NewRepository(conn)
	catalogSvc, err := products.NewService(productRepo, "usd")
	require.NoError(t, err)
	balm := models.Product{ID: uuid.New(), Slug: "lavender-balm", Name: "Lavender Balm", PriceCents: 2500, Currency: "usd", IsActive: true}
	tea := models.Product{ID: uuid.New(), Slug: "calm-tea", Name: "Calm Tea", PriceCents: 1200, Currency: "usd", IsActive: true}
	require.NoError(t, productRepo.Create(ctx, &balm))
	require.NoError(t, productRepo.Create(ctx, &tea))

	userID := uuid.New()
	addrRepo := address.NewRepository(conn)
	addr := &models.Address{ID: uuid.New(), UserID: userID, FullName: "Sam Li", Line1: "1 Main St", City: "Halifax", Province: "NS", PostalCode: "B3H 1A1", Country: "CA", IsDefault: true}
	require.NoError(t, addrRepo.Create(ctx, addr))

	carts := cart.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	payments := &stubPayments{}
	metrics := outcomes{}
	svc, err := NewService(ServiceParams{
		DB:        dbpkg.FromConn(conn),
		Carts:     carts,
		Addresses: addrRepo,
		Catalog:   catalogSvc,
		Orders:    orderRepo,
		Outbox:    outbox.NewService(outbox.NewRepository(conn), logg),
		Payments:  payments,
		Shipping:  FlatShipping(500),
		Tax:       mustTax(t, "0.10"),
		Currency:  "usd",
		Metrics:   metrics,
		Logger:    logg,
	})
	require.NoError(t, err)
	return checkoutFixture{svc: svc, conn: conn, carts: carts, orders: orderRepo, payments: payments, metrics: metrics, userID: userID, address: addr.ID, balm: balm, tea: tea}
}

func mustTax(t *testing.T, raw string) PercentTax {
	t.Helper()
	tax, err := ParseTaxRate(raw)
	require.NoError(t, err)
	return tax
}

func (f checkoutFixture) fillCart(t *testing.T, items ...models.CartItem) {
	t.Helper()
	f.fillCartFor(t, f.userID, items...)
}

func (f checkoutFixture) fillCartFor(t *testing.T, userID uuid.UUID, items ...models.CartItem) {
	t.Helper()
	ctx := context.Background()
	c, err := f.carts.Upsert(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, f.carts.ReplaceItems(ctx, c.ID, items))
}

func (f checkoutFixture) orderCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&n).Error)
	return n
}

func TestBeginPaymentCreatesPendingOrderAndIntent(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t,
		models.CartItem{ProductID: f.balm.ID, Quantity: 2},
		models.CartItem{ProductID: f.tea.ID, Quantity: 1},
	)

	session, err := f.svc.BeginPayment(ctx, f.userID, f.address)
	require.NoError(t, err)
	require.Equal(t, "secret_123", session.ClientSecret)
	require.Equal(t, int64(6200), session.Totals.SubtotalCents)
	require.Equal(t, int64(500), session.Totals.ShippingCents)
	require.Equal(t, int64(620), session.Totals.TaxCents)
	require.Equal(t, int64(7320), session.Totals.TotalCents)

	require.Len(t, f.payments.calls, 1)
	call := f.payments.calls[0]
	require.Equal(t, int64(7320), call.AmountCents)
	require.Equal(t, "order:"+session.OrderID.String(), call.IdempotencyKey)
	require.Equal(t, session.OrderID.String(), call.Metadata["order_id"])
	require.Equal(t, f.userID.String(), call.Metadata["user_id"])

	var order models.Order
	require.NoError(t, f.conn.Preload("Items").First(&order, "id = ?", session.OrderID).Error)
	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.NotNil(t, order.PaymentIntentRef)
	require.Len(t, order.Items, 2)

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventOrderCreated, events[0].EventType)
	require.Equal(t, 1, f.metrics["created"])
}

func TestBeginPaymentUsesCurrentCatalogPrice(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t, models.CartItem{ProductID: f.tea.ID, Quantity: 1})
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", f.tea.ID).Update("price_cents", 1500).Error)

	session, err := f.svc.BeginPayment(ctx, f.userID, f.address)
	require.NoError(t, err)
	require.Equal(t, int64(1500), session.Totals.SubtotalCents)
}

func TestOrderSnapshotIgnoresLaterPriceChanges(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t,
		models.CartItem{ProductID: f.balm.ID, Quantity: 2},
		models.CartItem{ProductID: f.tea.ID, Quantity: 3},
	)

	session, err := f.svc.BeginPayment(ctx, f.userID, f.address)
	require.NoError(t, err)

	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", f.balm.ID).Update("price_cents", 9900).Error)
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", f.tea.ID).Update("price_cents", 1).Error)

	order, err := f.orders.FindByID(ctx, session.OrderID)
	require.NoError(t, err)
	require.Equal(t, int64(2*2500+3*1200), order.SubtotalCents)
	require.Equal(t, session.Totals.TotalCents, order.TotalCents)
	require.Len(t, order.Items, 2)

	unit := map[uuid.UUID]int64{f.balm.ID: 2500, f.tea.ID: 1200}
	var sum int64
	for _, item := range order.Items {
		require.Equal(t, unit[item.ProductID], item.UnitCents, item.Name)
		require.Equal(t, item.UnitCents*int64(item.Quantity), item.TotalCents, item.Name)
		sum += item.TotalCents
	}
	require.Equal(t, order.SubtotalCents, sum)
}

func TestBeginPaymentEmptyCart(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)

	_, err := f.svc.BeginPayment(ctx, f.userID, f.address)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeEmptyCart), "got %v", err)

	f.fillCart(t)
	_, err = f.svc.BeginPayment(ctx, f.userID, f.address)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeEmptyCart))

	require.Zero(t, f.orderCount(t))
	require.Empty(t, f.payments.calls)
}

func TestBeginPaymentMissingAddress(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t, models.CartItem{ProductID: f.tea.ID, Quantity: 1})

	_, err := f.svc.BeginPayment(ctx, f.userID, uuid.Nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeMissingAddress))

	_, err = f.svc.BeginPayment(ctx, f.userID, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeMissingAddress))

	stranger := uuid.New()
	f.fillCartFor(t, stranger, models.CartItem{ProductID: f.tea.ID, Quantity: 1})
	_, err = f.svc.BeginPayment(ctx, stranger, f.address)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeMissingAddress))
	require.Zero(t, f.orderCount(t))
}

func TestBeginPaymentEmptyCartReportedBeforeMissingAddress(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)

	_, err := f.svc.BeginPayment(ctx, f.userID, uuid.Nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeEmptyCart), "got %v", err)

	_, err = f.svc.BeginPayment(ctx, f.userID, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeEmptyCart), "got %v", err)
	require.Zero(t, f.orderCount(t))
}

func TestBeginPaymentProcessorFailureLeavesOrderPending(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t, models.CartItem{ProductID: f.balm.ID, Quantity: 1})
	f.payments.err = errors.New("stripe down")

	_, err := f.svc.BeginPayment(ctx, f.userID, f.address)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)
	require.Equal(t, 503, pkgerrors.MetadataFor(pkgerrors.CodeDependency).HTTPStatus)

	var order models.Order
	require.NoError(t, f.conn.First(&order).Error)
	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.Nil(t, order.PaymentIntentRef)
	require.Equal(t, 1, f.metrics["error"])
}
