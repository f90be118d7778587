package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/halcyon-wellness/storefront-api/api/controllers"
	webhookcontrollers "github.com/halcyon-wellness/storefront-api/api/controllers/webhooks"
	"github.com/halcyon-wellness/storefront-api/api/middleware"
	"github.com/halcyon-wellness/storefront-api/internal/address"
	"github.com/halcyon-wellness/storefront-api/internal/appointments"
	"github.com/halcyon-wellness/storefront-api/internal/auth"
	"github.com/halcyon-wellness/storefront-api/internal/cart"
	"github.com/halcyon-wellness/storefront-api/internal/checkout"
	"github.com/halcyon-wellness/storefront-api/internal/orders"
	"github.com/halcyon-wellness/storefront-api/internal/products"
	stripewebhook "github.com/halcyon-wellness/storefront-api/internal/webhooks/stripe"
	"github.com/halcyon-wellness/storefront-api/pkg/auth/session"
	"github.com/halcyon-wellness/storefront-api/pkg/config"
	"github.com/halcyon-wellness/storefront-api/pkg/enums"
	"github.com/halcyon-wellness/storefront-api/pkg/logger"
	pkgredis "github.com/halcyon-wellness/storefront-api/pkg/redis"
	"github.com/halcyon-wellness/storefront-api/pkg/stripe"
)

// Deps carries every collaborator the HTTP surface needs. Nil services make
// their routes answer INTERNAL_ERROR instead of panicking.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB    controllers.Pinger
	Redis *pkgredis.Client

	Sessions session.AccessSessionChecker

	Auth         auth.Service
	Appointments appointments.Service
	Products     products.Service
	Cart         cart.Service
	Checkout     checkout.Service
	Addresses    address.Service
	Orders       orders.Service

	Stripe        *stripe.Client
	StripeWebhook *stripewebhook.Service
	WebhookGuard  *stripewebhook.IdempotencyGuard

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

const (
	replayWindow        = 24 * time.Hour
	paymentReplayWindow = 7 * 24 * time.Hour
)

// idempotentRoutes replay their first response for a repeated Idempotency-Key.
// Payment-affecting routes keep keys for as long as Stripe retries webhooks.
var idempotentRoutes = []middleware.IdempotencyRule{
	{Method: http.MethodPut, Path: "/api/v1/cart", TTL: replayWindow},
	{Method: http.MethodPost, Path: "/api/v1/checkout", TTL: paymentReplayWindow},
	{Method: http.MethodPost, Path: "/api/v1/admin/orders/{orderId}/mark-paid", TTL: paymentReplayWindow},
	{Method: http.MethodPost, Path: "/api/v1/admin/orders/{orderId}/complete", TTL: paymentReplayWindow},
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	// a nil *Client stored in an interface is not nil, so only hand over live clients
	var limiter middleware.RateLimitStore
	var idempotencyStore pkgredis.IdempotencyStore
	pingers := map[string]controllers.Pinger{"db": d.DB}
	if d.Redis != nil {
		limiter = d.Redis
		idempotencyStore = d.Redis
		pingers["redis"] = d.Redis
	}

	loginPolicy := middleware.NewRateLimitPolicy("login", cfg.RateLimit.LoginWindow, cfg.RateLimit.LoginIPLimit, cfg.RateLimit.LoginEmailLimit)
	registerPolicy := middleware.NewRateLimitPolicy("register", cfg.RateLimit.RegisterWindow, cfg.RateLimit.RegisterIPLimit, 0)
	bookingPolicy := middleware.NewRateLimitPolicy("booking", cfg.RateLimit.BookingWindow, cfg.RateLimit.BookingIPLimit, 0)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, pingers, logg))
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	var verifier webhookcontrollers.EventVerifier
	if d.Stripe != nil {
		verifier = d.Stripe
	}
	var webhookService webhookcontrollers.StripeWebhookService
	if d.StripeWebhook != nil {
		webhookService = d.StripeWebhook
	}
	var guard webhookcontrollers.StripeWebhookGuard
	if d.WebhookGuard != nil {
		guard = d.WebhookGuard
	}
	r.Post("/api/v1/webhooks/stripe", webhookcontrollers.StripeWebhook(webhookService, verifier, guard, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimit(loginPolicy, limiter, logg)).Post("/login", controllers.AuthLogin(d.Auth, logg))
			r.With(middleware.RateLimit(registerPolicy, limiter, logg)).Post("/register", controllers.AuthRegister(d.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(d.Auth, logg))
			r.With(middleware.Auth(cfg.JWT, d.Sessions, logg)).Post("/logout", controllers.AuthLogout(d.Auth, logg))
		})

		// public storefront
		r.Group(func(r chi.Router) {
			r.Get("/appointments/slots", controllers.AppointmentAvailability(d.Appointments, logg))
			r.With(middleware.RateLimit(bookingPolicy, limiter, logg)).Post("/appointments", controllers.AppointmentCreate(d.Appointments, logg))
			r.Get("/products", controllers.ProductList(d.Products, false, logg))
			r.Get("/products/{productRef}", controllers.ProductDetail(d.Products, false, logg))
			r.Post("/cart/preview", controllers.CartPreview(d.Cart, logg))
		})

		// signed-in customers
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
			r.Use(middleware.Idempotency(idempotencyStore, idempotentRoutes, logg))

			r.Get("/cart", controllers.CartGet(d.Cart, logg))
			r.Put("/cart", controllers.CartPersist(d.Cart, logg))
			r.Post("/checkout", controllers.CheckoutBeginPayment(d.Checkout, logg))

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", controllers.AddressList(d.Addresses, logg))
				r.Post("/", controllers.AddressCreate(d.Addresses, logg))
				r.Get("/{addressId}", controllers.AddressGet(d.Addresses, logg))
				r.Patch("/{addressId}", controllers.AddressUpdate(d.Addresses, logg))
				r.Delete("/{addressId}", controllers.AddressDelete(d.Addresses, logg))
				r.Post("/{addressId}/default", controllers.AddressSetDefault(d.Addresses, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrderList(d.Orders, logg))
				r.Get("/{orderId}", controllers.OrderDetail(d.Orders, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
			r.Use(middleware.Idempotency(idempotencyStore, idempotentRoutes, logg))

			r.Route("/appointments", func(r chi.Router) {
				r.Get("/", controllers.AdminAppointmentList(d.Appointments, logg))
				r.Get("/{id}", controllers.AdminAppointmentGet(d.Appointments, logg))
				r.Put("/{id}", controllers.AdminAppointmentReschedule(d.Appointments, logg))
				r.Delete("/{id}", controllers.AdminAppointmentDelete(d.Appointments, logg))
				r.Post("/{id}/confirm", controllers.AdminAppointmentConfirm(d.Appointments, logg))
				r.Post("/{id}/cancel", controllers.AdminAppointmentCancel(d.Appointments, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminOrderList(d.Orders, logg))
				r.Get("/{orderId}", controllers.AdminOrderDetail(d.Orders, logg))
				r.Delete("/{orderId}", controllers.AdminOrderDelete(d.Orders, logg))
				r.Post("/{orderId}/mark-paid", controllers.AdminOrderMarkPaid(d.Orders, logg))
				r.Post("/{orderId}/complete", controllers.AdminOrderComplete(d.Orders, logg))
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.ProductList(d.Products, true, logg))
				r.Post("/", controllers.AdminProductCreate(d.Products, logg))
				r.Get("/{productRef}", controllers.ProductDetail(d.Products, true, logg))
				r.Patch("/{productId}", controllers.AdminProductUpdate(d.Products, logg))
			})
		})
	})

	return r
}
