package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/halcyon-wellness/storefront-api/api/routes"
	"github.com/halcyon-wellness/storefront-api/internal/address"
	"github.com/halcyon-wellness/storefront-api/internal/appointments"
	"github.com/halcyon-wellness/storefront-api/internal/auth"
	"github.com/halcyon-wellness/storefront-api/internal/cart"
	"github.com/halcyon-wellness/storefront-api/internal/checkout"
	"github.com/halcyon-wellness/storefront-api/internal/orders"
	"github.com/halcyon-wellness/storefront-api/internal/products"
	"github.com/halcyon-wellness/storefront-api/internal/users"
	stripewebhook "github.com/halcyon-wellness/storefront-api/internal/webhooks/stripe"
	"github.com/halcyon-wellness/storefront-api/pkg/auth/session"
	"github.com/halcyon-wellness/storefront-api/pkg/config"
	"github.com/halcyon-wellness/storefront-api/pkg/db"
	"github.com/halcyon-wellness/storefront-api/pkg/logger"
	"github.com/halcyon-wellness/storefront-api/pkg/metrics"
	"github.com/halcyon-wellness/storefront-api/pkg/migrate"
	"github.com/halcyon-wellness/storefront-api/pkg/outbox"
	"github.com/halcyon-wellness/storefront-api/pkg/redis"
	"github.com/halcyon-wellness/storefront-api/pkg/security"
	"github.com/halcyon-wellness/storefront-api/pkg/stripe"
)

const (
	webhookDedupeTTL = 7 * 24 * time.Hour
	shutdownTimeout  = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Environment: cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	storefrontMetrics := metrics.NewStorefront(prometheus.DefaultRegisterer)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		Hasher:         security.NewHasher(cfg.Password),
		JWTConfig:      cfg.JWT,
		Logger:         logg,
	})
	if err != nil {
		return err
	}

	hours, err := appointments.HoursFromConfig(cfg.Schedule)
	if err != nil {
		return err
	}
	appointmentService, err := appointments.NewService(appointments.ServiceParams{
		DB:           dbClient,
		Repo:         appointments.NewRepository(dbClient.DB()),
		Outbox:       outboxService,
		Hours:        hours,
		Metrics:      storefrontMetrics,
		Logger:       logg,
		EnforceHours: true,
	})
	if err != nil {
		return err
	}

	productService, err := products.NewService(products.NewRepository(dbClient.DB()), cfg.Pricing.Currency)
	if err != nil {
		return err
	}

	cartRepo := cart.NewRepository(dbClient.DB())
	cartService, err := cart.NewService(dbClient, cartRepo, productService, cfg.Pricing.Currency, logg)
	if err != nil {
		return err
	}

	addressRepo := address.NewRepository(dbClient.DB())
	addressService, err := address.NewService(dbClient, addressRepo)
	if err != nil {
		return err
	}

	orderRepo := orders.NewRepository(dbClient.DB())
	orderService, err := orders.NewService(orderRepo, dbClient, outboxService, cartRepo, logg)
	if err != nil {
		return err
	}

	deps := routes.Deps{
		Config:       cfg,
		Logger:       logg,
		DB:           dbClient,
		Redis:        redisClient,
		Sessions:     sessionManager,
		Auth:         authService,
		Appointments: appointmentService,
		Products:     productService,
		Cart:         cartService,
		Addresses:    addressService,
		Orders:       orderService,
		Metrics:      promhttp.Handler(),
	}

	// Payments stay disabled when Stripe is not configured; checkout and the
	// webhook then answer INTERNAL_ERROR.
	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "stripe disabled")
	} else {
		shipping, tax, err := checkout.RulesFromConfig(cfg.Pricing)
		if err != nil {
			return err
		}
		checkoutService, err := checkout.NewService(checkout.ServiceParams{
			DB:        dbClient,
			Carts:     cartRepo,
			Addresses: addressRepo,
			Catalog:   productService,
			Orders:    orderRepo,
			Outbox:    outboxService,
			Payments:  stripeClient,
			Shipping:  shipping,
			Tax:       tax,
			Currency:  cfg.Pricing.Currency,
			Metrics:   storefrontMetrics,
			Logger:    logg,
		})
		if err != nil {
			return err
		}
		webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
			Orders:            orderRepo,
			Carts:             cartRepo,
			Outbox:            outboxService,
			TransactionRunner: dbClient,
			Metrics:           storefrontMetrics,
			Logger:            logg,
		})
		if err != nil {
			return err
		}
		guard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookDedupeTTL)
		if err != nil {
			return err
		}
		deps.Checkout = checkoutService
		deps.Stripe = stripeClient
		deps.StripeWebhook = webhookService
		deps.WebhookGuard = guard
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(logCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
