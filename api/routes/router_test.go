package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-wellness/storefront-api/api/middleware"
	"github.com/halcyon-wellness/storefront-api/internal/cart"
	pkgAuth "github.com/halcyon-wellness/storefront-api/pkg/auth"
	"github.com/halcyon-wellness/storefront-api/pkg/config"
	"github.com/halcyon-wellness/storefront-api/pkg/enums"
	redisclient "github.com/halcyon-wellness/storefront-api/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubSessions struct{}

func (stubSessions) HasSession(context.Context, string) (bool, error) { return true, nil }

type stubCart struct {
	cart.Service
	persisted int
}

func (s *stubCart) Persist(ctx context.Context, userID uuid.UUID, items []cart.ItemInput) (*cart.CartDTO, error) {
	s.persisted++
	return &cart.CartDTO{UserID: userID, Items: []cart.CartItemDTO{}, Next: cart.CheckoutPath}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev", CORSOrigins: "http://localhost:3000"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "halcyon", ExpirationMinutes: 10},
		RateLimit: config.RateLimitConfig{
			BookingWindow:  time.Minute,
			BookingIPLimit: 1,
		},
	}
}

func newTestRouter(t *testing.T, cartSvc cart.Service) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	mr := miniredis.RunT(t)
	rdb := redisclient.Wrap(redislib.NewClient(&redislib.Options{Addr: mr.Addr()}))
	return NewRouter(Deps{
		Config:   cfg,
		DB:       stubPinger{},
		Redis:    rdb,
		Sessions: stubSessions{},
		Cart:     cartSvc,
	}), cfg
}

func bearer(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCustomerRoutesRequireAuth(t *testing.T) {
	router, _ := newTestRouter(t, &stubCart{})

	for _, path := range []string{"/api/v1/cart", "/api/v1/orders", "/api/v1/addresses"} {
		rec := serve(router, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	router, cfg := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.UserRoleCustomer))
	rec := serve(router, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// admins get through to the (unwired) handler
	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.UserRoleAdmin))
	rec = serve(router, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCartPersistRequiresIdempotencyKeyAndReplays(t *testing.T) {
	svc := &stubCart{}
	router, cfg := newTestRouter(t, svc)
	token := bearer(t, cfg, enums.UserRoleCustomer)
	body := `{"items":[{"product_ref":"calm-tea","quantity":2}]}`

	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart", strings.NewReader(body))
	req.Header.Set("Authorization", token)
	rec := serve(router, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, svc.persisted)

	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodPut, "/api/v1/cart", strings.NewReader(body))
		req.Header.Set("Authorization", token)
		req.Header.Set("Idempotency-Key", "cart-1")
		rec = serve(router, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"next":"/checkout"`)
		if i == 1 {
			require.Equal(t, "true", rec.Header().Get(middleware.ReplayedHeader))
		}
	}
	require.Equal(t, 1, svc.persisted)
}

func TestBookingIsRateLimited(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	first := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(`{}`))
	first.RemoteAddr = "10.0.0.1:1234"
	rec := serve(router, first)
	require.NotEqual(t, http.StatusTooManyRequests, rec.Code)

	second := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(`{}`))
	second.RemoteAddr = "10.0.0.1:1234"
	rec = serve(router, second)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
