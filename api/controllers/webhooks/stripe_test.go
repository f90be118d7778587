package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	stripewebhook "github.com/halcyon-wellness/storefront-api/internal/webhooks/stripe"
	redisclient "github.com/halcyon-wellness/storefront-api/pkg/redis"
	pkgstripe "github.com/halcyon-wellness/storefront-api/pkg/stripe"
)

const testSecret = "whsec_test"

type secretVerifier struct {
	secret string
}

func (v secretVerifier) VerifyEvent(payload []byte, header string) (stripe.Event, error) {
	return pkgstripe.VerifyEvent(payload, header, v.secret)
}

type fakeStripeWebhookService struct {
	calls int
	err   error
}

func (f *fakeStripeWebhookService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	f.calls++
	return f.err
}

func newGuard(t *testing.T) *stripewebhook.IdempotencyGuard {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisclient.Wrap(redislib.NewClient(&redislib.Options{Addr: mr.Addr()}))
	guard, err := stripewebhook.NewIdempotencyGuard(client, time.Hour)
	require.NoError(t, err)
	return guard
}

func signedEvent(t *testing.T) ([]byte, string) {
	t.Helper()
	intent := &stripe.PaymentIntent{
		ID:       "pi_" + uuid.NewString(),
		Status:   stripe.PaymentIntentStatusSucceeded,
		Metadata: map[string]string{"order_id": uuid.NewString()},
	}
	raw, err := json.Marshal(intent)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_" + uuid.NewString(),
		"object":      "event",
		"type":        string(stripe.EventTypePaymentIntentSucceeded),
		"api_version": stripe.APIVersion,
		"data":        map[string]json.RawMessage{"object": raw},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: testSecret})
	return signed.Payload, signed.Header
}

func post(handler http.Handler, payload []byte, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	if header != "" {
		req.Header.Set("Stripe-Signature", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhookSuccessAndIdempotent(t *testing.T) {
	payload, header := signedEvent(t)
	service := &fakeStripeWebhookService{}
	handler := StripeWebhook(service, secretVerifier{secret: testSecret}, newGuard(t), nil)

	rec := post(handler, payload, header)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 1, service.calls)

	rec = post(handler, payload, header)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "duplicate")
	require.Equal(t, 1, service.calls)
}

func TestStripeWebhookInvalidSignature(t *testing.T) {
	payload, _ := signedEvent(t)
	service := &fakeStripeWebhookService{}
	handler := StripeWebhook(service, secretVerifier{secret: testSecret}, newGuard(t), nil)

	rec := post(handler, payload, "t=1,v1=invalid")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, service.calls)

	rec = post(handler, payload, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, service.calls)
}

func TestStripeWebhookReleasesOnFailure(t *testing.T) {
	payload, header := signedEvent(t)
	service := &fakeStripeWebhookService{err: errors.New("db down")}
	handler := StripeWebhook(service, secretVerifier{secret: testSecret}, newGuard(t), nil)

	rec := post(handler, payload, header)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	service.err = nil
	rec = post(handler, payload, header)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, service.calls)
}
