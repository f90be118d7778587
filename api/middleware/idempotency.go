package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/halcyon-wellness/storefront-api/api/responses"
	pkgerrors "github.com/halcyon-wellness/storefront-api/pkg/errors"
	"github.com/halcyon-wellness/storefront-api/pkg/logger"
	pkgredis "github.com/halcyon-wellness/storefront-api/pkg/redis"
)

// ReplayedHeader is set on responses served from the idempotency store.
const ReplayedHeader = "Idempotent-Replayed"

// IdempotencyRule enrolls one route. Path uses chi syntax and {param}
// segments match any single value.
type IdempotencyRule struct {
	Method string
	Path   string
	TTL    time.Duration
}

func (rule IdempotencyRule) matches(method, path string) bool {
	if rule.Method != method {
		return false
	}
	want := splitPath(rule.Path)
	got := splitPath(path)
	if len(want) != len(got) {
		return false
	}
	for i, segment := range want {
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if segment != got[i] {
			return false
		}
	}
	return true
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

type storedResponse struct {
	Status      int       `json:"status"`
	ContentType string    `json:"content_type,omitempty"`
	Body        []byte    `json:"body"`
	BodyHash    string    `json:"body_hash"`
	StoredAt    time.Time `json:"stored_at"`
}

type idempotency struct {
	store pkgredis.IdempotencyStore
	rules []IdempotencyRule
	logg  *logger.Logger
}

// Idempotency replays the first non-5xx response for a repeated
// Idempotency-Key on the enrolled routes. Keys are scoped per caller and path;
// reusing a key with another body is IDEMPOTENCY_KEY_REUSED.
func Idempotency(store pkgredis.IdempotencyStore, rules []IdempotencyRule, logg *logger.Logger) func(http.Handler) http.Handler {
	guard := &idempotency{store: store, rules: rules, logg: logg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := guard.ruleFor(r)
			if !ok || guard.store == nil {
				next.ServeHTTP(w, r)
				return
			}
			guard.serve(w, r, rule, next)
		})
	}
}

func (g *idempotency) ruleFor(r *http.Request) (IdempotencyRule, bool) {
	for _, rule := range g.rules {
		if rule.matches(r.Method, r.URL.Path) {
			return rule, true
		}
	}
	return IdempotencyRule{}, false
}

func (g *idempotency) serve(w http.ResponseWriter, r *http.Request, rule IdempotencyRule, next http.Handler) {
	ctx := r.Context()
	clientKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if clientKey == "" {
		responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		responses.WriteError(ctx, g.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	bodyHash := hashBody(body)
	key := g.store.IdempotencyKey(callerScope(r), clientKey)

	stored, err := g.lookup(ctx, key)
	if err != nil {
		responses.WriteError(ctx, g.logg, w, err)
		return
	}
	if stored != nil {
		if stored.BodyHash != bodyHash {
			responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
			return
		}
		stored.replay(w)
		return
	}

	capture := &capturingWriter{ResponseWriter: w}
	next.ServeHTTP(capture, r)

	// server-side failures stay retryable under the same key
	if capture.statusCode() >= http.StatusInternalServerError {
		return
	}
	g.remember(ctx, key, rule.TTL, storedResponse{
		Status:      capture.statusCode(),
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
		BodyHash:    bodyHash,
		StoredAt:    time.Now().UTC(),
	})
}

func (g *idempotency) lookup(ctx context.Context, key string) (*storedResponse, error) {
	raw, err := g.store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &stored, nil
}

func (g *idempotency) remember(ctx context.Context, key string, ttl time.Duration, stored storedResponse) {
	payload, err := json.Marshal(stored)
	if err != nil {
		g.logError(ctx, "marshal idempotency record", err)
		return
	}
	// a concurrent request with the same key may have won; its record stands
	if _, err := g.store.SetNX(ctx, key, string(payload), ttl); err != nil {
		g.logError(ctx, "persist idempotency record", err)
	}
}

func (g *idempotency) logError(ctx context.Context, msg string, err error) {
	if g.logg == nil {
		return
	}
	g.logg.Error(ctx, msg, err)
}

func (s *storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

func callerScope(r *http.Request) string {
	return strings.Join([]string{UserIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

type capturingWriter struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *capturingWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *capturingWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *capturingWriter) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
