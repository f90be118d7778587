package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/halcyon-wellness/storefront-api/pkg/logger"
)

func TestQueryLoggerReportsSlowAndFailedStatements(t *testing.T) {
	buf := &bytes.Buffer{}
	q := newQueryLogger(logger.New(logger.Options{ServiceName: "test", Format: "json", Output: buf}), 100*time.Millisecond)
	statement := func() (string, int64) { return "SELECT * FROM appointments", 3 }
	ctx := context.Background()

	q.Trace(ctx, time.Now(), statement, nil)
	q.Trace(ctx, time.Now(), statement, gorm.ErrRecordNotFound)
	q.Trace(ctx, time.Now(), statement, &pgconn.PgError{Code: "23P01"})
	if buf.Len() != 0 {
		t.Fatalf("expected fast and expected-failure statements to stay quiet, got %s", buf.String())
	}

	q.Trace(ctx, time.Now().Add(-time.Second), statement, nil)
	if !bytes.Contains(buf.Bytes(), []byte(`"db.slow_query"`)) || !bytes.Contains(buf.Bytes(), []byte(`"rows":3`)) {
		t.Fatalf("expected slow query entry, got %s", buf.String())
	}

	buf.Reset()
	q.Trace(ctx, time.Now(), statement, errors.New("connection reset"))
	if !bytes.Contains(buf.Bytes(), []byte(`"db.query_failed"`)) {
		t.Fatalf("expected failure entry, got %s", buf.String())
	}
}

func TestQueryLoggerWithoutLoggerDiscards(t *testing.T) {
	if _, ok := newQueryLogger(nil, time.Second).(queryLogger); ok {
		t.Fatal("expected gorm's discard logger without a service logger")
	}
}
