package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeSlotUnavailable, status: http.StatusConflict, publicMsg: "requested time slot is unavailable", detailsOK: true},
		{code: CodeInvalidRange, status: http.StatusUnprocessableEntity, publicMsg: "end must be after start", detailsOK: true},
		{code: CodeEmptyCart, status: http.StatusUnprocessableEntity, publicMsg: "cart is empty"},
		{code: CodeMissingAddress, status: http.StatusUnprocessableEntity, publicMsg: "shipping address is required"},
		{code: CodeIdempotency, status: http.StatusConflict, publicMsg: "idempotency key reused", detailsOK: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "rate limit exceeded"},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsCode(t *testing.T) {
	err := Wrap(CodeSlotUnavailable, stdErrors.New("overlap"), "slot taken")
	wrapped := fmt.Errorf("booking: %w", err)
	if !IsCode(wrapped, CodeSlotUnavailable) {
		t.Fatalf("expected wrapped error to carry slot unavailable code")
	}
	if IsCode(wrapped, CodeInvalidRange) {
		t.Fatalf("unexpected code match")
	}
	if IsCode(stdErrors.New("plain"), CodeInternal) {
		t.Fatalf("untyped errors carry no code")
	}
}

func TestDumpCapturesPgError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap", TableName: "appointments"}
	dump := Dump(Wrap(CodeSlotUnavailable, pgErr, "insert appointment"))
	if dump.Code != CodeSlotUnavailable {
		t.Fatalf("expected code in dump, got %q", dump.Code)
	}
	if dump.Postgres == nil || dump.Postgres.Code != "23P01" || dump.Postgres.Table != "appointments" {
		t.Fatalf("unexpected pg fields %+v", dump.Postgres)
	}
	if dump.Rule != "appointment_overlap" {
		t.Fatalf("expected overlap rule, got %q", dump.Rule)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected 2 chain entries, got %d", len(dump.Chain))
	}

	fields := dump.Fields()
	if fields["violated_rule"] != "appointment_overlap" || fields["pg_constraint"] != "appointments_no_overlap" {
		t.Fatalf("unexpected log fields %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("empty pg fields should be omitted")
	}
}

func TestDumpReadsLibPqErrors(t *testing.T) {
	dump := Dump(fmt.Errorf("set default: %w", &pq.Error{Code: "23505", Constraint: "ux_addresses_user_default"}))
	if dump.Postgres == nil || dump.Postgres.Code != "23505" {
		t.Fatalf("expected pq fields, got %+v", dump.Postgres)
	}
	if dump.Rule != "single_default_address" {
		t.Fatalf("unexpected rule %q", dump.Rule)
	}
	if _, ok := dump.Fields()["error_code"]; ok {
		t.Fatalf("untyped errors carry no code field")
	}
}

func TestConstraintCode(t *testing.T) {
	if code, ok := ConstraintCode("appointments_range_check"); !ok || code != CodeInvalidRange {
		t.Fatalf("expected INVALID_RANGE, got %q %v", code, ok)
	}
	if _, ok := ConstraintCode("unknown_constraint"); ok {
		t.Fatalf("unknown constraints should not map")
	}
	if dump := Dump(stdErrors.New("plain")); dump.Postgres != nil || dump.Rule != "" {
		t.Fatalf("plain errors carry no postgres fields")
	}
}
