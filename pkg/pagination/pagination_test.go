package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, 1000: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestCursorRoundTrip(t *testing.T) {
	c := Cursor{CreatedAt: time.Date(2026, 5, 1, 10, 30, 0, 123, time.UTC), ID: uuid.New()}
	parsed, err := ParseCursor(c.Encode())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.CreatedAt.Equal(c.CreatedAt) || parsed.ID != c.ID {
		t.Fatalf("round trip mismatch: %+v vs %+v", parsed, c)
	}

	if parsed, err := ParseCursor(""); err != nil || parsed != nil {
		t.Fatalf("empty cursor should be nil, got %+v %v", parsed, err)
	}
	if _, err := ParseCursor("!!!"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestTrim(t *testing.T) {
	type row struct {
		id uuid.UUID
		at time.Time
	}
	now := time.Now().UTC()
	rows := []row{{uuid.New(), now}, {uuid.New(), now.Add(-time.Minute)}, {uuid.New(), now.Add(-2 * time.Minute)}}
	position := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page, next := Trim(rows, 2, position)
	if len(page) != 2 || next == "" {
		t.Fatalf("expected 2 rows and a next cursor, got %d %q", len(page), next)
	}
	parsed, err := ParseCursor(next)
	if err != nil || parsed.ID != rows[1].id {
		t.Fatalf("next cursor should point at last returned row: %+v %v", parsed, err)
	}

	page, next = Trim(rows, 5, position)
	if len(page) != 3 || next != "" {
		t.Fatalf("expected full page without cursor, got %d %q", len(page), next)
	}
}
