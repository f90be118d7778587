package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, Validate(Embedded()))
	require.NoError(t, Validate(Source("migrations")))
}

func TestAppointmentsMigrationPreventsOverlap(t *testing.T) {
	content := readMigration(t, "create_appointments")
	for _, want := range []string{
		"CHECK (ends_at > starts_at)",
		"EXCLUDE USING gist",
		"tstzrange(starts_at, ends_at, '[)') WITH &&",
		"WHERE (status <> 'cancelled')",
	} {
		require.Contains(t, content, want)
	}
}

func TestAddressesMigrationHasSingleDefaultIndex(t *testing.T) {
	content := readMigration(t, "create_addresses")
	require.Contains(t, content, "CREATE UNIQUE INDEX IF NOT EXISTS ux_addresses_user_default ON addresses (user_id) WHERE is_default")
}

func TestOrdersMigrationStatuses(t *testing.T) {
	content := readMigration(t, "create_orders")
	require.Contains(t, content, "'PENDING', 'PAID', 'FAILED', 'COMPLETED', 'EXPIRED'")
	require.Contains(t, content, "CREATE TABLE IF NOT EXISTS order_items")
}

func TestValidateRejectsBadFiles(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name": {
			"create_things.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"duplicate version": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
			"20260101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"missing down": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")},
		},
		"empty": {},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, Validate(fsys))
		})
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	path, err := CreateSQLMigration(dir, "Add Gift Cards!", now)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "20260304050607_add_gift_cards.sql"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "-- +goose Up"))
	require.NoError(t, Validate(os.DirFS(dir)))

	_, err = CreateSQLMigration(dir, "add gift cards", now)
	require.Error(t, err)

	_, err = CreateSQLMigration(dir, "!!!", now)
	require.Error(t, err)
}

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := fs.Glob(Embedded(), "*_"+suffix+".sql")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := fs.ReadFile(Embedded(), matches[0])
	require.NoError(t, err)
	return string(data)
}
