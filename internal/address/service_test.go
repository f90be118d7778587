package address

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	dbpkg "github.com/halcyon-wellness/storefront-api/pkg/db"
	"github.com/halcyon-wellness/storefront-api/pkg/db/dbtest"
	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
	pkgerrors "github.com/halcyon-wellness/storefront-api/pkg/errors"
)

func newAddressService(t *testing.T) (Service, *Repository) {
	t.Helper()
	conn := dbtest.Open(t, dbtest.Addresses)
	repository := NewRepository(conn)
	svc, err := NewService(dbpkg.FromConn(conn), repository)
	require.NoError(t, err)
	return svc, repository
}

func sampleInput(name string) AddressInput {
	return AddressInput{
		FullName:   name,
		Line1:      "12 Harbour St",
		City:       "Halifax",
		Province:   "NS",
		PostalCode: "B3H 1A1",
		Country:    "ca",
	}
}

func defaults(t *testing.T, r *Repository, userID uuid.UUID) []models.Address {
	t.Helper()
	rows, err := r.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	out := []models.Address{}
	for _, row := range rows {
		if row.IsDefault {
			out = append(out, row)
		}
	}
	return out
}

func TestCreateFirstAddressBecomesDefault(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAddressService(t)
	userID := uuid.New()

	first, err := svc.Create(ctx, userID, sampleInput("Home"))
	require.NoError(t, err)
	require.True(t, first.IsDefault)
	require.Equal(t, "CA", first.Country)

	second, err := svc.Create(ctx, userID, sampleInput("Work"))
	require.NoError(t, err)
	require.False(t, second.IsDefault)
}

func TestSetDefaultClearsSiblings(t *testing.T) {
	ctx := context.Background()
	svc, r := newAddressService(t)
	userID := uuid.New()
	other := uuid.New()

	home, err := svc.Create(ctx, userID, sampleInput("Home"))
	require.NoError(t, err)
	work, err := svc.Create(ctx, userID, sampleInput("Work"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, other, sampleInput("Elsewhere"))
	require.NoError(t, err)

	updated, err := svc.SetDefault(ctx, userID, work.ID)
	require.NoError(t, err)
	require.True(t, updated.IsDefault)

	current := defaults(t, r, userID)
	require.Len(t, current, 1)
	require.Equal(t, work.ID, current[0].ID)
	require.NotEqual(t, home.ID, current[0].ID)

	require.Len(t, defaults(t, r, other), 1, "other users keep their default")

	withDefault, err := svc.Create(ctx, userID, func() AddressInput {
		in := sampleInput("Cabin")
		in.IsDefault = true
		return in
	}())
	require.NoError(t, err)
	current = defaults(t, r, userID)
	require.Len(t, current, 1)
	require.Equal(t, withDefault.ID, current[0].ID)
}

func TestSetDefaultRejectsForeignAddress(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAddressService(t)
	owner := uuid.New()

	addr, err := svc.Create(ctx, owner, sampleInput("Home"))
	require.NoError(t, err)

	_, err = svc.SetDefault(ctx, uuid.New(), addr.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteDefaultPromotesRemaining(t *testing.T) {
	ctx := context.Background()
	svc, r := newAddressService(t)
	userID := uuid.New()

	home, err := svc.Create(ctx, userID, sampleInput("Home"))
	require.NoError(t, err)
	work, err := svc.Create(ctx, userID, sampleInput("Work"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, userID, home.ID))

	current := defaults(t, r, userID)
	require.Len(t, current, 1)
	require.Equal(t, work.ID, current[0].ID)

	err = svc.Delete(ctx, userID, home.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateValidatesFields(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAddressService(t)
	userID := uuid.New()

	addr, err := svc.Create(ctx, userID, sampleInput("Home"))
	require.NoError(t, err)

	city := "Dartmouth"
	line2 := "  "
	updated, err := svc.Update(ctx, userID, addr.ID, UpdateAddressInput{City: &city, Line2: &line2})
	require.NoError(t, err)
	require.Equal(t, "Dartmouth", updated.City)
	require.Nil(t, updated.Line2)

	_, err = svc.Create(ctx, userID, AddressInput{FullName: "x"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
