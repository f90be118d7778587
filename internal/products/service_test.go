package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-wellness/storefront-api/pkg/db/dbtest"
	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
	pkgerrors "github.com/halcyon-wellness/storefront-api/pkg/errors"
	"github.com/halcyon-wellness/storefront-api/pkg/pagination"
)

func newProductService(t *testing.T) (Service, *Repository) {
	t.Helper()
	repository := NewRepository(dbtest.Open(t, dbtest.Products))
	svc, err := NewService(repository, "USD")
	require.NoError(t, err)
	return svc, repository
}

func boolPtr(v bool) *bool { return &v }

func TestParsePrice(t *testing.T) {
	cases := map[string]int64{"24.50": 2450, "3": 300, "0.99": 99, "10.500": 1050}
	for raw, want := range cases {
		got, err := ParsePrice(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}
	for _, bad := range []string{"", "abc", "-1", "1.999"} {
		_, err := ParsePrice(bad)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), bad)
	}
}

func TestSlugify(t *testing.T) {
	require.Equal(t, "rose-hip-face-oil-30ml", Slugify("  Rose Hip Face Oil (30ml) "))
}

func TestCreateAndGetByIDOrSlug(t *testing.T) {
	ctx := context.Background()
	svc, _ := newProductService(t)

	created, err := svc.Create(ctx, CreateProductInput{
		Name:     "Calm Tea Blend",
		Price:    "12.00",
		Variants: []string{"50g", " 100g ", "50g"},
	})
	require.NoError(t, err)
	require.Equal(t, "calm-tea-blend", created.Slug)
	require.Equal(t, int64(1200), created.PriceCents)
	require.Equal(t, "12.00", created.Price)
	require.Equal(t, "usd", created.Currency)
	require.Equal(t, []string{"50g", "100g"}, created.Variants)

	byID, err := svc.Get(ctx, created.ID.String(), false)
	require.NoError(t, err)
	require.Equal(t, created.ID, byID.ID)

	bySlug, err := svc.Get(ctx, "Calm-Tea-Blend", false)
	require.NoError(t, err)
	require.Equal(t, created.ID, bySlug.ID)

	_, err = svc.Create(ctx, CreateProductInput{Name: "Calm Tea Blend", Price: "1"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestInactiveProductsHiddenFromPublicReads(t *testing.T) {
	ctx := context.Background()
	svc, _ := newProductService(t)

	hidden, err := svc.Create(ctx, CreateProductInput{Name: "Retired Candle", Price: "8", IsActive: boolPtr(false)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateProductInput{Name: "Bath Salts", Price: "15"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, hidden.Slug, false)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	admin, err := svc.Get(ctx, hidden.Slug, true)
	require.NoError(t, err)
	require.False(t, admin.IsActive)

	list, err := svc.List(ctx, ListProductsInput{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, "bath-salts", list.Items[0].Slug)

	all, err := svc.List(ctx, ListProductsInput{IncludeInactive: true})
	require.NoError(t, err)
	require.Len(t, all.Items, 2)
}

func TestListPaginates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newProductService(t)
	for _, name := range []string{"One", "Two", "Three"} {
		_, err := svc.Create(ctx, CreateProductInput{Name: name, Price: "1"})
		require.NoError(t, err)
	}

	first, err := svc.List(ctx, ListProductsInput{Pagination: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.List(ctx, ListProductsInput{Pagination: pagination.Params{Limit: 2, Cursor: first.NextCursor}})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.Empty(t, second.NextCursor)
}

func TestUpdateChangesPriceOnly(t *testing.T) {
	ctx := context.Background()
	svc, _ := newProductService(t)

	created, err := svc.Create(ctx, CreateProductInput{Name: "Massage Oil", Price: "20"})
	require.NoError(t, err)

	price := "22.75"
	updated, err := svc.Update(ctx, created.ID, UpdateProductInput{Price: &price})
	require.NoError(t, err)
	require.Equal(t, int64(2275), updated.PriceCents)
	require.Equal(t, created.Slug, updated.Slug)

	_, err = svc.Update(ctx, uuid.New(), UpdateProductInput{Price: &price})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestResolveActiveMatchesIDsAndSlugs(t *testing.T) {
	ctx := context.Background()
	svc, repository := newProductService(t)

	active := models.Product{ID: uuid.New(), Slug: "body-scrub", Name: "Body Scrub", PriceCents: 1800, Currency: "usd", IsActive: true}
	inactive := models.Product{ID: uuid.New(), Slug: "old-scrub", Name: "Old Scrub", PriceCents: 900, Currency: "usd", IsActive: false}
	require.NoError(t, repository.Create(ctx, &active))
	require.NoError(t, repository.Create(ctx, &inactive))

	resolved, err := svc.ResolveActive(ctx, []string{active.ID.String(), "BODY-SCRUB", "old-scrub", "missing", uuid.NewString()})
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	require.Equal(t, active.ID, resolved[active.ID.String()].ID)
	require.Equal(t, active.ID, resolved["BODY-SCRUB"].ID)
}
