package products

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/halcyon-wellness/storefront-api/internal/repo"
	"github.com/halcyon-wellness/storefront-api/pkg/db"
	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
	pkgerrors "github.com/halcyon-wellness/storefront-api/pkg/errors"
	"github.com/halcyon-wellness/storefront-api/pkg/pagination"
)

// Service exposes catalog reads and admin product management.
type Service interface {
	List(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	Get(ctx context.Context, ref string, includeInactive bool) (*ProductDTO, error)
	Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	ResolveActive(ctx context.Context, refs []string) (map[string]models.Product, error)
}

type service struct {
	repo     *Repository
	currency string
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var slugReplacer = regexp.MustCompile(`[^a-z0-9]+`)

// NewService builds the catalog service; currency is the store default.
func NewService(repository *Repository, currency string) (Service, error) {
	if repository == nil {
		return nil, fmt.Errorf("product repository required")
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = "usd"
	}
	return &service{repo: repository, currency: currency}, nil
}

func (s *service) List(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, input, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	page, next := pagination.Trim(rows, input.Pagination.Limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	items := make([]ProductDTO, 0, len(page))
	for i := range page {
		items = append(items, *FromModel(&page[i]))
	}
	return &ProductListResult{Items: items, NextCursor: next}, nil
}

// Get resolves ref as a UUID first and falls back to a slug lookup.
func (s *service) Get(ctx context.Context, ref string, includeInactive bool) (*ProductDTO, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product reference required")
	}
	var (
		m   *models.Product
		err error
	)
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		m, err = s.repo.FindByID(ctx, id)
	} else {
		m, err = s.repo.FindBySlug(ctx, strings.ToLower(ref))
	}
	if err != nil {
		return nil, repo.NotFound(err, "product")
	}
	if !m.IsActive && !includeInactive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return FromModel(m), nil
}

func (s *service) Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if slug == "" {
		slug = Slugify(name)
	}
	if !slugPattern.MatchString(slug) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug must be lowercase letters, digits and dashes")
	}
	cents, err := ParsePrice(input.Price)
	if err != nil {
		return nil, err
	}
	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.currency
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	m := &models.Product{
		ID:          uuid.New(),
		Slug:        slug,
		Name:        name,
		Description: input.Description,
		PriceCents:  cents,
		Currency:    currency,
		Variants:    pq.StringArray(normalizeVariants(input.Variants)),
		IsActive:    active,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}
	return FromModel(m), nil
}

// Update patches a product. Price changes never touch existing orders since
// order items carry their own unit price.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repo.NotFound(err, "product")
	}
	if input.Slug != nil {
		slug := strings.ToLower(strings.TrimSpace(*input.Slug))
		if !slugPattern.MatchString(slug) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug must be lowercase letters, digits and dashes")
		}
		m.Slug = slug
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		m.Name = name
	}
	if input.Description != nil {
		m.Description = input.Description
	}
	if input.Price != nil {
		cents, err := ParsePrice(*input.Price)
		if err != nil {
			return nil, err
		}
		m.PriceCents = cents
	}
	if input.Variants != nil {
		m.Variants = pq.StringArray(normalizeVariants(*input.Variants))
	}
	if input.IsActive != nil {
		m.IsActive = *input.IsActive
	}
	if err := s.repo.Save(ctx, m); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
	}
	return FromModel(m), nil
}

// ResolveActive maps each ref (UUID or slug) to its active product.
// Unknown and inactive refs are absent from the result.
func (s *service) ResolveActive(ctx context.Context, refs []string) (map[string]models.Product, error) {
	var ids []uuid.UUID
	var slugs []string
	for _, ref := range refs {
		if id, err := uuid.Parse(ref); err == nil {
			ids = append(ids, id)
			continue
		}
		slugs = append(slugs, strings.ToLower(ref))
	}
	rows, err := s.repo.FindByRefs(ctx, ids, slugs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve products")
	}

	byID := make(map[uuid.UUID]models.Product, len(rows))
	bySlug := make(map[string]models.Product, len(rows))
	for _, p := range rows {
		if !p.IsActive {
			continue
		}
		byID[p.ID] = p
		bySlug[p.Slug] = p
	}
	out := make(map[string]models.Product, len(refs))
	for _, ref := range refs {
		if id, err := uuid.Parse(ref); err == nil {
			if p, ok := byID[id]; ok {
				out[ref] = p
			}
			continue
		}
		if p, ok := bySlug[strings.ToLower(ref)]; ok {
			out[ref] = p
		}
	}
	return out, nil
}

// ParsePrice converts a major-unit decimal string into cents.
func ParsePrice(raw string) (int64, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "price must be a decimal amount").
			WithDetails(map[string]string{"price": "invalid"})
	}
	if value.IsNegative() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative").
			WithDetails(map[string]string{"price": "negative"})
	}
	if value.Exponent() < -2 && !value.Equal(value.Round(2)) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "price supports at most two decimal places").
			WithDetails(map[string]string{"price": "precision"})
	}
	return value.Shift(2).IntPart(), nil
}

// Slugify lowercases name and joins alphanumeric runs with dashes.
func Slugify(name string) string {
	slug := slugReplacer.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

func normalizeVariants(values []string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
