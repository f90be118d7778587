package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
	pkgerrors "github.com/halcyon-wellness/storefront-api/pkg/errors"
	"github.com/halcyon-wellness/storefront-api/pkg/logger"
)

// maxLineQuantity caps a single (product, variant) line after regrouping.
const maxLineQuantity = 99

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalog interface {
	ResolveActive(ctx context.Context, refs []string) (map[string]models.Product, error)
}

// Service exposes the reducer preview and server-side cart persistence.
type Service interface {
	Preview(req PreviewRequest) State
	Persist(ctx context.Context, userID uuid.UUID, items []ItemInput) (*CartDTO, error)
	Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
}

type service struct {
	tx       txRunner
	repo     *Repository
	catalog  catalog
	currency string
	logg     *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(tx txRunner, repository *Repository, products catalog, currency string, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repository == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	return &service{tx: tx, repo: repository, catalog: products, currency: strings.ToLower(currency), logg: logg}, nil
}

func (s *service) Preview(req PreviewRequest) State {
	return ReduceAll(req.State, req.Actions)
}

type resolvedLine struct {
	product  models.Product
	variant  string
	quantity int
}

// Persist normalizes the submitted lines, resolves them against the catalog
// (unknown, inactive and unsupported-variant lines are dropped), merges
// duplicates and replaces the stored cart in one transaction.
func (s *service) Persist(ctx context.Context, userID uuid.UUID, items []ItemInput) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	normalized := normalize(items)
	refs := make([]string, 0, len(normalized))
	seen := map[string]struct{}{}
	for _, item := range normalized {
		if _, ok := seen[item.ProductRef]; ok {
			continue
		}
		seen[item.ProductRef] = struct{}{}
		refs = append(refs, item.ProductRef)
	}

	resolved := map[string]models.Product{}
	if len(refs) > 0 {
		var err error
		resolved, err = s.catalog.ResolveActive(ctx, refs)
		if err != nil {
			return nil, err
		}
	}

	lines := regroup(normalized, resolved)
	for _, line := range lines {
		if line.quantity > maxLineQuantity {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d of %s per order", maxLineQuantity, line.product.Name)).
				WithDetails(map[string]string{"items": "quantity too large"})
		}
	}
	if dropped := len(normalized) - countInputs(normalized, resolved); dropped > 0 && s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"user_id": userID.String(), "dropped": dropped}), "cart.lines_dropped")
	}

	var cart *models.Cart
	persist := func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			r := s.repo.WithTx(tx)
			c, err := r.Upsert(ctx, userID)
			if err != nil {
				return err
			}
			rows := make([]models.CartItem, 0, len(lines))
			for _, line := range lines {
				rows = append(rows, models.CartItem{ProductID: line.product.ID, Variant: line.variant, Quantity: line.quantity})
			}
			if err := r.ReplaceItems(ctx, c.ID, rows); err != nil {
				return err
			}
			c.Items = rows
			cart = c
			return nil
		})
	}
	err := persist()
	if errors.Is(err, ErrConcurrentCart) {
		err = persist()
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist cart")
	}

	byID := make(map[uuid.UUID]models.Product, len(lines))
	for _, line := range lines {
		byID[line.product.ID] = line.product
	}
	dto := s.toDTO(cart, byID)
	dto.Next = CheckoutPath
	return dto, nil
}

// Get returns the persisted cart. A user without one gets an empty cart.
func (s *service) Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	cart, err := s.repo.FindByUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &CartDTO{UserID: userID, Items: []CartItemDTO{}, Currency: s.currency}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}

	refs := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		refs = append(refs, item.ProductID.String())
	}
	byID := map[uuid.UUID]models.Product{}
	if len(refs) > 0 {
		resolved, err := s.catalog.ResolveActive(ctx, refs)
		if err != nil {
			return nil, err
		}
		for _, p := range resolved {
			byID[p.ID] = p
		}
	}
	return s.toDTO(cart, byID), nil
}

func (s *service) toDTO(cart *models.Cart, products map[uuid.UUID]models.Product) *CartDTO {
	dto := &CartDTO{
		ID:        cart.ID,
		UserID:    cart.UserID,
		Items:     make([]CartItemDTO, 0, len(cart.Items)),
		Currency:  s.currency,
		UpdatedAt: cart.UpdatedAt,
	}
	for _, item := range cart.Items {
		line := CartItemDTO{ProductID: item.ProductID, Variant: item.Variant, Quantity: item.Quantity}
		if p, ok := products[item.ProductID]; ok {
			line.Slug = p.Slug
			line.Name = p.Name
			line.UnitCents = p.PriceCents
			line.TotalCents = p.PriceCents * int64(item.Quantity)
			line.Available = true
			dto.SubtotalCents += line.TotalCents
			if p.Currency != "" {
				dto.Currency = p.Currency
			}
		}
		dto.Items = append(dto.Items, line)
	}
	return dto
}

func normalize(items []ItemInput) []ItemInput {
	out := make([]ItemInput, 0, len(items))
	for _, item := range items {
		ref := strings.TrimSpace(item.ProductRef)
		if ref == "" || item.Quantity <= 0 {
			continue
		}
		out = append(out, ItemInput{ProductRef: ref, Variant: strings.TrimSpace(item.Variant), Quantity: item.Quantity})
	}
	return out
}

func regroup(items []ItemInput, resolved map[string]models.Product) []resolvedLine {
	type key struct {
		id      uuid.UUID
		variant string
	}
	index := map[key]int{}
	var lines []resolvedLine
	for _, item := range items {
		p, ok := resolved[item.ProductRef]
		if !ok || !p.HasVariant(item.Variant) {
			continue
		}
		k := key{id: p.ID, variant: item.Variant}
		if i, ok := index[k]; ok {
			lines[i].quantity += item.Quantity
			continue
		}
		index[k] = len(lines)
		lines = append(lines, resolvedLine{product: p, variant: item.Variant, quantity: item.Quantity})
	}
	return lines
}

func countInputs(items []ItemInput, resolved map[string]models.Product) int {
	n := 0
	for _, item := range items {
		if p, ok := resolved[item.ProductRef]; ok && p.HasVariant(item.Variant) {
			n++
		}
	}
	return n
}
