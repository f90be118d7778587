// Package helpers turns a persisted cart into frozen order lines.
package helpers

import (
	"github.com/google/uuid"

	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
)

// FreezeLines prices each cart line at the current catalog price and returns
// the order lines together with their subtotal. Lines whose product is no
// longer in catalog, or whose variant is no longer offered, are skipped.
func FreezeLines(items []models.CartItem, catalog map[uuid.UUID]models.Product) ([]models.OrderItem, int64) {
	lines := make([]models.OrderItem, 0, len(items))
	var subtotal int64
	for _, item := range items {
		product, ok := catalog[item.ProductID]
		if !ok || item.Quantity <= 0 {
			continue
		}
		if item.Variant != "" && !product.HasVariant(item.Variant) {
			continue
		}
		total := product.PriceCents * int64(item.Quantity)
		lines = append(lines, models.OrderItem{
			ID:         uuid.New(),
			ProductID:  product.ID,
			Name:       product.Name,
			Variant:    item.Variant,
			Quantity:   item.Quantity,
			UnitCents:  product.PriceCents,
			TotalCents: total,
		})
		subtotal += total
	}
	return lines, subtotal
}

// ProductRefs lists the distinct product ids referenced by items as strings.
func ProductRefs(items []models.CartItem) []string {
	seen := make(map[uuid.UUID]struct{}, len(items))
	refs := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		refs = append(refs, item.ProductID.String())
	}
	return refs
}
