package helpers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/halcyon-wellness/storefront-api/pkg/db/models"
)

func TestFreezeLinesUsesCatalogPrices(t *testing.T) {
	t.Parallel()
	oil := models.Product{ID: uuid.New(), Name: "Lavender Oil", PriceCents: 2400, Variants: pq.StringArray{"30ml"}}
	tea := models.Product{ID: uuid.New(), Name: "Calm Tea", PriceCents: 1200}
	gone := uuid.New()
	catalog := map[uuid.UUID]models.Product{oil.ID: oil, tea.ID: tea}

	lines, subtotal := FreezeLines([]models.CartItem{
		{ProductID: oil.ID, Variant: "30ml", Quantity: 2},
		{ProductID: oil.ID, Variant: "1l", Quantity: 1},
		{ProductID: tea.ID, Quantity: 3},
		{ProductID: gone, Quantity: 1},
	}, catalog)

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if subtotal != 2*2400+3*1200 {
		t.Fatalf("unexpected subtotal %d", subtotal)
	}
	if lines[0].Name != "Lavender Oil" || lines[0].UnitCents != 2400 || lines[0].TotalCents != 4800 {
		t.Fatalf("unexpected first line %+v", lines[0])
	}
}

func TestProductRefsDeduplicates(t *testing.T) {
	t.Parallel()
	id := uuid.New()
	refs := ProductRefs([]models.CartItem{{ProductID: id, Variant: "a"}, {ProductID: id, Variant: "b"}})
	if len(refs) != 1 || refs[0] != id.String() {
		t.Fatalf("unexpected refs %v", refs)
	}
}
