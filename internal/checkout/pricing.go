package checkout

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/halcyon-wellness/storefront-api/pkg/config"
)

// ShippingRule prices delivery for an order subtotal.
type ShippingRule interface {
	ShippingCents(subtotalCents int64) int64
}

// TaxRule computes tax owed on an order subtotal.
type TaxRule interface {
	TaxCents(subtotalCents int64) int64
}

// FlatShipping charges the same fee on every non-empty order.
type FlatShipping int64

func (f FlatShipping) ShippingCents(subtotalCents int64) int64 {
	if subtotalCents <= 0 || f < 0 {
		return 0
	}
	return int64(f)
}

// PercentTax applies a fractional rate (0.13 for 13%), rounding half away from zero.
type PercentTax struct {
	Rate decimal.Decimal
}

func (p PercentTax) TaxCents(subtotalCents int64) int64 {
	if subtotalCents <= 0 || !p.Rate.IsPositive() {
		return 0
	}
	return decimal.NewFromInt(subtotalCents).Mul(p.Rate).Round(0).IntPart()
}

// ParseTaxRate accepts a fraction in [0, 1).
func ParseTaxRate(raw string) (PercentTax, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return PercentTax{Rate: decimal.Zero}, nil
	}
	rate, err := decimal.NewFromString(value)
	if err != nil {
		return PercentTax{}, fmt.Errorf("invalid tax rate %q: %w", raw, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return PercentTax{}, fmt.Errorf("tax rate %q must be a fraction between 0 and 1", raw)
	}
	return PercentTax{Rate: rate}, nil
}

// RulesFromConfig builds the default shipping and tax rules.
func RulesFromConfig(cfg config.PricingConfig) (ShippingRule, TaxRule, error) {
	tax, err := ParseTaxRate(cfg.TaxRate)
	if err != nil {
		return nil, nil, err
	}
	return FlatShipping(cfg.FlatShippingCents), tax, nil
}
