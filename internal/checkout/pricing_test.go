package checkout

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/halcyon-wellness/storefront-api/pkg/config"
)

func TestPercentTaxRounds(t *testing.T) {
	tax, err := ParseTaxRate("0.13")
	require.NoError(t, err)
	require.Equal(t, int64(130), tax.TaxCents(1000))
	require.Equal(t, int64(1), tax.TaxCents(5)) // 0.65 rounds up
	require.Zero(t, tax.TaxCents(0))
}

func TestParseTaxRateRejectsOutOfRange(t *testing.T) {
	for _, raw := range []string{"-0.1", "1", "13", "abc"} {
		_, err := ParseTaxRate(raw)
		require.Error(t, err, raw)
	}
	zero, err := ParseTaxRate("")
	require.NoError(t, err)
	require.Zero(t, zero.TaxCents(1000))
}

func TestFlatShippingSkipsEmptyOrders(t *testing.T) {
	ship := FlatShipping(599)
	require.Equal(t, int64(599), ship.ShippingCents(100))
	require.Zero(t, ship.ShippingCents(0))
}

func TestRulesFromConfig(t *testing.T) {
	ship, tax, err := RulesFromConfig(config.PricingConfig{FlatShippingCents: 500, TaxRate: "0.05"})
	require.NoError(t, err)
	require.Equal(t, int64(500), ship.ShippingCents(2000))
	require.Equal(t, int64(100), tax.TaxCents(2000))

	_, _, err = RulesFromConfig(config.PricingConfig{TaxRate: "2"})
	require.Error(t, err)
}
