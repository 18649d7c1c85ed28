package pricing

import (
	"testing"

	"github.com/distrihogar/storefront-backend/pkg/db/models"
	"github.com/distrihogar/storefront-backend/pkg/enums"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func decPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestUnitPriceForBusinessTierUsesWholesale(t *testing.T) {
	product := &models.Product{
		BasePrice:      decimal.RequireFromString("120.00"),
		WholesalePrice: decPtr("95.50"),
	}

	got := UnitPriceFor(product, enums.UserTierEmpresa)
	require.True(t, got.Equal(decimal.RequireFromString("95.50")))
}

func TestUnitPriceForNaturalTierIgnoresWholesale(t *testing.T) {
	product := &models.Product{
		BasePrice:      decimal.RequireFromString("120.00"),
		WholesalePrice: decPtr("95.50"),
	}

	got := UnitPriceFor(product, enums.UserTierNatural)
	require.True(t, got.Equal(decimal.RequireFromString("120.00")))
}

func TestUnitPriceForBusinessTierFallsBackToBase(t *testing.T) {
	product := &models.Product{
		BasePrice: decimal.RequireFromString("42.00"),
	}

	got := UnitPriceFor(product, enums.UserTierEmpresa)
	require.True(t, got.Equal(decimal.RequireFromString("42.00")))
}

func TestUnitPriceForNilProduct(t *testing.T) {
	require.True(t, UnitPriceFor(nil, enums.UserTierEmpresa).IsZero())
}

func TestHasWholesaleRate(t *testing.T) {
	require.False(t, HasWholesaleRate(nil))
	require.False(t, HasWholesaleRate(&models.Product{}))
	require.True(t, HasWholesaleRate(&models.Product{WholesalePrice: decPtr("10.00")}))
}
