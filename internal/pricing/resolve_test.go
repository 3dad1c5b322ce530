package pricing_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-licence/internal/pricelist"
	"github.com/noah-isme/backend-licence/internal/pricing"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func floatPtr(v float64) *float64 { return &v }

func band(sku string, years float64, from int, to *int, price float64) pricelist.Record {
	return pricelist.Record{ProductFamily: "mail", Years: years, UnitsFrom: from, UnitsTo: to, Price: price, SKU: sku}
}

func ext(name, sku string, years float64, from int, to *int, price float64) pricelist.Record {
	r := band(sku, years, from, to, price)
	r.Name = strPtr(name)
	return r
}

func TestResolveUnitBandPrefersBandStartingAtCount(t *testing.T) {
	list := pricelist.Build([]pricelist.Record{
		band("B10", 1, 10, intPtr(19), 10),
		band("B20", 1, 20, nil, 8),
	}, nil, pricelist.Options{DefaultMinUnits: 1, DefaultMaxUnits: 1000})
	one := list.ProductsForYears(decimal.NewFromInt(1))

	entry, ok := pricing.ResolveUnitBand(one, 20, 0)
	require.True(t, ok)
	require.Equal(t, "B20", entry.SKU)

	entry, ok = pricing.ResolveUnitBand(one, 15, 0)
	require.True(t, ok)
	require.Equal(t, "B10", entry.SKU)

	_, ok = pricing.ResolveUnitBand(one, 5, 0)
	require.False(t, ok)
}

func TestResolveUnitBandFloorOverride(t *testing.T) {
	list := pricelist.Build([]pricelist.Record{
		band("B25", 1, 25, intPtr(49), 4),
		band("B50", 1, 50, nil, 3),
	}, nil, pricelist.Options{DefaultMinUnits: 1, DefaultMaxUnits: 1000, MinUnitsStep: 5})
	one := list.ProductsForYears(decimal.NewFromInt(1))

	_, ok := pricing.ResolveUnitBand(one, 5, 0)
	require.False(t, ok)

	entry, ok := pricing.ResolveUnitBand(one, 5, 5)
	require.True(t, ok)
	require.Equal(t, "B25", entry.SKU, "lowest band wins when the floor admits several")
}

func TestResolveExtensionsOnePerKey(t *testing.T) {
	list := pricelist.Build(nil, []pricelist.Record{
		ext("Anti Virus", "AV-1", 1, 1, intPtr(49), 2),
		ext("Anti Virus", "AV-50", 1, 50, nil, 1.5),
		ext("Archive", "AR-1", 1, 1, nil, 1),
		ext("Archive", "AR-2", 2, 1, nil, 1.8),
	}, pricelist.Options{DefaultMinUnits: 1, DefaultMaxUnits: 1000})

	got, err := pricing.ResolveExtensions([]string{"Archive", "AntiVirus", "Archive"}, list.Extensions, decimal.NewFromInt(1), 60, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "AV-50", got[0].SKU)
	require.Equal(t, "AR-1", got[1].SKU)

	got, err = pricing.ResolveExtensions(nil, list.Extensions, decimal.NewFromInt(1), 60, 0)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestResolveExtensionsMissingKeyIsIntegrityError(t *testing.T) {
	list := pricelist.Build(nil, []pricelist.Record{
		ext("A", "A-1", 1, 1, nil, 2),
		ext("B", "B-2", 2, 1, nil, 3),
	}, pricelist.Options{DefaultMinUnits: 1, DefaultMaxUnits: 1000})

	got, err := pricing.ResolveExtensions([]string{"A", "B"}, list.Extensions, decimal.NewFromInt(1), 10, 0)
	require.Nil(t, got)
	require.Error(t, err)
	require.True(t, errors.Is(err, pricing.ErrIntegrity))

	var integrity *pricing.IntegrityError
	require.True(t, errors.As(err, &integrity))
	require.Equal(t, []string{"B"}, integrity.MissingKeys)
	require.True(t, integrity.Years.Equal(decimal.NewFromInt(1)))
	require.Contains(t, err.Error(), "missing extensions: B")
}

func TestResolveExtensionsBandGapIsIntegrityError(t *testing.T) {
	list := pricelist.Build(nil, []pricelist.Record{
		ext("A", "A-1", 1, 1, intPtr(9), 2),
	}, pricelist.Options{DefaultMinUnits: 1, DefaultMaxUnits: 1000})

	_, err := pricing.ResolveExtensions([]string{"A"}, list.Extensions, decimal.NewFromInt(1), 10, 0)
	require.ErrorIs(t, err, pricing.ErrIntegrity)
}
