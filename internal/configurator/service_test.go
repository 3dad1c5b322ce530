package configurator_test

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-licence/internal/configstore"
	"github.com/noah-isme/backend-licence/internal/configurator"
	"github.com/noah-isme/backend-licence/internal/pricelist"
	"github.com/noah-isme/backend-licence/internal/pricing"
	"github.com/noah-isme/backend-licence/internal/summary"
)

func strPtr(v string) *string { return &v }

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func decPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

type staticLists struct {
	units      map[string]pricelist.PriceList
	appliances map[string]pricelist.ApplianceList
	err        error
}

func (s staticLists) PriceList(_ context.Context, family, _ string) (pricelist.PriceList, error) {
	if s.err != nil {
		return pricelist.PriceList{}, s.err
	}
	return s.units[family], nil
}

func (s staticLists) ApplianceList(_ context.Context, family string) (pricelist.ApplianceList, error) {
	if s.err != nil {
		return pricelist.ApplianceList{}, s.err
	}
	return s.appliances[family], nil
}

func testLists() staticLists {
	mail := pricelist.Build([]pricelist.Record{
		{ProductFamily: "mail", Years: 1, UnitsFrom: 5, UnitsTo: intPtr(49), Price: 10, SKU: "M1-5"},
		{ProductFamily: "mail", Years: 1, UnitsFrom: 50, UnitsTo: intPtr(500), Price: 8, SKU: "M1-50"},
		{ProductFamily: "mail", Years: 2, UnitsFrom: 5, UnitsTo: intPtr(49), Price: 18, SKU: "M2-5"},
		{ProductFamily: "mail", Years: 2, UnitsFrom: 50, UnitsTo: intPtr(500), Price: 15, SKU: "M2-50"},
	}, []pricelist.Record{
		{ProductFamily: "mail", Years: 1, UnitsFrom: 1, Price: 2, SKU: "AV-1", Name: strPtr("Anti Virus")},
		{ProductFamily: "mail", Years: 2, UnitsFrom: 1, Price: 3, SKU: "AV-2", Name: strPtr("Anti Virus")},
		{ProductFamily: "mail", Years: 1, UnitsFrom: 1, Price: 1, SKU: "AR-1", Name: strPtr("Archive")},
	}, pricelist.Options{DefaultMinUnits: 1, DefaultMaxUnits: 1000})

	gateway := pricelist.BuildAppliances([]pricelist.Record{
		{ProductFamily: "gateway", FamilyOption: strPtr("g100"), Years: 1, UnitsFrom: 1, Price: 120, SKU: "SUB-G100-1"},
	}, []pricelist.ApplianceRecord{
		{ID: "g100", Name: "Gateway 100", SKU: "HW-G100", Price: 1000, SubFamily: "g100", WarrantySKU: strPtr("WAR-G100"), WarrantyPrice: floatPtr(150)},
	})
	return staticLists{
		units:      map[string]pricelist.PriceList{"mail": mail},
		appliances: map[string]pricelist.ApplianceList{"gateway": gateway},
	}
}

func newStore(t *testing.T, version int) (*redis.Client, *configstore.Store) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, configstore.NewStore(client, configstore.Config{Version: version})
}

func newTestService(t *testing.T, lists configurator.PriceLists, store configurator.Store) *configurator.Service {
	t.Helper()
	gen, err := summary.New(summary.Config{Currency: "GBP", Locale: "en-GB", UnitName: "user"})
	require.NoError(t, err)
	svc, err := configurator.NewService(configurator.ServiceConfig{
		PriceLists: lists,
		Store:      store,
		Processor:  pricing.NewProcessor(pricing.Config{}, gen),
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	return svc
}

func TestPreviewClampsAndPrices(t *testing.T) {
	_, store := newStore(t, 1)
	svc := newTestService(t, testLists(), store)

	out, err := svc.Preview(context.Background(), configurator.Request{
		Family:        "mail",
		PurchaseType:  "new",
		UnitsChange:   52,
		Years:         decPtr("1.4"),
		ExtensionKeys: []string{"AntiVirus"},
	})
	require.NoError(t, err)
	require.Equal(t, 50, out.Form.UnitsChange)
	require.True(t, out.Form.Years.Equal(decimal.NewFromInt(2)))
	require.Equal(t, "900.00", out.Configuration.Price.StringFixed(2))
	require.Equal(t, "50 users for 2 years", out.Configuration.Summary.Product)
	require.Equal(t, "With the Anti Virus extension", out.Configuration.Summary.Extensions)
	require.Equal(t, "£900.00 + vat", out.Configuration.Summary.Price)
}

func TestPreviewMonthsRemaining(t *testing.T) {
	_, store := newStore(t, 1)
	svc := newTestService(t, testLists(), store)

	out, err := svc.Preview(context.Background(), configurator.Request{
		Family:          "mail",
		PurchaseType:    "add-units",
		ExistingUnits:   20,
		UnitsChange:     5,
		MonthsRemaining: intPtr(14),
	})
	require.NoError(t, err)
	require.True(t, out.Form.Years.Equal(decimal.RequireFromString("1.25")))
	// 5 users for a year plus 1.25 pro-rata users at 10 each.
	require.Equal(t, "62.50", out.Configuration.Price.StringFixed(2))
	require.Equal(t, "Add 5 users to your existing 20 users (25 users total) for 1 year and 3 months", out.Configuration.Summary.Product)
}

func TestSaveAndGet(t *testing.T) {
	_, store := newStore(t, 1)
	svc := newTestService(t, testLists(), store)
	ctx := context.Background()

	saved, err := svc.Save(ctx, configurator.Request{Family: "mail", PurchaseType: "renewal", ExistingUnits: 40, UnitsChange: 10, Years: decPtr("1")})
	require.NoError(t, err)
	require.NotEmpty(t, saved.Key)
	require.Equal(t, "400.00", saved.Configuration.Price.StringFixed(2))

	got, err := svc.Get(ctx, saved.Key)
	require.NoError(t, err)
	require.Equal(t, saved.Configuration.Price.String(), got.Price.String())
	require.Equal(t, "mail", got.Inputs.Family)
	require.Equal(t, 40, got.Inputs.Form.ExistingUnits)
}

func TestSaveRejectsOutOfRange(t *testing.T) {
	_, store := newStore(t, 1)
	svc := newTestService(t, testLists(), store)

	_, err := svc.Save(context.Background(), configurator.Request{Family: "mail", PurchaseType: "new", UnitsChange: 7, Years: decPtr("1")})
	require.ErrorIs(t, err, pricing.ErrInvalidInput)

	_, err = svc.Save(context.Background(), configurator.Request{Family: "mail", PurchaseType: "add-units", ExistingUnits: 498, Years: decPtr("1")})
	require.ErrorIs(t, err, configurator.ErrNothingConfigured)

	// An existing licence below the smallest band has no extension price.
	_, err = svc.Save(context.Background(), configurator.Request{Family: "mail", PurchaseType: "add-extension", ExistingUnits: 3, Years: decPtr("1"), ExtensionKeys: []string{"AntiVirus"}})
	require.ErrorIs(t, err, pricing.ErrInvalidInput)
	require.NotErrorIs(t, err, pricing.ErrIntegrity)
}

func TestSaveValidatesPayload(t *testing.T) {
	_, store := newStore(t, 1)
	svc := newTestService(t, testLists(), store)

	_, err := svc.Save(context.Background(), configurator.Request{PurchaseType: "bogus", ExistingUnits: -1})
	var verr *configurator.ValidationError
	require.True(t, errors.As(err, &verr))
	fields := verr.Fields()
	require.Equal(t, "required", fields["family"])
	require.Equal(t, "oneof", fields["purchaseType"])
	require.Equal(t, "gte", fields["existingUnits"])
}

func TestSaveAppliance(t *testing.T) {
	_, store := newStore(t, 1)
	svc := newTestService(t, testLists(), store)

	saved, err := svc.Save(context.Background(), configurator.Request{
		Family: "gateway", PricingType: "appliance", PurchaseType: "new",
		ApplianceID: "g100", Quantity: 1, Years: decPtr("1"), WarrantyExtension: true,
	})
	require.NoError(t, err)
	require.True(t, saved.Configuration.Shipping)
	require.Equal(t, "1270.00", saved.Configuration.Price.StringFixed(2))
	require.Equal(t, "1 x Gateway 100 with a 1 year subscription and warranty extension", saved.Configuration.Summary.Product)

	_, err = svc.Save(context.Background(), configurator.Request{
		Family: "gateway", PricingType: "appliance", PurchaseType: "spare-hardware", ApplianceID: "g100",
	})
	require.ErrorIs(t, err, pricing.ErrInvalidInput)
}

func TestIntegrityFailureReturnsNoPrice(t *testing.T) {
	_, store := newStore(t, 1)
	svc := newTestService(t, testLists(), store)

	_, err := svc.Save(context.Background(), configurator.Request{
		Family: "mail", PurchaseType: "new", UnitsChange: 10, Years: decPtr("2"), ExtensionKeys: []string{"Archive"},
	})
	require.ErrorIs(t, err, pricing.ErrIntegrity)
}

func TestQuotes(t *testing.T) {
	client, store := newStore(t, 1)
	svc := newTestService(t, testLists(), store)
	ctx := context.Background()

	a, err := svc.Save(ctx, configurator.Request{Family: "mail", PurchaseType: "new", UnitsChange: 10, Years: decPtr("1")})
	require.NoError(t, err)
	b, err := svc.Save(ctx, configurator.Request{Family: "mail", PurchaseType: "new", UnitsChange: 50, Years: decPtr("2")})
	require.NoError(t, err)

	quote, err := svc.SaveQuote(ctx, []string{a.Key, " ", b.Key, a.Key})
	require.NoError(t, err)
	require.Equal(t, []string{a.Key, b.Key}, quote.Keys)
	id := quote.ID

	g, err := svc.GetQuote(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []string{a.Key, b.Key}, g.Keys)
	require.Equal(t, "750.00", g.Configurations[b.Key].Price.StringFixed(2))

	bumped := newTestService(t, testLists(), configstore.NewStore(client, configstore.Config{Version: 2}))
	_, err = bumped.GetQuote(ctx, id)
	require.ErrorIs(t, err, configstore.ErrVersionMismatch)
}

func TestUnavailableProduct(t *testing.T) {
	_, store := newStore(t, 1)
	svc := newTestService(t, testLists(), store)

	_, err := svc.Preview(context.Background(), configurator.Request{Family: "unknown", PurchaseType: "new", UnitsChange: 1})
	require.ErrorIs(t, err, pricing.ErrProductUnavailable)
}
