package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/backend-licence/internal/pricelist"
)

// Querier is the subset of pgx used by the price list repository. Both
// *pgxpool.Pool and pgx.Tx satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const listProductsSQL = `
SELECT product_family, family_option, years::float8, units_from, units_to, price::float8, sku, NULL::text AS name
FROM price_list_products
WHERE product_family = $1 AND family_option IS NOT DISTINCT FROM NULLIF($2, '')
ORDER BY years, units_from, sku`

const listSubscriptionsSQL = `
SELECT product_family, family_option, years::float8, units_from, units_to, price::float8, sku, NULL::text AS name
FROM price_list_products
WHERE product_family = $1
ORDER BY family_option, years, units_from, sku`

const listExtensionsSQL = `
SELECT product_family, family_option, years::float8, units_from, units_to, price::float8, sku, name
FROM price_list_extensions
WHERE product_family = $1 AND family_option IS NOT DISTINCT FROM NULLIF($2, '')
ORDER BY years, name, units_from, sku`

const listAppliancesSQL = `
SELECT id, name, sku, price::float8, sub_family, warranty_sku, warranty_price::float8
FROM appliances
WHERE product_family = $1
ORDER BY name, id`

// PriceRepo reads raw price list records from Postgres.
type PriceRepo struct {
	Q Querier
}

// ListProductRecords returns product rows of one family option. An empty
// option selects the rows that have no option.
func (r PriceRepo) ListProductRecords(ctx context.Context, family, option string) ([]pricelist.Record, error) {
	return r.listRecords(ctx, "products", listProductsSQL, family, option)
}

// ListSubscriptionRecords returns the product rows of every option of a
// family. Appliance families key their subscriptions by option.
func (r PriceRepo) ListSubscriptionRecords(ctx context.Context, family string) ([]pricelist.Record, error) {
	return r.listRecords(ctx, "subscriptions", listSubscriptionsSQL, family)
}

// ListExtensionRecords returns extension rows of one family option, matched
// the same way as ListProductRecords.
func (r PriceRepo) ListExtensionRecords(ctx context.Context, family, option string) ([]pricelist.Record, error) {
	return r.listRecords(ctx, "extensions", listExtensionsSQL, family, option)
}

func (r PriceRepo) listRecords(ctx context.Context, what, sql string, args ...any) ([]pricelist.Record, error) {
	rows, err := r.Q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", what, err)
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", what, err)
	}
	return records, nil
}

// ListApplianceRecords returns the hardware appliances of a family.
func (r PriceRepo) ListApplianceRecords(ctx context.Context, family string) ([]pricelist.ApplianceRecord, error) {
	rows, err := r.Q.Query(ctx, listAppliancesSQL, family)
	if err != nil {
		return nil, fmt.Errorf("query appliances: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (pricelist.ApplianceRecord, error) {
		var a pricelist.ApplianceRecord
		err := row.Scan(&a.ID, &a.Name, &a.SKU, &a.Price, &a.SubFamily, &a.WarrantySKU, &a.WarrantyPrice)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan appliances: %w", err)
	}
	return records, nil
}

func scanRecord(row pgx.CollectableRow) (pricelist.Record, error) {
	var rec pricelist.Record
	err := row.Scan(&rec.ProductFamily, &rec.FamilyOption, &rec.Years, &rec.UnitsFrom, &rec.UnitsTo, &rec.Price, &rec.SKU, &rec.Name)
	return rec, err
}
