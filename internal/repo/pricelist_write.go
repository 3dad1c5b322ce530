package repo

import (
	"context"
	"fmt"

	"github.com/noah-isme/backend-licence/internal/pricelist"
)

const deleteFamilySQL = `
WITH p AS (DELETE FROM price_list_products WHERE product_family = $1),
     e AS (DELETE FROM price_list_extensions WHERE product_family = $1)
DELETE FROM appliances WHERE product_family = $1`

const insertProductSQL = `
INSERT INTO price_list_products (product_family, family_option, years, units_from, units_to, price, sku)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (sku) DO UPDATE SET
  product_family = EXCLUDED.product_family,
  family_option = EXCLUDED.family_option,
  years = EXCLUDED.years,
  units_from = EXCLUDED.units_from,
  units_to = EXCLUDED.units_to,
  price = EXCLUDED.price`

const insertExtensionSQL = `
INSERT INTO price_list_extensions (product_family, family_option, years, units_from, units_to, price, sku, name)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (sku) DO UPDATE SET
  product_family = EXCLUDED.product_family,
  family_option = EXCLUDED.family_option,
  years = EXCLUDED.years,
  units_from = EXCLUDED.units_from,
  units_to = EXCLUDED.units_to,
  price = EXCLUDED.price,
  name = EXCLUDED.name`

const insertApplianceSQL = `
INSERT INTO appliances (id, product_family, name, sku, price, sub_family, warranty_sku, warranty_price)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
  product_family = EXCLUDED.product_family,
  name = EXCLUDED.name,
  sku = EXCLUDED.sku,
  price = EXCLUDED.price,
  sub_family = EXCLUDED.sub_family,
  warranty_sku = EXCLUDED.warranty_sku,
  warranty_price = EXCLUDED.warranty_price`

// FamilyRecords is the full raw price list of one product family.
type FamilyRecords struct {
	Family     string                      `json:"family"`
	Products   []pricelist.Record          `json:"products"`
	Extensions []pricelist.Record          `json:"extensions"`
	Appliances []pricelist.ApplianceRecord `json:"appliances"`
}

// ReplaceFamily deletes every record of the family and writes the given ones.
// Run it inside a transaction to make the swap atomic.
func (r PriceRepo) ReplaceFamily(ctx context.Context, fam FamilyRecords) error {
	if fam.Family == "" {
		return fmt.Errorf("replace family: family is required")
	}
	if _, err := r.Q.Exec(ctx, deleteFamilySQL, fam.Family); err != nil {
		return fmt.Errorf("delete family %s: %w", fam.Family, err)
	}
	for _, p := range fam.Products {
		if _, err := r.Q.Exec(ctx, insertProductSQL, fam.Family, p.FamilyOption, p.Years, p.UnitsFrom, p.UnitsTo, p.Price, p.SKU); err != nil {
			return fmt.Errorf("insert product %s: %w", p.SKU, err)
		}
	}
	for _, e := range fam.Extensions {
		if e.Name == nil || *e.Name == "" {
			return fmt.Errorf("insert extension %s: name is required", e.SKU)
		}
		if _, err := r.Q.Exec(ctx, insertExtensionSQL, fam.Family, e.FamilyOption, e.Years, e.UnitsFrom, e.UnitsTo, e.Price, e.SKU, *e.Name); err != nil {
			return fmt.Errorf("insert extension %s: %w", e.SKU, err)
		}
	}
	for _, a := range fam.Appliances {
		if _, err := r.Q.Exec(ctx, insertApplianceSQL, a.ID, fam.Family, a.Name, a.SKU, a.Price, a.SubFamily, a.WarrantySKU, a.WarrantyPrice); err != nil {
			return fmt.Errorf("insert appliance %s: %w", a.ID, err)
		}
	}
	return nil
}
