package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-licence/internal/pricelist"
)

// ProcessAppliance prices an appliance-priced configuration. Hardware changing
// hands (new and spare-hardware purchases) sets the shipping flag.
func (p *Processor) ProcessAppliance(list pricelist.ApplianceList, form FormState) (Result, error) {
	purchaseType := form.PurchaseType
	if purchaseType == "" {
		purchaseType = PurchaseRenewal
	}
	switch purchaseType {
	case PurchaseNew, PurchaseSpareHardware, PurchaseWarrantyExtension, PurchaseRenewal:
	default:
		return Result{}, fmt.Errorf("%s for %s pricing: %w", purchaseType, PricingAppliance, ErrUnsupportedPurchaseType)
	}

	appliance, ok := list.Appliance(form.ApplianceID)
	if !ok {
		return Result{}, fmt.Errorf("appliance %q: %w", form.ApplianceID, ErrUnknownAppliance)
	}

	res := emptyResult(PricingAppliance, purchaseType, form, list.Family, appliance.SubFamily)
	if form.Quantity < 1 {
		return res, nil
	}
	qty := decimal.NewFromInt(int64(form.Quantity))
	years := form.Years.Ceil()
	acc := newAccumulator()

	subscription := func() error {
		if !years.IsPositive() {
			return fmt.Errorf("subscription years %s: %w", form.Years.String(), ErrInvalidInput)
		}
		entry, ok := list.Subscription(appliance.SubFamily, years)
		if !ok {
			return &IntegrityError{Op: "resolve subscription " + appliance.SubFamily, Years: years, Units: form.Quantity}
		}
		acc.add(entry.SKU, qty, entry.Price)
		res.Duration = Duration{WholeYears: int(years.IntPart()), PartYears: decimal.Zero}
		return nil
	}

	warranty := false
	switch purchaseType {
	case PurchaseNew:
		acc.add(appliance.SKU, qty, appliance.Price)
		if err := subscription(); err != nil {
			return Result{}, err
		}
		if form.WarrantyExtension && appliance.Warranty != nil {
			acc.add(appliance.Warranty.SKU, qty, appliance.Warranty.Price)
			warranty = true
		}
		res.Shipping = true
	case PurchaseSpareHardware:
		acc.add(appliance.SKU, qty, appliance.Price)
		res.Shipping = true
	case PurchaseWarrantyExtension:
		if appliance.Warranty == nil {
			return Result{}, fmt.Errorf("appliance %q: %w", appliance.ID, ErrNoWarranty)
		}
		acc.add(appliance.Warranty.SKU, qty, appliance.Warranty.Price)
		warranty = true
	case PurchaseRenewal:
		if err := subscription(); err != nil {
			return Result{}, err
		}
	}

	res.SKUs = acc.skus
	res.Price = acc.price()
	res.Summary = p.summarize(SummaryInput{
		PricingType:   PricingAppliance,
		PurchaseType:  purchaseType,
		Price:         res.Price,
		Years:         res.Duration.Years(),
		ApplianceName: appliance.Name,
		Quantity:      form.Quantity,
		Warranty:      warranty,
	})
	return res, nil
}
