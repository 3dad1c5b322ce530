package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-licence/internal/pricelist"
)

var one = decimal.NewFromInt(1)

// Processor turns form state into priced configurations. It holds no mutable
// state and is safe for concurrent use.
type Processor struct {
	cfg        Config
	summarizer Summarizer
}

// NewProcessor constructs a Processor. A nil summarizer leaves summaries blank.
func NewProcessor(cfg Config, summarizer Summarizer) *Processor {
	return &Processor{cfg: cfg, summarizer: summarizer}
}

// unitPlan is the per-purchase-type derivation of unit counts and duration.
type unitPlan struct {
	bandUnits     int
	purchaseUnits int
	duration      Duration
}

func (p *Processor) planUnits(form FormState) (unitPlan, error) {
	years := form.Years
	whole := int(years.Floor().IntPart())
	part := years.Sub(years.Floor())
	ceil := int(years.Ceil().IntPart())

	switch form.PurchaseType {
	case PurchaseNew:
		return unitPlan{
			bandUnits:     form.UnitsChange,
			purchaseUnits: form.UnitsChange,
			duration:      Duration{WholeYears: ceil, PartYears: decimal.Zero},
		}, nil
	case PurchaseAddUnits:
		band := form.UnitsChange
		if p.cfg.AddUnitsIncludeExisting {
			band += form.ExistingUnits
		}
		return unitPlan{
			bandUnits:     band,
			purchaseUnits: form.UnitsChange,
			duration:      Duration{WholeYears: whole, PartYears: part},
		}, nil
	case PurchaseAddExtension:
		return unitPlan{
			bandUnits:     form.ExistingUnits,
			purchaseUnits: form.ExistingUnits,
			duration:      Duration{WholeYears: whole, PartYears: part},
		}, nil
	case PurchaseRenewal, "":
		total := form.ExistingUnits + form.UnitsChange
		return unitPlan{
			bandUnits:     total,
			purchaseUnits: total,
			duration:      Duration{WholeYears: ceil, PartYears: decimal.Zero},
		}, nil
	}
	return unitPlan{}, fmt.Errorf("%s for %s pricing: %w", form.PurchaseType, PricingUnit, ErrUnsupportedPurchaseType)
}

// Process prices a unit-priced configuration against list. The form state is
// expected to be within the list bounds already; it is not modified.
func (p *Processor) Process(list pricelist.PriceList, form FormState) (Result, error) {
	if !list.Available() {
		return Result{}, ErrProductUnavailable
	}
	plan, err := p.planUnits(form)
	if err != nil {
		return Result{}, err
	}
	purchaseType := form.PurchaseType
	if purchaseType == "" {
		purchaseType = PurchaseRenewal
	}
	res := emptyResult(PricingUnit, purchaseType, form, list.Family, list.Option)
	res.Duration = plan.duration
	if plan.purchaseUnits < 1 {
		return res, nil
	}

	floor := 0
	if purchaseType == PurchaseAddUnits && list.MinUnitsStep < list.MinUnits {
		floor = list.MinUnitsStep
	}
	includeProduct := purchaseType != PurchaseAddExtension
	units := decimal.NewFromInt(int64(plan.purchaseUnits))

	acc := newAccumulator()
	var names []string

	if plan.duration.WholeYears > 0 {
		years := decimal.NewFromInt(int64(plan.duration.WholeYears))
		if includeProduct {
			entry, ok := ResolveUnitBand(list.ProductsForYears(years), plan.bandUnits, floor)
			if !ok {
				return Result{}, &IntegrityError{Op: "resolve product", Years: years, Units: plan.bandUnits}
			}
			acc.add(entry.SKU, units, entry.Price)
		}
		exts, err := ResolveExtensions(form.ExtensionKeys, list.Extensions, years, plan.bandUnits, floor)
		if err != nil {
			return Result{}, err
		}
		for _, e := range exts {
			acc.add(e.SKU, units, e.Price)
		}
		names = extensionNames(exts)
	}

	if plan.duration.PartYears.IsPositive() {
		qty := units.Mul(plan.duration.PartYears)
		if includeProduct {
			entry, ok := ResolveUnitBand(list.ProductsForYears(one), plan.bandUnits, floor)
			if !ok {
				return Result{}, &IntegrityError{Op: "resolve pro-rata product", Years: one, Units: plan.bandUnits}
			}
			acc.add(entry.SKU, qty, entry.Price)
		}
		exts, err := ResolveExtensions(form.ExtensionKeys, list.Extensions, one, plan.bandUnits, floor)
		if err != nil {
			return Result{}, err
		}
		for _, e := range exts {
			acc.add(e.SKU, qty, e.Price)
		}
		if len(names) == 0 {
			names = extensionNames(exts)
		}
	}

	if acc.empty() {
		return res, nil
	}
	res.SKUs = acc.skus
	res.Price = acc.price()
	res.Summary = p.summarize(SummaryInput{
		PricingType:    PricingUnit,
		PurchaseType:   purchaseType,
		Price:          res.Price,
		ExistingUnits:  form.ExistingUnits,
		UnitsChange:    form.UnitsChange,
		Years:          plan.duration.Years(),
		ExtensionNames: names,
	})
	return res, nil
}

func (p *Processor) summarize(in SummaryInput) Summary {
	if p.summarizer == nil {
		return Summary{}
	}
	return p.summarizer.Summarize(in)
}

// Years returns the total duration as fractional years.
func (d Duration) Years() decimal.Decimal {
	return decimal.NewFromInt(int64(d.WholeYears)).Add(d.PartYears)
}

func emptyResult(pricingType PricingType, purchaseType PurchaseType, form FormState, family, option string) Result {
	return Result{
		PricingType:  pricingType,
		PurchaseType: purchaseType,
		Price:        decimal.Zero,
		SKUs:         map[string]decimal.Decimal{},
		Duration:     Duration{PartYears: decimal.Zero},
		Licence:      form.Licence,
		Inputs:       Inputs{Family: family, Option: option, Form: form},
	}
}

func extensionNames(entries []pricelist.Entry) []string {
	if len(entries) == 0 {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}

type accumulator struct {
	skus  map[string]decimal.Decimal
	total decimal.Decimal
}

func newAccumulator() *accumulator {
	return &accumulator{skus: map[string]decimal.Decimal{}, total: decimal.Zero}
}

// add is additive per SKU so a SKU reached twice is counted once with the summed quantity.
func (a *accumulator) add(sku string, qty, unitPrice decimal.Decimal) {
	if !qty.IsPositive() {
		return
	}
	a.skus[sku] = a.skus[sku].Add(qty)
	a.total = a.total.Add(qty.Mul(unitPrice))
}

func (a *accumulator) empty() bool {
	return len(a.skus) == 0
}

func (a *accumulator) price() decimal.Decimal {
	return a.total.Round(2)
}
