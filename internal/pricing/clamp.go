package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-licence/internal/pricelist"
)

var quartersPerYear = decimal.NewFromInt(4)

// Clamp moves unit-priced form state into the bounds of list and returns the
// adjusted copy. Unit changes are snapped to the list's unit step.
func Clamp(list pricelist.PriceList, form FormState) FormState {
	out := form
	out.ExtensionKeys = append([]string(nil), form.ExtensionKeys...)
	if out.PurchaseType == "" {
		out.PurchaseType = PurchaseRenewal
	}
	step := list.MinUnitsStep
	if step <= 0 {
		step = 1
	}
	if out.ExistingUnits < 0 {
		out.ExistingUnits = 0
	}

	switch out.PurchaseType {
	case PurchaseNew:
		out.ExistingUnits = 0
		change := clampInt(out.UnitsChange, list.MinUnits, list.MaxUnits)
		out.UnitsChange = list.MinUnits + (change-list.MinUnits)/step*step
	case PurchaseAddUnits:
		upper := list.MaxUnits - out.ExistingUnits
		if upper < step {
			out.UnitsChange = 0
			break
		}
		change := clampInt(out.UnitsChange, step, upper)
		out.UnitsChange = change / step * step
	case PurchaseAddExtension:
		// Extensions are priced for the existing licence, which must itself be in band.
		out.ExistingUnits = clampInt(out.ExistingUnits, list.MinUnits, list.MaxUnits)
		out.UnitsChange = 0
	case PurchaseRenewal:
		total := clampInt(out.ExistingUnits+out.UnitsChange, list.MinUnits, list.MaxUnits)
		change := (total - out.ExistingUnits) / step * step
		if out.ExistingUnits+change < list.MinUnits {
			change += step
		}
		if out.ExistingUnits+change > list.MaxUnits {
			change -= step
		}
		out.UnitsChange = change
	}

	switch out.PurchaseType {
	case PurchaseNew, PurchaseRenewal:
		years := out.Years.Ceil()
		if years.LessThan(list.MinYears) {
			years = list.MinYears
		}
		if years.GreaterThan(list.MaxYears) {
			years = list.MaxYears
		}
		out.Years = years
	case PurchaseAddUnits, PurchaseAddExtension:
		years := roundUpToQuarter(out.Years)
		if !years.IsPositive() {
			years = decimal.NewFromInt(1).Div(quartersPerYear)
		}
		if years.GreaterThan(list.MaxYears) {
			years = list.MaxYears
		}
		out.Years = years
	}
	return out
}

// ValidateRange rejects form state that Clamp would have to adjust.
func ValidateRange(list pricelist.PriceList, form FormState) error {
	if !list.Available() {
		return ErrProductUnavailable
	}
	switch form.PurchaseType {
	case PurchaseNew, PurchaseAddUnits, PurchaseAddExtension, PurchaseRenewal, "":
	default:
		return fmt.Errorf("%s for %s pricing: %w", form.PurchaseType, PricingUnit, ErrUnsupportedPurchaseType)
	}
	clamped := Clamp(list, form)
	switch {
	case clamped.ExistingUnits != form.ExistingUnits:
		return fmt.Errorf("existing units %d out of range: %w", form.ExistingUnits, ErrInvalidInput)
	case clamped.UnitsChange != form.UnitsChange:
		return fmt.Errorf("units change %d out of range (nearest %d): %w", form.UnitsChange, clamped.UnitsChange, ErrInvalidInput)
	case !clamped.Years.Equal(form.Years):
		return fmt.Errorf("years %s out of range (nearest %s): %w", form.Years.String(), clamped.Years.String(), ErrInvalidInput)
	}
	if form.PurchaseType == PurchaseAddExtension && form.ExistingUnits < 1 {
		return fmt.Errorf("add-extension without existing units: %w", ErrInvalidInput)
	}
	for _, key := range form.ExtensionKeys {
		if !hasExtension(list, key) {
			return fmt.Errorf("unknown extension %q: %w", key, ErrInvalidInput)
		}
	}
	return nil
}

// RemainingYears converts the months left before renewal into fractional
// years, rounded up to whole quarters.
func RemainingYears(months int) decimal.Decimal {
	if months <= 0 {
		return decimal.Zero
	}
	quarters := (months + 2) / 3
	return decimal.NewFromInt(int64(quarters)).Div(quartersPerYear)
}

func roundUpToQuarter(years decimal.Decimal) decimal.Decimal {
	return years.Mul(quartersPerYear).Ceil().Div(quartersPerYear)
}

func hasExtension(list pricelist.PriceList, key string) bool {
	for _, e := range list.AvailableExtensions {
		if e.Key == key {
			return true
		}
	}
	return false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
