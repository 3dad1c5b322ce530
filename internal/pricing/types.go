package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PurchaseType classifies what a configuration buys.
type PurchaseType string

const (
	PurchaseRenewal           PurchaseType = "renewal"
	PurchaseNew               PurchaseType = "new"
	PurchaseAddUnits          PurchaseType = "add-units"
	PurchaseAddExtension      PurchaseType = "add-extension"
	PurchaseSpareHardware     PurchaseType = "spare-hardware"
	PurchaseWarrantyExtension PurchaseType = "warranty-extension"
)

// ParsePurchaseType converts a wire value into a PurchaseType.
func ParsePurchaseType(value string) (PurchaseType, error) {
	pt := PurchaseType(strings.ToLower(strings.TrimSpace(value)))
	switch pt {
	case PurchaseRenewal, PurchaseNew, PurchaseAddUnits, PurchaseAddExtension, PurchaseSpareHardware, PurchaseWarrantyExtension:
		return pt, nil
	}
	return "", fmt.Errorf("unknown purchase type %q: %w", value, ErrInvalidInput)
}

// PricingType selects between per-unit and per-appliance pricing.
type PricingType string

const (
	PricingUnit      PricingType = "unit"
	PricingAppliance PricingType = "appliance"
)

// ParsePricingType converts a wire value into a PricingType.
func ParsePricingType(value string) (PricingType, error) {
	pt := PricingType(strings.ToLower(strings.TrimSpace(value)))
	switch pt {
	case PricingUnit, PricingAppliance:
		return pt, nil
	case "":
		return PricingUnit, nil
	}
	return "", fmt.Errorf("unknown pricing type %q: %w", value, ErrInvalidInput)
}

// FormState is the in-progress purchase intent. Unit fields apply to
// unit-priced products, appliance fields to appliance-priced products.
type FormState struct {
	PurchaseType      PurchaseType    `json:"purchaseType"`
	ExistingUnits     int             `json:"existingUnits"`
	UnitsChange       int             `json:"unitsChange"`
	Years             decimal.Decimal `json:"years"`
	ExtensionKeys     []string        `json:"extensionKeys,omitempty"`
	ApplianceID       string          `json:"applianceId,omitempty"`
	Quantity          int             `json:"quantity,omitempty"`
	WarrantyExtension bool            `json:"warrantyExtension,omitempty"`
	Licence           string          `json:"licence,omitempty"`
}

// Duration splits a purchase into whole years and a pro-rata remainder.
type Duration struct {
	WholeYears int             `json:"wholeYears"`
	PartYears  decimal.Decimal `json:"partYears"`
}

// Summary is the display text of a configuration.
type Summary struct {
	Product    string `json:"product"`
	Extensions string `json:"extensions"`
	Price      string `json:"price"`
}

// Description joins the summary lines into a single payment line description.
func (s Summary) Description() string {
	parts := make([]string, 0, 2)
	if p := strings.TrimSpace(s.Product); p != "" {
		parts = append(parts, p)
	}
	if e := strings.TrimSpace(s.Extensions); e != "" {
		parts = append(parts, e)
	}
	return strings.Join(parts, ". ")
}

// Inputs records what a configuration was computed from so it can be
// re-derived from the authoritative price list.
type Inputs struct {
	Family string    `json:"family"`
	Option string    `json:"option,omitempty"`
	Form   FormState `json:"form"`
}

// Result is the computed outcome of processing a FormState.
type Result struct {
	PricingType  PricingType                `json:"pricingType"`
	PurchaseType PurchaseType               `json:"purchaseType"`
	Price        decimal.Decimal            `json:"price"`
	SKUs         map[string]decimal.Decimal `json:"skus"`
	Duration     Duration                   `json:"duration"`
	Summary      Summary                    `json:"summary"`
	Licence      string                     `json:"licence,omitempty"`
	Shipping     bool                       `json:"shipping,omitempty"`
	Inputs       Inputs                     `json:"inputs"`
}

// Empty reports whether nothing has been configured yet.
func (r Result) Empty() bool {
	return len(r.SKUs) == 0
}

// SummaryInput is everything needed to describe a configuration.
type SummaryInput struct {
	PricingType    PricingType
	PurchaseType   PurchaseType
	Price          decimal.Decimal
	ExistingUnits  int
	UnitsChange    int
	Years          decimal.Decimal
	ExtensionNames []string
	ApplianceName  string
	Quantity       int
	Warranty       bool
}

// Summarizer renders display text for a configuration.
type Summarizer interface {
	Summarize(in SummaryInput) Summary
}

// Config holds the processor's behavioural switches.
type Config struct {
	// AddUnitsIncludeExisting makes add-units purchases pick their price band
	// from existing plus added units rather than added units alone.
	AddUnitsIncludeExisting bool
}
