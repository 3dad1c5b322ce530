// Package summary renders the display text of priced configurations.
package summary

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/noah-isme/backend-licence/internal/pricing"
)

var (
	errInvalidCurrency = errors.New("summary: invalid currency code")
	errInvalidLocale   = errors.New("summary: invalid locale")
)

// Config selects the currency, number locale and unit noun of summaries.
type Config struct {
	Currency string
	Locale   string
	UnitName string
}

// Generator implements pricing.Summarizer.
type Generator struct {
	unitName   string
	symbol     string
	decimalSep string
	printer    *message.Printer
}

var _ pricing.Summarizer = (*Generator)(nil)

// New validates cfg and builds a Generator.
func New(cfg Config) (*Generator, error) {
	code := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if code == "" {
		code = "GBP"
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, errors.Join(errInvalidCurrency, err)
	}
	locale := strings.ReplaceAll(strings.TrimSpace(cfg.Locale), "_", "-")
	if locale == "" {
		locale = "en-GB"
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, errors.Join(errInvalidLocale, err)
	}
	printer := message.NewPrinter(tag)
	unitName := strings.TrimSpace(cfg.UnitName)
	if unitName == "" {
		unitName = "user"
	}
	return &Generator{
		unitName:   unitName,
		symbol:     printer.Sprint(currency.Symbol(unit)),
		decimalSep: strings.Trim(printer.Sprint(number.Decimal(0.5, number.Scale(1))), "05"),
		printer:    printer,
	}, nil
}

// Summarize renders the product, extensions and price lines.
func (g *Generator) Summarize(in pricing.SummaryInput) pricing.Summary {
	var product string
	if in.PricingType == pricing.PricingAppliance {
		product = g.applianceLine(in)
	} else {
		product = g.unitLine(in)
	}
	return pricing.Summary{
		Product:    product,
		Extensions: extensionsLine(in.PurchaseType, in.ExtensionNames),
		Price:      g.Price(in.Price),
	}
}

// Price formats an amount with the locale's currency symbol and the tax
// suffix. Whole units and pence are printed separately so the amount never
// passes through a float.
func (g *Generator) Price(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	whole := rounded.Truncate(0)
	pence := rounded.Sub(whole).Shift(2).IntPart()
	grouped := g.printer.Sprint(number.Decimal(whole.IntPart()))
	return fmt.Sprintf("%s%s%s%s%02d + vat", sign, g.symbol, grouped, g.decimalSep, pence)
}

func (g *Generator) unitLine(in pricing.SummaryInput) string {
	d := durationPhrase(in.Years)
	var line string
	switch in.PurchaseType {
	case pricing.PurchaseNew:
		line = g.units(in.UnitsChange)
	case pricing.PurchaseAddUnits:
		total := in.ExistingUnits + in.UnitsChange
		line = fmt.Sprintf("Add %s to your existing %s (%s total)", g.units(in.UnitsChange), g.units(in.ExistingUnits), g.units(total))
	case pricing.PurchaseAddExtension:
		line = "Extensions for your existing " + g.units(in.ExistingUnits)
	default:
		line = "Renewal for " + g.units(in.ExistingUnits+in.UnitsChange)
	}
	if d != "" {
		line += " for " + d
	}
	return line
}

func (g *Generator) applianceLine(in pricing.SummaryInput) string {
	item := fmt.Sprintf("%d x %s", in.Quantity, in.ApplianceName)
	d := durationPhrase(in.Years)
	switch in.PurchaseType {
	case pricing.PurchaseNew:
		line := item
		if d != "" {
			line += " with a " + d + " subscription"
		}
		if in.Warranty {
			line += " and warranty extension"
		}
		return line
	case pricing.PurchaseSpareHardware:
		return fmt.Sprintf("%d x spare %s", in.Quantity, in.ApplianceName)
	case pricing.PurchaseWarrantyExtension:
		return "Warranty extension for " + item
	default:
		line := "Subscription renewal for " + item
		if d != "" {
			line += " for " + d
		}
		return line
	}
}

func (g *Generator) units(n int) string {
	return plural(n, g.unitName)
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// durationPhrase renders fractional years as whole years and months.
func durationPhrase(years decimal.Decimal) string {
	if !years.IsPositive() {
		return ""
	}
	whole := int(years.Floor().IntPart())
	months := int(years.Sub(years.Floor()).Mul(decimal.NewFromInt(12)).Round(0).IntPart())
	if months == 12 {
		whole++
		months = 0
	}
	parts := make([]string, 0, 2)
	if whole > 0 {
		parts = append(parts, plural(whole, "year"))
	}
	if months > 0 {
		parts = append(parts, plural(months, "month"))
	}
	return strings.Join(parts, " and ")
}

func extensionsLine(purchaseType pricing.PurchaseType, names []string) string {
	if len(names) == 0 {
		return ""
	}
	noun := "extension"
	if len(names) > 1 {
		noun = "extensions"
	}
	verb := "With"
	if purchaseType == pricing.PurchaseAddExtension {
		verb = "Add"
	}
	return fmt.Sprintf("%s the %s %s", verb, joinNames(names), noun)
}

func joinNames(names []string) string {
	if len(names) == 1 {
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}
