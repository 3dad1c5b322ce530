package pricelist

import (
	"sort"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Record is a raw price-list row as supplied by the price-list storage.
type Record struct {
	ProductFamily string  `json:"product_family"`
	FamilyOption  *string `json:"family_option,omitempty"`
	Years         float64 `json:"years"`
	UnitsFrom     int     `json:"units_from"`
	UnitsTo       *int    `json:"units_to,omitempty"`
	Price         float64 `json:"price"`
	SKU           string  `json:"sku"`
	Name          *string `json:"name,omitempty"`
}

// Entry is one purchasable SKU inside a unit band and duration.
type Entry struct {
	SKU           string          `json:"sku"`
	ProductFamily string          `json:"productFamily"`
	FamilyOption  string          `json:"familyOption,omitempty"`
	Name          string          `json:"name,omitempty"`
	Key           string          `json:"key,omitempty"`
	Years         decimal.Decimal `json:"years"`
	UnitsFrom     int             `json:"unitsFrom"`
	UnitsTo       *int            `json:"unitsTo,omitempty"`
	Price         decimal.Decimal `json:"price"`
}

// Unbounded reports whether the band has no upper unit limit.
func (e Entry) Unbounded() bool {
	return e.UnitsTo == nil
}

// CoversUpTo reports whether units does not exceed the band ceiling.
func (e Entry) CoversUpTo(units int) bool {
	return e.UnitsTo == nil || *e.UnitsTo >= units
}

// Extension is a selectable extension, one per key.
type Extension struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Options carries the configured fallbacks used when deriving bounds.
type Options struct {
	// DefaultMinUnits replaces a zero or missing minimum unit count.
	DefaultMinUnits int
	// DefaultMaxUnits is used when any product band is unbounded.
	DefaultMaxUnits int
	// MinUnitsStep overrides the unit step; zero means the step equals MinUnits.
	MinUnitsStep int
}

// PriceList is the normalised price list for one product family and option.
type PriceList struct {
	Family              string          `json:"family"`
	Option              string          `json:"option,omitempty"`
	Products            []Entry         `json:"products"`
	Extensions          []Entry         `json:"extensions"`
	AvailableExtensions []Extension     `json:"availableExtensions"`
	MinUnits            int             `json:"minUnits"`
	MaxUnits            int             `json:"maxUnits"`
	MinUnitsStep        int             `json:"minUnitsStep"`
	MinYears            decimal.Decimal `json:"minYears"`
	MaxYears            decimal.Decimal `json:"maxYears"`
}

// Available reports whether the list carries any purchasable product.
// A list without products has zero bounds and must not be priced.
func (p PriceList) Available() bool {
	return len(p.Products) > 0
}

// ProductsForYears returns the product entries priced for exactly years.
func (p PriceList) ProductsForYears(years decimal.Decimal) []Entry {
	return filterYears(p.Products, years)
}

// ExtensionsForYears returns the extension entries priced for exactly years.
func (p PriceList) ExtensionsForYears(years decimal.Decimal) []Entry {
	return filterYears(p.Extensions, years)
}

// Lookup finds a product or extension entry by SKU.
func (p PriceList) Lookup(sku string) (Entry, bool) {
	for _, e := range p.Products {
		if e.SKU == sku {
			return e, true
		}
	}
	for _, e := range p.Extensions {
		if e.SKU == sku {
			return e, true
		}
	}
	return Entry{}, false
}

// Build normalises raw product and extension records into a PriceList.
// Band contiguity is assumed and not validated here; gaps surface later as
// resolution failures.
func Build(products, extensions []Record, opts Options) PriceList {
	list := PriceList{
		Products:   make([]Entry, 0, len(products)),
		Extensions: make([]Entry, 0, len(extensions)),
	}
	for _, r := range products {
		list.Products = append(list.Products, toEntry(r))
	}
	for _, r := range extensions {
		e := toEntry(r)
		e.Key = ExtensionKey(e.Name)
		list.Extensions = append(list.Extensions, e)
	}

	sort.SliceStable(list.Products, func(i, j int) bool {
		a, b := list.Products[i], list.Products[j]
		if a.ProductFamily != b.ProductFamily {
			return a.ProductFamily < b.ProductFamily
		}
		if c := a.Years.Cmp(b.Years); c != 0 {
			return c < 0
		}
		return a.UnitsFrom < b.UnitsFrom
	})
	sort.SliceStable(list.Extensions, func(i, j int) bool {
		a, b := list.Extensions[i], list.Extensions[j]
		if a.ProductFamily != b.ProductFamily {
			return a.ProductFamily < b.ProductFamily
		}
		if c := a.Years.Cmp(b.Years); c != 0 {
			return c < 0
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.UnitsFrom < b.UnitsFrom
	})

	seen := make(map[string]struct{}, len(list.Extensions))
	list.AvailableExtensions = make([]Extension, 0)
	for _, e := range list.Extensions {
		if _, ok := seen[e.Key]; ok {
			continue
		}
		seen[e.Key] = struct{}{}
		list.AvailableExtensions = append(list.AvailableExtensions, Extension{Key: e.Key, Name: e.Name})
	}

	if len(list.Products) > 0 {
		list.Family = list.Products[0].ProductFamily
		list.Option = list.Products[0].FamilyOption
	}
	applyBounds(&list, opts)
	return list
}

// ExtensionKey derives the grouping key of an extension from its display name.
func ExtensionKey(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name)
}

// NormalisePrice rounds a raw price to two decimal places, correcting
// floating point drift in stored data.
func NormalisePrice(price float64) decimal.Decimal {
	return decimal.NewFromFloat(price).Round(2)
}

func toEntry(r Record) Entry {
	e := Entry{
		SKU:           strings.TrimSpace(r.SKU),
		ProductFamily: r.ProductFamily,
		Years:         decimal.NewFromFloat(r.Years),
		UnitsFrom:     r.UnitsFrom,
		Price:         NormalisePrice(r.Price),
	}
	if r.FamilyOption != nil {
		e.FamilyOption = *r.FamilyOption
	}
	if r.Name != nil {
		e.Name = strings.TrimSpace(*r.Name)
	}
	if r.UnitsTo != nil {
		to := *r.UnitsTo
		e.UnitsTo = &to
	}
	return e
}

func applyBounds(list *PriceList, opts Options) {
	if len(list.Products) == 0 {
		list.MinYears = decimal.Zero
		list.MaxYears = decimal.Zero
		return
	}
	minUnits := list.Products[0].UnitsFrom
	maxUnits := 0
	unbounded := false
	minYears := list.Products[0].Years
	maxYears := list.Products[0].Years
	for _, e := range list.Products {
		if e.UnitsFrom < minUnits {
			minUnits = e.UnitsFrom
		}
		if e.UnitsTo == nil {
			unbounded = true
		} else if *e.UnitsTo > maxUnits {
			maxUnits = *e.UnitsTo
		}
		if e.Years.LessThan(minYears) {
			minYears = e.Years
		}
		if e.Years.GreaterThan(maxYears) {
			maxYears = e.Years
		}
	}
	if minUnits <= 0 {
		minUnits = opts.DefaultMinUnits
	}
	if unbounded {
		maxUnits = opts.DefaultMaxUnits
	}
	step := opts.MinUnitsStep
	if step <= 0 {
		step = minUnits
	}
	list.MinUnits = minUnits
	list.MaxUnits = maxUnits
	list.MinUnitsStep = step
	list.MinYears = minYears
	list.MaxYears = maxYears
}

func filterYears(entries []Entry, years decimal.Decimal) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Years.Equal(years) {
			out = append(out, e)
		}
	}
	return out
}
