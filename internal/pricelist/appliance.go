package pricelist

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ApplianceRecord is a raw hardware appliance row.
type ApplianceRecord struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	SKU           string   `json:"sku"`
	Price         float64  `json:"price"`
	SubFamily     string   `json:"sub_family"`
	WarrantySKU   *string  `json:"warranty_sku,omitempty"`
	WarrantyPrice *float64 `json:"warranty_price,omitempty"`
}

// Appliance is a purchasable hardware appliance.
type Appliance struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Price     decimal.Decimal `json:"price"`
	SubFamily string          `json:"subFamily"`
	Warranty  *Warranty       `json:"warranty,omitempty"`
}

// Warranty is the optional warranty extension SKU of an appliance.
type Warranty struct {
	SKU   string          `json:"sku"`
	Price decimal.Decimal `json:"price"`
}

// ApplianceList holds the hardware catalogue of an appliance-priced family
// together with the subscription SKUs keyed by sub-family and years.
type ApplianceList struct {
	Family        string      `json:"family"`
	Appliances    []Appliance `json:"appliances"`
	Subscriptions []Entry     `json:"subscriptions"`
}

// BuildAppliances normalises appliance and subscription records. Subscription
// records carry the appliance sub-family in family_option.
func BuildAppliances(subscriptions []Record, appliances []ApplianceRecord) ApplianceList {
	list := ApplianceList{
		Appliances:    make([]Appliance, 0, len(appliances)),
		Subscriptions: make([]Entry, 0, len(subscriptions)),
	}
	for _, r := range subscriptions {
		list.Subscriptions = append(list.Subscriptions, toEntry(r))
	}
	sort.SliceStable(list.Subscriptions, func(i, j int) bool {
		a, b := list.Subscriptions[i], list.Subscriptions[j]
		if a.FamilyOption != b.FamilyOption {
			return a.FamilyOption < b.FamilyOption
		}
		return a.Years.LessThan(b.Years)
	})
	if len(list.Subscriptions) > 0 {
		list.Family = list.Subscriptions[0].ProductFamily
	}

	for _, r := range appliances {
		a := Appliance{
			ID:        strings.TrimSpace(r.ID),
			Name:      strings.TrimSpace(r.Name),
			SKU:       strings.TrimSpace(r.SKU),
			Price:     NormalisePrice(r.Price),
			SubFamily: r.SubFamily,
		}
		if r.WarrantySKU != nil && strings.TrimSpace(*r.WarrantySKU) != "" {
			w := Warranty{SKU: strings.TrimSpace(*r.WarrantySKU), Price: decimal.Zero}
			if r.WarrantyPrice != nil {
				w.Price = NormalisePrice(*r.WarrantyPrice)
			}
			a.Warranty = &w
		}
		list.Appliances = append(list.Appliances, a)
	}
	sort.SliceStable(list.Appliances, func(i, j int) bool {
		return list.Appliances[i].Name < list.Appliances[j].Name
	})
	return list
}

// Appliance finds an appliance by identifier.
func (l ApplianceList) Appliance(id string) (Appliance, bool) {
	for _, a := range l.Appliances {
		if a.ID == id {
			return a, true
		}
	}
	return Appliance{}, false
}

// Subscription finds the subscription SKU for a sub-family and duration.
func (l ApplianceList) Subscription(subFamily string, years decimal.Decimal) (Entry, bool) {
	for _, e := range l.Subscriptions {
		if e.FamilyOption == subFamily && e.Years.Equal(years) {
			return e, true
		}
	}
	return Entry{}, false
}

// Lookup finds the unit price for any SKU of the list.
func (l ApplianceList) Lookup(sku string) (decimal.Decimal, bool) {
	for _, a := range l.Appliances {
		if a.SKU == sku {
			return a.Price, true
		}
		if a.Warranty != nil && a.Warranty.SKU == sku {
			return a.Warranty.Price, true
		}
	}
	for _, e := range l.Subscriptions {
		if e.SKU == sku {
			return e.Price, true
		}
	}
	return decimal.Zero, false
}
