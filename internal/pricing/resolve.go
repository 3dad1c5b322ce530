package pricing

import (
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-licence/internal/pricelist"
)

// ResolveUnitBand picks the band of candidates that prices units. Candidates
// must already be filtered to a single duration. A positive floorOverride lets
// counts below a band's unitsFrom qualify for it. When several bands qualify
// the one with the lowest unitsFrom wins.
func ResolveUnitBand(candidates []pricelist.Entry, units, floorOverride int) (pricelist.Entry, bool) {
	matches := selectBands(candidates, units, floorOverride)
	if len(matches) == 0 {
		return pricelist.Entry{}, false
	}
	return matches[0], true
}

// ResolveExtensions resolves one SKU per selected extension key for the given
// duration. Every requested key must resolve; otherwise an IntegrityError
// naming the missing keys is returned and no partial result.
func ResolveExtensions(keys []string, candidates []pricelist.Entry, years decimal.Decimal, units, floorOverride int) ([]pricelist.Entry, error) {
	wanted := lo.Uniq(lo.Filter(keys, func(k string, _ int) bool { return k != "" }))
	if len(wanted) == 0 {
		return nil, nil
	}
	selected := make(map[string]struct{}, len(wanted))
	for _, k := range wanted {
		selected[k] = struct{}{}
	}

	pool := make([]pricelist.Entry, 0, len(candidates))
	for _, e := range candidates {
		if _, ok := selected[e.Key]; !ok {
			continue
		}
		if !e.Years.Equal(years) {
			continue
		}
		pool = append(pool, e)
	}

	resolved := selectBands(pool, units, floorOverride)
	found := lo.SliceToMap(resolved, func(e pricelist.Entry) (string, struct{}) { return e.Key, struct{}{} })
	if len(found) != len(wanted) {
		missing := lo.Filter(wanted, func(k string, _ int) bool {
			_, ok := found[k]
			return !ok
		})
		sort.Strings(missing)
		return nil, &IntegrityError{Op: "resolve extensions", Years: years, Units: units, MissingKeys: missing}
	}
	return resolved, nil
}

// selectBands keeps the qualifying band with the lowest unitsFrom per key.
// Entries without a key share one group. Output follows first appearance.
func selectBands(candidates []pricelist.Entry, units, floorOverride int) []pricelist.Entry {
	best := make(map[string]int)
	out := make([]pricelist.Entry, 0)
	for _, e := range candidates {
		lower := e.UnitsFrom <= units || (floorOverride > 0 && floorOverride <= units)
		if !lower || !e.CoversUpTo(units) {
			continue
		}
		idx, ok := best[e.Key]
		if !ok {
			best[e.Key] = len(out)
			out = append(out, e)
			continue
		}
		if e.UnitsFrom < out[idx].UnitsFrom {
			out[idx] = e
		}
	}
	return out
}
