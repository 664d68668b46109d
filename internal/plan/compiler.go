package plan

import (
	"fmt"
	"sort"
	"strings"
)

// Compile rolls a curated draft up into per-day and weekly totals and
// an aggregated, unit-normalized grocery list. A day missing required
// meal slots is a recoverable failure: the QA loop re-curates.
func Compile(draft *DraftPlan, mealsPerDay int) (*CompiledPlan, error) {
	out := &CompiledPlan{ID: draft.ID}

	for _, d := range draft.Days {
		if len(d.Meals) < mealsPerDay {
			return nil, fmt.Errorf("compile: day %d has %d of %d required meal slots",
				d.Index, len(d.Meals), mealsPerDay)
		}
		cd := CompiledDay{Day: d, DayTotals: d.Totals()}
		out.Days = append(out.Days, cd)
		out.WeeklyTotals = out.WeeklyTotals.Add(cd.DayTotals)
	}

	out.Grocery = aggregateGrocery(draft)
	return out, nil
}

type groceryKey struct {
	name string
	unit string
}

func aggregateGrocery(draft *DraftPlan) []GroceryItem {
	sums := make(map[groceryKey]float64)
	for _, d := range draft.Days {
		for _, m := range d.Meals {
			for _, ing := range m.Ingredients {
				qty, unit := normalizeUnit(ing.Qty, ing.Unit)
				k := groceryKey{name: strings.ToLower(strings.TrimSpace(ing.Name)), unit: unit}
				sums[k] += qty
			}
		}
	}

	items := make([]GroceryItem, 0, len(sums))
	for k, qty := range sums {
		items = append(items, GroceryItem{Name: k.name, Qty: qty, Unit: k.unit})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}

// normalizeUnit folds equivalent units so quantities can be summed:
// mass to grams, volume to milliliters. Count-style units pass through.
func normalizeUnit(qty float64, unit string) (float64, string) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "g", "gram", "grams":
		return qty, "g"
	case "kg":
		return qty * 1000, "g"
	case "oz":
		return qty * 28.35, "g"
	case "lb", "lbs":
		return qty * 453.59, "g"
	case "ml":
		return qty, "ml"
	case "l", "liter", "liters":
		return qty * 1000, "ml"
	case "cup", "cups":
		return qty * 240, "ml"
	case "tbsp":
		return qty * 15, "ml"
	case "tsp":
		return qty * 5, "ml"
	case "":
		return qty, "pcs"
	default:
		return qty, strings.ToLower(strings.TrimSpace(unit))
	}
}
