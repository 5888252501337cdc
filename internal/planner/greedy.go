package planner

import (
	"math"
	"sort"

	"nutriplan/internal/catalog"
	"nutriplan/internal/nutrition"
)

// GreedyFallback builds a plan without a model: items are ranked by how
// close their calories come to a third of the daily target, then picked
// with quantities between 1 and 3 until the calorie budget runs out.
// maxItems caps the plan length.
func GreedyFallback(items []catalog.MenuItem, targets nutrition.Targets, maxItems int) []PlanEntry {
	remain := targets.Calories

	candidates := make([]catalog.MenuItem, 0, len(items))
	for _, item := range items {
		if item.HasNutrients() {
			candidates = append(candidates, item)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return mealDistance(candidates[i], remain) < mealDistance(candidates[j], remain)
	})

	var picked []PlanEntry
	for _, item := range candidates {
		if remain <= 0 || len(picked) >= maxItems {
			break
		}
		calories := item.Calories()
		if calories <= 0 {
			continue
		}

		qty := math.Round(float64(remain) / math.Max(1, calories))
		if qty < 1 {
			qty = 1
		}
		if qty > 3 {
			qty = 3
		}

		picked = append(picked, PlanEntry{
			ItemID:   item.ID,
			Title:    item.Title,
			Qty:      qty,
			TimeHint: "any",
		})
		remain -= int(calories * qty)
	}
	return picked
}

// mealDistance ranks an item by how far its calories sit from one third of
// the remaining daily budget.
func mealDistance(item catalog.MenuItem, remain int) float64 {
	if remain <= 0 {
		return 0
	}
	return math.Abs(item.Calories() - float64(remain)/3)
}
