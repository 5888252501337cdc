package planner

import (
	"context"

	"nutriplan/internal/catalog"
	"nutriplan/internal/nutrition"
	"nutriplan/pkg/logger"
)

// MenuProvider composes a plan from candidates. Implementations may return
// an empty plan to signal "no answer" without an error.
type MenuProvider interface {
	ComposeMenu(ctx context.Context, items []catalog.MenuItem, targets nutrition.Targets, restrictions Restrictions) ([]PlanEntry, error)
}

// FallbackStrategy builds a plan deterministically when the provider has
// nothing to offer.
type FallbackStrategy func(items []catalog.MenuItem, targets nutrition.Targets, maxItems int) []PlanEntry

// MenuComposer produces a day plan: the provider gets the first shot, any
// failure or empty answer degrades to the fallback. Composition itself
// never fails; the worst case is an empty plan from an empty catalogue.
type MenuComposer struct {
	provider MenuProvider
	fallback FallbackStrategy
	log      *logger.Logger
	maxItems int
}

// NewMenuComposer wires a composer with the greedy fallback. provider may
// be nil when no model is configured.
func NewMenuComposer(provider MenuProvider, log *logger.Logger, maxItems int) *MenuComposer {
	if maxItems < 1 {
		maxItems = 6
	}
	return &MenuComposer{
		provider: provider,
		fallback: GreedyFallback,
		log:      log,
		maxItems: maxItems,
	}
}

// SelectPlan composes a plan from the filtered candidate pool. Only items
// with nutrient data take part.
func (c *MenuComposer) SelectPlan(ctx context.Context, items []catalog.MenuItem, targets nutrition.Targets, restrictions Restrictions) []PlanEntry {
	candidates := make([]catalog.MenuItem, 0, len(items))
	for _, item := range items {
		if item.HasNutrients() {
			candidates = append(candidates, item)
		}
	}

	var plan []PlanEntry
	if c.provider != nil {
		composed, err := c.provider.ComposeMenu(ctx, candidates, targets, restrictions)
		if err != nil {
			c.log.Warnw("provider failed to compose menu, falling back", "error", err)
		} else {
			plan = composed
		}
	}

	if len(plan) == 0 {
		plan = c.fallback(candidates, targets, c.maxItems)
	}
	return plan
}
