package planner

import (
	"nutriplan/internal/catalog"
)

// Criteria holds the constraints the filter pipeline applies to the
// catalogue before planning.
type Criteria struct {
	City       string
	Allergies  []string
	Exclusions []string
	Budget     int
}

// FilterStage narrows a candidate pool. Stages never fail: a stage that
// cannot apply its constraint returns the pool unchanged.
type FilterStage interface {
	Apply(items []catalog.MenuItem, c Criteria) []catalog.MenuItem
}

// availabilityStage keeps only items marked as available.
type availabilityStage struct{}

func (availabilityStage) Apply(items []catalog.MenuItem, _ Criteria) []catalog.MenuItem {
	kept := items[:0:0]
	for _, item := range items {
		if item.IsAvailable {
			kept = append(kept, item)
		}
	}
	return kept
}

// cityStage restricts items to vendors active in the requested city.
// When the city has no active vendors yet, the pool passes through
// unchanged so a new region never produces an empty menu.
type cityStage struct {
	lookup func(city string) map[int64]struct{}
}

func (s cityStage) Apply(items []catalog.MenuItem, c Criteria) []catalog.MenuItem {
	if c.City == "" || s.lookup == nil {
		return items
	}
	vendorIDs := s.lookup(c.City)
	if len(vendorIDs) == 0 {
		return items
	}
	kept := items[:0:0]
	for _, item := range items {
		if _, ok := vendorIDs[item.VendorID]; ok {
			kept = append(kept, item)
		}
	}
	return kept
}

// overlapStage drops items whose stored list shares any value with the
// banned list from the criteria.
type overlapStage struct {
	banned func(Criteria) []string
	stored func(catalog.MenuItem) []string
}

func (s overlapStage) Apply(items []catalog.MenuItem, c Criteria) []catalog.MenuItem {
	banned := map[string]struct{}{}
	for _, v := range s.banned(c) {
		if v != "" {
			banned[v] = struct{}{}
		}
	}
	if len(banned) == 0 {
		return items
	}

	kept := items[:0:0]
	for _, item := range items {
		if !overlaps(s.stored(item), banned) {
			kept = append(kept, item)
		}
	}
	return kept
}

func overlaps(stored []string, banned map[string]struct{}) bool {
	for _, v := range stored {
		if _, ok := banned[v]; ok {
			return true
		}
	}
	return false
}

// budgetStage applies an upper price limit when one is set.
type budgetStage struct{}

func (budgetStage) Apply(items []catalog.MenuItem, c Criteria) []catalog.MenuItem {
	if c.Budget <= 0 {
		return items
	}
	kept := items[:0:0]
	for _, item := range items {
		if item.Price <= c.Budget {
			kept = append(kept, item)
		}
	}
	return kept
}

const defaultFilterLimit = 300

// FilterPipeline applies a fixed sequence of stages and truncates the
// result. Every stage is idempotent, so re-filtering an already filtered
// pool is a no-op.
type FilterPipeline struct {
	stages []FilterStage
	limit  int
}

// NewFilterPipeline builds the default stage chain. cityLookup resolves a
// city to its set of active vendor ids and may be nil. limit caps the
// shortlist; values below 1 select the default of 300.
func NewFilterPipeline(cityLookup func(city string) map[int64]struct{}, limit int) *FilterPipeline {
	if limit < 1 {
		limit = defaultFilterLimit
	}
	return &FilterPipeline{
		stages: []FilterStage{
			availabilityStage{},
			cityStage{lookup: cityLookup},
			overlapStage{
				banned: func(c Criteria) []string { return c.Allergies },
				stored: func(m catalog.MenuItem) []string { return m.Allergens },
			},
			overlapStage{
				banned: func(c Criteria) []string { return c.Exclusions },
				stored: func(m catalog.MenuItem) []string { return m.Exclusions },
			},
			budgetStage{},
		},
		limit: limit,
	}
}

// Filter runs the stage chain over items and returns at most limit results.
func (p *FilterPipeline) Filter(items []catalog.MenuItem, c Criteria) []catalog.MenuItem {
	for _, stage := range p.stages {
		items = stage.Apply(items, c)
	}
	if len(items) > p.limit {
		items = items[:p.limit]
	}
	return items
}
