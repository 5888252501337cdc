package planner

import (
	"testing"

	"nutriplan/internal/catalog"

	"github.com/stretchr/testify/require"
)

func testItem(id, vendorID int64, price int, opts ...func(*catalog.MenuItem)) catalog.MenuItem {
	item := catalog.MenuItem{
		ID:          id,
		VendorID:    vendorID,
		Title:       "item",
		Price:       price,
		IsAvailable: true,
		Nutrients:   &catalog.Nutrients{Calories: 500, Protein: 30, Fat: 15, Carbs: 50},
	}
	for _, opt := range opts {
		opt(&item)
	}
	return item
}

func withAllergens(values ...string) func(*catalog.MenuItem) {
	return func(m *catalog.MenuItem) { m.Allergens = values }
}

func withExclusions(values ...string) func(*catalog.MenuItem) {
	return func(m *catalog.MenuItem) { m.Exclusions = values }
}

func unavailable() func(*catalog.MenuItem) {
	return func(m *catalog.MenuItem) { m.IsAvailable = false }
}

func itemIDs(items []catalog.MenuItem) []int64 {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

func TestFilterPipeline(t *testing.T) {
	cityVendors := map[string]map[int64]struct{}{
		"Москва": {1: {}},
	}
	lookup := func(city string) map[int64]struct{} { return cityVendors[city] }

	t.Run("DropsUnavailable", func(t *testing.T) {
		p := NewFilterPipeline(nil, 0)
		got := p.Filter([]catalog.MenuItem{
			testItem(1, 1, 100),
			testItem(2, 1, 100, unavailable()),
		}, Criteria{})
		require.Equal(t, []int64{1}, itemIDs(got))
	})

	t.Run("CityRestrictsToActiveVendors", func(t *testing.T) {
		p := NewFilterPipeline(lookup, 0)
		got := p.Filter([]catalog.MenuItem{
			testItem(1, 1, 100),
			testItem(2, 2, 100),
		}, Criteria{City: "Москва"})
		require.Equal(t, []int64{1}, itemIDs(got))
	})

	t.Run("UnknownCityPassesThrough", func(t *testing.T) {
		p := NewFilterPipeline(lookup, 0)
		got := p.Filter([]catalog.MenuItem{
			testItem(1, 1, 100),
			testItem(2, 2, 100),
		}, Criteria{City: "Владивосток"})
		require.Len(t, got, 2)
	})

	t.Run("AllergenOverlapExcluded", func(t *testing.T) {
		p := NewFilterPipeline(nil, 0)
		got := p.Filter([]catalog.MenuItem{
			testItem(1, 1, 100, withAllergens("milk", "nuts")),
			testItem(2, 1, 100, withAllergens("fish")),
			testItem(3, 1, 100),
		}, Criteria{Allergies: []string{"nuts"}})
		require.Equal(t, []int64{2, 3}, itemIDs(got))
	})

	t.Run("ExclusionOverlapExcluded", func(t *testing.T) {
		p := NewFilterPipeline(nil, 0)
		got := p.Filter([]catalog.MenuItem{
			testItem(1, 1, 100, withExclusions("vegan")),
			testItem(2, 1, 100),
		}, Criteria{Exclusions: []string{"vegan"}})
		require.Equal(t, []int64{2}, itemIDs(got))
	})

	t.Run("EmptyRestrictionValuesIgnored", func(t *testing.T) {
		p := NewFilterPipeline(nil, 0)
		got := p.Filter([]catalog.MenuItem{
			testItem(1, 1, 100, withAllergens("milk")),
		}, Criteria{Allergies: []string{""}})
		require.Len(t, got, 1)
	})

	t.Run("BudgetCapsPrice", func(t *testing.T) {
		p := NewFilterPipeline(nil, 0)
		items := []catalog.MenuItem{
			testItem(1, 1, 300),
			testItem(2, 1, 800),
		}
		got := p.Filter(items, Criteria{Budget: 500})
		require.Equal(t, []int64{1}, itemIDs(got))

		// Zero or negative budgets are a no-op.
		require.Len(t, p.Filter(items, Criteria{Budget: 0}), 2)
		require.Len(t, p.Filter(items, Criteria{Budget: -10}), 2)
	})

	t.Run("LimitTruncates", func(t *testing.T) {
		p := NewFilterPipeline(nil, 2)
		got := p.Filter([]catalog.MenuItem{
			testItem(1, 1, 100),
			testItem(2, 1, 100),
			testItem(3, 1, 100),
		}, Criteria{})
		require.Len(t, got, 2)
	})

	t.Run("Idempotent", func(t *testing.T) {
		p := NewFilterPipeline(lookup, 0)
		criteria := Criteria{
			City:      "Москва",
			Allergies: []string{"milk"},
			Budget:    600,
		}
		items := []catalog.MenuItem{
			testItem(1, 1, 300),
			testItem(2, 1, 700),
			testItem(3, 1, 200, withAllergens("milk")),
			testItem(4, 2, 100),
		}
		once := p.Filter(items, criteria)
		twice := p.Filter(once, criteria)
		require.Equal(t, once, twice)
	})
}
