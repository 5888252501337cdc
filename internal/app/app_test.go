package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"nutriplan/internal/catalog"
	"nutriplan/internal/config"
	"nutriplan/internal/database"
	"nutriplan/internal/llm"
	"nutriplan/internal/planner"
	"nutriplan/internal/profile"
	"nutriplan/pkg/logger"

	"github.com/stretchr/testify/require"
)

type fakeTextGen struct {
	response string
	err      error
	calls    int
}

func (f *fakeTextGen) GenerateContent(ctx context.Context, prompt string) (llm.ContentResponse, error) {
	f.calls++
	if f.err != nil {
		return llm.ContentResponse{Model: "fake", Attempts: 1}, f.err
	}
	return llm.ContentResponse{Content: f.response, Model: "fake", Attempts: 1}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		HTTPPort:         "8080",
		JWTSecret:        "test-secret",
		LLMProvider:      "openai",
		MaxPlanItems:     6,
		PromptItemsLimit: 40,
		MenuFilterLimit:  300,
		TelegramBotToken: "12345:test-token",
	}
}

func newTestApp(t *testing.T, textGen llm.TextGenerator) *App {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDeps(testConfig(), logger.NewNop(), db, textGen)
}

func seedCatalogue(t *testing.T, a *App, city string, count int) []int64 {
	t.Helper()
	ctx := context.Background()
	vendorID, err := a.Catalog.UpsertVendor(ctx, catalog.Vendor{
		Kind: catalog.VendorRestaurant, Name: "Кухня " + city, City: city, IsActive: true,
	})
	require.NoError(t, err)

	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		id, err := a.Catalog.UpsertItem(ctx, catalog.MenuItem{
			VendorID:    vendorID,
			Title:       fmt.Sprintf("Блюдо %d", i+1),
			Price:       300 + i*50,
			IsAvailable: true,
			Nutrients:   &catalog.Nutrients{Calories: 550 + float64(i)*40, Protein: 30, Fat: 18, Carbs: 55},
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func profileUpdate(allergies ...string) profile.Update {
	city := "Москва"
	weight := 70.0
	height := 172
	return profile.Update{City: &city, WeightKg: &weight, HeightCm: &height, Allergies: allergies}
}

func profileWeightHeight(weight float64, height int) profile.Update {
	return profile.Update{WeightKg: &weight, HeightCm: &height}
}

func TestGeneratePlan(t *testing.T) {
	ctx := context.Background()

	t.Run("ProviderPlanStored", func(t *testing.T) {
		gen := &fakeTextGen{}
		a := newTestApp(t, gen)
		ids := seedCatalogue(t, a, "Москва", 4)
		gen.response = fmt.Sprintf(`{"plan":[
			{"item_id": %d, "qty": 1, "time_hint": "breakfast"},
			{"item_id": %d, "qty": 1.5, "time_hint": "lunch"}
		]}`, ids[0], ids[1])

		plan, err := a.GeneratePlan(ctx, 500, "2026-08-28")
		require.NoError(t, err)
		require.Equal(t, planner.StatusGenerated, plan.Status)
		require.Len(t, plan.Meals, 2)
		require.Equal(t, "breakfast", plan.Meals[0].TimeHint)
		require.Positive(t, plan.Targets.Calories)
	})

	t.Run("ProviderFailureFallsBackToGreedy", func(t *testing.T) {
		gen := &fakeTextGen{err: errors.New("model down")}
		a := newTestApp(t, gen)
		seedCatalogue(t, a, "Москва", 4)

		plan, err := a.GeneratePlan(ctx, 501, "2026-08-28")
		require.NoError(t, err)
		require.NotEmpty(t, plan.Meals)
		for _, meal := range plan.Meals {
			require.Equal(t, "any", meal.TimeHint)
		}
	})

	t.Run("NoProviderUsesGreedy", func(t *testing.T) {
		a := newTestApp(t, nil)
		seedCatalogue(t, a, "Москва", 4)

		plan, err := a.GeneratePlan(ctx, 502, "2026-08-28")
		require.NoError(t, err)
		require.NotEmpty(t, plan.Meals)
	})

	t.Run("EmptyCatalogueEmptyPlan", func(t *testing.T) {
		a := newTestApp(t, nil)

		plan, err := a.GeneratePlan(ctx, 503, "2026-08-28")
		require.NoError(t, err)
		require.Empty(t, plan.Meals)
	})

	t.Run("RegenerationSupersedes", func(t *testing.T) {
		a := newTestApp(t, nil)
		seedCatalogue(t, a, "Москва", 4)

		first, err := a.GeneratePlan(ctx, 504, "2026-08-28")
		require.NoError(t, err)
		second, err := a.GeneratePlan(ctx, 504, "2026-08-28")
		require.NoError(t, err)
		require.NotEqual(t, first.ID, second.ID)

		old, err := a.GetPlan(ctx, 504, first.ID)
		require.NoError(t, err)
		require.Equal(t, planner.StatusRecalculated, old.Status)
	})

	t.Run("RestrictionsNarrowCatalogue", func(t *testing.T) {
		a := newTestApp(t, nil)
		vendorID, err := a.Catalog.UpsertVendor(ctx, catalog.Vendor{
			Kind: catalog.VendorStore, Name: "Лавка", City: "Москва", IsActive: true,
		})
		require.NoError(t, err)
		_, err = a.Catalog.UpsertItem(ctx, catalog.MenuItem{
			VendorID: vendorID, Title: "Ореховый батончик", Price: 200, IsAvailable: true,
			Allergens: []string{"nuts"},
			Nutrients: &catalog.Nutrients{Calories: 500, Protein: 15, Fat: 25, Carbs: 50},
		})
		require.NoError(t, err)
		safeID, err := a.Catalog.UpsertItem(ctx, catalog.MenuItem{
			VendorID: vendorID, Title: "Овсяная каша", Price: 200, IsAvailable: true,
			Nutrients: &catalog.Nutrients{Calories: 450, Protein: 12, Fat: 9, Carbs: 70},
		})
		require.NoError(t, err)

		_, err = a.Profiles.Apply(ctx, 505, profileUpdate("nuts"))
		require.NoError(t, err)

		plan, err := a.GeneratePlan(ctx, 505, "2026-08-28")
		require.NoError(t, err)
		require.NotEmpty(t, plan.Meals)
		for _, meal := range plan.Meals {
			require.Equal(t, safeID, meal.ItemID)
		}
	})
}

func TestPlanLifecycle(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, nil)
	seedCatalogue(t, a, "Москва", 3)

	plan, err := a.GeneratePlan(ctx, 600, "2026-08-28")
	require.NoError(t, err)

	accepted, err := a.UpdatePlanStatus(ctx, 600, plan.ID, planner.StatusAccepted)
	require.NoError(t, err)
	require.Equal(t, planner.StatusAccepted, accepted.Status)

	plans, err := a.ListPlans(ctx, 600, 0, "")
	require.NoError(t, err)
	require.Len(t, plans, 1)

	qty := 2.0
	updated, err := a.UpdatePlanMeal(ctx, 600, plan.ID, plan.Meals[0].ID, planner.MealPatch{Qty: &qty})
	require.NoError(t, err)
	require.Equal(t, 2.0, updated.Meals[0].Qty)
}

func TestProfileMetrics(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, nil)

	weight := 80.0
	height := 180
	_, err := a.Profiles.Apply(ctx, 700, profileWeightHeight(weight, height))
	require.NoError(t, err)

	m, err := a.ProfileMetrics(ctx, 700)
	require.NoError(t, err)
	require.Positive(t, m.TDEE)
	require.GreaterOrEqual(t, m.RecommendedCalories, 1200)
}
