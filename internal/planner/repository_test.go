package planner

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"nutriplan/internal/catalog"
	"nutriplan/internal/database"
	"nutriplan/internal/nutrition"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db.SQL
}

func seedProfile(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	res, err := db.Exec(
		`INSERT INTO profiles (telegram_id, city, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		time.Now().UnixNano(), "Москва", time.Now().UTC(), time.Now().UTC())
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func seedItem(t *testing.T, db *sql.DB, title string, available bool) int64 {
	t.Helper()
	repo := catalog.NewRepository(db)
	vendorID, err := repo.UpsertVendor(context.Background(), catalog.Vendor{
		Kind: catalog.VendorRestaurant, Name: "Test Kitchen", City: "Москва", IsActive: true,
	})
	require.NoError(t, err)

	itemID, err := repo.UpsertItem(context.Background(), catalog.MenuItem{
		VendorID:    vendorID,
		Title:       title,
		Price:       350,
		IsAvailable: available,
		Nutrients:   &catalog.Nutrients{Calories: 600, Protein: 35, Fat: 20, Carbs: 60},
	})
	require.NoError(t, err)
	return itemID
}

func TestPlanRepository(t *testing.T) {
	ctx := context.Background()
	targets := nutrition.Targets{Calories: 2200, ProteinG: 140, FatG: 60, CarbsG: 250}

	t.Run("CreateAndGet", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewRepository(db)
		profileID := seedProfile(t, db)
		itemID := seedItem(t, db, "Боул с лососем", true)

		plan, err := repo.CreatePlan(ctx, profileID, "2026-08-28", targets, "openai", []PlanEntry{
			{ItemID: itemID, Qty: 1.5, TimeHint: "lunch"},
		})
		require.NoError(t, err)
		require.Equal(t, StatusGenerated, plan.Status)
		require.Equal(t, targets, plan.Targets)
		require.Len(t, plan.Meals, 1)
		require.Equal(t, "Боул с лососем", plan.Meals[0].Title)
		require.Equal(t, 1.5, plan.Meals[0].Qty)

		got, err := repo.GetPlan(ctx, profileID, plan.ID)
		require.NoError(t, err)
		require.Equal(t, plan.ID, got.ID)
	})

	t.Run("SupersedesSameDatePlans", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewRepository(db)
		profileID := seedProfile(t, db)
		itemID := seedItem(t, db, "Паста", true)

		first, err := repo.CreatePlan(ctx, profileID, "2026-08-28", targets, "openai",
			[]PlanEntry{{ItemID: itemID, Qty: 1, TimeHint: "any"}})
		require.NoError(t, err)

		second, err := repo.CreatePlan(ctx, profileID, "2026-08-28", targets, "openai",
			[]PlanEntry{{ItemID: itemID, Qty: 2, TimeHint: "any"}})
		require.NoError(t, err)
		require.Equal(t, StatusGenerated, second.Status)

		superseded, err := repo.GetPlan(ctx, profileID, first.ID)
		require.NoError(t, err)
		require.Equal(t, StatusRecalculated, superseded.Status)

		// An accepted plan on another date is untouched.
		require.NoError(t, repo.UpdateStatus(ctx, profileID, second.ID, StatusAccepted))
		third, err := repo.CreatePlan(ctx, profileID, "2026-08-28", targets, "openai", nil)
		require.NoError(t, err)
		accepted, err := repo.GetPlan(ctx, profileID, second.ID)
		require.NoError(t, err)
		require.Equal(t, StatusAccepted, accepted.Status)
		require.NotEqual(t, third.ID, second.ID)
	})

	t.Run("SkipsBadEntries", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewRepository(db)
		profileID := seedProfile(t, db)
		okID := seedItem(t, db, "Суп", true)
		offMenuID := seedItem(t, db, "Салат", false)

		plan, err := repo.CreatePlan(ctx, profileID, "2026-08-28", targets, "openai", []PlanEntry{
			{ItemID: okID, Qty: 1, TimeHint: "lunch"},
			{ItemID: offMenuID, Qty: 1, TimeHint: "dinner"},
			{ItemID: 99999, Qty: 1, TimeHint: "dinner"},
			{ItemID: okID, Qty: 0, TimeHint: "snack"},
		})
		require.NoError(t, err)
		require.Len(t, plan.Meals, 1)
		require.Equal(t, okID, plan.Meals[0].ItemID)
	})

	t.Run("ListPlans", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewRepository(db)
		profileID := seedProfile(t, db)
		itemID := seedItem(t, db, "Гранола", true)

		for _, date := range []string{"2026-08-26", "2026-08-27", "2026-08-28"} {
			_, err := repo.CreatePlan(ctx, profileID, date, targets, "openai",
				[]PlanEntry{{ItemID: itemID, Qty: 1, TimeHint: "any"}})
			require.NoError(t, err)
		}

		all, err := repo.ListPlans(ctx, profileID, 0, "")
		require.NoError(t, err)
		require.Len(t, all, 3)
		require.Equal(t, "2026-08-28", all[0].PlanDate)
		require.Len(t, all[0].Meals, 1)

		limited, err := repo.ListPlans(ctx, profileID, 2, "")
		require.NoError(t, err)
		require.Len(t, limited, 2)

		oneDay, err := repo.ListPlans(ctx, profileID, 0, "2026-08-27")
		require.NoError(t, err)
		require.Len(t, oneDay, 1)

		none, err := repo.ListPlans(ctx, profileID+1, 0, "")
		require.NoError(t, err)
		require.Empty(t, none)
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewRepository(db)
		profileID := seedProfile(t, db)
		itemID := seedItem(t, db, "Ролл", true)

		plan, err := repo.CreatePlan(ctx, profileID, "2026-08-28", targets, "openai",
			[]PlanEntry{{ItemID: itemID, Qty: 1, TimeHint: "any"}})
		require.NoError(t, err)

		require.NoError(t, repo.UpdateStatus(ctx, profileID, plan.ID, StatusAccepted))
		require.ErrorIs(t, repo.UpdateStatus(ctx, profileID, plan.ID, "eaten"), ErrInvalidStatus)
		require.ErrorIs(t, repo.UpdateStatus(ctx, profileID+1, plan.ID, StatusRejected), ErrPlanNotFound)
	})

	t.Run("UpdateMeal", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewRepository(db)
		profileID := seedProfile(t, db)
		itemID := seedItem(t, db, "Каша", true)
		swapID := seedItem(t, db, "Омлет", true)
		offMenuID := seedItem(t, db, "Сырники", false)

		plan, err := repo.CreatePlan(ctx, profileID, "2026-08-28", targets, "openai",
			[]PlanEntry{{ItemID: itemID, Qty: 1, TimeHint: "breakfast"}})
		require.NoError(t, err)
		mealID := plan.Meals[0].ID

		qty := 2.0
		hint := "dinner"
		note := "без сахара"
		require.NoError(t, repo.UpdateMeal(ctx, profileID, plan.ID, mealID, MealPatch{
			Qty: &qty, TimeHint: &hint, UserNote: &note,
		}))

		got, err := repo.GetPlan(ctx, profileID, plan.ID)
		require.NoError(t, err)
		require.Equal(t, 2.0, got.Meals[0].Qty)
		require.Equal(t, "dinner", got.Meals[0].TimeHint)
		require.Equal(t, "без сахара", got.Meals[0].UserNote)

		require.NoError(t, repo.UpdateMeal(ctx, profileID, plan.ID, mealID, MealPatch{ItemID: &swapID}))
		got, err = repo.GetPlan(ctx, profileID, plan.ID)
		require.NoError(t, err)
		require.Equal(t, swapID, got.Meals[0].ItemID)
		require.Equal(t, "Омлет", got.Meals[0].Title)

		require.ErrorIs(t, repo.UpdateMeal(ctx, profileID, plan.ID, mealID, MealPatch{ItemID: &offMenuID}), ErrItemUnavailable)

		badQty := -1.0
		require.ErrorIs(t, repo.UpdateMeal(ctx, profileID, plan.ID, mealID, MealPatch{Qty: &badQty}), ErrInvalidQuantity)

		require.ErrorIs(t, repo.UpdateMeal(ctx, profileID, plan.ID, mealID+100, MealPatch{}), ErrMealNotFound)
		require.ErrorIs(t, repo.UpdateMeal(ctx, profileID+1, plan.ID, mealID, MealPatch{}), ErrPlanNotFound)
	})
}
