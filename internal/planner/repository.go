package planner

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"nutriplan/internal/nutrition"
)

const (
	defaultListLimit = 14
	maxListLimit     = 90
)

// Repository persists menu plans and their meals.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a plan repository on top of an open database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreatePlan stores a composed plan for one day. Any still-generated plan
// for the same profile and date is superseded to recalculated first.
// Entries with non-positive quantities or unknown/unavailable items are
// skipped, so a stale model answer can never poison a stored plan.
func (r *Repository) CreatePlan(ctx context.Context, profileID int64, planDate string, targets nutrition.Targets, provider string, entries []PlanEntry) (*MenuPlan, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin plan tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE menu_plans SET status = ? WHERE profile_id = ? AND plan_date = ? AND status = ?`,
		StatusRecalculated, profileID, planDate, StatusGenerated)
	if err != nil {
		return nil, fmt.Errorf("supersede plans: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO menu_plans (profile_id, plan_date, target_calories, target_protein,
			target_fat, target_carbs, provider, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		profileID, planDate, targets.Calories, targets.ProteinG, targets.FatG,
		targets.CarbsG, provider, StatusGenerated, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("insert plan: %w", err)
	}
	planID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.Qty <= 0 {
			continue
		}
		var available int
		err := tx.QueryRowContext(ctx,
			`SELECT is_available FROM menu_items WHERE id = ?`, entry.ItemID).Scan(&available)
		if err == sql.ErrNoRows || (err == nil && available == 0) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("check plan item: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO plan_meals (plan_id, item_id, qty, time_hint) VALUES (?, ?, ?, ?)`,
			planID, entry.ItemID, entry.Qty, entry.TimeHint)
		if err != nil {
			return nil, fmt.Errorf("insert plan meal: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit plan: %w", err)
	}
	return r.GetPlan(ctx, profileID, planID)
}

// GetPlan loads one plan with its meals, scoped to the owning profile.
func (r *Repository) GetPlan(ctx context.Context, profileID, planID int64) (*MenuPlan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, profile_id, plan_date, target_calories, target_protein, target_fat,
			target_carbs, provider, status, created_at
		FROM menu_plans WHERE id = ? AND profile_id = ?`, planID, profileID)

	plan, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("plan %d: %w", planID, ErrPlanNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}

	if plan.Meals, err = r.planMeals(ctx, planID); err != nil {
		return nil, err
	}
	return plan, nil
}

// ListPlans returns the profile's plans, newest date first. limit is
// clamped to [1, 90]; 0 selects the default of 14. A non-empty date
// restricts the result to that day.
func (r *Repository) ListPlans(ctx context.Context, profileID int64, limit int, date string) ([]MenuPlan, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := `SELECT id, profile_id, plan_date, target_calories, target_protein, target_fat,
			target_carbs, provider, status, created_at
		FROM menu_plans WHERE profile_id = ?`
	args := []any{profileID}
	if date != "" {
		query += ` AND plan_date = ?`
		args = append(args, date)
	}
	query += ` ORDER BY plan_date DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []MenuPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, *plan)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range plans {
		if plans[i].Meals, err = r.planMeals(ctx, plans[i].ID); err != nil {
			return nil, err
		}
	}
	return plans, nil
}

// UpdateStatus moves a plan to a new status.
func (r *Repository) UpdateStatus(ctx context.Context, profileID, planID int64, status string) error {
	if !ValidStatus(status) {
		return fmt.Errorf("status %q: %w", status, ErrInvalidStatus)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE menu_plans SET status = ? WHERE id = ? AND profile_id = ?`,
		status, planID, profileID)
	if err != nil {
		return fmt.Errorf("update plan status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("plan %d: %w", planID, ErrPlanNotFound)
	}
	return nil
}

// MealPatch describes a partial update to one plan meal. Nil fields stay
// untouched.
type MealPatch struct {
	ItemID   *int64
	Qty      *float64
	TimeHint *string
	UserNote *string
}

// UpdateMeal patches one meal of a plan. Swapping the item requires the
// replacement to exist and be available.
func (r *Repository) UpdateMeal(ctx context.Context, profileID, planID, mealID int64, patch MealPatch) error {
	var owner int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM menu_plans WHERE id = ? AND profile_id = ?`, planID, profileID).Scan(&owner)
	if err == sql.ErrNoRows {
		return fmt.Errorf("plan %d: %w", planID, ErrPlanNotFound)
	}
	if err != nil {
		return fmt.Errorf("check plan owner: %w", err)
	}

	var mealExists int64
	err = r.db.QueryRowContext(ctx,
		`SELECT id FROM plan_meals WHERE id = ? AND plan_id = ?`, mealID, planID).Scan(&mealExists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("meal %d: %w", mealID, ErrMealNotFound)
	}
	if err != nil {
		return fmt.Errorf("check meal: %w", err)
	}

	if patch.ItemID != nil {
		var available int
		err := r.db.QueryRowContext(ctx,
			`SELECT is_available FROM menu_items WHERE id = ?`, *patch.ItemID).Scan(&available)
		if err == sql.ErrNoRows || (err == nil && available == 0) {
			return fmt.Errorf("item %d: %w", *patch.ItemID, ErrItemUnavailable)
		}
		if err != nil {
			return fmt.Errorf("check replacement item: %w", err)
		}
		if _, err := r.db.ExecContext(ctx,
			`UPDATE plan_meals SET item_id = ? WHERE id = ?`, *patch.ItemID, mealID); err != nil {
			return fmt.Errorf("swap meal item: %w", err)
		}
	}
	if patch.Qty != nil {
		if *patch.Qty <= 0 {
			return ErrInvalidQuantity
		}
		if _, err := r.db.ExecContext(ctx,
			`UPDATE plan_meals SET qty = ? WHERE id = ?`, *patch.Qty, mealID); err != nil {
			return fmt.Errorf("update meal qty: %w", err)
		}
	}
	if patch.TimeHint != nil {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE plan_meals SET time_hint = ? WHERE id = ?`, *patch.TimeHint, mealID); err != nil {
			return fmt.Errorf("update meal time hint: %w", err)
		}
	}
	if patch.UserNote != nil {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE plan_meals SET user_note = ? WHERE id = ?`, *patch.UserNote, mealID); err != nil {
			return fmt.Errorf("update meal note: %w", err)
		}
	}
	return nil
}

func (r *Repository) planMeals(ctx context.Context, planID int64) ([]PlanMeal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT pm.id, pm.plan_id, pm.item_id, mi.title, mi.price, pm.qty, pm.time_hint, pm.user_note
		FROM plan_meals pm
		JOIN menu_items mi ON mi.id = pm.item_id
		WHERE pm.plan_id = ?
		ORDER BY pm.id`, planID)
	if err != nil {
		return nil, fmt.Errorf("list plan meals: %w", err)
	}
	defer rows.Close()

	var meals []PlanMeal
	for rows.Next() {
		var m PlanMeal
		if err := rows.Scan(&m.ID, &m.PlanID, &m.ItemID, &m.Title, &m.Price,
			&m.Qty, &m.TimeHint, &m.UserNote); err != nil {
			return nil, fmt.Errorf("scan plan meal: %w", err)
		}
		meals = append(meals, m)
	}
	return meals, rows.Err()
}

func scanPlan(row interface{ Scan(...any) error }) (*MenuPlan, error) {
	var p MenuPlan
	err := row.Scan(&p.ID, &p.ProfileID, &p.PlanDate, &p.Targets.Calories,
		&p.Targets.ProteinG, &p.Targets.FatG, &p.Targets.CarbsG,
		&p.Provider, &p.Status, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
