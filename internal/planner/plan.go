package planner

import (
	"time"

	"nutriplan/internal/nutrition"
)

// Plan statuses. A new plan starts as generated; re-planning the same day
// moves the older plan to recalculated.
const (
	StatusGenerated    = "generated"
	StatusAccepted     = "accepted"
	StatusRejected     = "rejected"
	StatusRecalculated = "recalculated"
	StatusProcessing   = "processing"
)

// ValidStatus reports whether s is a known plan status.
func ValidStatus(s string) bool {
	switch s {
	case StatusGenerated, StatusAccepted, StatusRejected, StatusRecalculated, StatusProcessing:
		return true
	}
	return false
}

// PlanEntry is one selected dish in a composed day plan, before persistence.
type PlanEntry struct {
	ItemID   int64   `json:"item_id"`
	Title    string  `json:"title"`
	Qty      float64 `json:"qty"`
	TimeHint string  `json:"time_hint"`
}

// MenuPlan is a stored day plan with its meals.
type MenuPlan struct {
	ID        int64             `json:"id"`
	ProfileID int64             `json:"-"`
	PlanDate  string            `json:"plan_date"`
	Targets   nutrition.Targets `json:"targets"`
	Provider  string            `json:"provider"`
	Status    string            `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	Meals     []PlanMeal        `json:"meals"`
}

// PlanMeal is one persisted meal row. Title and Price are joined from the
// catalogue for display.
type PlanMeal struct {
	ID       int64   `json:"id"`
	PlanID   int64   `json:"-"`
	ItemID   int64   `json:"item_id"`
	Title    string  `json:"title"`
	Price    int     `json:"price"`
	Qty      float64 `json:"qty"`
	TimeHint string  `json:"time_hint"`
	UserNote string  `json:"user_note,omitempty"`
}

// Restrictions carries a profile's dietary constraints into planning.
type Restrictions struct {
	Allergies  []string `json:"allergies"`
	Exclusions []string `json:"exclusions"`
}
