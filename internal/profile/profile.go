package profile

import (
	"time"
)

// DateLayout is the storage format for birth dates.
const DateLayout = "2006-01-02"

// Profile is one user of the service, keyed by Telegram account.
type Profile struct {
	ID              int64      `json:"-"`
	TelegramID      int64      `json:"telegram_id"`
	City            string     `json:"city"`
	Sex             string     `json:"sex"`
	BirthDate       *time.Time `json:"birth_date,omitempty"`
	HeightCm        int        `json:"height_cm"`
	WeightKg        float64    `json:"weight_kg"`
	BodyFatPct      *float64   `json:"body_fat_pct,omitempty"`
	ActivityLevel   string     `json:"activity_level"`
	Goal            string     `json:"goal"`
	Allergies       []string   `json:"allergies"`
	Exclusions      []string   `json:"exclusions"`
	DailyBudget     *int       `json:"daily_budget,omitempty"`
	StarsBalance    int64      `json:"stars_balance"`
	CalocoinBalance float64    `json:"calocoin_balance"`
	CreatedAt       time.Time  `json:"-"`
	UpdatedAt       time.Time  `json:"-"`
}

// Update carries a partial profile edit. Nil fields stay untouched.
type Update struct {
	City          *string
	Sex           *string
	BirthDate     *time.Time
	HeightCm      *int
	WeightKg      *float64
	BodyFatPct    *float64
	ActivityLevel *string
	Goal          *string
	Allergies     []string
	Exclusions    []string
	DailyBudget   *int
}
