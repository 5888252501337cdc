package nutrition

import (
	"math"
	"time"
)

// Targets holds the daily macro-nutrient goals for one person.
// Recomputed on every planning request, never cached.
type Targets struct {
	Calories int `json:"calories"`
	ProteinG int `json:"protein_g"`
	FatG     int `json:"fat_g"`
	CarbsG   int `json:"carbs_g"`
}

// activityFactors maps an activity level to its TDEE multiplier.
var activityFactors = map[string]float64{
	"sedentary": 1.2,
	"light":     1.375,
	"moderate":  1.55,
	"high":      1.725,
	"active":    1.725,
	"athlete":   1.9,
}

// goalAdjustments maps a goal to its relative calorie adjustment.
var goalAdjustments = map[string]float64{
	"lose":     -0.20,
	"maintain": 0.0,
	"gain":     0.15,
	"recomp":   -0.05,
}

const (
	defaultAge            = 30
	defaultActivityFactor = 1.55
	proteinPerKg          = 1.8
	fatCalorieShare       = 0.25
)

// Age returns whole years between birthDate and now. A nil birth date
// falls back to the default of 30.
func Age(birthDate *time.Time, now time.Time) int {
	if birthDate == nil {
		return defaultAge
	}
	years := now.Year() - birthDate.Year()
	if now.Month() < birthDate.Month() ||
		(now.Month() == birthDate.Month() && now.Day() < birthDate.Day()) {
		years--
	}
	return years
}

// CalculateTargets derives daily calorie and macro targets from biometrics
// using a Mifflin-St Jeor style BMR. Unknown activity levels and goals fall
// back to defaults rather than failing.
func CalculateTargets(sex string, weightKg float64, heightCm int, birthDate *time.Time, activityLevel, goal string) Targets {
	age := Age(birthDate, time.Now())

	var bmr float64
	if sex == "m" {
		bmr = 10*weightKg + 6.25*float64(heightCm) - 5*float64(age) + 5
	} else {
		bmr = 10*weightKg + 6.25*float64(heightCm) - 5*float64(age) - 161
	}

	factor, ok := activityFactors[activityLevel]
	if !ok {
		factor = defaultActivityFactor
	}
	tdee := bmr * factor
	tdee *= 1.0 + goalAdjustments[goal]

	proteinG := int(math.Round(proteinPerKg * weightKg))
	fatKcal := int(fatCalorieShare * tdee)
	fatG := int(math.Round(float64(fatKcal) / 9))
	proteinKcal := proteinG * 4
	carbsKcal := int(tdee) - fatKcal - proteinKcal
	if carbsKcal < 0 {
		carbsKcal = 0
	}
	carbsG := int(math.Round(float64(carbsKcal) / 4))

	return Targets{
		Calories: int(tdee),
		ProteinG: proteinG,
		FatG:     fatG,
		CarbsG:   carbsG,
	}
}
