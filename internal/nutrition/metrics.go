package nutrition

import (
	"math"
	"time"
)

// ProfileMetrics is the display-oriented health summary shown on the profile
// page and in the bot. It uses a different BMR formula and goal model than
// the planner's CalculateTargets; the two are intentionally kept separate.
type ProfileMetrics struct {
	Age                 int          `json:"age,omitempty"`
	BMI                 float64      `json:"bmi,omitempty"`
	BMIStatus           string       `json:"bmi_status,omitempty"`
	BMR                 int          `json:"bmr,omitempty"`
	TDEE                int          `json:"tdee,omitempty"`
	RecommendedCalories int          `json:"recommended_calories,omitempty"`
	Macros              []MacroShare `json:"macros,omitempty"`
}

// MacroShare is one row of the macro ratio breakdown.
type MacroShare struct {
	Label string  `json:"label"`
	Grams int     `json:"grams"`
	Ratio float64 `json:"ratio"`
}

// Absolute daily calorie adjustments per goal, applied after TDEE.
var goalCalorieAdjustments = map[string]int{
	"lose":     -450,
	"maintain": 0,
	"gain":     350,
	"recomp":   -150,
}

var proteinRatios = map[string]float64{
	"gain":     0.28,
	"lose":     0.32,
	"recomp":   0.30,
	"maintain": 0.20,
}

var fatRatios = map[string]float64{
	"lose": 0.27,
}

const (
	defaultProteinRatio = 0.20
	defaultFatRatio     = 0.28
	minCalories         = 1200
)

// BMI returns the body-mass index rounded to one decimal, or 0 when the
// inputs cannot produce one.
func BMI(heightCm int, weightKg float64) float64 {
	if heightCm <= 0 || weightKg <= 0 {
		return 0
	}
	heightM := float64(heightCm) / 100
	bmi := weightKg / (heightM * heightM)
	return math.Round(bmi*10) / 10
}

// BMIStatus classifies a BMI value into a human-readable band.
func BMIStatus(bmi float64) string {
	switch {
	case bmi <= 0:
		return ""
	case bmi < 18.5:
		return "underweight"
	case bmi < 25:
		return "normal"
	case bmi < 30:
		return "overweight"
	default:
		return "needs attention"
	}
}

// BuildProfileMetrics computes the profile health summary. Recommended
// calories never drop below the 1200 kcal floor.
func BuildProfileMetrics(sex string, weightKg float64, heightCm int, birthDate *time.Time, activityLevel, goal string) ProfileMetrics {
	m := ProfileMetrics{}
	if birthDate != nil {
		if years := Age(birthDate, time.Now()); years > 0 {
			m.Age = years
		}
	}

	m.BMI = BMI(heightCm, weightKg)
	m.BMIStatus = BMIStatus(m.BMI)

	if heightCm <= 0 || weightKg <= 0 {
		return m
	}

	age := defaultAge
	if m.Age > 0 {
		age = m.Age
	}

	// Revised Harris-Benedict coefficients.
	var base float64
	if sex == "f" {
		base = 447.6 + 9.2*weightKg + 3.1*float64(heightCm) - 4.3*float64(age)
	} else {
		base = 88.36 + 13.4*weightKg + 4.8*float64(heightCm) - 5.7*float64(age)
	}
	m.BMR = roundHalfUp(base)

	factor, ok := activityFactors[activityLevel]
	if !ok {
		factor = 1.2
	}
	m.TDEE = roundHalfUp(float64(m.BMR) * factor)

	recommended := m.TDEE + goalCalorieAdjustments[goal]
	if recommended < minCalories {
		recommended = minCalories
	}
	m.RecommendedCalories = recommended

	m.Macros = macroBreakdown(recommended, goal)
	return m
}

func macroBreakdown(calories int, goal string) []MacroShare {
	if calories <= 0 {
		return nil
	}

	proteinRatio, ok := proteinRatios[goal]
	if !ok {
		proteinRatio = defaultProteinRatio
	}
	fatRatio, ok := fatRatios[goal]
	if !ok {
		fatRatio = defaultFatRatio
	}
	carbRatio := 1 - proteinRatio - fatRatio
	if carbRatio < 0 {
		carbRatio = 0
	}

	c := float64(calories)
	return []MacroShare{
		{Label: "protein", Grams: roundHalfUp(c * proteinRatio / 4), Ratio: proteinRatio},
		{Label: "fat", Grams: roundHalfUp(c * fatRatio / 9), Ratio: fatRatio},
		{Label: "carbs", Grams: roundHalfUp(c * carbRatio / 4), Ratio: carbRatio},
	}
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
