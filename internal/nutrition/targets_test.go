package nutrition

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAge(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	t.Run("NilDefaultsTo30", func(t *testing.T) {
		require.Equal(t, 30, Age(nil, now))
	})

	t.Run("BirthdayPassed", func(t *testing.T) {
		bd := time.Date(1990, 3, 1, 0, 0, 0, 0, time.UTC)
		require.Equal(t, 36, Age(&bd, now))
	})

	t.Run("BirthdayUpcoming", func(t *testing.T) {
		bd := time.Date(1990, 11, 20, 0, 0, 0, 0, time.UTC)
		require.Equal(t, 35, Age(&bd, now))
	})

	t.Run("BirthdayToday", func(t *testing.T) {
		bd := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)
		require.Equal(t, 36, Age(&bd, now))
	})
}

func TestCalculateTargets(t *testing.T) {
	t.Run("MaleMaintainModerate", func(t *testing.T) {
		// 80kg, 180cm, no birth date (age defaults to 30).
		got := CalculateTargets("m", 80, 180, nil, "moderate", "maintain")

		require.Greater(t, got.Calories, 2000)
		require.Less(t, got.Calories, 3500)
		require.Equal(t, 144, got.ProteinG) // round(1.8 * 80)

		// BMR = 800 + 1125 - 150 + 5 = 1780; TDEE = 1780 * 1.55 = 2759
		require.Equal(t, 2759, got.Calories)
	})

	t.Run("ProteinTracksWeight", func(t *testing.T) {
		for _, w := range []float64{50, 62.5, 70, 91.3} {
			got := CalculateTargets("f", w, 165, nil, "light", "lose")
			require.Equal(t, int(math.Round(1.8*w)), got.ProteinG)
		}
	})

	t.Run("ActivityMonotonic", func(t *testing.T) {
		levels := []string{"sedentary", "light", "moderate", "high", "athlete"}
		prev := -1
		for _, lvl := range levels {
			got := CalculateTargets("m", 75, 178, nil, lvl, "maintain")
			require.Greater(t, got.Calories, prev, "activity %q should raise calories", lvl)
			prev = got.Calories
		}
	})

	t.Run("UnknownEnumsFallBack", func(t *testing.T) {
		known := CalculateTargets("m", 75, 178, nil, "moderate", "maintain")
		unknownActivity := CalculateTargets("m", 75, 178, nil, "couch", "maintain")
		unknownGoal := CalculateTargets("m", 75, 178, nil, "moderate", "bulk-hard")

		require.Equal(t, known.Calories, unknownActivity.Calories)
		require.Equal(t, known.Calories, unknownGoal.Calories)
	})

	t.Run("FemaleUsesLowerBMR", func(t *testing.T) {
		m := CalculateTargets("m", 70, 170, nil, "moderate", "maintain")
		f := CalculateTargets("f", 70, 170, nil, "moderate", "maintain")
		require.Greater(t, m.Calories, f.Calories)
	})

	t.Run("OtherSexUsesFemaleFormula", func(t *testing.T) {
		f := CalculateTargets("f", 70, 170, nil, "moderate", "maintain")
		o := CalculateTargets("o", 70, 170, nil, "moderate", "maintain")
		require.Equal(t, f, o)
	})

	t.Run("MacrosBalanceAgainstCalories", func(t *testing.T) {
		got := CalculateTargets("m", 80, 180, nil, "moderate", "maintain")

		// Fat is 25% of TDEE, carbs absorb the remainder after protein.
		require.InDelta(t, float64(got.Calories)*0.25/9, float64(got.FatG), 1)
		carbsKcal := got.Calories - int(0.25*float64(got.Calories)) - got.ProteinG*4
		require.InDelta(t, float64(carbsKcal)/4, float64(got.CarbsG), 1)
	})

	t.Run("GoalAdjustments", func(t *testing.T) {
		maintain := CalculateTargets("m", 80, 180, nil, "moderate", "maintain")
		lose := CalculateTargets("m", 80, 180, nil, "moderate", "lose")
		gain := CalculateTargets("m", 80, 180, nil, "moderate", "gain")

		require.Less(t, lose.Calories, maintain.Calories)
		require.Greater(t, gain.Calories, maintain.Calories)
	})
}
