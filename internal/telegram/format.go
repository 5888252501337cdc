package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"nutriplan/internal/metrics"
	"nutriplan/internal/nutrition"
	"nutriplan/internal/planner"
	"nutriplan/internal/profile"
)

var timeHintLabels = map[string]string{
	"breakfast": "Завтрак",
	"lunch":     "Обед",
	"dinner":    "Ужин",
	"snack":     "Перекус",
	"any":       "В любое время",
}

var sexLabels = map[string]string{"m": "мужской", "f": "женский"}

var activityLabels = map[string]string{
	"sedentary": "Сидячий",
	"light":     "Лёгкая активность",
	"moderate":  "Умеренная активность",
	"high":      "Высокая активность",
	"athlete":   "Спортсмен",
}

var goalLabels = map[string]string{
	"lose":     "Похудение",
	"maintain": "Поддержание",
	"gain":     "Набор массы",
	"recomp":   "Рекомпозиция",
}

func label(m map[string]string, key string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return key
}

// formatPlanMessage renders a stored plan as a Telegram Markdown message.
func formatPlanMessage(plan *planner.MenuPlan) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🍽 *Меню на %s*\n", plan.PlanDate))
	sb.WriteString(fmt.Sprintf("Цель: %d ккал (Б %d / Ж %d / У %d)\n\n",
		plan.Targets.Calories, plan.Targets.ProteinG, plan.Targets.FatG, plan.Targets.CarbsG))

	if len(plan.Meals) == 0 {
		sb.WriteString("_Каталог пуст, блюда не подобраны. Попробуйте позже._\n")
		return sb.String()
	}

	total := 0
	for _, meal := range plan.Meals {
		sb.WriteString(fmt.Sprintf("• *%s* — %s", meal.Title, label(timeHintLabels, meal.TimeHint)))
		if meal.Qty != 1 {
			sb.WriteString(fmt.Sprintf(" ×%s", strconv.FormatFloat(meal.Qty, 'f', -1, 64)))
		}
		sb.WriteString(fmt.Sprintf("\n  %d ₽\n", meal.Price))
		total += int(float64(meal.Price) * meal.Qty)
	}
	sb.WriteString(fmt.Sprintf("\n💰 *Итого:* ~%d ₽", total))
	return sb.String()
}

// formatProfileMessage renders the profile card with health metrics.
func formatProfileMessage(p *profile.Profile, m nutrition.ProfileMetrics) string {
	var sb strings.Builder
	sb.WriteString("👤 *Ваш профиль*\n\n")
	sb.WriteString(fmt.Sprintf("• Пол: %s\n", label(sexLabels, p.Sex)))
	sb.WriteString(fmt.Sprintf("• Рост: %d см\n", p.HeightCm))
	sb.WriteString(fmt.Sprintf("• Вес: %s кг\n", strconv.FormatFloat(p.WeightKg, 'f', -1, 64)))
	sb.WriteString(fmt.Sprintf("• Активность: %s\n", label(activityLabels, p.ActivityLevel)))
	sb.WriteString(fmt.Sprintf("• Цель: %s\n", label(goalLabels, p.Goal)))
	if p.City != "" {
		sb.WriteString(fmt.Sprintf("• Город: %s\n", p.City))
	}
	if len(p.Allergies) > 0 {
		sb.WriteString(fmt.Sprintf("• Аллергии: %s\n", strings.Join(p.Allergies, ", ")))
	}

	sb.WriteString("\n📈 *Показатели*\n")
	if m.BMI > 0 {
		sb.WriteString(fmt.Sprintf("• ИМТ: %.1f (%s)\n", m.BMI, m.BMIStatus))
	}
	sb.WriteString(fmt.Sprintf("• BMR: %d ккал\n", m.BMR))
	sb.WriteString(fmt.Sprintf("• TDEE: %d ккал\n", m.TDEE))
	sb.WriteString(fmt.Sprintf("• Рекомендация: %d ккал/день\n", m.RecommendedCalories))
	for _, macro := range m.Macros {
		sb.WriteString(fmt.Sprintf("  – %s: %d г\n", macro.Label, macro.Grams))
	}
	return sb.String()
}

// formatUsageReport renders the admin metrics summary.
func formatUsageReport(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *LLM activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d calls, %d failed, avg %.0f ms\n",
			d.Date, d.Calls, d.Failures, d.AvgLatencyMS))
	}

	sb.WriteString("\n🧠 *System health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", health.DataDiskSize))
	return sb.String()
}

// parseHeight accepts a height in centimeters typed by the user.
func parseHeight(text string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || v < 100 || v > 250 {
		return 0, fmt.Errorf("height out of range")
	}
	return v, nil
}

// parseWeight accepts a weight in kilograms, comma decimals allowed.
func parseWeight(text string) (float64, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil || v < 30 || v > 300 {
		return 0, fmt.Errorf("weight out of range")
	}
	return v, nil
}
