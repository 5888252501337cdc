package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"nutriplan/internal/catalog"
	"nutriplan/internal/llm"
	"nutriplan/internal/nutrition"
	"nutriplan/pkg/logger"
)

const systemPrompt = `Ты — виртуальный нутрициолог. Подбирай суточное меню из доступных блюд
так, чтобы пользователь получил разнообразный рацион и попал в целевые
калории, белки, жиры и углеводы. Учитывай пищевые ограничения и бюджет,
не добавляй блюда, которых нет в списке.`

const (
	minMealQty = 0.5
	maxMealQty = 5.0
)

// UsageRecorder receives one sample per model call for observability.
// Recording must never fail the planning path.
type UsageRecorder interface {
	RecordCall(ctx context.Context, provider, model string, attempts int, latency time.Duration, success bool)
}

// ProviderAdapter asks a text generation model to compose a menu and
// sanitizes whatever comes back. Every entry in the result is guaranteed
// to reference a real candidate with a sane quantity.
type ProviderAdapter struct {
	name             string
	textGen          llm.TextGenerator
	recorder         UsageRecorder
	log              *logger.Logger
	promptItemsLimit int
	maxPlanItems     int
}

// NewProviderAdapter creates an adapter around textGen. A nil textGen means
// the provider is disabled and every call yields an empty plan. recorder
// may be nil.
func NewProviderAdapter(name string, textGen llm.TextGenerator, recorder UsageRecorder, log *logger.Logger, promptItemsLimit, maxPlanItems int) *ProviderAdapter {
	if promptItemsLimit < 1 {
		promptItemsLimit = 40
	}
	if maxPlanItems < 1 {
		maxPlanItems = 6
	}
	return &ProviderAdapter{
		name:             name,
		textGen:          textGen,
		recorder:         recorder,
		log:              log,
		promptItemsLimit: promptItemsLimit,
		maxPlanItems:     maxPlanItems,
	}
}

// ComposeMenu builds the prompt, calls the model and sanitizes the reply.
// A disabled provider or an empty candidate pool returns an empty plan
// without touching the network.
func (a *ProviderAdapter) ComposeMenu(ctx context.Context, items []catalog.MenuItem, targets nutrition.Targets, restrictions Restrictions) ([]PlanEntry, error) {
	if a.textGen == nil {
		return nil, nil
	}

	candidates := make([]catalog.MenuItem, 0, len(items))
	for _, item := range items {
		if item.HasNutrients() {
			candidates = append(candidates, item)
		}
	}
	if len(candidates) == 0 {
		a.log.Infow("no candidates for model planning, skipping provider")
		return nil, nil
	}

	prompt := systemPrompt + "\n\n" + a.buildUserPrompt(candidates, targets, restrictions)

	resp, err := a.textGen.GenerateContent(ctx, prompt)
	if a.recorder != nil {
		a.recorder.RecordCall(ctx, a.name, resp.Model, resp.Attempts, resp.Latency, err == nil)
	}
	if err != nil {
		return nil, fmt.Errorf("compose menu: %w", err)
	}

	return a.parsePlan(resp.Content, candidates)
}

func (a *ProviderAdapter) buildUserPrompt(candidates []catalog.MenuItem, targets nutrition.Targets, restrictions Restrictions) string {
	var restrictionLines []string
	if allergies := nonEmpty(restrictions.Allergies); len(allergies) > 0 {
		restrictionLines = append(restrictionLines, "- Аллергии: "+strings.Join(allergies, ", "))
	}
	if exclusions := nonEmpty(restrictions.Exclusions); len(exclusions) > 0 {
		restrictionLines = append(restrictionLines, "- Исключения: "+strings.Join(exclusions, ", "))
	}
	if len(restrictionLines) == 0 {
		restrictionLines = append(restrictionLines, "- Без дополнительных ограничений.")
	}

	var itemLines []string
	for _, item := range candidates {
		if len(itemLines) >= a.promptItemsLimit {
			break
		}
		n := item.Nutrients
		line := fmt.Sprintf("- #%d: %s — %g ккал, Б/Ж/У: %g/%g/%gг, цена: %d₽",
			item.ID, item.Title, n.Calories, n.Protein, n.Fat, n.Carbs, item.Price)
		if len(item.Tags) > 0 {
			line += ", теги: " + strings.Join(item.Tags, ", ")
		}
		itemLines = append(itemLines, line)
	}

	return fmt.Sprintf(`Цели пользователя:
- Калории: %d
- Белки: %d
- Жиры: %d
- Углеводы: %d

Ограничения:
%s

Доступные блюда:
%s

Составь дневной план питания из 3-5 приемов пищи, используя только блюда из списка.
Старайся разнообразить выбор и соблюсти калорийность и макронутриенты.
Для каждого приема пищи укажи идентификатор блюда, количество порций (может быть дробным) и тип приема пищи.
Ответ верни строго в формате JSON:
{
  "plan": [
    {"item_id": 1, "qty": 1.0, "time_hint": "breakfast", "title": "Название блюда"}
  ]
}
time_hint используй из набора ["breakfast", "lunch", "dinner", "snack", "any"].
Если невозможно составить план, верни {"plan": []}.`,
		targets.Calories, targets.ProteinG, targets.FatG, targets.CarbsG,
		strings.Join(restrictionLines, "\n"),
		strings.Join(itemLines, "\n"))
}

type rawPlanEntry struct {
	ItemID   any `json:"item_id"`
	Qty      any `json:"qty"`
	TimeHint any `json:"time_hint"`
	Title    any `json:"title"`
}

// parsePlan decodes the model output and drops everything that cannot be
// trusted: unknown items, duplicates, non-positive quantities. Quantities
// are clamped to [0.5, 5.0] and rounded to two decimals.
func (a *ProviderAdapter) parsePlan(raw string, candidates []catalog.MenuItem) ([]PlanEntry, error) {
	jsonStr := llm.ExtractJSON(raw)
	if jsonStr == "" {
		return nil, fmt.Errorf("%w: no JSON object in model reply", llm.ErrInvalidOutput)
	}

	var payload struct {
		Plan []rawPlanEntry `json:"plan"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrInvalidOutput, err)
	}

	lookup := make(map[int64]catalog.MenuItem, len(candidates))
	for _, item := range candidates {
		lookup[item.ID] = item
	}

	var plan []PlanEntry
	used := map[int64]struct{}{}
	for _, entry := range payload.Plan {
		itemID, ok := coerceInt(entry.ItemID)
		if !ok {
			continue
		}
		if _, dup := used[itemID]; dup {
			continue
		}
		candidate, known := lookup[itemID]
		if !known {
			continue
		}

		qty, ok := coerceFloat(entry.Qty)
		if !ok {
			qty = 1.0
		}
		if qty <= 0 {
			continue
		}
		qty = math.Min(math.Max(qty, minMealQty), maxMealQty)
		qty = math.Round(qty*100) / 100

		timeHint := "any"
		if s, ok := entry.TimeHint.(string); ok {
			if normalized := strings.ToLower(strings.TrimSpace(s)); normalized != "" {
				timeHint = normalized
			}
		}

		title := candidate.Title
		if s, ok := entry.Title.(string); ok && s != "" {
			title = s
		}

		plan = append(plan, PlanEntry{
			ItemID:   itemID,
			Title:    title,
			Qty:      qty,
			TimeHint: timeHint,
		})
		used[itemID] = struct{}{}

		if len(plan) >= a.maxPlanItems {
			break
		}
	}
	return plan, nil
}

func coerceInt(v any) (int64, bool) {
	switch value := v.(type) {
	case float64:
		return int64(value), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case json.Number:
		n, err := value.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func coerceFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case json.Number:
		f, err := value.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
