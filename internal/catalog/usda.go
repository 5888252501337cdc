package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"nutriplan/pkg/logger"
)

// DefaultUSDASourceURL points at the curated USDA food composition dump
// used to bootstrap the catalogue with nutrient-rich store products.
const DefaultUSDASourceURL = "https://raw.githubusercontent.com/wesm/pydata-book/2nd-edition/datasets/usda_food/database.json"

const (
	usdaMinCalories = 150.0
	usdaUserAgent   = "nutriplan-etl/1.0"
)

// usdaAllowedGroups limits the import to food groups that make sense as
// standalone store products.
var usdaAllowedGroups = map[string]struct{}{
	"Dairy and Egg Products":             {},
	"Fast Foods":                         {},
	"Soups, Sauces, and Gravies":         {},
	"Vegetables and Vegetable Products":  {},
	"Fruits and Fruit Juices":            {},
	"Breakfast Cereals":                  {},
	"Legumes and Legume Products":        {},
	"Nut and Seed Products":              {},
	"Cereal Grains and Pasta":            {},
}

var usdaCityPool = []string{
	"Москва",
	"Санкт-Петербург",
	"Екатеринбург",
	"Новосибирск",
	"Казань",
	"Нижний Новгород",
	"Краснодар",
}

var allergenKeywords = map[string][]string{
	"milk":      {"milk", "cheese", "cream", "yogurt", "butter", "casein"},
	"egg":       {"egg", "albumen", "ovum"},
	"soy":       {"soy", "soja", "tofu", "edamame"},
	"nuts":      {"almond", "nut", "peanut", "cashew", "walnut", "hazelnut", "pecan"},
	"gluten":    {"wheat", "barley", "rye", "spelt", "triticale", "gluten"},
	"fish":      {"salmon", "trout", "tuna", "cod", "anchovy", "fish"},
	"shellfish": {"shrimp", "prawn", "mussel", "clam", "lobster", "crab", "scallop"},
	"sesame":    {"sesame", "tahini"},
}

var meatKeywords = []string{"beef", "pork", "bacon", "ham", "lamb", "chicken", "turkey", "duck", "goose"}

var fishKeywords = []string{"salmon", "tuna", "cod", "trout", "herring", "anchovy", "mackerel", "sardine", "shrimp", "prawn"}

type usdaNutrient struct {
	Description string  `json:"description"`
	Units       string  `json:"units"`
	Value       float64 `json:"value"`
}

type usdaPortion struct {
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
	Grams  float64 `json:"grams"`
}

type usdaEntry struct {
	ID           int64          `json:"id"`
	Description  string         `json:"description"`
	Group        string         `json:"group"`
	Manufacturer string         `json:"manufacturer"`
	Nutrients    []usdaNutrient `json:"nutrients"`
	Portions     []usdaPortion  `json:"portions"`
}

// USDAImporter downloads the USDA dataset and loads it into the catalogue
// as store products with estimated prices and derived allergen tags.
type USDAImporter struct {
	repo      *Repository
	log       *logger.Logger
	client    *http.Client
	sourceURL string
}

// NewUSDAImporter creates a USDA importer. An empty sourceURL selects the
// default dataset.
func NewUSDAImporter(repo *Repository, log *logger.Logger, sourceURL string) *USDAImporter {
	if sourceURL == "" {
		sourceURL = DefaultUSDASourceURL
	}
	return &USDAImporter{
		repo:      repo,
		log:       log,
		client:    &http.Client{Timeout: 60 * time.Second},
		sourceURL: sourceURL,
	}
}

// Run fetches, transforms and loads the dataset. limit caps the number of
// imported items (0 means no cap). Returns the number of items upserted.
func (u *USDAImporter) Run(ctx context.Context, limit int) (int, error) {
	entries, err := u.fetch(ctx)
	if err != nil {
		return 0, err
	}

	loaded := 0
	vendorIDs := map[string]int64{}
	for _, entry := range entries {
		if limit > 0 && loaded >= limit {
			break
		}
		item, vendorName, vendorCity, ok := transformUSDAEntry(entry)
		if !ok {
			continue
		}

		vendorID, known := vendorIDs[vendorName]
		if !known {
			vendorID, err = u.repo.UpsertVendor(ctx, Vendor{
				Kind:     VendorStore,
				Name:     vendorName,
				City:     vendorCity,
				IsActive: true,
			})
			if err != nil {
				return loaded, fmt.Errorf("upsert store %q: %w", vendorName, err)
			}
			vendorIDs[vendorName] = vendorID
		}

		item.VendorID = vendorID
		if _, err := u.repo.UpsertItem(ctx, item); err != nil {
			return loaded, fmt.Errorf("upsert item %q: %w", item.Title, err)
		}
		loaded++
	}

	u.log.Infow("usda import finished", "items", loaded, "source", u.sourceURL)
	return loaded, nil
}

func (u *USDAImporter) fetch(ctx context.Context) ([]usdaEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build dataset request: %w", err)
	}
	req.Header.Set("User-Agent", usdaUserAgent)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch usda dataset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch usda dataset: status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read usda dataset: %w", err)
	}

	var entries []usdaEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode usda dataset: %w", err)
	}
	return entries, nil
}

// transformUSDAEntry converts a raw dataset row into a menu item plus its
// synthetic store. Returns ok=false for rows that should be skipped.
func transformUSDAEntry(entry usdaEntry) (MenuItem, string, string, bool) {
	group := strings.TrimSpace(entry.Group)
	if group != "" {
		if _, ok := usdaAllowedGroups[group]; !ok {
			return MenuItem{}, "", "", false
		}
	}
	title := strings.TrimSpace(entry.Description)
	if title == "" {
		return MenuItem{}, "", "", false
	}
	if len(title) > 200 {
		title = title[:200]
	}

	nutrients, ok := extractUSDANutrients(entry.Nutrients)
	if !ok || nutrients.Calories < usdaMinCalories {
		return MenuItem{}, "", "", false
	}

	manufacturer := strings.TrimSpace(entry.Manufacturer)
	tags := collectUSDATags(title, group, manufacturer)
	allergens := detectAllergens(title, group, tags)
	exclusions := deriveExclusions(tags, allergens)

	storeName := resolveStoreName(group, manufacturer)
	storeCity := resolveStoreCity(storeName)

	return MenuItem{
		ExternalID:  fmt.Sprintf("usda-%d", entry.ID),
		Title:       title,
		Description: buildUSDADescription(title, group, entry.Portions),
		Price:       estimatePrice(nutrients),
		IsAvailable: true,
		Tags:        tags,
		Allergens:   allergens,
		Exclusions:  exclusions,
		Nutrients:   &nutrients,
	}, storeName, storeCity, true
}

func extractUSDANutrients(raw []usdaNutrient) (Nutrients, bool) {
	var n Nutrients
	var haveCalories, haveProtein, haveFat, haveCarbs bool
	for _, nutrient := range raw {
		switch {
		case nutrient.Description == "Energy" && nutrient.Units == "kcal":
			n.Calories = nutrient.Value
			haveCalories = true
		case nutrient.Description == "Protein":
			n.Protein = nutrient.Value
			haveProtein = true
		case nutrient.Description == "Total lipid (fat)":
			n.Fat = nutrient.Value
			haveFat = true
		case nutrient.Description == "Carbohydrate, by difference":
			n.Carbs = nutrient.Value
			haveCarbs = true
		case nutrient.Description == "Fiber, total dietary":
			n.Fiber = nutrient.Value
		case nutrient.Description == "Sodium, Na":
			n.Sodium = nutrient.Value
		}
	}
	if !haveCalories || !haveProtein || !haveFat || !haveCarbs {
		return Nutrients{}, false
	}
	return n, true
}

func collectUSDATags(title, group, manufacturer string) []string {
	tags := map[string]struct{}{"usda": {}}
	if slug := slugify(group); slug != "" {
		tags[slug] = struct{}{}
	}
	if slug := slugify(manufacturer); slug != "" {
		tags[slug] = struct{}{}
	}

	text := strings.ToLower(title)
	if strings.Contains(text, "vegan") || strings.Contains(text, "plant") {
		tags["plant-based"] = struct{}{}
	}
	if strings.Contains(text, "spice") || strings.Contains(text, "chili") || strings.Contains(text, "pepper") {
		tags["spicy"] = struct{}{}
	}
	if strings.Contains(text, "salad") || strings.Contains(text, "bowl") {
		tags["bowl"] = struct{}{}
	}
	if strings.Contains(text, "soup") {
		tags["soup"] = struct{}{}
	}
	return sortedKeys(tags)
}

func detectAllergens(title, group string, tags []string) []string {
	haystack := strings.ToLower(title + " " + strings.Join(tags, " ") + " " + group)
	found := map[string]struct{}{}
	for allergen, keywords := range allergenKeywords {
		for _, keyword := range keywords {
			if strings.Contains(haystack, keyword) {
				found[allergen] = struct{}{}
				break
			}
		}
	}
	lowerGroup := strings.ToLower(group)
	if strings.Contains(lowerGroup, "dairy") {
		found["milk"] = struct{}{}
	}
	if strings.Contains(lowerGroup, "egg") {
		found["egg"] = struct{}{}
	}
	if strings.Contains(lowerGroup, "nut") {
		found["nuts"] = struct{}{}
	}
	if strings.Contains(lowerGroup, "seafood") {
		found["fish"] = struct{}{}
	}
	return sortedKeys(found)
}

func deriveExclusions(tags, allergens []string) []string {
	found := map[string]struct{}{}
	text := strings.Join(tags, " ")
	for _, keyword := range meatKeywords {
		if strings.Contains(text, keyword) {
			found["vegan"] = struct{}{}
			found["vegetarian"] = struct{}{}
			break
		}
	}
	for _, keyword := range fishKeywords {
		if strings.Contains(text, keyword) {
			found["vegan"] = struct{}{}
			break
		}
	}
	for _, allergen := range allergens {
		switch allergen {
		case "milk":
			found["lactose-free"] = struct{}{}
			found["vegan"] = struct{}{}
		case "gluten":
			found["gluten-free"] = struct{}{}
		case "nuts":
			found["nut-free"] = struct{}{}
		case "soy":
			found["soy-free"] = struct{}{}
		}
	}
	return sortedKeys(found)
}

func buildUSDADescription(title, group string, portions []usdaPortion) string {
	base := title
	if len(portions) > 0 && portions[0].Amount > 0 && portions[0].Unit != "" {
		p := portions[0]
		portion := fmt.Sprintf("Порция: %g %s", p.Amount, p.Unit)
		if p.Grams > 0 {
			portion = fmt.Sprintf("%s (%g г)", portion, p.Grams)
		}
		base = fmt.Sprintf("%s. %s.", base, portion)
	} else {
		base += "."
	}
	if group != "" {
		base = fmt.Sprintf("%s Категория: %s.", base, group)
	}
	return base
}

// estimatePrice derives a rouble price from the macro profile, rewarding
// high protein, high fiber and low fat, clamped to [150, 1500].
func estimatePrice(n Nutrients) int {
	base := n.Calories*0.42 + n.Protein*7.5 + n.Fiber*2
	premium := 0.0
	if n.Protein >= 25 {
		premium += 40
	}
	if n.Fiber >= 8 {
		premium += 25
	}
	if n.Fat <= 12 {
		premium += 20
	}
	price := int(math.Ceil((base+premium)/10.0) * 10)
	if price < 150 {
		price = 150
	}
	if price > 1500 {
		price = 1500
	}
	return price
}

func resolveStoreName(group, manufacturer string) string {
	if manufacturer != "" {
		name := regexp.MustCompile(`\s+`).ReplaceAllString(manufacturer, " ")
		name = strings.TrimSpace(name)
		if len(name) > 120 {
			name = name[:120]
		}
		return name
	}
	if group != "" {
		return group + " Collective"
	}
	return "USDA Marketplace"
}

// resolveStoreCity assigns a deterministic city so repeat imports land the
// same store in the same place.
func resolveStoreCity(name string) string {
	digest := 0
	for _, r := range name {
		digest += int(r)
	}
	return usdaCityPool[digest%len(usdaCityPool)]
}

var slugPattern = regexp.MustCompile(`[^0-9a-zа-яё]+`)

func slugify(value string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "-")
	return strings.Trim(slug, "-")
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
