package catalog

// VendorKind distinguishes restaurant menus from store shelves.
type VendorKind string

const (
	VendorRestaurant VendorKind = "restaurant"
	VendorStore      VendorKind = "store"
)

// Vendor is a restaurant or store that sells menu items in one city.
type Vendor struct {
	ID       int64
	Kind     VendorKind
	Name     string
	City     string
	IsActive bool
}

// Nutrients holds macro values per serving. Fiber and sodium are
// informational and never affect planning.
type Nutrients struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
	Fiber    float64 `json:"fiber"`
	Sodium   float64 `json:"sodium"`
}

// MenuItem is one purchasable dish or product. Nutrients is nil for items
// whose macro data has not been ingested yet.
type MenuItem struct {
	ID          int64
	VendorID    int64
	ExternalID  string
	Title       string
	Description string
	Price       int
	IsAvailable bool
	Tags        []string
	Allergens   []string
	Exclusions  []string
	Nutrients   *Nutrients
}

// HasNutrients reports whether the item carries macro data and can take
// part in nutrient-aware planning.
func (m *MenuItem) HasNutrients() bool {
	return m.Nutrients != nil
}

// Calories returns the item's calories per serving, or 0 when unknown.
func (m *MenuItem) Calories() float64 {
	if m.Nutrients == nil {
		return 0
	}
	return m.Nutrients.Calories
}
