package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// Repository persists vendors and menu items.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a catalogue repository on top of an open database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// UpsertVendor inserts a vendor or reactivates/updates an existing one with
// the same name and kind. Returns the vendor id.
func (r *Repository) UpsertVendor(ctx context.Context, v Vendor) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM vendors WHERE name = ? AND kind = ?`, v.Name, string(v.Kind),
	).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO vendors (kind, name, city, is_active) VALUES (?, ?, ?, ?)`,
			string(v.Kind), v.Name, v.City, boolToInt(v.IsActive))
		if err != nil {
			return 0, fmt.Errorf("insert vendor: %w", err)
		}
		return res.LastInsertId()
	case err != nil:
		return 0, fmt.Errorf("lookup vendor: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE vendors SET city = ?, is_active = ? WHERE id = ?`,
		v.City, boolToInt(v.IsActive), id)
	if err != nil {
		return 0, fmt.Errorf("update vendor: %w", err)
	}
	return id, nil
}

// ActiveVendorIDs returns the set of active vendor ids in a city.
// An empty set means the city has no coverage yet.
func (r *Repository) ActiveVendorIDs(ctx context.Context, city string) (map[int64]struct{}, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM vendors WHERE city = ? AND is_active = 1`, city)
	if err != nil {
		return nil, fmt.Errorf("query active vendors: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan vendor id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// ListVendors returns all vendors ordered by name.
func (r *Repository) ListVendors(ctx context.Context) ([]Vendor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, name, city, is_active FROM vendors ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query vendors: %w", err)
	}
	defer rows.Close()

	var vendors []Vendor
	for rows.Next() {
		var v Vendor
		var kind string
		var active int
		if err := rows.Scan(&v.ID, &kind, &v.Name, &v.City, &active); err != nil {
			return nil, fmt.Errorf("scan vendor: %w", err)
		}
		v.Kind = VendorKind(kind)
		v.IsActive = active != 0
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

const itemColumns = `id, vendor_id, COALESCE(external_id, ''), title, description, price,
	is_available, tags, allergens, exclusions, calories, protein, fat, carbs, fiber, sodium`

// ListAvailable returns every available menu item, capped at limit
// (0 means no cap). Filtering is the planner's job; the repository hands
// back the raw pool.
func (r *Repository) ListAvailable(ctx context.Context, limit int) ([]MenuItem, error) {
	query := `SELECT ` + itemColumns + ` FROM menu_items WHERE is_available = 1 ORDER BY id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query available items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// GetItem loads one menu item by id.
func (r *Repository) GetItem(ctx context.Context, id int64) (*MenuItem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM menu_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("menu item %d: %w", id, ErrItemNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get menu item: %w", err)
	}
	return item, nil
}

// GetItems loads menu items by id, skipping ids that do not exist.
func (r *Repository) GetItems(ctx context.Context, ids []int64) ([]MenuItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM menu_items WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query items by id: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// UpsertItem inserts a menu item or, when an external_id match exists,
// refreshes the stored row. Returns the item id.
func (r *Repository) UpsertItem(ctx context.Context, item MenuItem) (int64, error) {
	tags, err := marshalList(item.Tags)
	if err != nil {
		return 0, err
	}
	allergens, err := marshalList(item.Allergens)
	if err != nil {
		return 0, err
	}
	exclusions, err := marshalList(item.Exclusions)
	if err != nil {
		return 0, err
	}

	var calories, protein, fat, carbs any
	fiber, sodium := 0.0, 0.0
	if item.Nutrients != nil {
		calories = item.Nutrients.Calories
		protein = item.Nutrients.Protein
		fat = item.Nutrients.Fat
		carbs = item.Nutrients.Carbs
		fiber = item.Nutrients.Fiber
		sodium = item.Nutrients.Sodium
	}

	if item.ExternalID != "" {
		var id int64
		err := r.db.QueryRowContext(ctx,
			`SELECT id FROM menu_items WHERE external_id = ?`, item.ExternalID).Scan(&id)
		if err == nil {
			_, err = r.db.ExecContext(ctx,
				`UPDATE menu_items SET vendor_id = ?, title = ?, description = ?, price = ?,
					is_available = ?, tags = ?, allergens = ?, exclusions = ?,
					calories = ?, protein = ?, fat = ?, carbs = ?, fiber = ?, sodium = ?
				WHERE id = ?`,
				item.VendorID, item.Title, item.Description, item.Price,
				boolToInt(item.IsAvailable), tags, allergens, exclusions,
				calories, protein, fat, carbs, fiber, sodium, id)
			if err != nil {
				return 0, fmt.Errorf("update menu item: %w", err)
			}
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, fmt.Errorf("lookup menu item: %w", err)
		}
	}

	externalID := any(item.ExternalID)
	if item.ExternalID == "" {
		externalID = nil
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO menu_items (vendor_id, external_id, title, description, price,
			is_available, tags, allergens, exclusions,
			calories, protein, fat, carbs, fiber, sodium)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.VendorID, externalID, item.Title, item.Description, item.Price,
		boolToInt(item.IsAvailable), tags, allergens, exclusions,
		calories, protein, fat, carbs, fiber, sodium)
	if err != nil {
		return 0, fmt.Errorf("insert menu item: %w", err)
	}
	return res.LastInsertId()
}

// SetAvailability flips the availability flag on one item.
func (r *Repository) SetAvailability(ctx context.Context, id int64, available bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE menu_items SET is_available = ? WHERE id = ?`, boolToInt(available), id)
	if err != nil {
		return fmt.Errorf("set availability: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("menu item %d: %w", id, ErrItemNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*MenuItem, error) {
	var (
		item                         MenuItem
		available                    int
		tags, allergens, exclusions  string
		calories, protein, fat, carb sql.NullFloat64
		fiber, sodium                float64
	)
	err := row.Scan(&item.ID, &item.VendorID, &item.ExternalID, &item.Title,
		&item.Description, &item.Price, &available, &tags, &allergens, &exclusions,
		&calories, &protein, &fat, &carb, &fiber, &sodium)
	if err != nil {
		return nil, err
	}
	item.IsAvailable = available != 0

	if item.Tags, err = unmarshalList(tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if item.Allergens, err = unmarshalList(allergens); err != nil {
		return nil, fmt.Errorf("decode allergens: %w", err)
	}
	if item.Exclusions, err = unmarshalList(exclusions); err != nil {
		return nil, fmt.Errorf("decode exclusions: %w", err)
	}

	if calories.Valid {
		item.Nutrients = &Nutrients{
			Calories: calories.Float64,
			Protein:  protein.Float64,
			Fat:      fat.Float64,
			Carbs:    carb.Float64,
			Fiber:    fiber,
			Sodium:   sodium,
		}
	}
	return &item, nil
}

func scanItems(rows *sql.Rows) ([]MenuItem, error) {
	var items []MenuItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func marshalList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(raw), nil
}

func unmarshalList(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
