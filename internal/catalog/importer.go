package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"nutriplan/pkg/logger"
)

// seedVendor mirrors one entry of seeds/vendors.json.
type seedVendor struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	City string `json:"city"`
}

// seedProduct mirrors one entry of seeds/products.json.
type seedProduct struct {
	Vendor      string     `json:"vendor"`
	ExternalID  string     `json:"external_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Price       int        `json:"price"`
	Tags        []string   `json:"tags"`
	Allergens   []string   `json:"allergens"`
	Exclusions  []string   `json:"exclusions"`
	Nutrients   *Nutrients `json:"nutrients"`
}

// Importer loads bundled seed files into the catalogue.
type Importer struct {
	repo *Repository
	log  *logger.Logger
}

// NewImporter creates a seed importer.
func NewImporter(repo *Repository, log *logger.Logger) *Importer {
	return &Importer{repo: repo, log: log}
}

// ImportDir reads vendors.json and products.json from dir and upserts their
// contents. Missing files are skipped, not errors.
func (i *Importer) ImportDir(ctx context.Context, dir string) error {
	vendorIDs := map[string]int64{}

	vendorsPath := filepath.Join(dir, "vendors.json")
	if raw, err := os.ReadFile(vendorsPath); err == nil {
		var vendors []seedVendor
		if err := json.Unmarshal(raw, &vendors); err != nil {
			return fmt.Errorf("decode %s: %w", vendorsPath, err)
		}
		for _, v := range vendors {
			kind := VendorKind(v.Kind)
			if kind != VendorRestaurant && kind != VendorStore {
				kind = VendorRestaurant
			}
			id, err := i.repo.UpsertVendor(ctx, Vendor{
				Kind:     kind,
				Name:     v.Name,
				City:     v.City,
				IsActive: true,
			})
			if err != nil {
				return fmt.Errorf("seed vendor %q: %w", v.Name, err)
			}
			vendorIDs[v.Name] = id
		}
		i.log.Infow("seed vendors loaded", "count", len(vendors))
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", vendorsPath, err)
	}

	productsPath := filepath.Join(dir, "products.json")
	raw, err := os.ReadFile(productsPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", productsPath, err)
	}

	var products []seedProduct
	if err := json.Unmarshal(raw, &products); err != nil {
		return fmt.Errorf("decode %s: %w", productsPath, err)
	}

	loaded := 0
	for _, p := range products {
		vendorID, ok := vendorIDs[p.Vendor]
		if !ok {
			// Products may reference vendors seeded in a previous run.
			vendorID, err = i.repo.UpsertVendor(ctx, Vendor{
				Kind:     VendorStore,
				Name:     p.Vendor,
				City:     "",
				IsActive: true,
			})
			if err != nil {
				return fmt.Errorf("seed vendor %q: %w", p.Vendor, err)
			}
			vendorIDs[p.Vendor] = vendorID
		}

		if _, err := i.repo.UpsertItem(ctx, MenuItem{
			VendorID:    vendorID,
			ExternalID:  p.ExternalID,
			Title:       p.Title,
			Description: p.Description,
			Price:       p.Price,
			IsAvailable: true,
			Tags:        p.Tags,
			Allergens:   p.Allergens,
			Exclusions:  p.Exclusions,
			Nutrients:   p.Nutrients,
		}); err != nil {
			return fmt.Errorf("seed item %q: %w", p.Title, err)
		}
		loaded++
	}
	i.log.Infow("seed products loaded", "count", loaded)
	return nil
}
