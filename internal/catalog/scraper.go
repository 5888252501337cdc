package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"nutriplan/internal/llm"
	"nutriplan/pkg/logger"

	"github.com/PuerkitoBio/goquery"
)

// scrapedItem is the shape the extraction model is asked to return for
// each dish on a menu page.
type scrapedItem struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Price       int        `json:"price"`
	Tags        []string   `json:"tags"`
	Allergens   []string   `json:"allergens"`
	Nutrients   *Nutrients `json:"nutrients"`
}

// MenuScraper imports a vendor's menu from its public web page. The page is
// fetched and stripped down to text, then an extraction model turns it into
// structured menu items.
type MenuScraper struct {
	repo    *Repository
	textGen llm.TextGenerator
	log     *logger.Logger
	client  *http.Client
}

// NewMenuScraper creates a scraper backed by the given extraction model.
func NewMenuScraper(repo *Repository, textGen llm.TextGenerator, log *logger.Logger) *MenuScraper {
	return &MenuScraper{
		repo:    repo,
		textGen: textGen,
		log:     log,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

const menuExtractionPrompt = `You are a menu extraction expert. Extract every dish from the following restaurant menu page text.
Return strictly a JSON object with this structure:
{
  "items": [
    {
      "title": "Dish name",
      "description": "Short description",
      "price": 450,
      "tags": ["salad", "spicy"],
      "allergens": ["milk", "nuts"],
      "nutrients": {"calories": 520, "protein": 32, "fat": 18, "carbs": 55}
    }
  ]
}
Price is an integer in the page's currency, 0 if absent. Omit "nutrients" when the page does not state them. Do not invent dishes.

Menu page text:
%s`

// ScrapeMenu fetches url, extracts its dishes and upserts them under
// vendorID. Returns the number of items stored.
func (s *MenuScraper) ScrapeMenu(ctx context.Context, vendorID int64, url string) (int, error) {
	text, err := s.fetchPageText(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("fetch menu page: %w", err)
	}

	resp, err := s.textGen.GenerateContent(ctx, fmt.Sprintf(menuExtractionPrompt, text))
	if err != nil {
		return 0, fmt.Errorf("menu extraction failed: %w", err)
	}

	var payload struct {
		Items []scrapedItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(resp.Content)), &payload); err != nil {
		return 0, fmt.Errorf("parse extracted menu: %w", err)
	}

	stored := 0
	for i, item := range payload.Items {
		if item.Title == "" {
			continue
		}
		if _, err := s.repo.UpsertItem(ctx, MenuItem{
			VendorID:    vendorID,
			ExternalID:  fmt.Sprintf("scrape-%d-%d", vendorID, i),
			Title:       item.Title,
			Description: item.Description,
			Price:       item.Price,
			IsAvailable: true,
			Tags:        item.Tags,
			Allergens:   item.Allergens,
			Nutrients:   item.Nutrients,
		}); err != nil {
			return stored, fmt.Errorf("store scraped item %q: %w", item.Title, err)
		}
		stored++
	}

	s.log.Infow("menu scraped", "vendor_id", vendorID, "url", url, "items", stored)
	return stored, nil
}

func (s *MenuScraper) fetchPageText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	// Remove noise to save extraction tokens.
	doc.Find("script, style, nav, footer, iframe, .ads, #ads").Each(func(i int, sel *goquery.Selection) {
		sel.Remove()
	})

	return doc.Find("body").Text(), nil
}
