// Package lookup resolves barcodes against the Open Food Facts product
// database. Results carry names and images only; prices always come from
// the shopkeeper.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// productResponse mirrors the slice of the Open Food Facts payload we care
// about. Status is 1 when the barcode is known.
type productResponse struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Product struct {
		ProductName string `json:"product_name"`
		Brands      string `json:"brands"`
		Categories  string `json:"categories"`
		Quantity    string `json:"quantity"`
		ImageURL    string `json:"image_url"`
	} `json:"product"`
}

// Lookup fetches product details for a barcode. An unknown barcode is not
// an error; the result just reports Found false.
func (c *Client) Lookup(ctx context.Context, barcode string) (*domain.LookupResult, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, fmt.Errorf("%w: barcode is required", store.ErrInvalidInput)
	}

	endpoint := fmt.Sprintf("%s/product/%s.json", c.baseURL, url.PathEscape(barcode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("barcode lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &domain.LookupResult{Barcode: barcode}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("barcode lookup: unexpected status %d", resp.StatusCode)
	}

	var payload productResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("barcode lookup: %w", err)
	}

	if payload.Status != 1 {
		return &domain.LookupResult{Barcode: barcode}, nil
	}

	return &domain.LookupResult{
		Found:    true,
		Barcode:  barcode,
		Name:     strings.TrimSpace(payload.Product.ProductName),
		Brand:    strings.TrimSpace(payload.Product.Brands),
		Category: firstCategory(payload.Product.Categories),
		Quantity: strings.TrimSpace(payload.Product.Quantity),
		ImageURL: payload.Product.ImageURL,
	}, nil
}

// firstCategory picks the leading entry of the comma separated category
// list; the full taxonomy is noise for a shop catalog.
func firstCategory(categories string) string {
	first, _, _ := strings.Cut(categories, ",")
	return strings.TrimSpace(first)
}
