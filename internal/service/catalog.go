package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/events"
	"warungpos/backend/internal/store"
)

// Catalog manages the product list. Mutations that create stock also write
// the matching ledger row so the books cover money spent on inventory.
type Catalog struct {
	repo store.Repository
	bus  *events.Bus
	now  func() time.Time
}

func NewCatalog(repo store.Repository, bus *events.Bus) *Catalog {
	return &Catalog{
		repo: repo,
		bus:  bus,
		now:  time.Now,
	}
}

func (c *Catalog) Add(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	if err := requireOwner(ctx); err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Barcode = strings.TrimSpace(req.Barcode)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", store.ErrInvalidInput)
	}
	if req.SellPrice < 1 {
		return nil, fmt.Errorf("%w: sell price must be positive", store.ErrInvalidPrice)
	}
	if req.BuyPrice != nil && *req.BuyPrice < 1 {
		return nil, fmt.Errorf("%w: buy price must be positive", store.ErrInvalidPrice)
	}
	if req.InitialStock < 0 || req.MinStock < 0 {
		return nil, fmt.Errorf("%w: stock levels cannot be negative", store.ErrInvalidQuantity)
	}

	product := domain.Product{
		Name:         req.Name,
		SellPrice:    req.SellPrice,
		BuyPrice:     req.BuyPrice,
		CurrentStock: req.InitialStock,
		MinStock:     req.MinStock,
		Barcode:      req.Barcode,
		ImageURL:     req.ImageURL,
	}

	created, err := c.repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}

	// Stock the product arrives with was bought with real money; record the
	// purchase when we know what it cost.
	if created.CurrentStock > 0 && created.BuyPrice != nil && *created.BuyPrice > 0 {
		flow, err := c.repo.InsertCashFlow(ctx, domain.ComposeInitialStock(*created, c.now()))
		if err != nil {
			return nil, err
		}
		c.bus.PublishLedgerCommitted(events.LedgerCommitted{
			FlowID: flow.ID,
			Type:   flow.Type,
			Amount: flow.Amount,
		})
	}

	c.bus.PublishStockChanged(events.StockChangedFromProduct(*created))
	return created, nil
}

func (c *Catalog) Update(ctx context.Context, id string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	if err := requireOwner(ctx); err != nil {
		return nil, err
	}

	existing, err := c.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", store.ErrInvalidInput)
		}
		updated.Name = name
	}
	if req.SellPrice != nil {
		if *req.SellPrice < 1 {
			return nil, fmt.Errorf("%w: sell price must be positive", store.ErrInvalidPrice)
		}
		updated.SellPrice = *req.SellPrice
	}
	if req.BuyPrice != nil {
		if *req.BuyPrice < 1 {
			return nil, fmt.Errorf("%w: buy price must be positive", store.ErrInvalidPrice)
		}
		updated.BuyPrice = req.BuyPrice
	}
	if req.CurrentStock != nil {
		if *req.CurrentStock < 0 {
			return nil, fmt.Errorf("%w: stock cannot be negative", store.ErrInvalidQuantity)
		}
		updated.CurrentStock = *req.CurrentStock
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return nil, fmt.Errorf("%w: min stock cannot be negative", store.ErrInvalidQuantity)
		}
		updated.MinStock = *req.MinStock
	}
	if req.Barcode != nil {
		updated.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.ImageURL != nil {
		updated.ImageURL = *req.ImageURL
	}

	saved, err := c.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return nil, err
	}

	if saved.CurrentStock != existing.CurrentStock || saved.MinStock != existing.MinStock {
		c.bus.PublishStockChanged(events.StockChangedFromProduct(*saved))
	}
	return saved, nil
}

// Delete removes a product from the catalog. Ledger rows that reference it
// keep their snapshots and stay in the books.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	if err := requireOwner(ctx); err != nil {
		return err
	}
	return c.repo.DeleteProduct(ctx, id)
}

func (c *Catalog) ToggleFavorite(ctx context.Context, id string) (*domain.Product, error) {
	existing, err := c.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.IsFavorite = !updated.IsFavorite
	return c.repo.UpdateProduct(ctx, updated)
}

func (c *Catalog) Get(ctx context.Context, id string) (*domain.Product, error) {
	return c.repo.GetProduct(ctx, id)
}

func (c *Catalog) FindByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, fmt.Errorf("%w: barcode is required", store.ErrInvalidInput)
	}
	return c.repo.GetProductByBarcode(ctx, barcode)
}

func (c *Catalog) ListAll(ctx context.Context) ([]domain.Product, error) {
	return c.repo.ListProducts(ctx)
}

func (c *Catalog) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	return c.repo.ListLowStock(ctx)
}

func (c *Catalog) ListTopSelling(ctx context.Context, limit int) ([]domain.Product, error) {
	if limit < 1 {
		limit = 5
	}
	return c.repo.ListTopSelling(ctx, limit)
}

func (c *Catalog) ListUnsold(ctx context.Context) ([]domain.Product, error) {
	return c.repo.ListUnsold(ctx)
}

// ListForSale orders the catalog for the checkout screen: favorites first,
// then best sellers, then most recently sold.
func (c *Catalog) ListForSale(ctx context.Context) ([]domain.Product, error) {
	products, err := c.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(products, func(i, j int) bool {
		a, b := products[i], products[j]
		if a.IsFavorite != b.IsFavorite {
			return a.IsFavorite
		}
		if a.SalesCount != b.SalesCount {
			return a.SalesCount > b.SalesCount
		}
		return a.LastSoldAt.After(b.LastSoldAt)
	})
	return products, nil
}

// ExportRows projects the catalog into spreadsheet rows.
func (c *Catalog) ExportRows(ctx context.Context) ([]domain.ProductImportRow, error) {
	products, err := c.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.ProductImportRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, domain.ProductImportRow{
			Name:      p.Name,
			BuyPrice:  p.BuyPrice,
			SellPrice: p.SellPrice,
			Stock:     p.CurrentStock,
			MinStock:  p.MinStock,
			Barcode:   p.Barcode,
		})
	}
	return rows, nil
}

// ImportRows merges spreadsheet rows into the catalog, matching existing
// products by case-insensitive name. Bad rows are skipped and reported, the
// rest still land. Import never writes ledger rows; it is a catalog sync,
// not a purchase.
func (c *Catalog) ImportRows(ctx context.Context, rows []domain.ProductImportRow) (domain.ImportResult, error) {
	if err := requireOwner(ctx); err != nil {
		return domain.ImportResult{}, err
	}

	var result domain.ImportResult
	for i, row := range rows {
		row.Name = strings.TrimSpace(row.Name)
		if row.Name == "" {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: missing name", i+1))
			continue
		}
		if row.SellPrice < 1 || row.Stock < 0 || row.MinStock < 0 || (row.BuyPrice != nil && *row.BuyPrice < 1) {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d (%s): invalid price or stock", i+1, row.Name))
			continue
		}

		existing, err := c.repo.FindProductByName(ctx, row.Name)
		switch {
		case err == nil:
			updated := *existing
			updated.SellPrice = row.SellPrice
			updated.BuyPrice = row.BuyPrice
			updated.CurrentStock = row.Stock
			updated.MinStock = row.MinStock
			if row.Barcode != "" {
				updated.Barcode = row.Barcode
			}
			if _, err := c.repo.UpdateProduct(ctx, updated); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("row %d (%s): %v", i+1, row.Name, err))
				continue
			}
			result.Updated++
		case errors.Is(err, store.ErrNotFound):
			product := domain.Product{
				Name:         row.Name,
				SellPrice:    row.SellPrice,
				BuyPrice:     row.BuyPrice,
				CurrentStock: row.Stock,
				MinStock:     row.MinStock,
				Barcode:      row.Barcode,
			}
			if _, err := c.repo.CreateProduct(ctx, product); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("row %d (%s): %v", i+1, row.Name, err))
				continue
			}
			result.Created++
		default:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d (%s): %v", i+1, row.Name, err))
		}
	}
	return result, nil
}
