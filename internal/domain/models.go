package domain

import (
	"fmt"
	"strings"
	"time"
)

// All monetary amounts are whole rupiah stored as int64.

type CashFlowType string

const (
	FlowIn  CashFlowType = "IN"
	FlowOut CashFlowType = "OUT"
)

// StockState is derived from stock levels on read, never stored.
type StockState string

const (
	StockOK  StockState = "OK"
	StockLow StockState = "LOW"
	StockOut StockState = "OUT"
)

// StockPurchaseTag prefixes the description of every restock expense row.
// Aggregation treats OUT rows carrying this tag (or a product reference)
// as stock purchases.
const StockPurchaseTag = "Restock:"

type Product struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SellPrice    int64     `json:"sell_price"`
	BuyPrice     *int64    `json:"buy_price,omitempty"`
	CurrentStock int       `json:"current_stock"`
	MinStock     int       `json:"min_stock"`
	SalesCount   int       `json:"sales_count"`
	IsFavorite   bool      `json:"is_favorite"`
	LastSoldAt   time.Time `json:"last_sold_at"`
	Barcode      string    `json:"barcode,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
}

// StockState reports OK above the minimum threshold, LOW at or below it,
// and OUT when nothing is left.
func (p Product) StockState() StockState {
	switch {
	case p.CurrentStock == 0:
		return StockOut
	case p.CurrentStock <= p.MinStock:
		return StockLow
	default:
		return StockOK
	}
}

type ProductCreateRequest struct {
	Name         string `json:"name"`
	SellPrice    int64  `json:"sell_price"`
	BuyPrice     *int64 `json:"buy_price,omitempty"`
	InitialStock int    `json:"initial_stock"`
	MinStock     int    `json:"min_stock"`
	Barcode      string `json:"barcode,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
}

type ProductUpdateRequest struct {
	Name         *string `json:"name,omitempty"`
	SellPrice    *int64  `json:"sell_price,omitempty"`
	BuyPrice     *int64  `json:"buy_price,omitempty"`
	CurrentStock *int    `json:"current_stock,omitempty"`
	MinStock     *int    `json:"min_stock,omitempty"`
	Barcode      *string `json:"barcode,omitempty"`
	ImageURL     *string `json:"image_url,omitempty"`
}

// CashFlow is an append-only ledger row. Rows are immutable after insertion
// except for the expense edit backdoor (OUT rows with no product reference).
type CashFlow struct {
	ID          string       `json:"id"`
	Type        CashFlowType `json:"type"`
	Amount      int64        `json:"amount"`
	Description string       `json:"description"`
	CreatedAt   time.Time    `json:"created_at"`
	// ProductID is a weak back-reference: the product may be deleted later
	// and the row keeps its snapshot values regardless.
	ProductID string `json:"product_id,omitempty"`
	// Profit is the margin snapshot taken at sale time. Zero for OUT rows.
	Profit int64 `json:"profit"`
}

// IsStockPurchase reports whether an OUT row records buying stock rather
// than a plain expense.
func (f CashFlow) IsStockPurchase() bool {
	if f.Type != FlowOut {
		return false
	}
	return f.ProductID != "" || strings.HasPrefix(f.Description, StockPurchaseTag)
}

// CartLine references a product by id; quantities are re-validated against
// live stock when the sale commits.
type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// SaleItem pairs a live product row with the quantity being sold. Used by
// the stores when composing the committed ledger row.
type SaleItem struct {
	Product  Product
	Quantity int
}

// ComposeSale builds the single aggregate IN row for a cart. The whole cart
// becomes one ledger row so report totals line up with what the shopkeeper
// saw at checkout. Profit terms are zero for items without a buy price, and
// the product reference is only kept for single-line sales.
func ComposeSale(items []SaleItem, at time.Time) CashFlow {
	var (
		amount int64
		profit int64
		desc   strings.Builder
	)
	desc.WriteString("Sale: ")
	for i, item := range items {
		qty := int64(item.Quantity)
		amount += item.Product.SellPrice * qty
		if item.Product.BuyPrice != nil {
			profit += (item.Product.SellPrice - *item.Product.BuyPrice) * qty
		}
		if i > 0 {
			desc.WriteString(", ")
		}
		fmt.Fprintf(&desc, "%s (%d)", item.Product.Name, item.Quantity)
	}

	productID := ""
	if len(items) == 1 {
		productID = items[0].Product.ID
	}

	return CashFlow{
		Type:        FlowIn,
		Amount:      amount,
		Description: desc.String(),
		CreatedAt:   at,
		ProductID:   productID,
		Profit:      profit,
	}
}

// ComposeRestock builds the OUT row recording a stock purchase.
func ComposeRestock(product Product, quantity int, unitBuyPrice int64, at time.Time) CashFlow {
	return CashFlow{
		Type:        FlowOut,
		Amount:      unitBuyPrice * int64(quantity),
		Description: fmt.Sprintf("%s %s (%d)", StockPurchaseTag, product.Name, quantity),
		CreatedAt:   at,
		ProductID:   product.ID,
	}
}

// ComposeInitialStock builds the OUT row recording the cost of stock a
// product was created with. Only meaningful when the product has both an
// initial stock and a buy price.
func ComposeInitialStock(product Product, at time.Time) CashFlow {
	return CashFlow{
		Type:        FlowOut,
		Amount:      *product.BuyPrice * int64(product.CurrentStock),
		Description: fmt.Sprintf("%s %s (%d)", StockPurchaseTag, product.Name, product.CurrentStock),
		CreatedAt:   at,
		ProductID:   product.ID,
	}
}

type ExpenseRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

type RestockRequest struct {
	Quantity     int   `json:"quantity"`
	UnitBuyPrice int64 `json:"unit_buy_price"`
}

type Summary struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Income  int64     `json:"income"`
	Expense int64     `json:"expense"`
	// NetProfit is income minus expense for the range. Margin is the sum of
	// per-sale profit snapshots. They measure different things and are
	// deliberately reported side by side.
	NetProfit     int64 `json:"net_profit"`
	Margin        int64 `json:"margin"`
	StockPurchase int64 `json:"stock_purchase"`
	Balance       int64 `json:"balance"`
}

type DailyPoint struct {
	Date    string `json:"date"`
	Income  int64  `json:"income"`
	Expense int64  `json:"expense"`
}

type CapitalReturn struct {
	InitialCapital       int64   `json:"initial_capital"`
	NetProfit            int64   `json:"net_profit"`
	ProgressPercent      float64 `json:"progress_percent"`
	RemainingToBreakEven int64   `json:"remaining_to_break_even"`
	BrokeEven            bool    `json:"broke_even"`
}

// LookupResult is the product shape returned by the external barcode
// database. Every field besides Found may be empty; no price data is ever
// returned.
type LookupResult struct {
	Found    bool   `json:"found"`
	Barcode  string `json:"barcode"`
	Name     string `json:"name,omitempty"`
	Brand    string `json:"brand,omitempty"`
	Category string `json:"category,omitempty"`
	Quantity string `json:"quantity,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// ProductImportRow is the spreadsheet projection of a product. Export writes
// it; import maps it back onto the catalog by case-insensitive name match.
type ProductImportRow struct {
	Name      string
	BuyPrice  *int64
	SellPrice int64
	Stock     int
	MinStock  int
	Barcode   string
}

type ImportResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// Snapshot is the full-store backup payload. Restore wipes both tables and
// reinserts every row, so snapshots must be treated as opaque and complete.
type Snapshot struct {
	Version   int        `json:"version"`
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	Products  []Product  `json:"products"`
	CashFlows []CashFlow `json:"cash_flows"`
}

const SnapshotVersion = 1

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
