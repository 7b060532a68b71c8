package domain

import (
	"strings"
	"testing"
	"time"
)

func priceOf(v int64) *int64 { return &v }

func TestComposeSaleAggregatesCart(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	items := []SaleItem{
		{Product: Product{ID: "prd-a", Name: "A", SellPrice: 5000, BuyPrice: priceOf(3000)}, Quantity: 2},
		{Product: Product{ID: "prd-b", Name: "B", SellPrice: 10000}, Quantity: 1},
	}

	flow := ComposeSale(items, at)

	if flow.Type != FlowIn {
		t.Errorf("Type = %s", flow.Type)
	}
	if flow.Amount != 20000 {
		t.Errorf("Amount = %d, want 20000", flow.Amount)
	}
	// Item without a buy price contributes zero profit.
	if flow.Profit != 4000 {
		t.Errorf("Profit = %d, want 4000", flow.Profit)
	}
	if flow.ProductID != "" {
		t.Errorf("multi-line sale should not reference a single product, got %q", flow.ProductID)
	}
	if !strings.Contains(flow.Description, "A (2)") || !strings.Contains(flow.Description, "B (1)") {
		t.Errorf("Description = %q", flow.Description)
	}
	if !flow.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v", flow.CreatedAt)
	}
}

func TestComposeSaleSingleLineKeepsProductRef(t *testing.T) {
	flow := ComposeSale([]SaleItem{
		{Product: Product{ID: "prd-a", Name: "A", SellPrice: 1500}, Quantity: 3},
	}, time.Now())

	if flow.ProductID != "prd-a" {
		t.Errorf("ProductID = %q, want prd-a", flow.ProductID)
	}
	if flow.Amount != 4500 {
		t.Errorf("Amount = %d", flow.Amount)
	}
}

func TestComposeRestockTagsDescription(t *testing.T) {
	flow := ComposeRestock(Product{ID: "prd-x", Name: "Sugar"}, 10, 1200, time.Now())

	if flow.Type != FlowOut {
		t.Errorf("Type = %s", flow.Type)
	}
	if flow.Amount != 12000 {
		t.Errorf("Amount = %d", flow.Amount)
	}
	if !flow.IsStockPurchase() {
		t.Error("restock row should read as a stock purchase")
	}
}

func TestIsStockPurchase(t *testing.T) {
	cases := []struct {
		name string
		flow CashFlow
		want bool
	}{
		{"plain expense", CashFlow{Type: FlowOut, Description: "Electricity"}, false},
		{"tagged expense", CashFlow{Type: FlowOut, Description: StockPurchaseTag + " Sugar (5)"}, true},
		{"product-linked out", CashFlow{Type: FlowOut, Description: "whatever", ProductID: "prd-1"}, true},
		{"sale row", CashFlow{Type: FlowIn, Description: StockPurchaseTag + " weird", ProductID: "prd-1"}, false},
	}
	for _, tc := range cases {
		if got := tc.flow.IsStockPurchase(); got != tc.want {
			t.Errorf("%s: IsStockPurchase() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestStockState(t *testing.T) {
	cases := []struct {
		stock, min int
		want       StockState
	}{
		{0, 5, StockOut},
		{3, 5, StockLow},
		{5, 5, StockLow},
		{6, 5, StockOK},
		{0, 0, StockOut},
	}
	for _, tc := range cases {
		p := Product{CurrentStock: tc.stock, MinStock: tc.min}
		if got := p.StockState(); got != tc.want {
			t.Errorf("stock=%d min=%d: got %s, want %s", tc.stock, tc.min, got, tc.want)
		}
	}
}
