package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
)

func price(v int64) *int64 { return &v }

func mustCreate(t *testing.T, s *Store, p domain.Product) *domain.Product {
	t.Helper()
	created, err := s.CreateProduct(context.Background(), p)
	if err != nil {
		t.Fatalf("CreateProduct(%s): %v", p.Name, err)
	}
	return created
}

func TestCommitSaleSingleAggregateRow(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := mustCreate(t, s, domain.Product{Name: "A", SellPrice: 5000, BuyPrice: price(3000), CurrentStock: 10})
	b := mustCreate(t, s, domain.Product{Name: "B", SellPrice: 10000, CurrentStock: 10})

	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	flow, err := s.CommitSale(ctx, []domain.CartLine{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 1},
	}, at)
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}

	if flow.Amount != 20000 {
		t.Errorf("Amount = %d, want 20000", flow.Amount)
	}
	if flow.Profit != 4000 {
		t.Errorf("Profit = %d, want 4000", flow.Profit)
	}

	flows, _ := s.ListCashFlows(ctx)
	if len(flows) != 1 {
		t.Fatalf("got %d ledger rows, want 1", len(flows))
	}

	gotA, _ := s.GetProduct(ctx, a.ID)
	if gotA.CurrentStock != 8 || gotA.SalesCount != 2 || !gotA.LastSoldAt.Equal(at) {
		t.Errorf("product A after sale = %+v", gotA)
	}
	gotB, _ := s.GetProduct(ctx, b.ID)
	if gotB.CurrentStock != 9 || gotB.SalesCount != 1 {
		t.Errorf("product B after sale = %+v", gotB)
	}
}

func TestCommitSaleInsufficientStockAbortsWholeCart(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := mustCreate(t, s, domain.Product{Name: "Plenty", SellPrice: 1000, CurrentStock: 100})
	b := mustCreate(t, s, domain.Product{Name: "Scarce", SellPrice: 2000, CurrentStock: 1})

	_, err := s.CommitSale(ctx, []domain.CartLine{
		{ProductID: a.ID, Quantity: 5},
		{ProductID: b.ID, Quantity: 3},
	}, time.Now())
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	if !strings.Contains(err.Error(), "Scarce") {
		t.Errorf("error should name the product: %v", err)
	}

	gotA, _ := s.GetProduct(ctx, a.ID)
	if gotA.CurrentStock != 100 || gotA.SalesCount != 0 {
		t.Errorf("first line must not be applied on abort: %+v", gotA)
	}
	flows, _ := s.ListCashFlows(ctx)
	if len(flows) != 0 {
		t.Errorf("no ledger row should exist after abort, got %d", len(flows))
	}
}

func TestCommitSaleRepeatedLinesShareTheStock(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := mustCreate(t, s, domain.Product{Name: "Split", SellPrice: 1000, CurrentStock: 5})

	_, err := s.CommitSale(ctx, []domain.CartLine{
		{ProductID: a.ID, Quantity: 3},
		{ProductID: a.ID, Quantity: 3},
	}, time.Now())
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}

	got, _ := s.GetProduct(ctx, a.ID)
	if got.CurrentStock != 5 || got.SalesCount != 0 {
		t.Errorf("rejected cart must leave the product untouched: %+v", got)
	}
	flows, _ := s.ListCashFlows(ctx)
	if len(flows) != 0 {
		t.Errorf("no ledger row should exist after abort, got %d", len(flows))
	}

	// The same split fits when the combined quantity does.
	flow, err := s.CommitSale(ctx, []domain.CartLine{
		{ProductID: a.ID, Quantity: 3},
		{ProductID: a.ID, Quantity: 2},
	}, time.Now())
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}
	if flow.Amount != 5000 {
		t.Errorf("Amount = %d, want 5000", flow.Amount)
	}
	got, _ = s.GetProduct(ctx, a.ID)
	if got.CurrentStock != 0 || got.SalesCount != 5 {
		t.Errorf("product after split sale = %+v", got)
	}
}

func TestCommitSaleRejectsBadQuantity(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := mustCreate(t, s, domain.Product{Name: "A", SellPrice: 1000, CurrentStock: 5})

	_, err := s.CommitSale(ctx, []domain.CartLine{{ProductID: a.ID, Quantity: 0}}, time.Now())
	if !errors.Is(err, store.ErrInvalidQuantity) {
		t.Errorf("err = %v, want ErrInvalidQuantity", err)
	}
	if _, err := s.CommitSale(ctx, nil, time.Now()); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("empty cart err = %v, want ErrInvalidInput", err)
	}
}

func TestRestockProduct(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := mustCreate(t, s, domain.Product{Name: "Sugar", SellPrice: 17000, BuyPrice: price(15000), CurrentStock: 2, MinStock: 6})

	updated, flow, err := s.RestockProduct(ctx, p.ID, 10, 15500, time.Now())
	if err != nil {
		t.Fatalf("RestockProduct: %v", err)
	}
	if updated.CurrentStock != 12 {
		t.Errorf("CurrentStock = %d, want 12", updated.CurrentStock)
	}
	if updated.BuyPrice == nil || *updated.BuyPrice != 15500 {
		t.Errorf("BuyPrice = %v, want updated to 15500", updated.BuyPrice)
	}
	if flow.Type != domain.FlowOut || flow.Amount != 155000 {
		t.Errorf("flow = %+v", flow)
	}
	if !flow.IsStockPurchase() {
		t.Error("restock row must count as stock purchase")
	}

	low, _ := s.ListLowStock(ctx)
	for _, lp := range low {
		if lp.ID == p.ID {
			t.Error("restocked product should have left the low stock list")
		}
	}
}

func TestRangeQueriesAreInclusiveBothEnds(t *testing.T) {
	ctx := context.Background()
	s := New()

	day := time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC)
	end := day.Add(24*time.Hour - time.Second)

	insert := func(at time.Time, amount int64) {
		if _, err := s.InsertCashFlow(ctx, domain.CashFlow{
			Type: domain.FlowIn, Amount: amount, Description: "sale", CreatedAt: at,
		}); err != nil {
			t.Fatalf("InsertCashFlow: %v", err)
		}
	}
	insert(day, 100)                  // exactly range start
	insert(end, 200)                  // exactly range end
	insert(end.Add(time.Second), 400) // one past the end

	total, err := s.SumAmountInRange(ctx, domain.FlowIn, day, end)
	if err != nil {
		t.Fatalf("SumAmountInRange: %v", err)
	}
	if total != 300 {
		t.Errorf("total = %d, want 300 (both boundaries included, next second excluded)", total)
	}
}

func TestBalanceIdentity(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := mustCreate(t, s, domain.Product{Name: "Item", SellPrice: 5000, BuyPrice: price(3000), CurrentStock: 50})

	if _, _, err := s.RestockProduct(ctx, p.ID, 10, 3000, time.Now()); err != nil {
		t.Fatalf("RestockProduct: %v", err)
	}
	if _, err := s.CommitSale(ctx, []domain.CartLine{{ProductID: p.ID, Quantity: 4}}, time.Now()); err != nil {
		t.Fatalf("CommitSale: %v", err)
	}
	if _, err := s.InsertCashFlow(ctx, domain.CashFlow{Type: domain.FlowOut, Amount: 7000, Description: "Electricity"}); err != nil {
		t.Fatalf("InsertCashFlow: %v", err)
	}

	from, to := store.RangeAll()
	income, _ := s.SumAmountInRange(ctx, domain.FlowIn, from, to)
	expense, _ := s.SumAmountInRange(ctx, domain.FlowOut, from, to)
	balance, _ := s.CurrentBalance(ctx)

	if balance != income-expense {
		t.Errorf("balance %d != income %d - expense %d", balance, income, expense)
	}
	if income != 20000 {
		t.Errorf("income = %d, want 20000", income)
	}
	if expense != 37000 {
		t.Errorf("expense = %d, want 37000", expense)
	}
}

func TestUpdateCashFlowOnlyPlainExpenses(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := mustCreate(t, s, domain.Product{Name: "Item", SellPrice: 5000, CurrentStock: 10})

	sale, err := s.CommitSale(ctx, []domain.CartLine{{ProductID: p.ID, Quantity: 1}}, time.Now())
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}
	sale.Amount = 1
	if _, err := s.UpdateCashFlow(ctx, *sale); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("sale row edit err = %v, want ErrInvalidInput", err)
	}

	expense, err := s.InsertCashFlow(ctx, domain.CashFlow{Type: domain.FlowOut, Amount: 5000, Description: "Rent"})
	if err != nil {
		t.Fatalf("InsertCashFlow: %v", err)
	}
	expense.Amount = 6000
	expense.Description = "Rent (corrected)"
	updated, err := s.UpdateCashFlow(ctx, *expense)
	if err != nil {
		t.Fatalf("UpdateCashFlow: %v", err)
	}
	if updated.Amount != 6000 || updated.Description != "Rent (corrected)" {
		t.Errorf("updated = %+v", updated)
	}
}

func TestListProductsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	mustCreate(t, s, domain.Product{Name: "B", SellPrice: 100, CurrentStock: 1})
	mustCreate(t, s, domain.Product{Name: "A", SellPrice: 100, CurrentStock: 1})

	first, err := s.ListProducts(ctx)
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	second, _ := s.ListProducts(ctx)

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("lengths: %d, %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("order changed between calls: %v vs %v", first[i].Name, second[i].Name)
		}
	}
	if first[0].Name != "A" {
		t.Errorf("expected name order, got %s first", first[0].Name)
	}
}

func TestLowStockIncludesOutOfStockOrderedBySales(t *testing.T) {
	ctx := context.Background()
	s := New()
	mustCreate(t, s, domain.Product{Name: "Healthy", SellPrice: 100, CurrentStock: 50, MinStock: 5})
	low := mustCreate(t, s, domain.Product{Name: "Low", SellPrice: 100, CurrentStock: 2, MinStock: 5, SalesCount: 9})
	out := mustCreate(t, s, domain.Product{Name: "Out", SellPrice: 100, CurrentStock: 0, MinStock: 5, SalesCount: 3})

	got, err := s.ListLowStock(ctx)
	if err != nil {
		t.Fatalf("ListLowStock: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d products, want 2", len(got))
	}
	if got[0].ID != low.ID || got[1].ID != out.ID {
		t.Errorf("order = [%s, %s], want best seller first", got[0].Name, got[1].Name)
	}
}

func TestFindProductByNameIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := New()
	created := mustCreate(t, s, domain.Product{Name: "Teh Botol", SellPrice: 5000, CurrentStock: 5})

	found, err := s.FindProductByName(ctx, "  teh botol ")
	if err != nil {
		t.Fatalf("FindProductByName: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("found %s, want %s", found.ID, created.ID)
	}

	if _, err := s.FindProductByName(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := mustCreate(t, s, domain.Product{Name: "Item", SellPrice: 4000, CurrentStock: 3})
	if _, err := s.CommitSale(ctx, []domain.CartLine{{ProductID: p.ID, Quantity: 1}}, time.Now()); err != nil {
		t.Fatalf("CommitSale: %v", err)
	}

	snap, err := s.ExportSnapshot(ctx)
	if err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}

	other := New()
	mustCreate(t, other, domain.Product{Name: "Stale", SellPrice: 100, CurrentStock: 1})
	if err := other.ImportSnapshot(ctx, *snap); err != nil {
		t.Fatalf("ImportSnapshot: %v", err)
	}

	products, _ := other.ListProducts(ctx)
	if len(products) != 1 || products[0].Name != "Item" {
		t.Errorf("imported products = %+v", products)
	}
	flows, _ := other.ListCashFlows(ctx)
	if len(flows) != 1 {
		t.Errorf("imported flows = %+v", flows)
	}

	if err := other.ImportSnapshot(ctx, domain.Snapshot{Version: 42}); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("bad version err = %v, want ErrInvalidInput", err)
	}
}

func TestSeededStoreHasCatalogAndUsers(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	products, err := s.ListProducts(ctx)
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(products) == 0 {
		t.Fatal("seeded store should have products")
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	roles := map[string]bool{}
	for _, u := range users {
		roles[u.Role] = true
		if !strings.HasPrefix(u.Password, "$2") {
			t.Errorf("seed password for %s is not hashed", u.Username)
		}
	}
	if !roles["owner"] || !roles["staff"] {
		t.Errorf("seeded roles = %v", roles)
	}
}
