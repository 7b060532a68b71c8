package events

import (
	"sync"
	"testing"

	"warungpos/backend/internal/domain"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := New()

	var mu sync.Mutex
	var stock []StockChanged
	var ledger []LedgerCommitted

	if err := bus.SubscribeStockChanged(func(ev StockChanged) {
		mu.Lock()
		stock = append(stock, ev)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("subscribe stock: %v", err)
	}
	if err := bus.SubscribeLedgerCommitted(func(ev LedgerCommitted) {
		mu.Lock()
		ledger = append(ledger, ev)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("subscribe ledger: %v", err)
	}

	bus.PublishStockChanged(StockChanged{ProductID: "prd-1", Stock: 2, MinStock: 5, State: domain.StockLow})
	bus.PublishLedgerCommitted(LedgerCommitted{FlowID: "cf-1", Type: domain.FlowIn, Amount: 12000})
	bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(stock) != 1 || stock[0].ProductID != "prd-1" {
		t.Fatalf("stock events = %+v, want one for prd-1", stock)
	}
	if len(ledger) != 1 || ledger[0].Amount != 12000 {
		t.Fatalf("ledger events = %+v, want one of amount 12000", ledger)
	}
}

func TestStockChangedFromProduct(t *testing.T) {
	buy := int64(800)
	ev := StockChangedFromProduct(domain.Product{
		ID:           "prd-9",
		Name:         "Teh Botol",
		BuyPrice:     &buy,
		CurrentStock: 0,
		MinStock:     3,
	})
	if ev.State != domain.StockOut {
		t.Errorf("state = %q, want %q", ev.State, domain.StockOut)
	}
	if ev.Name != "Teh Botol" || ev.MinStock != 3 {
		t.Errorf("unexpected payload %+v", ev)
	}
}
