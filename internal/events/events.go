// Package events carries post-commit notifications out of the ledger core.
// Catalog and Ledger publish after a successful commit; subscribers (the
// stock notifier, the summary cache invalidation) never run inside a commit.
package events

import (
	"github.com/asaskevich/EventBus"

	"warungpos/backend/internal/domain"
)

const (
	topicStockChanged    = "stock.changed"
	topicLedgerCommitted = "ledger.committed"
)

// StockChanged is published after any committed mutation that moved a
// product's stock level.
type StockChanged struct {
	ProductID string
	Name      string
	Stock     int
	MinStock  int
	State     domain.StockState
}

// LedgerCommitted is published after a cash-flow row is appended.
type LedgerCommitted struct {
	FlowID string
	Type   domain.CashFlowType
	Amount int64
}

type Bus struct {
	bus EventBus.Bus
}

func New() *Bus {
	return &Bus{bus: EventBus.New()}
}

func (b *Bus) PublishStockChanged(ev StockChanged) {
	b.bus.Publish(topicStockChanged, ev)
}

func (b *Bus) PublishLedgerCommitted(ev LedgerCommitted) {
	b.bus.Publish(topicLedgerCommitted, ev)
}

func (b *Bus) SubscribeStockChanged(fn func(StockChanged)) error {
	return b.bus.SubscribeAsync(topicStockChanged, fn, false)
}

func (b *Bus) SubscribeLedgerCommitted(fn func(LedgerCommitted)) error {
	return b.bus.SubscribeAsync(topicLedgerCommitted, fn, false)
}

// Wait blocks until all in-flight async subscriber callbacks finish. Used
// by tests and during shutdown.
func (b *Bus) Wait() {
	b.bus.WaitAsync()
}

// StockChangedFromProduct builds the event payload for a product's current
// state.
func StockChangedFromProduct(p domain.Product) StockChanged {
	return StockChanged{
		ProductID: p.ID,
		Name:      p.Name,
		Stock:     p.CurrentStock,
		MinStock:  p.MinStock,
		State:     p.StockState(),
	}
}
