package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"warungpos/backend/internal/cart"
	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/events"
	"warungpos/backend/internal/store"
)

// Ledger records money movements. Every committed row is immutable except
// plain expenses, which the owner may correct later.
type Ledger struct {
	repo store.Repository
	bus  *events.Bus
	now  func() time.Time
}

func NewLedger(repo store.Repository, bus *events.Bus) *Ledger {
	return &Ledger{
		repo: repo,
		bus:  bus,
		now:  time.Now,
	}
}

// Checkout commits the cart as a single sale. Stock for every line is
// decremented and one aggregate IN row is appended, all or nothing. The
// cart is cleared only after the commit succeeds, so a failed checkout
// leaves it intact for correction.
func (l *Ledger) Checkout(ctx context.Context, session *cart.Session) (*domain.CashFlow, error) {
	lines := session.CartLines()
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", store.ErrInvalidInput)
	}

	flow, err := l.repo.CommitSale(ctx, lines, l.now())
	if err != nil {
		return nil, err
	}
	session.Clear()

	l.bus.PublishLedgerCommitted(events.LedgerCommitted{
		FlowID: flow.ID,
		Type:   flow.Type,
		Amount: flow.Amount,
	})
	for _, line := range lines {
		product, err := l.repo.GetProduct(ctx, line.ProductID)
		if err != nil {
			continue
		}
		l.bus.PublishStockChanged(events.StockChangedFromProduct(*product))
	}
	return flow, nil
}

func (l *Ledger) RecordExpense(ctx context.Context, req domain.ExpenseRequest) (*domain.CashFlow, error) {
	req.Description = strings.TrimSpace(req.Description)
	if req.Amount < 1 {
		return nil, fmt.Errorf("%w: amount must be positive", store.ErrInvalidAmount)
	}
	if req.Description == "" {
		return nil, fmt.Errorf("%w: description is required", store.ErrInvalidInput)
	}

	flow, err := l.repo.InsertCashFlow(ctx, domain.CashFlow{
		Type:        domain.FlowOut,
		Amount:      req.Amount,
		Description: req.Description,
		CreatedAt:   l.now(),
	})
	if err != nil {
		return nil, err
	}

	l.bus.PublishLedgerCommitted(events.LedgerCommitted{
		FlowID: flow.ID,
		Type:   flow.Type,
		Amount: flow.Amount,
	})
	return flow, nil
}

// UpdateExpense corrects a previously recorded plain expense. Sale rows and
// stock purchases keep their committed snapshots and cannot be touched.
func (l *Ledger) UpdateExpense(ctx context.Context, id string, req domain.ExpenseRequest) (*domain.CashFlow, error) {
	if err := requireOwner(ctx); err != nil {
		return nil, err
	}

	req.Description = strings.TrimSpace(req.Description)
	if req.Amount < 1 {
		return nil, fmt.Errorf("%w: amount must be positive", store.ErrInvalidAmount)
	}
	if req.Description == "" {
		return nil, fmt.Errorf("%w: description is required", store.ErrInvalidInput)
	}

	existing, err := l.repo.GetCashFlow(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Type != domain.FlowOut || existing.IsStockPurchase() {
		return nil, fmt.Errorf("%w: only plain expenses can be edited", store.ErrInvalidInput)
	}

	updated := *existing
	updated.Amount = req.Amount
	updated.Description = req.Description

	flow, err := l.repo.UpdateCashFlow(ctx, updated)
	if err != nil {
		return nil, err
	}

	l.bus.PublishLedgerCommitted(events.LedgerCommitted{
		FlowID: flow.ID,
		Type:   flow.Type,
		Amount: flow.Amount,
	})
	return flow, nil
}

// RecordStockPurchase buys more stock for an existing product: the stock
// level goes up and a tagged OUT row lands in the books, atomically.
func (l *Ledger) RecordStockPurchase(ctx context.Context, productID string, req domain.RestockRequest) (*domain.Product, *domain.CashFlow, error) {
	if req.Quantity < 1 {
		return nil, nil, fmt.Errorf("%w: quantity must be positive", store.ErrInvalidQuantity)
	}
	if req.UnitBuyPrice < 1 {
		return nil, nil, fmt.Errorf("%w: unit buy price must be positive", store.ErrInvalidPrice)
	}

	product, flow, err := l.repo.RestockProduct(ctx, productID, req.Quantity, req.UnitBuyPrice, l.now())
	if err != nil {
		return nil, nil, err
	}

	l.bus.PublishLedgerCommitted(events.LedgerCommitted{
		FlowID: flow.ID,
		Type:   flow.Type,
		Amount: flow.Amount,
	})
	l.bus.PublishStockChanged(events.StockChangedFromProduct(*product))
	return product, flow, nil
}

// History lists ledger rows, newest first. Zero bounds mean all time.
func (l *Ledger) History(ctx context.Context, from, to time.Time) ([]domain.CashFlow, error) {
	allFrom, allTo := store.RangeAll()
	if from.IsZero() {
		from = allFrom
	}
	if to.IsZero() {
		to = allTo
	}
	return l.repo.ListCashFlowsInRange(ctx, from, to)
}

func (l *Ledger) Get(ctx context.Context, id string) (*domain.CashFlow, error) {
	return l.repo.GetCashFlow(ctx, id)
}
