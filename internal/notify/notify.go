// Package notify watches stock levels and tells someone when products run
// low. Alerts fire reactively on stock changes and on a daily schedule that
// sweeps the whole catalog.
package notify

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/events"
	"warungpos/backend/internal/store"
)

// Sink receives alert messages. The default sink just logs; a Telegram or
// WhatsApp sink would slot in here.
type Sink interface {
	Notify(ctx context.Context, message string) error
}

// LogSink writes alerts to the structured log.
type LogSink struct{}

func (LogSink) Notify(_ context.Context, message string) error {
	log.Warn().Str("alert", message).Msg("stock alert")
	return nil
}

type Watcher struct {
	repo store.Repository
	sink Sink
	cron *cron.Cron
}

func NewWatcher(repo store.Repository, sink Sink) *Watcher {
	if sink == nil {
		sink = LogSink{}
	}
	return &Watcher{
		repo: repo,
		sink: sink,
		cron: cron.New(),
	}
}

// Subscribe attaches the watcher to the event bus so each committed stock
// movement that leaves a product low or out produces an immediate alert.
func (w *Watcher) Subscribe(bus *events.Bus) error {
	return bus.SubscribeStockChanged(func(ev events.StockChanged) {
		if ev.State == domain.StockOK {
			return
		}
		if err := w.sink.Notify(context.Background(), stockMessage(ev.Name, ev.Stock, ev.MinStock, ev.State)); err != nil {
			log.Error().Err(err).Str("product", ev.Name).Msg("stock alert delivery failed")
		}
	})
}

// Check sweeps the catalog once and alerts for every product at or below
// its minimum.
func (w *Watcher) Check(ctx context.Context) error {
	products, err := w.repo.ListLowStock(ctx)
	if err != nil {
		return err
	}

	for _, p := range products {
		if err := w.sink.Notify(ctx, stockMessage(p.Name, p.CurrentStock, p.MinStock, p.StockState())); err != nil {
			log.Error().Err(err).Str("product", p.Name).Msg("stock alert delivery failed")
		}
	}
	return nil
}

// StartSchedule runs Check on the given cron expression until Stop.
func (w *Watcher) StartSchedule(spec string) error {
	_, err := w.cron.AddFunc(spec, func() {
		if err := w.Check(context.Background()); err != nil {
			log.Error().Err(err).Msg("scheduled stock check failed")
		}
	})
	if err != nil {
		return fmt.Errorf("bad cron spec %q: %w", spec, err)
	}
	w.cron.Start()
	return nil
}

func (w *Watcher) Stop() {
	w.cron.Stop()
}

func stockMessage(name string, stock, minStock int, state domain.StockState) string {
	if state == domain.StockOut {
		return fmt.Sprintf("%s is out of stock", name)
	}
	return fmt.Sprintf("%s is low on stock: %d left (minimum %d)", name, stock, minStock)
}
