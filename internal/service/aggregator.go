package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"warungpos/backend/internal/cache"
	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
)

// Aggregator computes the report figures from the ledger. Summaries are
// cached for a short TTL under a generation counter that every commit bumps,
// so a fresh commit is never hidden behind a stale cache entry.
type Aggregator struct {
	repo       store.Repository
	cache      cache.SummaryCache
	summaryTTL time.Duration
	loc        *time.Location
}

func NewAggregator(repo store.Repository, summaryCache cache.SummaryCache, summaryTTL time.Duration, loc *time.Location) *Aggregator {
	if summaryCache == nil {
		summaryCache = cache.NoopSummaryCache{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{
		repo:       repo,
		cache:      summaryCache,
		summaryTTL: summaryTTL,
		loc:        loc,
	}
}

func (a *Aggregator) IncomeInRange(ctx context.Context, from, to time.Time) (int64, error) {
	return a.repo.SumAmountInRange(ctx, domain.FlowIn, from, to)
}

func (a *Aggregator) ExpenseInRange(ctx context.Context, from, to time.Time) (int64, error) {
	return a.repo.SumAmountInRange(ctx, domain.FlowOut, from, to)
}

// MarginInRange sums the per-sale profit snapshots taken at commit time.
func (a *Aggregator) MarginInRange(ctx context.Context, from, to time.Time) (int64, error) {
	return a.repo.SumProfitInRange(ctx, from, to)
}

func (a *Aggregator) StockPurchaseInRange(ctx context.Context, from, to time.Time) (int64, error) {
	return a.repo.SumStockPurchaseInRange(ctx, from, to)
}

func (a *Aggregator) CurrentBalance(ctx context.Context) (int64, error) {
	return a.repo.CurrentBalance(ctx)
}

// Summary computes the full report card for a range. Zero bounds mean all
// time.
func (a *Aggregator) Summary(ctx context.Context, from, to time.Time) (*domain.Summary, error) {
	allFrom, allTo := store.RangeAll()
	if from.IsZero() {
		from = allFrom
	}
	if to.IsZero() {
		to = allTo
	}

	key := a.summaryKey(ctx, from, to)
	if key != "" {
		if cached, ok, err := a.cache.Get(ctx, key); err != nil {
			log.Warn().Err(err).Msg("summary cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	income, err := a.repo.SumAmountInRange(ctx, domain.FlowIn, from, to)
	if err != nil {
		return nil, err
	}
	expense, err := a.repo.SumAmountInRange(ctx, domain.FlowOut, from, to)
	if err != nil {
		return nil, err
	}
	margin, err := a.repo.SumProfitInRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	stockPurchase, err := a.repo.SumStockPurchaseInRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	balance, err := a.repo.CurrentBalance(ctx)
	if err != nil {
		return nil, err
	}

	summary := &domain.Summary{
		Start:         from,
		End:           to,
		Income:        income,
		Expense:       expense,
		NetProfit:     income - expense,
		Margin:        margin,
		StockPurchase: stockPurchase,
		Balance:       balance,
	}

	if key != "" {
		if err := a.cache.Set(ctx, key, summary, a.summaryTTL); err != nil {
			log.Warn().Err(err).Msg("summary cache write failed")
		}
	}
	return summary, nil
}

func (a *Aggregator) summaryKey(ctx context.Context, from, to time.Time) string {
	gen, err := a.cache.Generation(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("summary cache generation read failed")
		return ""
	}
	return fmt.Sprintf("warungpos:summary:%d:%d:%d", gen, from.Unix(), to.Unix())
}

// DailySeries buckets income and expense by calendar day in the report
// timezone. Only days with at least one ledger row appear.
func (a *Aggregator) DailySeries(ctx context.Context, from, to time.Time) ([]domain.DailyPoint, error) {
	allFrom, allTo := store.RangeAll()
	if from.IsZero() {
		from = allFrom
	}
	if to.IsZero() {
		to = allTo
	}

	flows, err := a.repo.ListCashFlowsInRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*domain.DailyPoint)
	for _, flow := range flows {
		day := flow.CreatedAt.In(a.loc).Format("2006-01-02")
		point, ok := byDay[day]
		if !ok {
			point = &domain.DailyPoint{Date: day}
			byDay[day] = point
		}
		switch flow.Type {
		case domain.FlowIn:
			point.Income += flow.Amount
		case domain.FlowOut:
			point.Expense += flow.Amount
		}
	}

	series := make([]domain.DailyPoint, 0, len(byDay))
	for _, point := range byDay {
		series = append(series, *point)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })
	return series, nil
}

// CapitalReturnProgress reports how far all-time net profit has gone toward
// paying back the owner's initial capital. Progress is clamped to 0..100 and
// is zero for non-positive capital.
func (a *Aggregator) CapitalReturnProgress(ctx context.Context, initialCapital int64) (*domain.CapitalReturn, error) {
	if initialCapital < 1 {
		return &domain.CapitalReturn{InitialCapital: initialCapital}, nil
	}

	from, to := store.RangeAll()
	income, err := a.repo.SumAmountInRange(ctx, domain.FlowIn, from, to)
	if err != nil {
		return nil, err
	}
	expense, err := a.repo.SumAmountInRange(ctx, domain.FlowOut, from, to)
	if err != nil {
		return nil, err
	}

	netProfit := income - expense
	progress := float64(netProfit) / float64(initialCapital) * 100
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	remaining := initialCapital - netProfit
	if remaining < 0 {
		remaining = 0
	}

	return &domain.CapitalReturn{
		InitialCapital:       initialCapital,
		NetProfit:            netProfit,
		ProgressPercent:      progress,
		RemainingToBreakEven: remaining,
		BrokeEven:            netProfit >= initialCapital,
	}, nil
}
