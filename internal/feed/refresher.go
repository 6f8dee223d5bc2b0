package feed

import (
	"context"
	"time"

	"go.uber.org/zap"

	"broker-backend-go/internal/models"
)

// InstrumentLister provides the tradable instruments to refresh.
type InstrumentLister interface {
	ListStocks(ctx context.Context) ([]models.Instrument, error)
}

// MarketDataWriter stores fetched bars.
type MarketDataWriter interface {
	Upsert(ctx context.Context, md *models.MarketData) error
}

// Refresher periodically pulls the latest end-of-day bar for every stock
// instrument and upserts it into the market-data table. One failing ticker
// does not stop the rest of the cycle.
type Refresher struct {
	log         *zap.Logger
	fetcher     BarFetcher
	instruments InstrumentLister
	marketData  MarketDataWriter
	interval    time.Duration
}

// NewRefresher creates a refresher running one cycle per interval.
func NewRefresher(log *zap.Logger, fetcher BarFetcher, instruments InstrumentLister, marketData MarketDataWriter, interval time.Duration) *Refresher {
	return &Refresher{
		log:         log,
		fetcher:     fetcher,
		instruments: instruments,
		marketData:  marketData,
		interval:    interval,
	}
}

// Run refreshes once immediately, then on every tick until the context is
// cancelled.
func (r *Refresher) Run(ctx context.Context) {
	r.log.Info("Starting market-data refresher", zap.Duration("interval", r.interval))
	if err := r.RefreshOnce(ctx); err != nil {
		r.log.Error("Market-data refresh failed", zap.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("Stopping market-data refresher")
			return
		case <-ticker.C:
			if err := r.RefreshOnce(ctx); err != nil {
				r.log.Error("Market-data refresh failed", zap.Error(err))
			}
		}
	}
}

// RefreshOnce fetches and stores the latest bar for every stock instrument.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	stocks, err := r.instruments.ListStocks(ctx)
	if err != nil {
		return err
	}

	for _, instrument := range stocks {
		bar, err := r.fetcher.LatestBar(ctx, instrument.Ticker)
		if err != nil {
			r.log.Warn("Failed to fetch bar, skipping ticker",
				zap.String("ticker", instrument.Ticker), zap.Error(err))
			continue
		}
		date, err := time.Parse("2006-01-02", bar.Date)
		if err != nil {
			r.log.Warn("Provider returned unparsable date, skipping ticker",
				zap.String("ticker", instrument.Ticker),
				zap.String("date", bar.Date))
			continue
		}
		md := models.MarketData{
			InstrumentID:  instrument.ID,
			Open:          bar.Open,
			High:          bar.High,
			Low:           bar.Low,
			Close:         bar.Close,
			PreviousClose: bar.PreviousClose,
			Date:          date,
		}
		if err := r.marketData.Upsert(ctx, &md); err != nil {
			r.log.Error("Failed to store bar",
				zap.String("ticker", instrument.Ticker), zap.Error(err))
		}
	}
	return nil
}
