package pricesync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/simaogato/navfolio-backend/internal/domain"
	"github.com/simaogato/navfolio-backend/internal/logging"
	"github.com/simaogato/navfolio-backend/internal/usecase/windowed"
)

const (
	DefaultWorkers         = 4
	DefaultWritesPerSecond = 20
)

// Outcome is what happened to a single fund during a sync
type Outcome string

const (
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
)

// Report summarises a sync run
type Report struct {
	Processed int
	Skipped   int
	Failed    int
	Failures  map[string]string // fund id -> error message
}

// SyncService refreshes the returns cache from the relational NAV rows.
// It is the only writer of cached returns; the calculators never touch the cache.
type SyncService struct {
	FundRepo  domain.FundRepository
	PriceRepo domain.PriceRepository
	Cache     domain.ReturnsCache
	Logger    *logging.Logger
	Workers   int
	Limiter   *rate.Limiter
	Windows   []domain.ReturnWindow
}

// NewSyncService creates a new SyncService instance.
// writesPerSecond <= 0 disables cache write throttling.
func NewSyncService(
	fundRepo domain.FundRepository,
	priceRepo domain.PriceRepository,
	cache domain.ReturnsCache,
	logger *logging.Logger,
	workers int,
	writesPerSecond float64,
) *SyncService {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if writesPerSecond > 0 {
		burst := int(writesPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(writesPerSecond), burst)
	}

	return &SyncService{
		FundRepo:  fundRepo,
		PriceRepo: priceRepo,
		Cache:     cache,
		Logger:    logging.OrSilent(logger).WithComponent("pricesync"),
		Workers:   workers,
		Limiter:   limiter,
		Windows:   domain.DefaultWindows(),
	}
}

// SyncAll syncs every fund in parallel.
// A failing fund is logged and counted; it does not abort the batch.
// Only context cancellation or a failure to list funds is returned as an error.
func (s *SyncService) SyncAll(ctx context.Context) (Report, error) {
	funds, err := s.FundRepo.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list funds: %w", err)
	}

	report := Report{Failures: make(map[string]string)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)

	start := time.Now()
	s.Logger.Info().Int("funds", len(funds)).Int("workers", s.Workers).Msg("Starting NAV history sync")

	for _, fund := range funds {
		if fund == nil || fund.ID == "" {
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			outcome, err := s.SyncFund(gctx, fund)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && gctx.Err() != nil:
				return gctx.Err()
			case err != nil:
				report.Failed++
				report.Failures[fund.ID] = err.Error()
				s.Logger.Error().Err(err).Str("fund_id", fund.ID).Msg("Fund sync failed")
			case outcome == OutcomeSkipped:
				report.Skipped++
			default:
				report.Processed++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}

	s.Logger.Info().
		Int("processed", report.Processed).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("NAV history sync finished")

	return report, nil
}

// SyncFund brings one fund's cache document up to date.
// Logic:
//  1. Read the cached document (a missing document means a full load)
//  2. Fetch relational rows newer than the document's last updated date
//  3. Skip when nothing is new and a document already exists
//  4. Merge history, recompute windowed returns at the fund's latest NAV, upsert the document
func (s *SyncService) SyncFund(ctx context.Context, fund *domain.Fund) (Outcome, error) {
	doc, err := s.Cache.GetDocument(ctx, fund.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("failed to read cache document: %w", err)
	}

	var after time.Time
	var existing []domain.PricePoint
	if doc != nil {
		after = doc.LastUpdatedDate
		existing = doc.History
	}

	rows, err := s.PriceRepo.ListSince(ctx, fund.ID, after)
	if err != nil {
		return "", fmt.Errorf("failed to list NAV rows: %w", err)
	}

	if len(rows) == 0 && doc != nil {
		s.Logger.Debug().Str("fund_id", fund.ID).Msg("No new NAV rows, skipping")
		return OutcomeSkipped, nil
	}

	series := domain.NewPriceSeries(fund.ID, existing).Merge(rows)
	last, ok := series.Latest()
	if !ok {
		s.Logger.Debug().Str("fund_id", fund.ID).Msg("No NAV history, skipping")
		return OutcomeSkipped, nil
	}

	returns := map[string]decimal.NullDecimal{}
	if fund.HasLatestNAV() {
		returns = windowed.Calculate(series, fund.LatestNAV.Decimal, *fund.LatestNAVDate, s.Windows).Map()
	}

	if err := s.Limiter.Wait(ctx); err != nil {
		return "", err
	}

	if err := s.Cache.Upsert(ctx, &domain.NAVDocument{
		FundID:          fund.ID,
		LastUpdatedDate: last.Date,
		History:         series.Points(),
		Returns:         returns,
	}); err != nil {
		return "", fmt.Errorf("failed to write cache document: %w", err)
	}

	s.Logger.Debug().
		Str("fund_id", fund.ID).
		Int("new_rows", len(rows)).
		Str("last_updated", last.Date.Format(domain.DateFormat)).
		Msg("Cache document updated")

	return OutcomeUpdated, nil
}
