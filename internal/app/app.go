// Package app assembles repositories and services from configuration
package app

import (
	"context"
	"fmt"

	surrealcache "github.com/simaogato/navfolio-backend/internal/adapter/cache/surrealdb"
	"github.com/simaogato/navfolio-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/navfolio-backend/internal/config"
	"github.com/simaogato/navfolio-backend/internal/domain"
	"github.com/simaogato/navfolio-backend/internal/logging"
	"github.com/simaogato/navfolio-backend/internal/usecase/capitalgains"
	"github.com/simaogato/navfolio-backend/internal/usecase/ledger"
	"github.com/simaogato/navfolio-backend/internal/usecase/portfolio"
	"github.com/simaogato/navfolio-backend/internal/usecase/priceseries"
	"github.com/simaogato/navfolio-backend/internal/usecase/pricesync"
	"github.com/simaogato/navfolio-backend/internal/usecase/seeder"
	"github.com/simaogato/navfolio-backend/internal/usecase/simulator"
)

// App holds the wired repositories and services
type App struct {
	Config *config.Config
	Logger *logging.Logger

	DB    *postgres.DB
	Cache *surrealcache.PriceCache // Nil when the cache is disabled or unreachable

	FundRepo        domain.FundRepository
	TransactionRepo domain.TransactionRepository
	PriceRepo       domain.PriceRepository
	TaxRateRepo     domain.TaxRateRepository
	Prices          domain.PriceSource

	PortfolioService    *portfolio.PortfolioService
	CapitalGainsService *capitalgains.CapitalGainsService
	SimulatorService    *simulator.SimulatorService
	LedgerService       *ledger.LedgerService
	SyncService         *pricesync.SyncService // Nil without a cache
	TaxRateSeeder       *seeder.TaxRateSeeder
}

// NewLogger builds the logger described by the logging section
func NewLogger(cfg config.LoggingConfig) *logging.Logger {
	if cfg.Format == "json" {
		return logging.NewJSON(cfg.Level)
	}
	return logging.New(cfg.Level)
}

// New connects to the stores and wires every service.
// Logic:
//  1. Connect to postgres and apply the schema
//  2. Connect to the returns cache when configured; an unreachable cache is logged and skipped
//  3. Price reads go to the cache first and fall back to the NAV history table
//  4. Build services
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*App, error) {
	logger = logging.OrSilent(logger)

	// 1. Database
	db, err := postgres.NewDB(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	a := &App{
		Config:          cfg,
		Logger:          logger,
		DB:              db,
		FundRepo:        postgres.NewFundRepository(db),
		TransactionRepo: postgres.NewTransactionRepository(db),
		PriceRepo:       postgres.NewPriceRepository(db),
		TaxRateRepo:     postgres.NewTaxRateRepository(db),
	}

	// 2. Cache
	if cfg.Cache.Enabled() {
		cache, err := surrealcache.Connect(ctx, cfg.Cache, logger)
		if err != nil {
			logger.Warn().Err(err).Str("address", cfg.Cache.Address).Msg("Returns cache unavailable, reading NAV history from postgres")
		} else {
			a.Cache = cache
		}
	}

	// 3. Price source
	var returnsCache domain.ReturnsCache
	a.Prices = a.PriceRepo
	if a.Cache != nil {
		returnsCache = a.Cache
		a.Prices = priceseries.NewFallbackSource(a.Cache, a.PriceRepo, logger)
	}

	// 4. Services
	a.PortfolioService = portfolio.NewPortfolioService(a.FundRepo, a.TransactionRepo, a.Prices, returnsCache, logger, cfg.Portfolio.MaxNAVAgeDays)
	a.CapitalGainsService = capitalgains.NewCapitalGainsService(a.FundRepo, a.TransactionRepo, a.TaxRateRepo, a.Prices)
	a.SimulatorService = simulator.NewSimulatorService(a.FundRepo, a.Prices, a.TaxRateRepo)
	a.LedgerService = ledger.NewLedgerService(a.FundRepo, a.TransactionRepo, a.Prices)
	if a.Cache != nil {
		a.SyncService = pricesync.NewSyncService(a.FundRepo, a.PriceRepo, a.Cache, logger, cfg.Sync.Workers, cfg.Sync.WritesPerSecond)
	}

	rates := make([]domain.TaxRateConfig, 0, len(cfg.Tax.SeedYears))
	for _, year := range cfg.Tax.SeedYears {
		rates = append(rates, domain.DefaultTaxRateConfig(year))
	}
	a.TaxRateSeeder = seeder.NewTaxRateSeeder(a.TaxRateRepo, rates...)

	return a, nil
}

// Close releases the database and cache connections
func (a *App) Close() {
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	_ = a.DB.Close()
}
