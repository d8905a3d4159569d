// Package surrealdb stores per-fund NAV history and precomputed returns as SurrealDB documents
package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/simaogato/navfolio-backend/internal/config"
	"github.com/simaogato/navfolio-backend/internal/domain"
	"github.com/simaogato/navfolio-backend/internal/logging"
)

const (
	navTable      = "nav_history"
	upsertRetries = 3
)

// navRecord is the SurrealDB record shape for the nav_history table.
// Decimals are stored as strings; a nil return means the window could not be computed.
type navRecord struct {
	FundID          string             `json:"fund_id"`
	LastUpdatedDate string             `json:"last_updated_date"`
	History         []navPoint         `json:"history"`
	Returns         map[string]*string `json:"returns"`
}

type navPoint struct {
	Date string `json:"date"`
	NAV  string `json:"nav"`
}

// returnsRecord selects only the returns of a document
type returnsRecord struct {
	Returns map[string]*string `json:"returns"`
}

// PriceCache implements domain.ReturnsCache using SurrealDB
type PriceCache struct {
	db     *surrealdb.DB
	logger *logging.Logger
}

// NewPriceCache wraps an open SurrealDB connection
func NewPriceCache(db *surrealdb.DB, logger *logging.Logger) *PriceCache {
	return &PriceCache{db: db, logger: logging.OrSilent(logger).WithComponent("price_cache")}
}

// Connect opens a SurrealDB connection, signs in, selects the namespace and
// makes sure the nav_history table exists.
func Connect(ctx context.Context, cfg config.CacheConfig, logger *logging.Logger) (*PriceCache, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.GetTimeout())
	defer cancel()

	db, err := surrealdb.New(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w: %w", domain.ErrCacheUnavailable, err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": cfg.Username,
		"pass": cfg.Password,
	}); err != nil {
		db.Close(context.Background())
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w: %w", domain.ErrCacheUnavailable, err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		db.Close(context.Background())
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", navTable)
	if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
		db.Close(context.Background())
		return nil, fmt.Errorf("failed to define table %s: %w", navTable, err)
	}

	cache := NewPriceCache(db, logger)
	cache.logger.Info().
		Str("address", cfg.Address).
		Str("namespace", cfg.Namespace).
		Str("database", cfg.Database).
		Msg("SurrealDB price cache initialized")

	return cache, nil
}

// Close closes the underlying connection
func (c *PriceCache) Close() error {
	c.db.Close(context.Background())
	return nil
}

// fundRecordID converts a fund id to a safe record ID
func fundRecordID(fundID string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(navTable, strings.NewReplacer(".", "_", "/", "_").Replace(fundID))
}

// GetDocument retrieves the cached document of a fund
func (c *PriceCache) GetDocument(ctx context.Context, fundID string) (*domain.NAVDocument, error) {
	rec, err := surrealdb.Select[navRecord](ctx, c.db, fundRecordID(fundID))
	if err != nil {
		return nil, fmt.Errorf("failed to select NAV document %s: %w: %w", fundID, domain.ErrCacheUnavailable, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("NAV document %s: %w", fundID, domain.ErrNotFound)
	}
	return fromRecord(fundID, rec)
}

// GetReturns retrieves only the precomputed returns of a fund
func (c *PriceCache) GetReturns(ctx context.Context, fundID string) (map[string]decimal.NullDecimal, error) {
	sql := "SELECT returns FROM $rid"
	vars := map[string]any{"rid": fundRecordID(fundID)}

	results, err := surrealdb.Query[[]returnsRecord](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query returns of %s: %w: %w", fundID, domain.ErrCacheUnavailable, err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("returns of %s: %w", fundID, domain.ErrNotFound)
	}

	return decodeReturns((*results)[0].Result[0].Returns)
}

// LoadSeries returns the cached history of a fund.
// A missing document is reported as ErrNotFound so a fallback source can take over.
func (c *PriceCache) LoadSeries(ctx context.Context, fundID string) (*domain.PriceSeries, error) {
	doc, err := c.GetDocument(ctx, fundID)
	if err != nil {
		return nil, err
	}
	return domain.NewPriceSeries(fundID, doc.History), nil
}

// Upsert writes the whole document, retrying transient failures
func (c *PriceCache) Upsert(ctx context.Context, doc *domain.NAVDocument) error {
	sql := "UPSERT $rid CONTENT $doc"
	vars := map[string]any{"rid": fundRecordID(doc.FundID), "doc": toRecord(doc)}

	var lastErr error
	for attempt := 1; attempt <= upsertRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := surrealdb.Query[[]navRecord](ctx, c.db, sql, vars)
		if err == nil {
			c.logger.Debug().
				Str("fund_id", doc.FundID).
				Int("points", len(doc.History)).
				Int("attempt", attempt).
				Msg("NAV document upserted")
			return nil
		}
		lastErr = err
		c.logger.Warn().Err(err).Str("fund_id", doc.FundID).Int("attempt", attempt).Msg("NAV document upsert failed")
	}
	return fmt.Errorf("failed to upsert NAV document %s after retries: %w: %w", doc.FundID, domain.ErrCacheUnavailable, lastErr)
}

func toRecord(doc *domain.NAVDocument) navRecord {
	rec := navRecord{
		FundID:          doc.FundID,
		LastUpdatedDate: doc.LastUpdatedDate.Format(domain.DateFormat),
		History:         make([]navPoint, 0, len(doc.History)),
		Returns:         make(map[string]*string, len(doc.Returns)),
	}
	for _, p := range doc.History {
		rec.History = append(rec.History, navPoint{Date: p.Date.Format(domain.DateFormat), NAV: p.Price.String()})
	}
	for key, v := range doc.Returns {
		if !v.Valid {
			rec.Returns[key] = nil
			continue
		}
		s := v.Decimal.String()
		rec.Returns[key] = &s
	}
	return rec
}

func fromRecord(fundID string, rec *navRecord) (*domain.NAVDocument, error) {
	doc := &domain.NAVDocument{
		FundID:  fundID,
		History: make([]domain.PricePoint, 0, len(rec.History)),
	}

	if rec.LastUpdatedDate != "" {
		d, err := time.Parse(domain.DateFormat, rec.LastUpdatedDate)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last_updated_date of %s: %w", fundID, err)
		}
		doc.LastUpdatedDate = d
	}

	for _, p := range rec.History {
		d, err := time.Parse(domain.DateFormat, p.Date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse history date of %s: %w", fundID, err)
		}
		nav, err := decimal.NewFromString(p.NAV)
		if err != nil {
			return nil, fmt.Errorf("failed to parse history nav of %s: %w", fundID, err)
		}
		doc.History = append(doc.History, domain.PricePoint{Date: d, Price: nav})
	}

	returns, err := decodeReturns(rec.Returns)
	if err != nil {
		return nil, fmt.Errorf("failed to decode returns of %s: %w", fundID, err)
	}
	doc.Returns = returns

	return doc, nil
}

func decodeReturns(raw map[string]*string) (map[string]decimal.NullDecimal, error) {
	out := make(map[string]decimal.NullDecimal, len(raw))
	for key, v := range raw {
		if v == nil {
			out[key] = decimal.NullDecimal{}
			continue
		}
		d, err := decimal.NewFromString(*v)
		if err != nil {
			return nil, fmt.Errorf("return %s: %w", key, err)
		}
		out[key] = decimal.NewNullDecimal(d)
	}
	return out, nil
}

// Compile-time check
var _ domain.ReturnsCache = (*PriceCache)(nil)
