package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simaogato/navfolio-backend/internal/domain"
)

// priceRepository implements domain.PriceRepository over the fund_historical_nav table
type priceRepository struct {
	db *DB
}

// NewPriceRepository creates a new NAV history repository
func NewPriceRepository(db *DB) domain.PriceRepository {
	return &priceRepository{db: db}
}

// Add inserts the NAV for point.Date, replacing any existing row for that date
func (r *priceRepository) Add(ctx context.Context, fundID string, point domain.PricePoint) error {
	query := `
		INSERT INTO fund_historical_nav (fund_id, date, nav)
		VALUES ($1, $2, $3)
		ON CONFLICT (fund_id, date) DO UPDATE SET nav = EXCLUDED.nav
	`

	_, err := r.db.ExecContext(ctx, query,
		fundID,
		domain.Day(point.Date),
		point.Price.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert NAV history entry: %w", err)
	}

	return nil
}

// PriceAt retrieves the NAV recorded exactly on date
func (r *priceRepository) PriceAt(ctx context.Context, fundID string, date time.Time) (*domain.PricePoint, error) {
	query := `
		SELECT date, nav
		FROM fund_historical_nav
		WHERE fund_id = $1 AND date = $2
	`

	var point domain.PricePoint
	var navStr string

	err := r.db.QueryRowContext(ctx, query, fundID, domain.Day(date)).Scan(
		&point.Date,
		&navStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no NAV for fund %s on %s: %w", fundID, date.Format(domain.DateFormat), domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get NAV: %w", err)
	}

	// Parse nav (DECIMAL)
	nav, err := decimal.NewFromString(navStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse nav: %w", err)
	}
	point.Date = domain.Day(point.Date)
	point.Price = nav

	return &point, nil
}

// ListSince retrieves rows dated strictly after the given date, oldest first
func (r *priceRepository) ListSince(ctx context.Context, fundID string, after time.Time) ([]domain.PricePoint, error) {
	query := `
		SELECT date, nav
		FROM fund_historical_nav
		WHERE fund_id = $1 AND date > $2
		ORDER BY date ASC
	`

	// A zero date lists everything
	var cutoff interface{} = domain.Day(after)
	if after.IsZero() {
		cutoff = "-infinity"
	}

	rows, err := r.db.QueryContext(ctx, query, fundID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query NAV history: %w", err)
	}
	defer rows.Close()

	var points []domain.PricePoint
	for rows.Next() {
		var point domain.PricePoint
		var navStr string

		if err := rows.Scan(&point.Date, &navStr); err != nil {
			return nil, fmt.Errorf("failed to scan NAV history entry: %w", err)
		}

		nav, err := decimal.NewFromString(navStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse nav: %w", err)
		}
		point.Date = domain.Day(point.Date)
		point.Price = nav

		points = append(points, point)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating NAV history: %w", err)
	}

	return points, nil
}

// LoadSeries loads the full NAV history of a fund.
// A fund without rows yields an empty series.
func (r *priceRepository) LoadSeries(ctx context.Context, fundID string) (*domain.PriceSeries, error) {
	points, err := r.ListSince(ctx, fundID, time.Time{})
	if err != nil {
		return nil, err
	}
	return domain.NewPriceSeries(fundID, points), nil
}
