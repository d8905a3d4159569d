package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/simaogato/navfolio-backend/internal/domain"
)

// fundRepository implements domain.FundRepository
type fundRepository struct {
	db *DB
}

// NewFundRepository creates a new fund repository
func NewFundRepository(db *DB) domain.FundRepository {
	return &fundRepository{db: db}
}

const fundColumns = `id, name, fund_type, category, latest_nav, latest_nav_date`

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFund(row rowScanner) (*domain.Fund, error) {
	var fund domain.Fund
	var navStr sql.NullString
	var navDate sql.NullTime

	if err := row.Scan(
		&fund.ID,
		&fund.Name,
		&fund.Type,
		&fund.Category,
		&navStr,
		&navDate,
	); err != nil {
		return nil, err
	}

	// Parse latest_nav (nullable DECIMAL)
	if navStr.Valid {
		nav, err := decimal.NewFromString(navStr.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse latest_nav: %w", err)
		}
		fund.LatestNAV = decimal.NewNullDecimal(nav)
	}

	if navDate.Valid {
		d := domain.Day(navDate.Time)
		fund.LatestNAVDate = &d
	}

	return &fund, nil
}

// GetByID retrieves a fund by its ISIN
func (r *fundRepository) GetByID(ctx context.Context, id string) (*domain.Fund, error) {
	query := `SELECT ` + fundColumns + ` FROM funds WHERE id = $1`

	fund, err := scanFund(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("fund %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get fund by ID: %w", err)
	}

	return fund, nil
}

// List retrieves all funds ordered by ISIN
func (r *fundRepository) List(ctx context.Context) ([]*domain.Fund, error) {
	query := `SELECT ` + fundColumns + ` FROM funds ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query funds: %w", err)
	}
	defer rows.Close()

	var funds []*domain.Fund
	for rows.Next() {
		fund, err := scanFund(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fund: %w", err)
		}
		funds = append(funds, fund)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating funds: %w", err)
	}

	return funds, nil
}
