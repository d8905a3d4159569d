package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/simaogato/navfolio-backend/internal/domain"
)

// transactionRepository implements domain.TransactionRepository
type transactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *DB) domain.TransactionRepository {
	return &transactionRepository{db: db}
}

// Create inserts the transaction and stores the assigned insertion sequence in tx.Seq
func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO fund_transactions (id, user_id, account_id, fund_id, tx_type, units, price, transacted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq
	`

	err := r.db.QueryRowContext(ctx, query,
		tx.ID,
		tx.UserID,
		tx.AccountID,
		tx.FundID,
		string(tx.Type),
		tx.Units.String(),
		tx.Price.String(),
		domain.Day(tx.TransactedAt),
	).Scan(&tx.Seq)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return nil
}

// List retrieves the matching transactions ordered by date, then insertion order
func (r *transactionRepository) List(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	where := []string{"user_id = $1"}
	args := []interface{}{filter.UserID}

	if filter.FundID != "" {
		args = append(args, filter.FundID)
		where = append(where, fmt.Sprintf("fund_id = $%d", len(args)))
	}
	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		where = append(where, fmt.Sprintf("account_id = $%d", len(args)))
	}

	query := `
		SELECT id, user_id, account_id, fund_id, tx_type, units, price, transacted_at, seq
		FROM fund_transactions
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY transacted_at ASC, seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var txType, unitsStr, priceStr string

		err := rows.Scan(
			&tx.ID,
			&tx.UserID,
			&tx.AccountID,
			&tx.FundID,
			&txType,
			&unitsStr,
			&priceStr,
			&tx.TransactedAt,
			&tx.Seq,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		tx.Type = domain.TxType(txType)
		tx.TransactedAt = domain.Day(tx.TransactedAt)

		// Parse units and price (DECIMAL)
		if tx.Units, err = decimal.NewFromString(unitsStr); err != nil {
			return nil, fmt.Errorf("failed to parse units: %w", err)
		}
		if tx.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("failed to parse price: %w", err)
		}

		txs = append(txs, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txs, nil
}
