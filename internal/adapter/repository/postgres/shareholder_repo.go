package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/usecase"
)

const (
	listShareholders = `SELECT name, percent, active, created_at FROM shareholders ORDER BY position`

	deleteShareholders = `DELETE FROM shareholders`

	insertShareholder = `INSERT INTO shareholders (position, holder_key, name, percent, active, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
)

// ShareholderRepository implements usecase.ShareholderRepository.
type ShareholderRepository struct {
	db DBTX
}

// NewShareholderRepository creates a new ShareholderRepository.
func NewShareholderRepository(db DBTX) *ShareholderRepository {
	return &ShareholderRepository{db: db}
}

// List returns the registry in position order.
func (r *ShareholderRepository) List(ctx context.Context) ([]domain.Shareholder, error) {
	rows, err := r.db.Query(ctx, listShareholders)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holders []domain.Shareholder
	for rows.Next() {
		var (
			h       domain.Shareholder
			percent pgtype.Numeric
		)
		if err := rows.Scan(&h.Name, &percent, &h.Active, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.Percent = numericToDecimal(percent)
		holders = append(holders, h)
	}

	return holders, rows.Err()
}

// ReplaceAll deletes the registry and inserts holders in order.
func (r *ShareholderRepository) ReplaceAll(ctx context.Context, tx usecase.Transaction, holders []domain.Shareholder) error {
	q := pgxTx(tx)

	if _, err := q.Exec(ctx, deleteShareholders); err != nil {
		return err
	}

	for i, h := range holders {
		_, err := q.Exec(ctx, insertShareholder,
			i,
			h.Key().String(),
			h.Name,
			decimalToNumeric(h.Percent),
			h.Active,
			timeToPgTimestamptz(h.CreatedAt),
		)
		if err != nil {
			return err
		}
	}

	return nil
}
