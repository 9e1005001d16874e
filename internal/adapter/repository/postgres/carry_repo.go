package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/usecase"
)

const (
	listCarry = `SELECT holder_key, balance FROM carry_balances`

	deleteCarry = `DELETE FROM carry_balances`

	insertCarry = `INSERT INTO carry_balances (holder_key, balance, updated_at) VALUES ($1, $2, now())`
)

// CarryRepository implements usecase.CarryRepository.
type CarryRepository struct {
	db DBTX
}

// NewCarryRepository creates a new CarryRepository.
func NewCarryRepository(db DBTX) *CarryRepository {
	return &CarryRepository{db: db}
}

// Load returns all carried balances.
func (r *CarryRepository) Load(ctx context.Context) (domain.CarryState, error) {
	state := domain.NewCarryState()

	rows, err := r.db.Query(ctx, listCarry)
	if err != nil {
		return state, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key     string
			balance pgtype.Numeric
		)
		if err := rows.Scan(&key, &balance); err != nil {
			return domain.NewCarryState(), err
		}
		state.Balances[domain.HolderKey(key)] = numericToDecimal(balance)
	}

	return state, rows.Err()
}

// Replace overwrites the table with state.
func (r *CarryRepository) Replace(ctx context.Context, tx usecase.Transaction, state domain.CarryState) error {
	q := pgxTx(tx)

	if _, err := q.Exec(ctx, deleteCarry); err != nil {
		return err
	}

	for _, key := range state.Keys() {
		if _, err := q.Exec(ctx, insertCarry, key.String(), decimalToNumeric(state.Balances[key])); err != nil {
			return err
		}
	}

	return nil
}
