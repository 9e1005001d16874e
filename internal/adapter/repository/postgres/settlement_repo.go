package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/usecase"
)

const (
	settlementColumns = `id, month, result, new_carry, closed_at, closed_by`

	getSettlement = `SELECT ` + settlementColumns + ` FROM settlements WHERE month = $1`

	latestSettlement = `SELECT ` + settlementColumns + ` FROM settlements ORDER BY month DESC LIMIT 1`

	listSettlements = `SELECT ` + settlementColumns + ` FROM settlements ORDER BY month`

	upsertSettlement = `INSERT INTO settlements (` + settlementColumns + `)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (month) DO UPDATE SET id = EXCLUDED.id, result = EXCLUDED.result,
	new_carry = EXCLUDED.new_carry, closed_at = EXCLUDED.closed_at, closed_by = EXCLUDED.closed_by`
)

// SettlementRepository implements usecase.SettlementRepository. Results are
// stored as JSONB so the printed table can be reproduced exactly.
type SettlementRepository struct {
	db DBTX
}

// NewSettlementRepository creates a new SettlementRepository.
func NewSettlementRepository(db DBTX) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// Save upserts the settlement of s.Month.
func (r *SettlementRepository) Save(ctx context.Context, tx usecase.Transaction, s *domain.Settlement) error {
	result, err := json.Marshal(s.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	carry, err := json.Marshal(s.NewCarry.Balances)
	if err != nil {
		return fmt.Errorf("failed to encode carry: %w", err)
	}

	_, err = pgxTx(tx).Exec(ctx, upsertSettlement,
		s.ID,
		s.Month,
		result,
		carry,
		timeToPgTimestamptz(s.ClosedAt),
		s.ClosedBy,
	)
	return err
}

// GetByMonth returns the settlement of month.
func (r *SettlementRepository) GetByMonth(ctx context.Context, month string) (*domain.Settlement, error) {
	return r.scan(r.db.QueryRow(ctx, getSettlement, month))
}

// Latest returns the settlement with the greatest month.
func (r *SettlementRepository) Latest(ctx context.Context) (*domain.Settlement, error) {
	return r.scan(r.db.QueryRow(ctx, latestSettlement))
}

// List returns every settlement in month order.
func (r *SettlementRepository) List(ctx context.Context) ([]*domain.Settlement, error) {
	rows, err := r.db.Query(ctx, listSettlements)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settlements []*domain.Settlement
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		settlements = append(settlements, s)
	}
	return settlements, rows.Err()
}

func (r *SettlementRepository) scan(row pgx.Row) (*domain.Settlement, error) {
	var (
		s             domain.Settlement
		result, carry []byte
	)

	err := row.Scan(&s.ID, &s.Month, &result, &carry, &s.ClosedAt, &s.ClosedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoSettlement
	}
	if err != nil {
		return nil, err
	}

	s.Result = &domain.DistributionResult{}
	if err := json.Unmarshal(result, s.Result); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}

	s.NewCarry = domain.NewCarryState()
	var balances map[domain.HolderKey]decimal.Decimal
	if err := json.Unmarshal(carry, &balances); err != nil {
		return nil, fmt.Errorf("failed to decode carry: %w", err)
	}
	for k, v := range balances {
		s.NewCarry.Balances[k] = v
	}

	return &s, nil
}
