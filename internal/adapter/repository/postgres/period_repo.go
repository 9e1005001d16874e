package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/usecase"
)

const (
	getPeriod = `SELECT month, total_cash, keep_cash FROM periods WHERE month = $1`

	listPeriods = `SELECT month, total_cash, keep_cash FROM periods ORDER BY month`

	getAdvances = `SELECT holder_key, amount FROM period_advances WHERE month = $1`

	listAdvances = `SELECT month, holder_key, amount FROM period_advances ORDER BY month, holder_key`

	upsertPeriod = `INSERT INTO periods (month, total_cash, keep_cash, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (month) DO UPDATE SET total_cash = EXCLUDED.total_cash, keep_cash = EXCLUDED.keep_cash, updated_at = now()`

	deleteAdvances = `DELETE FROM period_advances WHERE month = $1`

	insertAdvance = `INSERT INTO period_advances (month, holder_key, amount) VALUES ($1, $2, $3)`
)

// PeriodRepository implements usecase.PeriodRepository.
type PeriodRepository struct {
	db DBTX
}

// NewPeriodRepository creates a new PeriodRepository.
func NewPeriodRepository(db DBTX) *PeriodRepository {
	return &PeriodRepository{db: db}
}

// Get returns the entry of month with its advances.
func (r *PeriodRepository) Get(ctx context.Context, month string) (*domain.PeriodLedgerEntry, error) {
	var total, keep pgtype.Numeric
	entry := &domain.PeriodLedgerEntry{Advances: make(map[domain.HolderKey]decimal.Decimal)}

	err := r.db.QueryRow(ctx, getPeriod, month).Scan(&entry.Month, &total, &keep)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPeriodNotFound
	}
	if err != nil {
		return nil, err
	}
	entry.TotalCash = numericToDecimal(total)
	entry.KeepCash = numericToDecimal(keep)

	rows, err := r.db.Query(ctx, getAdvances, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key    string
			amount pgtype.Numeric
		)
		if err := rows.Scan(&key, &amount); err != nil {
			return nil, err
		}
		entry.Advances[domain.HolderKey(key)] = numericToDecimal(amount)
	}

	return entry, rows.Err()
}

// List returns every period with its advances, oldest first.
func (r *PeriodRepository) List(ctx context.Context) ([]*domain.PeriodLedgerEntry, error) {
	rows, err := r.db.Query(ctx, listPeriods)
	if err != nil {
		return nil, err
	}

	var entries []*domain.PeriodLedgerEntry
	byMonth := make(map[string]*domain.PeriodLedgerEntry)
	for rows.Next() {
		var total, keep pgtype.Numeric
		entry := &domain.PeriodLedgerEntry{Advances: make(map[domain.HolderKey]decimal.Decimal)}
		if err := rows.Scan(&entry.Month, &total, &keep); err != nil {
			rows.Close()
			return nil, err
		}
		entry.TotalCash = numericToDecimal(total)
		entry.KeepCash = numericToDecimal(keep)
		entries = append(entries, entry)
		byMonth[entry.Month] = entry
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	advances, err := r.db.Query(ctx, listAdvances)
	if err != nil {
		return nil, err
	}
	defer advances.Close()

	for advances.Next() {
		var (
			month, key string
			amount     pgtype.Numeric
		)
		if err := advances.Scan(&month, &key, &amount); err != nil {
			return nil, err
		}
		if entry, ok := byMonth[month]; ok {
			entry.Advances[domain.HolderKey(key)] = numericToDecimal(amount)
		}
	}

	return entries, advances.Err()
}

// Save upserts the period and replaces its advances.
func (r *PeriodRepository) Save(ctx context.Context, tx usecase.Transaction, entry *domain.PeriodLedgerEntry) error {
	q := pgxTx(tx)

	_, err := q.Exec(ctx, upsertPeriod, entry.Month, decimalToNumeric(entry.TotalCash), decimalToNumeric(entry.KeepCash))
	if err != nil {
		return err
	}

	if _, err := q.Exec(ctx, deleteAdvances, entry.Month); err != nil {
		return err
	}

	for _, key := range entry.AdvanceKeys() {
		if _, err := q.Exec(ctx, insertAdvance, entry.Month, key.String(), decimalToNumeric(entry.Advances[key])); err != nil {
			return err
		}
	}

	return nil
}
