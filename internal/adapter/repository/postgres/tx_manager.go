package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/kasa/internal/usecase"
)

// ledgerTxOptions is used for every ledger write. A close reads the carry and
// replaces it in the same transaction, so a concurrent writer must surface as
// a serialization failure that the Retrier replays.
var ledgerTxOptions = pgx.TxOptions{IsoLevel: pgx.Serializable}

type txBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// TxManager implements usecase.TransactionManager for closes, period records
// and registry replacements.
type TxManager struct {
	pool txBeginner
}

// NewTxManager creates a TxManager on pool.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return newTxManagerWithPool(pool)
}

func newTxManagerWithPool(pool txBeginner) *TxManager {
	return &TxManager{pool: pool}
}

// Begin opens a serializable ledger transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	tx, err := m.pool.BeginTx(ctx, ledgerTxOptions)
	if err != nil {
		return nil, err
	}

	return &Tx{tx: tx}, nil
}

// Tx is a ledger transaction backed by pgx.
type Tx struct {
	tx pgx.Tx
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *Tx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// pgxTx unwraps a transaction begun by TxManager. Repositories only accept
// transactions from this package.
func pgxTx(tx usecase.Transaction) pgx.Tx {
	return tx.(*Tx).tx
}
