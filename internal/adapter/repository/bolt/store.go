// Package bolt stores the books in a single bbolt file for deployments
// without PostgreSQL.
package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iho/kasa/internal/usecase"
)

var (
	bucketShareholders = []byte("shareholders")
	bucketPeriods      = []byte("periods")
	bucketCarry        = []byte("carry")
	bucketSettlements  = []byte("settlements")
	bucketAudit        = []byte("audit_logs")
	bucketOutbox       = []byte("outbox_events")

	registryKey = []byte("registry")
	carryKey    = []byte("state")
)

// ErrTxClosed is returned when a committed or rolled back Tx is reused.
var ErrTxClosed = errors.New("bolt: transaction closed")

// Store wraps a bbolt database holding every repository.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database at path. The parent directory is created
// if it does not exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("bolt: create directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: open db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketShareholders, bucketPeriods, bucketCarry, bucketSettlements, bucketAudit, bucketOutbox} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("bolt: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Ping reports whether the database is open.
func (s *Store) Ping(context.Context) error {
	return s.db.View(func(*bbolt.Tx) error { return nil })
}

// TxManager implements usecase.TransactionManager.
func (s *Store) TxManager() *TxManager { return &TxManager{db: s.db} }

// Shareholders returns the shareholder repository.
func (s *Store) Shareholders() *ShareholderRepository { return &ShareholderRepository{db: s.db} }

// Periods returns the period repository.
func (s *Store) Periods() *PeriodRepository { return &PeriodRepository{db: s.db} }

// Carry returns the carry repository.
func (s *Store) Carry() *CarryRepository { return &CarryRepository{db: s.db} }

// Settlements returns the settlement repository.
func (s *Store) Settlements() *SettlementRepository { return &SettlementRepository{db: s.db} }

// Audit returns the audit log repository.
func (s *Store) Audit() *AuditRepository { return &AuditRepository{db: s.db} }

// Outbox returns the outbox repository.
func (s *Store) Outbox() *OutboxRepository { return &OutboxRepository{db: s.db} }

// TxManager starts writable bbolt transactions. bbolt allows a single writer,
// so Begin blocks while another write is in progress.
type TxManager struct {
	db *bbolt.DB
}

// Begin starts a new writable transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := m.db.Begin(true)
	if err != nil {
		return nil, fmt.Errorf("bolt: begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx wraps a writable bbolt transaction.
type Tx struct {
	tx   *bbolt.Tx
	done bool
}

// Commit commits the transaction.
func (t *Tx) Commit(context.Context) error {
	if t.done {
		return ErrTxClosed
	}
	t.done = true
	return t.tx.Commit()
}

// Rollback discards the transaction. It is a no-op after Commit.
func (t *Tx) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

func boltTx(tx usecase.Transaction) (*bbolt.Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t.done {
		return nil, ErrTxClosed
	}
	return t.tx, nil
}

func put(tx usecase.Transaction, bucket, key []byte, v any) error {
	btx, err := boltTx(tx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("bolt: encode %s: %w", bucket, err)
	}
	if err := btx.Bucket(bucket).Put(key, data); err != nil {
		return fmt.Errorf("bolt: put %s: %w", bucket, err)
	}
	return nil
}

// get decodes the value at key into v and reports whether it was present.
func get(db *bbolt.DB, bucket, key []byte, v any) (bool, error) {
	found := false
	err := db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucket).Get(key)
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, v)
	})
	if err != nil {
		return false, fmt.Errorf("bolt: decode %s: %w", bucket, err)
	}
	return found, nil
}
