package usecase

import (
	"context"
	"time"

	"github.com/iho/kasa/internal/domain"
)

// ShareholderRepository defines data access for the shareholder registry.
type ShareholderRepository interface {
	// List returns every holder, active or not, in registry order.
	List(ctx context.Context) ([]domain.Shareholder, error)
	// ReplaceAll swaps the whole registry for holders, keeping their order.
	ReplaceAll(ctx context.Context, tx Transaction, holders []domain.Shareholder) error
}

// PeriodRepository defines data access for period ledger entries.
type PeriodRepository interface {
	// Get returns domain.ErrPeriodNotFound when month has no entry.
	Get(ctx context.Context, month string) (*domain.PeriodLedgerEntry, error)
	List(ctx context.Context) ([]*domain.PeriodLedgerEntry, error)
	// Save inserts or overwrites the entry for entry.Month, advances included.
	Save(ctx context.Context, tx Transaction, entry *domain.PeriodLedgerEntry) error
}

// CarryRepository defines data access for the carried balances.
type CarryRepository interface {
	// Load returns an empty state when nothing has been stored yet.
	Load(ctx context.Context) (domain.CarryState, error)
	// Replace overwrites the whole carry store; it never merges.
	Replace(ctx context.Context, tx Transaction, state domain.CarryState) error
}

// SettlementRepository defines data access for closed periods.
type SettlementRepository interface {
	// Save stores s, replacing an earlier settlement of the same month.
	Save(ctx context.Context, tx Transaction, s *domain.Settlement) error
	// GetByMonth returns domain.ErrNoSettlement when month is still open.
	GetByMonth(ctx context.Context, month string) (*domain.Settlement, error)
	// Latest returns domain.ErrNoSettlement when nothing was ever closed.
	Latest(ctx context.Context) (*domain.Settlement, error)
	// List returns every settlement in month order.
	List(ctx context.Context) ([]*domain.Settlement, error)
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	Create(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
}

// Transaction represents a storage transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Retrier re-runs an operation on transient storage errors.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// PeriodLocker serializes closes across processes.
type PeriodLocker interface {
	// Acquire returns domain.ErrPeriodLocked if name is already locked.
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, err error)
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

// SettlementRecorder receives settlement metrics.
type SettlementRecorder interface {
	SettlementClosed(result *domain.DistributionResult, duration time.Duration)
	SettlementFailed(reason string)
}
