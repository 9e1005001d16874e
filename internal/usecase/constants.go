package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a storage transaction
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultLockTTL bounds how long a crashed close can hold the ledger lock
	DefaultLockTTL = 30 * time.Second

	// LedgerLockKey is the lock every close holds while it reads and
	// replaces the carry store
	LedgerLockKey = "ledger"

	// SettlementCacheTTL is how long closed settlements stay cached
	SettlementCacheTTL = time.Hour

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// SplitLabel stands in for the month of an ad-hoc split
	SplitLabel = "split"

	settlementCachePrefix = "settlement:"
)
