package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.etcd.io/bbolt"

	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/usecase"
)

// ShareholderRepository stores the registry as one ordered record.
type ShareholderRepository struct {
	db *bbolt.DB
}

// List returns the registry in order.
func (r *ShareholderRepository) List(context.Context) ([]domain.Shareholder, error) {
	var holders []domain.Shareholder
	if _, err := get(r.db, bucketShareholders, registryKey, &holders); err != nil {
		return nil, err
	}
	return holders, nil
}

// ReplaceAll overwrites the registry.
func (r *ShareholderRepository) ReplaceAll(_ context.Context, tx usecase.Transaction, holders []domain.Shareholder) error {
	return put(tx, bucketShareholders, registryKey, holders)
}

// PeriodRepository stores one record per month.
type PeriodRepository struct {
	db *bbolt.DB
}

// Get returns the entry of month.
func (r *PeriodRepository) Get(_ context.Context, month string) (*domain.PeriodLedgerEntry, error) {
	var entry domain.PeriodLedgerEntry
	found, err := get(r.db, bucketPeriods, []byte(month), &entry)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrPeriodNotFound
	}
	if entry.Advances == nil {
		entry.Advances = make(map[domain.HolderKey]decimal.Decimal)
	}
	return &entry, nil
}

// List returns every period in month order.
func (r *PeriodRepository) List(context.Context) ([]*domain.PeriodLedgerEntry, error) {
	var entries []*domain.PeriodLedgerEntry
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPeriods).ForEach(func(_, v []byte) error {
			var entry domain.PeriodLedgerEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, &entry)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: list periods: %w", err)
	}
	return entries, nil
}

// Save overwrites the entry of entry.Month.
func (r *PeriodRepository) Save(_ context.Context, tx usecase.Transaction, entry *domain.PeriodLedgerEntry) error {
	return put(tx, bucketPeriods, []byte(entry.Month), entry)
}

// CarryRepository stores the carry state as one record.
type CarryRepository struct {
	db *bbolt.DB
}

// Load returns the stored carry, or an empty state.
func (r *CarryRepository) Load(context.Context) (domain.CarryState, error) {
	state := domain.NewCarryState()
	if _, err := get(r.db, bucketCarry, carryKey, &state.Balances); err != nil {
		return domain.NewCarryState(), err
	}
	if state.Balances == nil {
		state.Balances = make(map[domain.HolderKey]decimal.Decimal)
	}
	return state, nil
}

// Replace overwrites the carry state.
func (r *CarryRepository) Replace(_ context.Context, tx usecase.Transaction, state domain.CarryState) error {
	return put(tx, bucketCarry, carryKey, state.Balances)
}

// SettlementRepository stores settlements keyed by month. Month keys sort
// chronologically, so the last key is the latest close.
type SettlementRepository struct {
	db *bbolt.DB
}

// Save stores s, replacing any earlier settlement of the month.
func (r *SettlementRepository) Save(_ context.Context, tx usecase.Transaction, s *domain.Settlement) error {
	return put(tx, bucketSettlements, []byte(s.Month), s)
}

// GetByMonth returns the settlement of month.
func (r *SettlementRepository) GetByMonth(_ context.Context, month string) (*domain.Settlement, error) {
	var s domain.Settlement
	found, err := get(r.db, bucketSettlements, []byte(month), &s)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrNoSettlement
	}
	return &s, nil
}

// Latest returns the settlement with the greatest month.
func (r *SettlementRepository) Latest(context.Context) (*domain.Settlement, error) {
	var s domain.Settlement
	err := r.db.View(func(tx *bbolt.Tx) error {
		_, v := tx.Bucket(bucketSettlements).Cursor().Last()
		if v == nil {
			return domain.ErrNoSettlement
		}
		return json.Unmarshal(v, &s)
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns every settlement in month order.
func (r *SettlementRepository) List(context.Context) ([]*domain.Settlement, error) {
	var settlements []*domain.Settlement
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettlements).ForEach(func(_, v []byte) error {
			var s domain.Settlement
			if err := json.Unmarshal(v, &s); err != nil {
				return err
			}
			settlements = append(settlements, &s)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: list settlements: %w", err)
	}
	return settlements, nil
}

// AuditRepository stores audit logs keyed by their time-ordered ID.
type AuditRepository struct {
	db *bbolt.DB
}

// Create stores log within tx.
func (r *AuditRepository) Create(_ context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	return put(tx, bucketAudit, []byte(log.ID), log)
}

// List returns matching logs, newest first.
func (r *AuditRepository) List(_ context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	var logs []*domain.AuditLog
	err := r.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketAudit).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var log domain.AuditLog
			if err := json.Unmarshal(v, &log); err != nil {
				return err
			}
			if !matches(&log, filter) {
				continue
			}
			logs = append(logs, &log)
			if filter.Limit > 0 && len(logs) >= filter.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: list audit logs: %w", err)
	}
	return logs, nil
}

func matches(log *domain.AuditLog, f domain.AuditFilter) bool {
	return (f.Action == "" || log.Action == f.Action) &&
		(f.ResourceType == "" || log.ResourceType == f.ResourceType) &&
		(f.ResourceID == "" || log.ResourceID == f.ResourceID)
}

// OutboxRepository stores outbox events keyed by their time-ordered ID.
type OutboxRepository struct {
	db *bbolt.DB
}

// Create stores event within tx.
func (r *OutboxRepository) Create(_ context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	return put(tx, bucketOutbox, []byte(event.ID), event)
}

// GetUnpublished returns up to limit unpublished events, oldest first.
func (r *OutboxRepository) GetUnpublished(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	var events []*domain.OutboxEvent
	err := r.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketOutbox).Cursor()
		for k, v := c.First(); k != nil && len(events) < limit; k, v = c.Next() {
			var event domain.OutboxEvent
			if err := json.Unmarshal(v, &event); err != nil {
				return err
			}
			if !event.Published {
				events = append(events, &event)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: list outbox: %w", err)
	}
	return events, nil
}

// MarkPublished flags the event as published.
func (r *OutboxRepository) MarkPublished(_ context.Context, id string, publishedAt time.Time) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketOutbox)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("bolt: outbox event %s not found", id)
		}

		var event domain.OutboxEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return err
		}
		event.Published = true
		event.PublishedAt = &publishedAt

		updated, err := json.Marshal(&event)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), updated)
	})
}
