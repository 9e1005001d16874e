package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/kasa/internal/domain"
)

// PeriodUseCase records the cash pool and advances of a period.
type PeriodUseCase struct {
	txManager      TransactionManager
	periodRepo     PeriodRepository
	settlementRepo SettlementRepository
	auditRepo      AuditRepository
	outboxRepo     OutboxRepository
	idGen          IDGenerator
	logger         zerolog.Logger
}

// NewPeriodUseCase creates a new PeriodUseCase. auditRepo and outboxRepo may
// be nil.
func NewPeriodUseCase(
	txManager TransactionManager,
	periodRepo PeriodRepository,
	settlementRepo SettlementRepository,
	auditRepo AuditRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	logger zerolog.Logger,
) *PeriodUseCase {
	return &PeriodUseCase{
		txManager:      txManager,
		periodRepo:     periodRepo,
		settlementRepo: settlementRepo,
		auditRepo:      auditRepo,
		outboxRepo:     outboxRepo,
		idGen:          idGen,
		logger:         logger,
	}
}

// RecordPeriodInput represents input for recording a period.
type RecordPeriodInput struct {
	Month     string
	TotalCash decimal.Decimal
	KeepCash  decimal.Decimal
	// Advances is keyed by display name; names are normalized on the way in.
	Advances  map[string]decimal.Decimal
	Actor     string
	RequestID string
}

// Record stores or overwrites the entry of an open period.
func (uc *PeriodUseCase) Record(ctx context.Context, input RecordPeriodInput) (*domain.PeriodLedgerEntry, error) {
	entry := &domain.PeriodLedgerEntry{
		Month:     input.Month,
		TotalCash: input.TotalCash,
		KeepCash:  input.KeepCash,
		Advances:  make(map[domain.HolderKey]decimal.Decimal, len(input.Advances)),
	}
	for name, amount := range input.Advances {
		key := domain.KeyOf(name)
		if key == "" {
			return nil, fmt.Errorf("%w: advance without a name", domain.ErrInvalidHolder)
		}
		if _, dup := entry.Advances[key]; dup {
			return nil, fmt.Errorf("%w: advance for %s given twice", domain.ErrDuplicateHolder, name)
		}
		entry.Advances[key] = amount
	}

	if err := domain.ValidatePeriod(entry); err != nil {
		return nil, err
	}

	_, err := uc.settlementRepo.GetByMonth(ctx, entry.Month)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", domain.ErrPeriodAlreadyClosed, entry.Month)
	case !errors.Is(err, domain.ErrNoSettlement):
		return nil, err
	}

	before, err := uc.periodRepo.Get(ctx, entry.Month)
	if err != nil && !errors.Is(err, domain.ErrPeriodNotFound) {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := uc.periodRepo.Save(ctx, tx, entry); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if uc.auditRepo != nil {
		err := uc.auditRepo.Create(ctx, tx, &domain.AuditLog{
			ID:           uc.idGen.Generate(),
			UserID:       input.Actor,
			Action:       string(domain.AuditActionPeriodRecord),
			ResourceType: domain.AggregateTypePeriod,
			ResourceID:   entry.Month,
			RequestID:    input.RequestID,
			BeforeState:  periodSnapshot(before),
			AfterState:   periodSnapshot(entry),
			Status:       string(domain.AuditStatusSuccess),
			CreatedAt:    now,
		})
		if err != nil {
			return nil, err
		}
	}

	if uc.outboxRepo != nil {
		err := uc.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   entry.Month,
			AggregateType: domain.AggregateTypePeriod,
			EventType:     domain.EventTypePeriodRecorded,
			Payload:       periodSnapshot(entry),
			CreatedAt:     now,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	uc.logger.Info().
		Str("month", entry.Month).
		Str("distributable", entry.Distributable().StringFixed(domain.CurrencyPlaces)).
		Int("advances", len(entry.Advances)).
		Msg("period recorded")

	return entry, nil
}

// Get returns the entry of month.
func (uc *PeriodUseCase) Get(ctx context.Context, month string) (*domain.PeriodLedgerEntry, error) {
	if err := domain.ValidateMonth(month); err != nil {
		return nil, err
	}
	return uc.periodRepo.Get(ctx, month)
}

// List returns all recorded periods, oldest first.
func (uc *PeriodUseCase) List(ctx context.Context) ([]*domain.PeriodLedgerEntry, error) {
	return uc.periodRepo.List(ctx)
}

func periodSnapshot(entry *domain.PeriodLedgerEntry) domain.JSON {
	if entry == nil {
		return nil
	}
	advances := make(map[string]string, len(entry.Advances))
	for _, k := range entry.AdvanceKeys() {
		advances[k.String()] = entry.Advances[k].StringFixed(domain.CurrencyPlaces)
	}
	return domain.JSON{
		"month":      entry.Month,
		"total_cash": entry.TotalCash.StringFixed(domain.CurrencyPlaces),
		"keep_cash":  entry.KeepCash.StringFixed(domain.CurrencyPlaces),
		"advances":   advances,
	}
}
