package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/kasa/internal/domain"
)

// SeedUseCase writes the sample registry and period and clears the carry.
type SeedUseCase struct {
	txManager  TransactionManager
	holderRepo ShareholderRepository
	periodRepo PeriodRepository
	carryRepo  CarryRepository
	auditRepo  AuditRepository
	idGen      IDGenerator
	logger     zerolog.Logger
}

// NewSeedUseCase creates a new SeedUseCase. auditRepo may be nil.
func NewSeedUseCase(
	txManager TransactionManager,
	holderRepo ShareholderRepository,
	periodRepo PeriodRepository,
	carryRepo CarryRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
	logger zerolog.Logger,
) *SeedUseCase {
	return &SeedUseCase{
		txManager:  txManager,
		holderRepo: holderRepo,
		periodRepo: periodRepo,
		carryRepo:  carryRepo,
		auditRepo:  auditRepo,
		idGen:      idGen,
		logger:     logger,
	}
}

// SeedResult reports what Seed wrote.
type SeedResult struct {
	Holders []domain.Shareholder
	Period  *domain.PeriodLedgerEntry
}

// Seed overwrites the registry, the sample period and the carry store.
func (uc *SeedUseCase) Seed(ctx context.Context, actor string) (*SeedResult, error) {
	now := time.Now().UTC()

	holders := domain.SampleShareholders()
	for i := range holders {
		holders[i].CreatedAt = now
	}
	period := domain.SamplePeriod()

	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := uc.holderRepo.ReplaceAll(ctx, tx, holders); err != nil {
		return nil, err
	}
	if err := uc.periodRepo.Save(ctx, tx, period); err != nil {
		return nil, err
	}
	if err := uc.carryRepo.Replace(ctx, tx, domain.NewCarryState()); err != nil {
		return nil, err
	}

	if uc.auditRepo != nil {
		err := uc.auditRepo.Create(ctx, tx, &domain.AuditLog{
			ID:           uc.idGen.Generate(),
			UserID:       actor,
			Action:       string(domain.AuditActionSeed),
			ResourceType: domain.AggregateTypeRegistry,
			ResourceID:   domain.AggregateTypeRegistry,
			AfterState:   registrySnapshot(holders),
			Status:       string(domain.AuditStatusSuccess),
			CreatedAt:    now,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	uc.logger.Info().Str("month", period.Month).Int("holders", len(holders)).Msg("sample data written")

	return &SeedResult{Holders: holders, Period: period}, nil
}
