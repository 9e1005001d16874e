package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/kasa/internal/domain"
)

// SettlementUseCase closes periods: it loads the registry, the period entry
// and the carry, runs the engine and persists the outcome atomically.
type SettlementUseCase struct {
	txManager      TransactionManager
	holderRepo     ShareholderRepository
	periodRepo     PeriodRepository
	carryRepo      CarryRepository
	settlementRepo SettlementRepository
	auditRepo      AuditRepository
	outboxRepo     OutboxRepository
	idGen          IDGenerator
	locker         PeriodLocker
	cache          Cache
	retrier        Retrier
	recorder       SettlementRecorder
	engine         *domain.Engine
	lockTTL        time.Duration
	logger         zerolog.Logger
	now            func() time.Time
}

// SettlementConfig holds the dependencies of SettlementUseCase. Locker,
// Retrier, Cache, AuditRepo, OutboxRepo and Recorder are optional.
type SettlementConfig struct {
	TxManager      TransactionManager
	HolderRepo     ShareholderRepository
	PeriodRepo     PeriodRepository
	CarryRepo      CarryRepository
	SettlementRepo SettlementRepository
	AuditRepo      AuditRepository
	OutboxRepo     OutboxRepository
	IDGen          IDGenerator
	Locker         PeriodLocker
	Cache          Cache
	Retrier        Retrier
	Recorder       SettlementRecorder
	Engine         *domain.Engine
	LockTTL        time.Duration
	Logger         zerolog.Logger
}

// NewSettlementUseCase creates a new SettlementUseCase.
func NewSettlementUseCase(cfg SettlementConfig) *SettlementUseCase {
	if cfg.Engine == nil {
		cfg.Engine = domain.NewEngine()
	}
	if cfg.Locker == nil {
		cfg.Locker = NewLocalLocker()
	}
	if cfg.Retrier == nil {
		cfg.Retrier = noRetry{}
	}
	if cfg.LockTTL == 0 {
		cfg.LockTTL = DefaultLockTTL
	}

	return &SettlementUseCase{
		txManager:      cfg.TxManager,
		holderRepo:     cfg.HolderRepo,
		periodRepo:     cfg.PeriodRepo,
		carryRepo:      cfg.CarryRepo,
		settlementRepo: cfg.SettlementRepo,
		auditRepo:      cfg.AuditRepo,
		outboxRepo:     cfg.OutboxRepo,
		idGen:          cfg.IDGen,
		locker:         cfg.Locker,
		cache:          cfg.Cache,
		retrier:        cfg.Retrier,
		recorder:       cfg.Recorder,
		engine:         cfg.Engine,
		lockTTL:        cfg.LockTTL,
		logger:         cfg.Logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// ClosePeriodInput represents input for closing a period.
type ClosePeriodInput struct {
	Month string
	// Force recomputes an already closed month from the carry it was closed
	// with. Only the latest closed month can be recomputed.
	Force     bool
	Actor     string
	RequestID string
}

type snapshot struct {
	holders []domain.Shareholder
	entry   *domain.PeriodLedgerEntry
	carry   domain.CarryState
}

// Preview computes the distribution for month without persisting anything.
func (uc *SettlementUseCase) Preview(ctx context.Context, month string) (*domain.DistributionResult, error) {
	if err := domain.ValidateMonth(month); err != nil {
		return nil, err
	}

	snap, err := uc.load(ctx, month)
	if err != nil {
		return nil, err
	}

	result, _, err := uc.engine.Settle(snap.entry, snap.holders, snap.carry)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Close settles month and replaces the carry store with the new balances.
func (uc *SettlementUseCase) Close(ctx context.Context, input ClosePeriodInput) (*domain.Settlement, error) {
	start := time.Now()

	settlement, err := uc.close(ctx, input)
	if err != nil {
		uc.fail(input.Month, err)
		return nil, err
	}

	if uc.recorder != nil {
		uc.recorder.SettlementClosed(settlement.Result, time.Since(start))
	}

	uc.logger.Info().
		Str("month", settlement.Month).
		Str("settlement_id", settlement.ID).
		Str("distributable", settlement.Result.Distributable.StringFixed(domain.CurrencyPlaces)).
		Str("total_paid", settlement.Result.TotalPaid.StringFixed(domain.CurrencyPlaces)).
		Bool("shortfall", settlement.Result.Shortfall).
		Msg("period closed")

	return settlement, nil
}

func (uc *SettlementUseCase) close(ctx context.Context, input ClosePeriodInput) (*domain.Settlement, error) {
	if err := domain.ValidateMonth(input.Month); err != nil {
		return nil, err
	}

	// Every close replaces the one carry store, so closes of different
	// months exclude each other too.
	release, err := uc.locker.Acquire(ctx, LedgerLockKey, uc.lockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			uc.logger.Warn().Err(err).Str("month", input.Month).Msg("failed to release ledger lock")
		}
	}()

	priorCarry, err := uc.checkCloseOrder(ctx, input)
	if err != nil {
		return nil, err
	}

	snap, err := uc.load(ctx, input.Month)
	if err != nil {
		return nil, err
	}
	if priorCarry != nil {
		snap.carry = *priorCarry
	}

	result, newCarry, err := uc.engine.Settle(snap.entry, snap.holders, snap.carry)
	if err != nil {
		return nil, err
	}

	settlement := &domain.Settlement{
		ID:       uc.idGen.Generate(),
		Month:    input.Month,
		Result:   result,
		NewCarry: newCarry,
		ClosedAt: uc.now(),
		ClosedBy: input.Actor,
	}

	err = uc.retrier.Retry(ctx, func() error {
		return uc.persist(ctx, settlement, snap.carry, input)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist settlement: %w", err)
	}

	if uc.cache != nil {
		if err := uc.cache.Delete(ctx, settlementCachePrefix+input.Month); err != nil {
			uc.logger.Warn().Err(err).Str("month", input.Month).Msg("failed to invalidate settlement cache")
		}
	}

	return settlement, nil
}

// checkCloseOrder enforces that periods close in order. For a forced re-close
// of the latest month it returns the carry that month was closed with.
func (uc *SettlementUseCase) checkCloseOrder(ctx context.Context, input ClosePeriodInput) (*domain.CarryState, error) {
	latest, err := uc.settlementRepo.Latest(ctx)
	if errors.Is(err, domain.ErrNoSettlement) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	switch {
	case latest.Month > input.Month:
		return nil, fmt.Errorf("%w: %s is closed", domain.ErrPeriodOutOfOrder, latest.Month)
	case latest.Month == input.Month && !input.Force:
		return nil, fmt.Errorf("%w: %s", domain.ErrPeriodAlreadyClosed, input.Month)
	case latest.Month == input.Month:
		prior := latest.Result.PriorCarry()
		uc.logger.Warn().Str("month", input.Month).Msg("recomputing closed period")
		return &prior, nil
	}

	return nil, nil
}

func (uc *SettlementUseCase) persist(ctx context.Context, s *domain.Settlement, before domain.CarryState, input ClosePeriodInput) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := uc.settlementRepo.Save(ctx, tx, s); err != nil {
		return err
	}

	if err := uc.carryRepo.Replace(ctx, tx, s.NewCarry); err != nil {
		return err
	}

	if uc.auditRepo != nil {
		err := uc.auditRepo.Create(ctx, tx, &domain.AuditLog{
			ID:           uc.idGen.Generate(),
			UserID:       input.Actor,
			Action:       string(domain.AuditActionPeriodClose),
			ResourceType: domain.AggregateTypePeriod,
			ResourceID:   s.Month,
			RequestID:    input.RequestID,
			BeforeState:  domain.CarrySnapshot(before),
			AfterState:   domain.CarrySnapshot(s.NewCarry),
			Status:       string(domain.AuditStatusSuccess),
			CreatedAt:    s.ClosedAt,
		})
		if err != nil {
			return err
		}
	}

	if uc.outboxRepo != nil {
		err := uc.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   s.Month,
			AggregateType: domain.AggregateTypePeriod,
			EventType:     domain.EventTypePeriodClosed,
			Payload:       domain.NewPeriodClosedEvent(s).Payload(),
			CreatedAt:     s.ClosedAt,
		})
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Get returns the settlement of a closed month.
func (uc *SettlementUseCase) Get(ctx context.Context, month string) (*domain.Settlement, error) {
	if err := domain.ValidateMonth(month); err != nil {
		return nil, err
	}

	key := settlementCachePrefix + month
	if uc.cache != nil {
		if data, err := uc.cache.Get(ctx, key); err == nil && len(data) > 0 {
			var s domain.Settlement
			if err := json.Unmarshal(data, &s); err == nil {
				return &s, nil
			}
		}
	}

	s, err := uc.settlementRepo.GetByMonth(ctx, month)
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if data, err := json.Marshal(s); err == nil {
			if err := uc.cache.Set(ctx, key, data, SettlementCacheTTL); err != nil {
				uc.logger.Debug().Err(err).Str("month", month).Msg("failed to cache settlement")
			}
		}
	}

	return s, nil
}

// History returns every closed period in month order.
func (uc *SettlementUseCase) History(ctx context.Context) ([]*domain.Settlement, error) {
	return uc.settlementRepo.List(ctx)
}

// Split divides amount between the active shareholders by percentage alone.
// Advances and carry are ignored and nothing is stored.
func (uc *SettlementUseCase) Split(ctx context.Context, amount decimal.Decimal) (*domain.DistributionResult, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	all, err := uc.holderRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load shareholders: %w", err)
	}
	holders := domain.ActiveShareholders(all)
	if len(holders) == 0 {
		return nil, fmt.Errorf("%w: shareholder registry is empty", domain.ErrMissingData)
	}

	result, _, err := uc.engine.Compute(SplitLabel, holders, amount, decimal.Zero, nil, nil)
	return result, err
}

// Carry returns the current carry state.
func (uc *SettlementUseCase) Carry(ctx context.Context) (domain.CarryState, error) {
	return uc.carryRepo.Load(ctx)
}

// Engine returns the configured distribution engine.
func (uc *SettlementUseCase) Engine() *domain.Engine {
	return uc.engine
}

func (uc *SettlementUseCase) load(ctx context.Context, month string) (*snapshot, error) {
	all, err := uc.holderRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load shareholders: %w", err)
	}
	holders := domain.ActiveShareholders(all)
	if len(holders) == 0 {
		return nil, fmt.Errorf("%w: shareholder registry is empty", domain.ErrMissingData)
	}

	entry, err := uc.periodRepo.Get(ctx, month)
	if err != nil {
		return nil, err
	}

	carry, err := uc.carryRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load carry: %w", err)
	}
	if len(carry.Balances) == 0 {
		uc.logger.Debug().Str("month", month).Msg("no carried balances, starting from zero")
	}

	if unknown := domain.UnmatchedKeys(holders, entry.Advances, carry.Balances); len(unknown) > 0 {
		uc.logger.Warn().
			Str("month", month).
			Interface("keys", unknown).
			Msg("advances or carry for names outside the active registry")
	}

	return &snapshot{holders: holders, entry: entry, carry: carry}, nil
}

func (uc *SettlementUseCase) fail(month string, err error) {
	reason := "storage"
	switch {
	case domain.IsConfigurationError(err):
		reason = "configuration"
	case domain.IsMissingData(err):
		reason = "missing_data"
	case errors.Is(err, domain.ErrPeriodLocked):
		reason = "locked"
	case errors.Is(err, domain.ErrPeriodAlreadyClosed), errors.Is(err, domain.ErrPeriodOutOfOrder):
		reason = "order"
	case errors.Is(err, domain.ErrInvalidMonth):
		reason = "invalid_month"
	}

	if uc.recorder != nil {
		uc.recorder.SettlementFailed(reason)
	}

	uc.logger.Error().Err(err).Str("month", month).Str("reason", reason).Msg("failed to close period")
}
