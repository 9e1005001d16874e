package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/kasa/internal/domain"
)

// ShareholderUseCase manages the shareholder registry.
type ShareholderUseCase struct {
	txManager  TransactionManager
	holderRepo ShareholderRepository
	auditRepo  AuditRepository
	outboxRepo OutboxRepository
	idGen      IDGenerator
	logger     zerolog.Logger
}

// NewShareholderUseCase creates a new ShareholderUseCase. auditRepo and
// outboxRepo may be nil.
func NewShareholderUseCase(
	txManager TransactionManager,
	holderRepo ShareholderRepository,
	auditRepo AuditRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	logger zerolog.Logger,
) *ShareholderUseCase {
	return &ShareholderUseCase{
		txManager:  txManager,
		holderRepo: holderRepo,
		auditRepo:  auditRepo,
		outboxRepo: outboxRepo,
		idGen:      idGen,
		logger:     logger,
	}
}

// ShareholderInput is one registry row.
type ShareholderInput struct {
	Name    string
	Percent decimal.Decimal
	Active  bool
}

// ReplaceShareholdersInput represents input for replacing the registry.
type ReplaceShareholdersInput struct {
	Holders   []ShareholderInput
	Actor     string
	RequestID string
}

// List returns the registry in order. Inactive holders are included only when
// includeInactive is set.
func (uc *ShareholderUseCase) List(ctx context.Context, includeInactive bool) ([]domain.Shareholder, error) {
	holders, err := uc.holderRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if includeInactive {
		return holders, nil
	}
	return domain.ActiveShareholders(holders), nil
}

// Replace swaps the registry. Names must be unique across all rows and the
// active rows must sum to exactly 100.
func (uc *ShareholderUseCase) Replace(ctx context.Context, input ReplaceShareholdersInput) ([]domain.Shareholder, error) {
	holders, err := buildRegistry(input.Holders, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	before, err := uc.holderRepo.List(ctx)
	if err != nil {
		return nil, err
	}

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

	if uc.auditRepo != nil {
		err := uc.auditRepo.Create(ctx, tx, &domain.AuditLog{
			ID:           uc.idGen.Generate(),
			UserID:       input.Actor,
			Action:       string(domain.AuditActionShareholdersReplace),
			ResourceType: domain.AggregateTypeRegistry,
			ResourceID:   domain.AggregateTypeRegistry,
			RequestID:    input.RequestID,
			BeforeState:  registrySnapshot(before),
			AfterState:   registrySnapshot(holders),
			Status:       string(domain.AuditStatusSuccess),
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
	}

	if uc.outboxRepo != nil {
		err := uc.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   domain.AggregateTypeRegistry,
			AggregateType: domain.AggregateTypeRegistry,
			EventType:     domain.EventTypeShareholdersChanged,
			Payload:       map[string]any{"shareholders": registrySnapshot(holders)},
			CreatedAt:     time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	uc.logger.Info().Int("holders", len(holders)).Msg("shareholder registry replaced")

	return holders, nil
}

func buildRegistry(rows []ShareholderInput, now time.Time) ([]domain.Shareholder, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no shareholders", domain.ErrMissingData)
	}

	holders := make([]domain.Shareholder, 0, len(rows))
	seen := make(map[domain.HolderKey]struct{}, len(rows))
	for _, row := range rows {
		if err := domain.ValidateShareholderName(row.Name); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
		}
		h := domain.NewShareholder(row.Name, row.Percent)
		h.Active = row.Active
		h.CreatedAt = now

		if _, dup := seen[h.Key()]; dup {
			return nil, fmt.Errorf("%w: %w: %s", domain.ErrInvalidConfiguration, domain.ErrDuplicateHolder, h.Name)
		}
		seen[h.Key()] = struct{}{}
		holders = append(holders, h)
	}

	if err := domain.ValidateShareholders(domain.ActiveShareholders(holders)); err != nil {
		return nil, err
	}

	return holders, nil
}

func registrySnapshot(holders []domain.Shareholder) domain.JSON {
	out := make(domain.JSON, len(holders))
	for _, h := range holders {
		out[h.Name] = map[string]any{
			"percent": h.Percent.String(),
			"active":  h.Active,
		}
	}
	return out
}
