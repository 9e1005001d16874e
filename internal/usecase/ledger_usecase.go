package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/iho/kasa/internal/domain"
)

var (
	// ErrInconsistentLedger is returned when the carry store does not match the
	// carry written by the latest settlement.
	ErrInconsistentLedger = errors.New("ledger is inconsistent: carry does not match latest settlement")
)

// ConsistencyReport describes a carry consistency check.
type ConsistencyReport struct {
	Consistent bool
	// LatestMonth is empty when no period has been closed.
	LatestMonth string
	Mismatched  []domain.HolderKey
}

// LedgerUseCase handles ledger-wide operations.
type LedgerUseCase struct {
	carryRepo      CarryRepository
	settlementRepo SettlementRepository
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(carryRepo CarryRepository, settlementRepo SettlementRepository) *LedgerUseCase {
	return &LedgerUseCase{
		carryRepo:      carryRepo,
		settlementRepo: settlementRepo,
	}
}

// CheckConsistency verifies that the stored carry equals the new carry of the
// latest settlement.
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context) (*ConsistencyReport, error) {
	carry, err := uc.carryRepo.Load(ctx)
	if err != nil {
		return nil, err
	}

	latest, err := uc.settlementRepo.Latest(ctx)
	if errors.Is(err, domain.ErrNoSettlement) {
		// Nothing closed yet: only a seeded, empty carry is valid.
		report := &ConsistencyReport{Consistent: true}
		for _, k := range carry.Keys() {
			if !carry.Balances[k].IsZero() {
				report.Mismatched = append(report.Mismatched, k)
			}
		}
		if len(report.Mismatched) > 0 {
			report.Consistent = false
			return report, ErrInconsistentLedger
		}
		return report, nil
	}
	if err != nil {
		return nil, err
	}

	report := &ConsistencyReport{
		Consistent:  true,
		LatestMonth: latest.Month,
		Mismatched:  diffCarry(carry, latest.NewCarry),
	}
	if len(report.Mismatched) > 0 {
		report.Consistent = false
		return report, fmt.Errorf("%w: %d balances differ after %s", ErrInconsistentLedger, len(report.Mismatched), latest.Month)
	}

	return report, nil
}

func diffCarry(stored, expected domain.CarryState) []domain.HolderKey {
	seen := make(map[domain.HolderKey]struct{})
	var diff []domain.HolderKey
	for _, state := range []domain.CarryState{stored, expected} {
		for k := range state.Balances {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			if !stored.Balance(k).Equal(expected.Balance(k)) {
				diff = append(diff, k)
			}
		}
	}
	sort.Slice(diff, func(i, j int) bool { return diff[i] < diff[j] })
	return diff
}
