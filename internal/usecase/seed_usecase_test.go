package usecase_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/usecase"
)

func TestSeedUseCase_Seed(t *testing.T) {
	store := newMemStore()
	store.carry.Balances["someone"] = dec("12")

	uc := usecase.NewSeedUseCase(store.TxManager(), holderRepo{store}, periodRepo{store}, carryRepo{store}, auditRepo{store}, store, zerolog.Nop())

	result, err := uc.Seed(context.Background(), "cli")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Holders) != 4 || len(store.holders) != 4 {
		t.Fatalf("expected 4 holders, got %d", len(store.holders))
	}
	if _, ok := store.periods["2025-12"]; !ok {
		t.Fatal("expected the sample period to be stored")
	}
	if len(store.carry.Balances) != 0 {
		t.Fatalf("expected carry to be cleared, got %v", store.carry.Balances)
	}
	if len(store.audits) != 1 || store.audits[0].Action != string(domain.AuditActionSeed) {
		t.Fatalf("expected a seed audit entry, got %v", store.audits)
	}

	// Seeding twice leaves the same state.
	if _, err := uc.Seed(context.Background(), "cli"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.holders) != 4 {
		t.Fatalf("expected 4 holders after reseed, got %d", len(store.holders))
	}
}
