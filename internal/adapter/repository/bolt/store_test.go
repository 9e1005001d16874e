package bolt_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/kasa/internal/adapter/repository/bolt"
	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/usecase"
)

type seqIDs struct{ n int }

func (g *seqIDs) Generate() string {
	g.n++
	return fmt.Sprintf("%08d", g.n)
}

func openStore(t *testing.T, path string) *bolt.Store {
	t.Helper()
	store, err := bolt.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_EmptyDatabase(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "nested", "kasa.db"))
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	holders, err := store.Shareholders().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, holders)

	carry, err := store.Carry().Load(ctx)
	require.NoError(t, err)
	assert.NotNil(t, carry.Balances)
	assert.Empty(t, carry.Balances)

	_, err = store.Periods().Get(ctx, "2025-12")
	assert.ErrorIs(t, err, domain.ErrPeriodNotFound)

	_, err = store.Settlements().Latest(ctx)
	assert.ErrorIs(t, err, domain.ErrNoSettlement)
}

func TestStore_SeedCloseAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kasa.db")
	ctx := context.Background()
	ids := &seqIDs{}

	store, err := bolt.Open(path)
	require.NoError(t, err)

	seed := usecase.NewSeedUseCase(store.TxManager(), store.Shareholders(), store.Periods(), store.Carry(), store.Audit(), ids, zerolog.Nop())
	_, err = seed.Seed(ctx, "test")
	require.NoError(t, err)

	periods := usecase.NewPeriodUseCase(store.TxManager(), store.Periods(), store.Settlements(), store.Audit(), store.Outbox(), ids, zerolog.Nop())
	_, err = periods.Record(ctx, usecase.RecordPeriodInput{
		Month:     "2026-01",
		TotalCash: decimal.NewFromInt(100000),
		Advances:  map[string]decimal.Decimal{"Burhan Arslan": decimal.NewFromInt(80000)},
	})
	require.NoError(t, err)

	settlements := usecase.NewSettlementUseCase(usecase.SettlementConfig{
		TxManager:      store.TxManager(),
		HolderRepo:     store.Shareholders(),
		PeriodRepo:     store.Periods(),
		CarryRepo:      store.Carry(),
		SettlementRepo: store.Settlements(),
		AuditRepo:      store.Audit(),
		OutboxRepo:     store.Outbox(),
		IDGen:          ids,
	})
	_, err = settlements.Close(ctx, usecase.ClosePeriodInput{Month: "2025-12", Actor: "test"})
	require.NoError(t, err)
	jan, err := settlements.Close(ctx, usecase.ClosePeriodInput{Month: "2026-01", Actor: "test"})
	require.NoError(t, err)

	// Burhan: 50000 entitlement - 80000 advance leaves -30000 carried.
	assert.True(t, jan.Result.Rows[0].Paid.IsZero())
	assert.True(t, jan.Result.Rows[0].NewCarry.Equal(decimal.NewFromInt(-30000)))
	require.NoError(t, store.Close())

	reopened := openStore(t, path)

	holders, err := reopened.Shareholders().List(ctx)
	require.NoError(t, err)
	require.Len(t, holders, 4)
	assert.Equal(t, "Burhan Arslan", holders[0].Name)
	assert.True(t, holders[3].Percent.Equal(decimal.NewFromInt(10)))

	carry, err := reopened.Carry().Load(ctx)
	require.NoError(t, err)
	assert.True(t, carry.Balance(domain.KeyOf("Burhan Arslan")).Equal(decimal.NewFromInt(-30000)))

	latest, err := reopened.Settlements().Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-01", latest.Month)
	assert.True(t, latest.Result.TotalPaid.Equal(jan.Result.TotalPaid))

	history, err := reopened.Settlements().List(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2025-12", history[0].Month)
	assert.Equal(t, "2026-01", history[1].Month)

	all, err := reopened.Periods().List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2025-12", all[0].Month)

	ledger := usecase.NewLedgerUseCase(reopened.Carry(), reopened.Settlements())
	report, err := ledger.CheckConsistency(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent)

	logs, err := reopened.Audit().List(ctx, domain.AuditFilter{Action: string(domain.AuditActionPeriodClose)})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "2026-01", logs[0].ResourceID)
}

func TestStore_Outbox(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "kasa.db"))
	ctx := context.Background()
	repo := store.Outbox()

	tx, err := store.TxManager().Begin(ctx)
	require.NoError(t, err)
	for _, id := range []string{"01", "02", "03"} {
		require.NoError(t, repo.Create(ctx, tx, &domain.OutboxEvent{
			ID:        id,
			EventType: domain.EventTypePeriodClosed,
			Payload:   map[string]any{"id": id},
			CreatedAt: time.Now(),
		}))
	}
	require.NoError(t, tx.Commit(ctx))

	require.NoError(t, repo.MarkPublished(ctx, "01", time.Now()))

	events, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "02", events[0].ID)
	assert.Equal(t, "02", events[0].Payload["id"])

	events, err = repo.GetUnpublished(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestTx_Lifecycle(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "kasa.db"))
	ctx := context.Background()

	tx, err := store.TxManager().Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Carry().Replace(ctx, tx, domain.CarryState{Balances: map[domain.HolderKey]decimal.Decimal{"alice": decimal.NewFromInt(1)}}))
	require.NoError(t, tx.Rollback(ctx))

	carry, err := store.Carry().Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, carry.Balances, "rolled back write must not be visible")

	assert.NoError(t, tx.Rollback(ctx))
	assert.True(t, errors.Is(tx.Commit(ctx), bolt.ErrTxClosed))
	assert.ErrorIs(t, store.Carry().Replace(ctx, tx, domain.NewCarryState()), bolt.ErrTxClosed)
}
