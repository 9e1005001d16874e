package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/usecase"
)

func num(s string) any {
	return decimalToNumeric(decimal.RequireFromString(s))
}

func beginTx(t *testing.T, pool pgxmock.PgxPoolIface) usecase.Transaction {
	t.Helper()
	pool.ExpectBeginTx(ledgerTxOptions)
	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	return tx
}

func TestShareholderRepository_List(t *testing.T) {
	pool := newMockPool(t)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	pool.ExpectQuery(regexp.QuoteMeta(listShareholders)).WillReturnRows(
		pgxmock.NewRows([]string{"name", "percent", "active", "created_at"}).
			AddRow("Burhan Arslan", num("50"), true, created).
			AddRow("Selin Özcan", num("12.5"), false, created),
	)

	holders, err := NewShareholderRepository(pool).List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(holders) != 2 {
		t.Fatalf("expected 2 holders, got %d", len(holders))
	}
	if !holders[1].Percent.Equal(decimal.RequireFromString("12.5")) || holders[1].Active {
		t.Fatalf("unexpected holder: %+v", holders[1])
	}
	assertExpectations(t, pool)
}

func TestShareholderRepository_ReplaceAll(t *testing.T) {
	pool := newMockPool(t)
	tx := beginTx(t, pool)

	pool.ExpectExec(regexp.QuoteMeta(deleteShareholders)).WillReturnResult(pgxmock.NewResult("DELETE", 3))
	pool.ExpectExec(regexp.QuoteMeta(insertShareholder)).
		WithArgs(0, "alice", "Alice", pgxmock.AnyArg(), true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectExec(regexp.QuoteMeta(insertShareholder)).
		WithArgs(1, "bob", "Bob", pgxmock.AnyArg(), true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	holders := []domain.Shareholder{
		domain.NewShareholder("Alice", decimal.NewFromInt(60)),
		domain.NewShareholder("Bob", decimal.NewFromInt(40)),
	}
	if err := NewShareholderRepository(pool).ReplaceAll(context.Background(), tx, holders); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertExpectations(t, pool)
}

func TestPeriodRepository_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		pool := newMockPool(t)
		pool.ExpectQuery(regexp.QuoteMeta(getPeriod)).WithArgs("2025-12").WillReturnRows(
			pgxmock.NewRows([]string{"month", "total_cash", "keep_cash"}).AddRow("2025-12", num("1000000"), num("0")),
		)
		pool.ExpectQuery(regexp.QuoteMeta(getAdvances)).WithArgs("2025-12").WillReturnRows(
			pgxmock.NewRows([]string{"holder_key", "amount"}).
				AddRow("burhan arslan", num("120000")).
				AddRow("ali babur", num("20000.50")),
		)

		entry, err := NewPeriodRepository(pool).Get(context.Background(), "2025-12")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !entry.TotalCash.Equal(decimal.NewFromInt(1000000)) {
			t.Fatalf("expected total 1000000, got %s", entry.TotalCash)
		}
		if !entry.Advance("ali babur").Equal(decimal.RequireFromString("20000.50")) {
			t.Fatalf("unexpected advances: %v", entry.Advances)
		}
		assertExpectations(t, pool)
	})

	t.Run("not found", func(t *testing.T) {
		pool := newMockPool(t)
		pool.ExpectQuery(regexp.QuoteMeta(getPeriod)).WithArgs("2030-01").WillReturnRows(
			pgxmock.NewRows([]string{"month", "total_cash", "keep_cash"}),
		)

		_, err := NewPeriodRepository(pool).Get(context.Background(), "2030-01")
		if !errors.Is(err, domain.ErrPeriodNotFound) {
			t.Fatalf("expected ErrPeriodNotFound, got %v", err)
		}
	})
}

func TestPeriodRepository_Save(t *testing.T) {
	pool := newMockPool(t)
	tx := beginTx(t, pool)

	pool.ExpectExec(regexp.QuoteMeta(upsertPeriod)).
		WithArgs("2026-01", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectExec(regexp.QuoteMeta(deleteAdvances)).WithArgs("2026-01").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	pool.ExpectExec(regexp.QuoteMeta(insertAdvance)).
		WithArgs("2026-01", "ali babur", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	entry := &domain.PeriodLedgerEntry{
		Month:     "2026-01",
		TotalCash: decimal.NewFromInt(100),
		KeepCash:  decimal.Zero,
		Advances:  map[domain.HolderKey]decimal.Decimal{"ali babur": decimal.NewFromInt(5)},
	}
	if err := NewPeriodRepository(pool).Save(context.Background(), tx, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertExpectations(t, pool)
}

func TestCarryRepository_LoadAndReplace(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectQuery(regexp.QuoteMeta(listCarry)).WillReturnRows(
		pgxmock.NewRows([]string{"holder_key", "balance"}).AddRow("alice", num("-90")),
	)

	repo := NewCarryRepository(pool)
	state, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !state.Balance("alice").Equal(decimal.NewFromInt(-90)) {
		t.Fatalf("expected alice -90, got %s", state.Balance("alice"))
	}

	tx := beginTx(t, pool)
	pool.ExpectExec(regexp.QuoteMeta(deleteCarry)).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	pool.ExpectExec(regexp.QuoteMeta(insertCarry)).WithArgs("alice", pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectExec(regexp.QuoteMeta(insertCarry)).WithArgs("bob", pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	next := domain.NewCarryState()
	next.Balances["bob"] = decimal.NewFromInt(3)
	next.Balances["alice"] = decimal.Zero
	if err := repo.Replace(context.Background(), tx, next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertExpectations(t, pool)
}

func TestSettlementRepository_RoundTrip(t *testing.T) {
	result, carry, err := domain.ComputeDistribution("2025-12", domain.SampleShareholders(),
		decimal.NewFromInt(1000000), decimal.Zero, domain.SamplePeriod().Advances, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resultJSON, _ := json.Marshal(result)
	carryJSON, _ := json.Marshal(carry.Balances)
	closedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	pool := newMockPool(t)
	pool.ExpectQuery(regexp.QuoteMeta(getSettlement)).WithArgs("2025-12").WillReturnRows(
		pgxmock.NewRows([]string{"id", "month", "result", "new_carry", "closed_at", "closed_by"}).
			AddRow("s-1", "2025-12", resultJSON, carryJSON, closedAt, "cli"),
	)

	s, err := NewSettlementRepository(pool).GetByMonth(context.Background(), "2025-12")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID != "s-1" || !s.ClosedAt.Equal(closedAt) {
		t.Fatalf("unexpected settlement: %+v", s)
	}
	if !s.Result.TotalPaid.Equal(decimal.NewFromInt(855000)) {
		t.Fatalf("expected total paid 855000, got %s", s.Result.TotalPaid)
	}
	if len(s.Result.Rows) != 4 || s.Result.Rows[3].Name != "Selin Özcan" {
		t.Fatalf("rows not decoded: %+v", s.Result.Rows)
	}
	if len(s.NewCarry.Balances) != 4 {
		t.Fatalf("carry not decoded: %v", s.NewCarry.Balances)
	}
	assertExpectations(t, pool)
}

func TestSettlementRepository_LatestEmpty(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectQuery(regexp.QuoteMeta(latestSettlement)).WillReturnRows(
		pgxmock.NewRows([]string{"id", "month", "result", "new_carry", "closed_at", "closed_by"}),
	)

	_, err := NewSettlementRepository(pool).Latest(context.Background())
	if !errors.Is(err, domain.ErrNoSettlement) {
		t.Fatalf("expected ErrNoSettlement, got %v", err)
	}
}

func TestSettlementRepository_List(t *testing.T) {
	result, carry, err := domain.ComputeDistribution("2025-12", domain.SampleShareholders(),
		decimal.NewFromInt(1000000), decimal.Zero, domain.SamplePeriod().Advances, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resultJSON, _ := json.Marshal(result)
	carryJSON, _ := json.Marshal(carry.Balances)
	closedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	pool := newMockPool(t)
	pool.ExpectQuery(regexp.QuoteMeta(listSettlements)).WillReturnRows(
		pgxmock.NewRows([]string{"id", "month", "result", "new_carry", "closed_at", "closed_by"}).
			AddRow("s-1", "2025-11", resultJSON, carryJSON, closedAt, "cli").
			AddRow("s-2", "2025-12", resultJSON, carryJSON, closedAt, "api"),
	)

	settlements, err := NewSettlementRepository(pool).List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(settlements) != 2 || settlements[0].Month != "2025-11" || settlements[1].ClosedBy != "api" {
		t.Fatalf("unexpected settlements: %+v", settlements)
	}
	if !settlements[1].Result.TotalPaid.Equal(decimal.NewFromInt(855000)) {
		t.Fatalf("result not decoded: %s", settlements[1].Result.TotalPaid)
	}
	assertExpectations(t, pool)
}

func TestSettlementRepository_Save(t *testing.T) {
	pool := newMockPool(t)
	tx := beginTx(t, pool)
	pool.ExpectExec(regexp.QuoteMeta(upsertSettlement)).
		WithArgs("s-1", "2025-12", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "cli").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	result, carry, err := domain.ComputeDistribution("2025-12", domain.SampleShareholders(),
		decimal.NewFromInt(100), decimal.Zero, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := &domain.Settlement{ID: "s-1", Month: "2025-12", Result: result, NewCarry: carry, ClosedAt: time.Now(), ClosedBy: "cli"}

	if err := NewSettlementRepository(pool).Save(context.Background(), tx, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertExpectations(t, pool)
}

func TestOutboxRepository(t *testing.T) {
	pool := newMockPool(t)
	repo := NewOutboxRepository(pool)
	tx := beginTx(t, pool)

	pool.ExpectExec(regexp.QuoteMeta(createOutboxEvent)).
		WithArgs("ev-1", "2025-12", domain.AggregateTypePeriod, domain.EventTypePeriodClosed, pgxmock.AnyArg(), pgxmock.AnyArg(), false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), tx, &domain.OutboxEvent{
		ID:            "ev-1",
		AggregateID:   "2025-12",
		AggregateType: domain.AggregateTypePeriod,
		EventType:     domain.EventTypePeriodClosed,
		Payload:       map[string]any{"month": "2025-12"},
		CreatedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pool.ExpectQuery(regexp.QuoteMeta(getUnpublishedEvents)).WithArgs(10).WillReturnRows(
		pgxmock.NewRows([]string{"id", "aggregate_id", "aggregate_type", "event_type", "payload", "created_at", "published_at", "published"}).
			AddRow("ev-1", "2025-12", domain.AggregateTypePeriod, domain.EventTypePeriodClosed, []byte(`{"month":"2025-12"}`), created, nil, false),
	)

	events, err := repo.GetUnpublished(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Payload["month"] != "2025-12" || events[0].PublishedAt != nil {
		t.Fatalf("unexpected events: %+v", events)
	}

	pool.ExpectExec(regexp.QuoteMeta(markEventPublished)).WithArgs("ev-1", pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := repo.MarkPublished(context.Background(), "ev-1", time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertExpectations(t, pool)
}

func TestAuditRepository(t *testing.T) {
	pool := newMockPool(t)
	repo := NewAuditRepository(pool)
	tx := beginTx(t, pool)

	pool.ExpectExec("INSERT INTO audit_logs").
		WithArgs(
			pgxmock.AnyArg(), "cli", string(domain.AuditActionPeriodClose), "", "", "",
			[]byte(nil), []byte(`{"alice":"0.00"}`), string(domain.AuditStatusSuccess), "", pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	log := &domain.AuditLog{
		UserID:     "cli",
		Action:     string(domain.AuditActionPeriodClose),
		AfterState: domain.JSON{"alice": "0.00"},
		Status:     string(domain.AuditStatusSuccess),
		CreatedAt:  time.Now(),
	}
	if err := repo.Create(context.Background(), tx, log); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.ID == "" {
		t.Fatal("expected an ID to be assigned")
	}

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pool.ExpectQuery(`FROM audit_logs\s+WHERE 1=1\s+AND action = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs(string(domain.AuditActionPeriodClose), 5).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "action", "resource_type", "resource_id", "request_id",
			"before_state", "after_state", "status", "error_message", "created_at",
		}).AddRow("a-1", "cli", "period.close", "period", "2025-12", "", []byte(nil), []byte(`{"alice":"0.00"}`), "success", "", created))

	logs, err := repo.List(context.Background(), domain.AuditFilter{Action: string(domain.AuditActionPeriodClose), Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 1 || logs[0].AfterState["alice"] != "0.00" {
		t.Fatalf("unexpected logs: %+v", logs)
	}
	assertExpectations(t, pool)
}
