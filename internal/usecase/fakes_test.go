package usecase_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/usecase"
)

// memStore is an in-memory implementation of every repository port. Writes
// are applied immediately; rollbacks are only counted.
type memStore struct {
	mu          sync.Mutex
	holders     []domain.Shareholder
	periods     map[string]*domain.PeriodLedgerEntry
	carry       domain.CarryState
	settlements map[string]*domain.Settlement
	audits      []*domain.AuditLog
	events      []*domain.OutboxEvent

	commits   int
	rollbacks int
	ids       int
}

func newMemStore() *memStore {
	return &memStore{
		periods:     make(map[string]*domain.PeriodLedgerEntry),
		carry:       domain.NewCarryState(),
		settlements: make(map[string]*domain.Settlement),
	}
}

func seededStore() *memStore {
	s := newMemStore()
	s.holders = domain.SampleShareholders()
	p := domain.SamplePeriod()
	s.periods[p.Month] = p
	return s
}

type memTx struct {
	store *memStore
	done  bool
}

func (t *memTx) Commit(context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.done = true
	t.store.commits++
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if !t.done {
		t.store.rollbacks++
	}
	t.done = true
	return nil
}

type memTxManager struct{ store *memStore }

func (m memTxManager) Begin(context.Context) (usecase.Transaction, error) {
	return &memTx{store: m.store}, nil
}

func (s *memStore) TxManager() usecase.TransactionManager { return memTxManager{store: s} }

func (s *memStore) Generate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids++
	return fmt.Sprintf("id-%03d", s.ids)
}

type holderRepo struct{ *memStore }

func (r holderRepo) List(context.Context) ([]domain.Shareholder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Shareholder(nil), r.holders...), nil
}

func (r holderRepo) ReplaceAll(_ context.Context, _ usecase.Transaction, holders []domain.Shareholder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.holders = append([]domain.Shareholder(nil), holders...)
	return nil
}

type periodRepo struct{ *memStore }

func (r periodRepo) Get(_ context.Context, month string) (*domain.PeriodLedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.periods[month]
	if !ok {
		return nil, domain.ErrPeriodNotFound
	}
	return p, nil
}

func (r periodRepo) List(context.Context) ([]*domain.PeriodLedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.PeriodLedgerEntry, 0, len(r.periods))
	for _, p := range r.periods {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (r periodRepo) Save(_ context.Context, _ usecase.Transaction, entry *domain.PeriodLedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.periods[entry.Month] = entry
	return nil
}

type carryRepo struct{ *memStore }

func (r carryRepo) Load(context.Context) (domain.CarryState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.carry.Clone(), nil
}

func (r carryRepo) Replace(_ context.Context, _ usecase.Transaction, state domain.CarryState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carry = state.Clone()
	return nil
}

type settlementRepo struct{ *memStore }

func (r settlementRepo) Save(_ context.Context, _ usecase.Transaction, s *domain.Settlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settlements[s.Month] = s
	return nil
}

func (r settlementRepo) GetByMonth(_ context.Context, month string) (*domain.Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settlements[month]
	if !ok {
		return nil, domain.ErrNoSettlement
	}
	return s, nil
}

func (r settlementRepo) Latest(context.Context) (*domain.Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.Settlement
	for _, s := range r.settlements {
		if latest == nil || s.Month > latest.Month {
			latest = s
		}
	}
	if latest == nil {
		return nil, domain.ErrNoSettlement
	}
	return latest, nil
}

func (r settlementRepo) List(context.Context) ([]*domain.Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Settlement, 0, len(r.settlements))
	for _, s := range r.settlements {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

type auditRepo struct{ *memStore }

func (r auditRepo) Create(_ context.Context, _ usecase.Transaction, log *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, log)
	return nil
}

func (r auditRepo) List(context.Context, domain.AuditFilter) ([]*domain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.AuditLog(nil), r.audits...), nil
}

type outboxRepo struct{ *memStore }

func (r outboxRepo) Create(_ context.Context, _ usecase.Transaction, event *domain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r outboxRepo) GetUnpublished(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.OutboxEvent
	for _, e := range r.events {
		if !e.Published && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r outboxRepo) MarkPublished(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			e.Published = true
			e.PublishedAt = &at
		}
	}
	return nil
}

func newSettlementUseCase(s *memStore, opts ...domain.EngineOption) *usecase.SettlementUseCase {
	return usecase.NewSettlementUseCase(usecase.SettlementConfig{
		TxManager:      s.TxManager(),
		HolderRepo:     holderRepo{s},
		PeriodRepo:     periodRepo{s},
		CarryRepo:      carryRepo{s},
		SettlementRepo: settlementRepo{s},
		AuditRepo:      auditRepo{s},
		OutboxRepo:     outboxRepo{s},
		IDGen:          s,
		Engine:         domain.NewEngine(opts...),
	})
}
