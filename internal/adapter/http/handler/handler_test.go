package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/kasa/internal/adapter/http/dto"
	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/usecase"
)

type shareholderServiceStub struct {
	listFn    func(ctx context.Context, includeInactive bool) ([]domain.Shareholder, error)
	replaceFn func(ctx context.Context, input usecase.ReplaceShareholdersInput) ([]domain.Shareholder, error)
}

func (s *shareholderServiceStub) List(ctx context.Context, includeInactive bool) ([]domain.Shareholder, error) {
	return s.listFn(ctx, includeInactive)
}

func (s *shareholderServiceStub) Replace(ctx context.Context, input usecase.ReplaceShareholdersInput) ([]domain.Shareholder, error) {
	return s.replaceFn(ctx, input)
}

type periodServiceStub struct {
	recordFn func(ctx context.Context, input usecase.RecordPeriodInput) (*domain.PeriodLedgerEntry, error)
	getFn    func(ctx context.Context, month string) (*domain.PeriodLedgerEntry, error)
}

func (s *periodServiceStub) Record(ctx context.Context, input usecase.RecordPeriodInput) (*domain.PeriodLedgerEntry, error) {
	return s.recordFn(ctx, input)
}

func (s *periodServiceStub) Get(ctx context.Context, month string) (*domain.PeriodLedgerEntry, error) {
	return s.getFn(ctx, month)
}

func (s *periodServiceStub) List(ctx context.Context) ([]*domain.PeriodLedgerEntry, error) {
	return []*domain.PeriodLedgerEntry{domain.SamplePeriod()}, nil
}

type settlementServiceStub struct {
	previewFn func(ctx context.Context, month string) (*domain.DistributionResult, error)
	closeFn   func(ctx context.Context, input usecase.ClosePeriodInput) (*domain.Settlement, error)
	getFn     func(ctx context.Context, month string) (*domain.Settlement, error)
	historyFn func(ctx context.Context) ([]*domain.Settlement, error)
	splitFn   func(ctx context.Context, amount decimal.Decimal) (*domain.DistributionResult, error)
}

func (s *settlementServiceStub) Preview(ctx context.Context, month string) (*domain.DistributionResult, error) {
	return s.previewFn(ctx, month)
}

func (s *settlementServiceStub) Close(ctx context.Context, input usecase.ClosePeriodInput) (*domain.Settlement, error) {
	return s.closeFn(ctx, input)
}

func (s *settlementServiceStub) Get(ctx context.Context, month string) (*domain.Settlement, error) {
	return s.getFn(ctx, month)
}

func (s *settlementServiceStub) Carry(ctx context.Context) (domain.CarryState, error) {
	state := domain.NewCarryState()
	state.Balances["alice"] = decimal.NewFromInt(-90)
	return state, nil
}

func (s *settlementServiceStub) History(ctx context.Context) ([]*domain.Settlement, error) {
	return s.historyFn(ctx)
}

func (s *settlementServiceStub) Split(ctx context.Context, amount decimal.Decimal) (*domain.DistributionResult, error) {
	return s.splitFn(ctx, amount)
}

func sampleResult(t *testing.T) *domain.DistributionResult {
	t.Helper()
	result, _, err := domain.NewEngine().Settle(domain.SamplePeriod(), domain.SampleShareholders(), domain.NewCarryState())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

// withMonth routes req through chi so {month} resolves.
func withMonth(pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Method(req.Method, pattern, h)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestShareholderHandler_Replace(t *testing.T) {
	var captured usecase.ReplaceShareholdersInput
	h := NewShareholderHandler(&shareholderServiceStub{
		replaceFn: func(ctx context.Context, input usecase.ReplaceShareholdersInput) ([]domain.Shareholder, error) {
			captured = input
			return []domain.Shareholder{domain.NewShareholder("Alice", decimal.NewFromInt(100))}, nil
		},
	})

	body := `{"shareholders":[{"name":"Alice","percent":"100"}]}`
	req := httptest.NewRequest(http.MethodPut, "/shareholders", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Replace(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(captured.Holders) != 1 || captured.Holders[0].Name != "Alice" || captured.Actor != anonymousActor {
		t.Fatalf("unexpected input: %+v", captured)
	}

	var resp []dto.ShareholderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].Key != "alice" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestShareholderHandler_ReplaceErrors(t *testing.T) {
	h := NewShareholderHandler(&shareholderServiceStub{
		replaceFn: func(ctx context.Context, input usecase.ReplaceShareholdersInput) ([]domain.Shareholder, error) {
			return nil, domain.ErrInvalidConfiguration
		},
	})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", "{bad", http.StatusBadRequest},
		{"invalid registry", `{"shareholders":[{"name":"Alice","percent":"90"}]}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/shareholders", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Replace(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestShareholderHandler_ListIncludesInactive(t *testing.T) {
	var got bool
	h := NewShareholderHandler(&shareholderServiceStub{
		listFn: func(ctx context.Context, includeInactive bool) ([]domain.Shareholder, error) {
			got = includeInactive
			return domain.SampleShareholders(), nil
		},
	})

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/shareholders?all=true", nil))

	if rec.Code != http.StatusOK || !got {
		t.Fatalf("expected inactive rows to be requested, code=%d all=%v", rec.Code, got)
	}
}

func TestPeriodHandler_PutAndGet(t *testing.T) {
	var captured usecase.RecordPeriodInput
	h := NewPeriodHandler(&periodServiceStub{
		recordFn: func(ctx context.Context, input usecase.RecordPeriodInput) (*domain.PeriodLedgerEntry, error) {
			captured = input
			return domain.SamplePeriod(), nil
		},
		getFn: func(ctx context.Context, month string) (*domain.PeriodLedgerEntry, error) {
			return nil, domain.ErrPeriodNotFound
		},
	})

	body := `{"total_cash":"1000000","keep_cash":"0","advances":{"Burhan Arslan":"120000"}}`
	req := httptest.NewRequest(http.MethodPut, "/periods/2025-12", strings.NewReader(body))
	rec := withMonth("/periods/{month}", h.Put, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Month != "2025-12" || !captured.Advances["Burhan Arslan"].Equal(decimal.NewFromInt(120000)) {
		t.Fatalf("unexpected input: %+v", captured)
	}

	rec = withMonth("/periods/{month}", h.Get, httptest.NewRequest(http.MethodGet, "/periods/2030-01", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSettlementHandler_Close(t *testing.T) {
	result := sampleResult(t)
	var captured usecase.ClosePeriodInput
	h := NewSettlementHandler(&settlementServiceStub{
		closeFn: func(ctx context.Context, input usecase.ClosePeriodInput) (*domain.Settlement, error) {
			captured = input
			if input.Month == "2025-11" {
				return nil, domain.ErrPeriodOutOfOrder
			}
			return &domain.Settlement{ID: "st-1", Month: input.Month, Result: result, NewCarry: result.Carry()}, nil
		},
	}, "TRY")

	// Empty body closes without force.
	rec := withMonth("/periods/{month}/close", h.Close, httptest.NewRequest(http.MethodPost, "/periods/2025-12/close", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Force {
		t.Fatalf("expected force to default to false")
	}

	var resp dto.SettlementResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "st-1" || resp.Distribution == nil || !resp.Distribution.TotalPaid.Equal(decimal.NewFromInt(855000)) {
		t.Fatalf("unexpected response: %+v", resp)
	}

	req := httptest.NewRequest(http.MethodPost, "/periods/2025-12/close", bytes.NewBufferString(`{"force":true}`))
	withMonth("/periods/{month}/close", h.Close, req)
	if !captured.Force {
		t.Fatalf("expected force flag to be passed")
	}

	rec = withMonth("/periods/{month}/close", h.Close, httptest.NewRequest(http.MethodPost, "/periods/2025-11/close", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestSettlementHandler_ReportFallsBackToPreview(t *testing.T) {
	result := sampleResult(t)
	previewed := false
	h := NewSettlementHandler(&settlementServiceStub{
		getFn: func(ctx context.Context, month string) (*domain.Settlement, error) {
			return nil, domain.ErrNoSettlement
		},
		previewFn: func(ctx context.Context, month string) (*domain.DistributionResult, error) {
			previewed = true
			return result, nil
		},
	}, "")

	rec := withMonth("/periods/{month}/report", h.Report, httptest.NewRequest(http.MethodGet, "/periods/2025-12/report", nil))

	if rec.Code != http.StatusOK || !previewed {
		t.Fatalf("expected preview report, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html, got %s", ct)
	}
	if !strings.Contains(rec.Body.String(), "<table>") || !strings.Contains(rec.Body.String(), "Burhan Arslan") {
		t.Fatalf("expected rendered table, got %s", rec.Body.String())
	}
}

func TestSettlementHandler_PreviewAndCarry(t *testing.T) {
	h := NewSettlementHandler(&settlementServiceStub{
		previewFn: func(ctx context.Context, month string) (*domain.DistributionResult, error) {
			return nil, domain.ErrInvalidMonth
		},
	}, "TRY")

	rec := withMonth("/periods/{month}/distribution", h.Preview, httptest.NewRequest(http.MethodGet, "/periods/bad/distribution", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Carry(rec, httptest.NewRequest(http.MethodGet, "/carry", nil))

	var resp dto.CarryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Total.Equal(decimal.NewFromInt(-90)) {
		t.Fatalf("unexpected carry: %+v", resp)
	}
}

func TestSettlementHandler_History(t *testing.T) {
	result := sampleResult(t)
	h := NewSettlementHandler(&settlementServiceStub{
		historyFn: func(ctx context.Context) ([]*domain.Settlement, error) {
			return []*domain.Settlement{
				{ID: "st-1", Month: "2025-11", Result: result},
				{ID: "st-2", Month: "2025-12", Result: result},
			}, nil
		},
	}, "")

	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/settlements", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp []dto.SettlementResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 2 || resp[0].Month != "2025-11" || resp[1].ID != "st-2" {
		t.Fatalf("unexpected history: %+v", resp)
	}
}

func TestSettlementHandler_Split(t *testing.T) {
	var got decimal.Decimal
	h := NewSettlementHandler(&settlementServiceStub{
		splitFn: func(ctx context.Context, amount decimal.Decimal) (*domain.DistributionResult, error) {
			got = amount
			if amount.IsNegative() {
				return nil, domain.ErrInvalidAmount
			}
			result, _, err := domain.NewEngine().Compute(usecase.SplitLabel, domain.SampleShareholders(), amount, decimal.Zero, nil, nil)
			return result, err
		},
	}, "")

	rec := httptest.NewRecorder()
	h.Split(rec, httptest.NewRequest(http.MethodGet, "/split?amount=1000", nil))
	if rec.Code != http.StatusOK || !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected 200 for 1000, got %d (%s)", rec.Code, got)
	}
	var resp dto.DistributionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.TotalPaid.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected the whole amount paid, got %s", resp.TotalPaid)
	}

	rec = httptest.NewRecorder()
	h.Split(rec, httptest.NewRequest(http.MethodGet, "/split?amount=lots", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unparsable amount, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Split(rec, httptest.NewRequest(http.MethodGet, "/split?amount=-5", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative amount, got %d", rec.Code)
	}
}

type ledgerServiceStub struct {
	report *usecase.ConsistencyReport
	err    error
}

func (s ledgerServiceStub) CheckConsistency(context.Context) (*usecase.ConsistencyReport, error) {
	return s.report, s.err
}

func TestLedgerHandler_CheckConsistency(t *testing.T) {
	tests := []struct {
		name string
		stub ledgerServiceStub
		want int
	}{
		{"consistent", ledgerServiceStub{report: &usecase.ConsistencyReport{Consistent: true}}, http.StatusOK},
		{"drifted", ledgerServiceStub{report: &usecase.ConsistencyReport{Mismatched: []domain.HolderKey{"alice"}}, err: usecase.ErrInconsistentLedger}, http.StatusConflict},
		{"storage failure", ledgerServiceStub{err: errors.New("db down")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewLedgerHandler(tt.stub).CheckConsistency(rec, httptest.NewRequest(http.MethodGet, "/consistency", nil))
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestHealthHandler_Readiness(t *testing.T) {
	healthy := NewHealthHandler(map[string]Checker{
		"bolt": func(context.Context) error { return nil },
	})
	rec := httptest.NewRecorder()
	healthy.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"bolt":"ok"`) {
		t.Fatalf("expected ready, got %d %s", rec.Code, rec.Body.String())
	}

	broken := NewHealthHandler(map[string]Checker{
		"redis": func(context.Context) error { return errors.New("refused") },
	})
	rec = httptest.NewRecorder()
	broken.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
