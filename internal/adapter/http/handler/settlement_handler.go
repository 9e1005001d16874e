package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/iho/kasa/internal/adapter/http/dto"
	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/report"
	"github.com/iho/kasa/internal/usecase"
)

type settlementService interface {
	Preview(ctx context.Context, month string) (*domain.DistributionResult, error)
	Close(ctx context.Context, input usecase.ClosePeriodInput) (*domain.Settlement, error)
	Get(ctx context.Context, month string) (*domain.Settlement, error)
	Carry(ctx context.Context) (domain.CarryState, error)
	History(ctx context.Context) ([]*domain.Settlement, error)
	Split(ctx context.Context, amount decimal.Decimal) (*domain.DistributionResult, error)
}

// SettlementHandler serves distributions and period closes.
type SettlementHandler struct {
	settlementUC settlementService
	currency     string
}

// NewSettlementHandler creates a new SettlementHandler. currency is used for
// HTML reports.
func NewSettlementHandler(settlementUC settlementService, currency string) *SettlementHandler {
	return &SettlementHandler{settlementUC: settlementUC, currency: currency}
}

// Preview computes the distribution of a month without persisting it.
func (h *SettlementHandler) Preview(w http.ResponseWriter, r *http.Request) {
	result, err := h.settlementUC.Preview(r.Context(), monthParam(r))
	if err != nil {
		writeDomainError(w, "failed to compute distribution", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.DistributionFromDomain(result))
}

// Close settles a month and persists the new carry.
func (h *SettlementHandler) Close(w http.ResponseWriter, r *http.Request) {
	var req dto.ClosePeriodRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	settlement, err := h.settlementUC.Close(r.Context(), req.ToUseCaseInput(monthParam(r), actor(r), requestID(r)))
	if err != nil {
		writeDomainError(w, "failed to close period", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.SettlementFromDomain(settlement))
}

// Settlement returns the stored settlement of a closed month.
func (h *SettlementHandler) Settlement(w http.ResponseWriter, r *http.Request) {
	settlement, err := h.settlementUC.Get(r.Context(), monthParam(r))
	if err != nil {
		writeDomainError(w, "failed to get settlement", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SettlementFromDomain(settlement))
}

// Report renders a month as an HTML page: the settlement when the month is
// closed, a preview otherwise.
func (h *SettlementHandler) Report(w http.ResponseWriter, r *http.Request) {
	month := monthParam(r)

	var result *domain.DistributionResult
	settlement, err := h.settlementUC.Get(r.Context(), month)
	switch {
	case err == nil:
		result = settlement.Result
	case domain.IsMissingData(err):
		result, err = h.settlementUC.Preview(r.Context(), month)
		if err != nil {
			writeDomainError(w, "failed to compute distribution", err)
			return
		}
	default:
		writeDomainError(w, "failed to get settlement", err)
		return
	}

	page, err := report.HTML(result, h.currency)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render report", err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(page))
}

// Carry returns the current carry store.
func (h *SettlementHandler) Carry(w http.ResponseWriter, r *http.Request) {
	carry, err := h.settlementUC.Carry(r.Context())
	if err != nil {
		writeDomainError(w, "failed to load carry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CarryFromDomain(carry))
}

// History lists every stored settlement in month order.
func (h *SettlementHandler) History(w http.ResponseWriter, r *http.Request) {
	settlements, err := h.settlementUC.History(r.Context())
	if err != nil {
		writeDomainError(w, "failed to list settlements", err)
		return
	}

	resp := make([]*dto.SettlementResponse, len(settlements))
	for i, s := range settlements {
		resp[i] = dto.SettlementFromDomain(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Split previews how an ad-hoc amount divides between the active
// shareholders. Nothing is stored.
func (h *SettlementHandler) Split(w http.ResponseWriter, r *http.Request) {
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err.Error())
		return
	}

	result, err := h.settlementUC.Split(r.Context(), amount)
	if err != nil {
		writeDomainError(w, "failed to split amount", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.DistributionFromDomain(result))
}
