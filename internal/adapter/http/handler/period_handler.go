package handler

import (
	"context"
	"net/http"

	"github.com/iho/kasa/internal/adapter/http/dto"
	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/usecase"
)

type periodService interface {
	Record(ctx context.Context, input usecase.RecordPeriodInput) (*domain.PeriodLedgerEntry, error)
	Get(ctx context.Context, month string) (*domain.PeriodLedgerEntry, error)
	List(ctx context.Context) ([]*domain.PeriodLedgerEntry, error)
}

// PeriodHandler serves the period ledger.
type PeriodHandler struct {
	periodUC periodService
}

// NewPeriodHandler creates a new PeriodHandler.
func NewPeriodHandler(periodUC periodService) *PeriodHandler {
	return &PeriodHandler{periodUC: periodUC}
}

// List returns every recorded period.
func (h *PeriodHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.periodUC.List(r.Context())
	if err != nil {
		writeDomainError(w, "failed to list periods", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PeriodsFromDomain(entries))
}

// Get returns one period.
func (h *PeriodHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.periodUC.Get(r.Context(), monthParam(r))
	if err != nil {
		writeDomainError(w, "failed to get period", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PeriodFromDomain(entry))
}

// Put records or overwrites the figures of an open period.
func (h *PeriodHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req dto.RecordPeriodRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	entry, err := h.periodUC.Record(r.Context(), req.ToUseCaseInput(monthParam(r), actor(r), requestID(r)))
	if err != nil {
		writeDomainError(w, "failed to record period", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PeriodFromDomain(entry))
}
