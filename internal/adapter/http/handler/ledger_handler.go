package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/iho/kasa/internal/adapter/http/dto"
	"github.com/iho/kasa/internal/usecase"
)

type ledgerService interface {
	CheckConsistency(ctx context.Context) (*usecase.ConsistencyReport, error)
}

// LedgerHandler handles book-wide checks.
type LedgerHandler struct {
	ledgerUC ledgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerUC ledgerService) *LedgerHandler {
	return &LedgerHandler{ledgerUC: ledgerUC}
}

// CheckConsistency compares the carry store with the latest settlement.
func (h *LedgerHandler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	rep, err := h.ledgerUC.CheckConsistency(r.Context())
	if err != nil {
		if errors.Is(err, usecase.ErrInconsistentLedger) && rep != nil {
			writeJSON(w, http.StatusConflict, dto.ConsistencyFromUseCase(rep))
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to check consistency", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ConsistencyFromUseCase(rep))
}
