package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/iho/kasa/internal/adapter/http/dto"
	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/usecase"
)

type shareholderService interface {
	List(ctx context.Context, includeInactive bool) ([]domain.Shareholder, error)
	Replace(ctx context.Context, input usecase.ReplaceShareholdersInput) ([]domain.Shareholder, error)
}

// ShareholderHandler serves the shareholder registry.
type ShareholderHandler struct {
	shareholderUC shareholderService
}

// NewShareholderHandler creates a new ShareholderHandler.
func NewShareholderHandler(shareholderUC shareholderService) *ShareholderHandler {
	return &ShareholderHandler{shareholderUC: shareholderUC}
}

// List returns the registry. Inactive rows are included with ?all=true.
func (h *ShareholderHandler) List(w http.ResponseWriter, r *http.Request) {
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))

	holders, err := h.shareholderUC.List(r.Context(), all)
	if err != nil {
		writeDomainError(w, "failed to list shareholders", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ShareholdersFromDomain(holders))
}

// Replace swaps the whole registry.
func (h *ShareholderHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var req dto.ReplaceShareholdersRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	holders, err := h.shareholderUC.Replace(r.Context(), req.ToUseCaseInput(actor(r), requestID(r)))
	if err != nil {
		writeDomainError(w, "failed to replace shareholders", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ShareholdersFromDomain(holders))
}
