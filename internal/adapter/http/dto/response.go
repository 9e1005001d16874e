package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/usecase"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ShareholderResponse represents a shareholder in API responses.
type ShareholderResponse struct {
	Name      string          `json:"name"`
	Key       string          `json:"key"`
	Percent   decimal.Decimal `json:"percent"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
}

// ShareholdersFromDomain converts the registry to responses.
func ShareholdersFromDomain(holders []domain.Shareholder) []ShareholderResponse {
	result := make([]ShareholderResponse, len(holders))
	for i, h := range holders {
		result[i] = ShareholderResponse{
			Name:      h.Name,
			Key:       h.Key().String(),
			Percent:   h.Percent,
			Active:    h.Active,
			CreatedAt: h.CreatedAt,
		}
	}
	return result
}

// PeriodResponse represents a period ledger entry in API responses.
type PeriodResponse struct {
	Month         string                     `json:"month"`
	TotalCash     decimal.Decimal            `json:"total_cash"`
	KeepCash      decimal.Decimal            `json:"keep_cash"`
	Distributable decimal.Decimal            `json:"distributable"`
	Advances      map[string]decimal.Decimal `json:"advances"`
}

// PeriodFromDomain converts a ledger entry to a response.
func PeriodFromDomain(e *domain.PeriodLedgerEntry) *PeriodResponse {
	advances := make(map[string]decimal.Decimal, len(e.Advances))
	for k, v := range e.Advances {
		advances[k.String()] = v
	}
	return &PeriodResponse{
		Month:         e.Month,
		TotalCash:     e.TotalCash,
		KeepCash:      e.KeepCash,
		Distributable: e.Distributable(),
		Advances:      advances,
	}
}

// PeriodsFromDomain converts ledger entries to responses.
func PeriodsFromDomain(entries []*domain.PeriodLedgerEntry) []*PeriodResponse {
	result := make([]*PeriodResponse, len(entries))
	for i, e := range entries {
		result[i] = PeriodFromDomain(e)
	}
	return result
}

// DistributionRow is one shareholder's line.
type DistributionRow struct {
	Name        string          `json:"name"`
	Key         string          `json:"key"`
	Percent     decimal.Decimal `json:"percent"`
	Entitlement decimal.Decimal `json:"entitlement"`
	Advance     decimal.Decimal `json:"advance"`
	PrevCarry   decimal.Decimal `json:"prev_carry"`
	Paid        decimal.Decimal `json:"paid"`
	NewCarry    decimal.Decimal `json:"new_carry"`
}

// DistributionResponse represents a computed distribution.
type DistributionResponse struct {
	Month            string            `json:"month"`
	Distributable    decimal.Decimal   `json:"distributable"`
	TotalEntitlement decimal.Decimal   `json:"total_entitlement"`
	TotalPaid        decimal.Decimal   `json:"total_paid"`
	TotalClaims      decimal.Decimal   `json:"total_claims"`
	Policy           string            `json:"policy"`
	Shortfall        bool              `json:"shortfall"`
	Rows             []DistributionRow `json:"rows"`
}

// DistributionFromDomain converts an engine result to a response.
func DistributionFromDomain(r *domain.DistributionResult) *DistributionResponse {
	rows := make([]DistributionRow, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = DistributionRow{
			Name:        row.Name,
			Key:         row.Key.String(),
			Percent:     row.Percent,
			Entitlement: row.Entitlement,
			Advance:     row.Advance,
			PrevCarry:   row.PrevCarry,
			Paid:        row.Paid,
			NewCarry:    row.NewCarry,
		}
	}
	return &DistributionResponse{
		Month:            r.Month,
		Distributable:    r.Distributable,
		TotalEntitlement: r.TotalEntitlement,
		TotalPaid:        r.TotalPaid,
		TotalClaims:      r.TotalClaims,
		Policy:           r.Policy,
		Shortfall:        r.Shortfall,
		Rows:             rows,
	}
}

// SettlementResponse represents a closed period.
type SettlementResponse struct {
	ID           string                `json:"id"`
	Month        string                `json:"month"`
	ClosedAt     time.Time             `json:"closed_at"`
	ClosedBy     string                `json:"closed_by,omitempty"`
	Distribution *DistributionResponse `json:"distribution"`
}

// SettlementFromDomain converts a settlement to a response.
func SettlementFromDomain(s *domain.Settlement) *SettlementResponse {
	resp := &SettlementResponse{
		ID:       s.ID,
		Month:    s.Month,
		ClosedAt: s.ClosedAt,
		ClosedBy: s.ClosedBy,
	}
	if s.Result != nil {
		resp.Distribution = DistributionFromDomain(s.Result)
	}
	return resp
}

// CarryResponse represents the carry store.
type CarryResponse struct {
	Balances map[string]decimal.Decimal `json:"balances"`
	Total    decimal.Decimal            `json:"total"`
}

// CarryFromDomain converts a carry state to a response.
func CarryFromDomain(c domain.CarryState) *CarryResponse {
	balances := make(map[string]decimal.Decimal, len(c.Balances))
	for k, v := range c.Balances {
		balances[k.String()] = v
	}
	return &CarryResponse{Balances: balances, Total: c.Total()}
}

// ConsistencyResponse reports whether the carry store matches the latest
// settlement.
type ConsistencyResponse struct {
	Consistent  bool     `json:"consistent"`
	LatestMonth string   `json:"latest_month,omitempty"`
	Mismatched  []string `json:"mismatched,omitempty"`
}

// ConsistencyFromUseCase converts a consistency report to a response.
func ConsistencyFromUseCase(r *usecase.ConsistencyReport) *ConsistencyResponse {
	resp := &ConsistencyResponse{Consistent: r.Consistent, LatestMonth: r.LatestMonth}
	for _, k := range r.Mismatched {
		resp.Mismatched = append(resp.Mismatched, k.String())
	}
	return resp
}
