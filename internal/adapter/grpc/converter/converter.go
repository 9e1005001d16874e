package converter

import (
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/iho/kasa/internal/adapter/grpc/api"
	"github.com/iho/kasa/internal/domain"
)

// amount renders currency values with two decimals.
func amount(d decimal.Decimal) string {
	return d.StringFixed(domain.CurrencyPlaces)
}

// DistributionToAPI converts an engine result.
func DistributionToAPI(r *domain.DistributionResult) *api.Distribution {
	if r == nil {
		return nil
	}

	rows := make([]api.Row, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = api.Row{
			Name:        row.Name,
			Key:         row.Key.String(),
			Percent:     row.Percent.String(),
			Entitlement: amount(row.Entitlement),
			Advance:     amount(row.Advance),
			PrevCarry:   amount(row.PrevCarry),
			Paid:        amount(row.Paid),
			NewCarry:    amount(row.NewCarry),
		}
	}

	return &api.Distribution{
		Month:            r.Month,
		Distributable:    amount(r.Distributable),
		TotalEntitlement: amount(r.TotalEntitlement),
		TotalPaid:        amount(r.TotalPaid),
		TotalClaims:      amount(r.TotalClaims),
		Policy:           r.Policy,
		Shortfall:        r.Shortfall,
		Rows:             rows,
	}
}

// SettlementToAPI converts a closed month.
func SettlementToAPI(s *domain.Settlement) *api.Settlement {
	if s == nil {
		return nil
	}
	return &api.Settlement{
		ID:           s.ID,
		Month:        s.Month,
		ClosedAt:     timestamppb.New(s.ClosedAt),
		ClosedBy:     s.ClosedBy,
		Distribution: DistributionToAPI(s.Result),
		NewCarry:     CarryToAPI(s.NewCarry).Balances,
	}
}

// CarryToAPI converts carried balances.
func CarryToAPI(c domain.CarryState) *api.Carry {
	balances := make(map[string]string, len(c.Balances))
	for _, key := range c.Keys() {
		balances[key.String()] = amount(c.Balance(key))
	}
	return &api.Carry{
		Balances: balances,
		Total:    amount(c.Total()),
	}
}
