package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Policy names accepted by PolicyByName.
const (
	PolicyProportional = "proportional"
	PolicyPriority     = "priority"
)

// scalePrecision is the number of fractional digits kept for the shortfall
// scale factor, far below the currency quantum.
const scalePrecision = 28

// ShortfallPolicy decides how a pool is split between claims when the claims
// may exceed it. Claims are non-negative and in registry order; the returned
// allocations are unrounded and must not sum to more than the pool.
type ShortfallPolicy interface {
	Name() string
	Allocate(pool decimal.Decimal, claims []decimal.Decimal) []decimal.Decimal
}

// ProportionalPolicy shrinks every positive claim by the same factor
// pool/total when the total exceeds the pool.
type ProportionalPolicy struct{}

// Name implements ShortfallPolicy.
func (ProportionalPolicy) Name() string { return PolicyProportional }

// Allocate implements ShortfallPolicy.
func (ProportionalPolicy) Allocate(pool decimal.Decimal, claims []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(claims))
	copy(out, claims)

	scale := ShortfallScale(pool, sumDecimals(claims))
	if scale.LessThan(decimal.NewFromInt(1)) {
		for i := range out {
			out[i] = out[i].Mul(scale)
		}
	}

	return out
}

// ShortfallScale returns pool/total when total exceeds the pool, else 1.
func ShortfallScale(pool, total decimal.Decimal) decimal.Decimal {
	if total.GreaterThan(pool) && total.IsPositive() {
		return pool.DivRound(total, scalePrecision)
	}
	return decimal.NewFromInt(1)
}

// PriorityPolicy pays claims in full in registry order until the pool runs
// out. Later holders absorb the whole shortfall.
type PriorityPolicy struct{}

// Name implements ShortfallPolicy.
func (PriorityPolicy) Name() string { return PolicyPriority }

// Allocate implements ShortfallPolicy.
func (PriorityPolicy) Allocate(pool decimal.Decimal, claims []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(claims))
	remaining := pool

	for i, claim := range claims {
		pay := decimal.Min(claim, remaining)
		if pay.IsNegative() {
			pay = decimal.Zero
		}
		out[i] = pay
		remaining = remaining.Sub(pay)
	}

	return out
}

// PolicyByName resolves a configured policy name. An empty name selects the
// proportional policy.
func PolicyByName(name string) (ShortfallPolicy, error) {
	switch name {
	case "", PolicyProportional:
		return ProportionalPolicy{}, nil
	case PolicyPriority:
		return PriorityPolicy{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

func sumDecimals(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
