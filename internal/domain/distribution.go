package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ResultRow is one shareholder's line in a settlement.
type ResultRow struct {
	Name        string
	Key         HolderKey
	Percent     decimal.Decimal
	Entitlement decimal.Decimal
	Advance     decimal.Decimal
	PrevCarry   decimal.Decimal
	Paid        decimal.Decimal
	NewCarry    decimal.Decimal
}

// DistributionResult is the engine output for one period. Rows follow
// registry order; currency fields are rounded to two decimals.
type DistributionResult struct {
	Month            string
	Distributable    decimal.Decimal
	Rows             []ResultRow
	TotalEntitlement decimal.Decimal
	TotalPaid        decimal.Decimal
	TotalClaims      decimal.Decimal
	Policy           string
	Shortfall        bool
}

// Carry returns the carry state implied by the result's rows.
func (r *DistributionResult) Carry() CarryState {
	state := NewCarryState()
	for _, row := range r.Rows {
		state.Balances[row.Key] = row.NewCarry
	}
	return state
}

// PriorCarry returns the carry state the result was computed from.
func (r *DistributionResult) PriorCarry() CarryState {
	state := NewCarryState()
	for _, row := range r.Rows {
		if !row.PrevCarry.IsZero() {
			state.Balances[row.Key] = row.PrevCarry
		}
	}
	return state
}

// Settlement is a closed period: the result together with the carry that was
// persisted for the next period.
type Settlement struct {
	ID       string
	Month    string
	Result   *DistributionResult
	NewCarry CarryState
	ClosedAt time.Time
	ClosedBy string
}

// Engine computes distributions. It is stateless and safe for concurrent use.
type Engine struct {
	policy     ShortfallPolicy
	strictKeys bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPolicy sets the shortfall policy. The default is ProportionalPolicy.
func WithPolicy(p ShortfallPolicy) EngineOption {
	return func(e *Engine) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithStrictKeys makes advances or carry balances for names outside the
// registry an error instead of being ignored.
func WithStrictKeys(strict bool) EngineOption {
	return func(e *Engine) {
		e.strictKeys = strict
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{policy: ProportionalPolicy{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the configured shortfall policy.
func (e *Engine) Policy() ShortfallPolicy {
	return e.policy
}

// ComputeDistribution runs the default engine.
func ComputeDistribution(
	month string,
	holders []Shareholder,
	totalCash, keepCash decimal.Decimal,
	advances map[HolderKey]decimal.Decimal,
	carry map[HolderKey]decimal.Decimal,
) (*DistributionResult, CarryState, error) {
	return NewEngine().Compute(month, holders, totalCash, keepCash, advances, carry)
}

// Settle computes the distribution for a stored ledger entry.
func (e *Engine) Settle(entry *PeriodLedgerEntry, holders []Shareholder, carry CarryState) (*DistributionResult, CarryState, error) {
	if entry == nil {
		return nil, CarryState{}, fmt.Errorf("%w: period entry is nil", ErrMissingData)
	}
	return e.Compute(entry.Month, holders, entry.TotalCash, entry.KeepCash, entry.Advances, carry.Balances)
}

// Compute validates the inputs and splits the distributable pool. Either the
// whole result is returned or an error; inputs are never modified.
func (e *Engine) Compute(
	month string,
	holders []Shareholder,
	totalCash, keepCash decimal.Decimal,
	advances map[HolderKey]decimal.Decimal,
	carry map[HolderKey]decimal.Decimal,
) (*DistributionResult, CarryState, error) {
	if err := ValidateShareholders(holders); err != nil {
		return nil, CarryState{}, err
	}
	if err := ValidateCashPool(totalCash, keepCash); err != nil {
		return nil, CarryState{}, err
	}
	if e.strictKeys {
		if unknown := UnmatchedKeys(holders, advances, carry); len(unknown) > 0 {
			return nil, CarryState{}, fmt.Errorf("%w: %v", ErrUnknownShareholder, unknown)
		}
	}

	distributable := totalCash.Sub(keepCash)

	n := len(holders)
	entitlements := make([]decimal.Decimal, n)
	raw := make([]decimal.Decimal, n)
	claims := make([]decimal.Decimal, n)

	for i, h := range holders {
		key := h.Key()
		entitlements[i] = distributable.Mul(h.Percent).Shift(-2)
		raw[i] = entitlements[i].Sub(advances[key]).Add(carry[key])
		if raw[i].IsPositive() {
			claims[i] = raw[i]
		} else {
			// Overpaid holders neither consume pool cash nor get scaled.
			claims[i] = decimal.Zero
		}
	}

	totalClaims := sumDecimals(claims)
	unrounded := e.policy.Allocate(distributable, claims)

	paid := make([]decimal.Decimal, n)
	for i := range unrounded {
		paid[i] = RoundCurrency(unrounded[i])
	}
	capToPool(paid, unrounded, distributable)

	result := &DistributionResult{
		Month:         month,
		Distributable: RoundCurrency(distributable),
		Rows:          make([]ResultRow, 0, n),
		TotalClaims:   RoundCurrency(totalClaims),
		Policy:        e.policy.Name(),
		Shortfall:     totalClaims.GreaterThan(distributable),
	}

	totalEntitlement := decimal.Zero
	totalPaid := decimal.Zero
	newCarry := NewCarryState()

	for i, h := range holders {
		key := h.Key()
		row := ResultRow{
			Name:        h.Name,
			Key:         key,
			Percent:     h.Percent,
			Entitlement: RoundCurrency(entitlements[i]),
			Advance:     RoundCurrency(advances[key]),
			PrevCarry:   RoundCurrency(carry[key]),
			Paid:        paid[i],
			NewCarry:    RoundCurrency(raw[i].Sub(paid[i])),
		}
		result.Rows = append(result.Rows, row)
		newCarry.Balances[key] = row.NewCarry

		totalEntitlement = totalEntitlement.Add(row.Entitlement)
		totalPaid = totalPaid.Add(row.Paid)
	}

	result.TotalEntitlement = RoundCurrency(totalEntitlement)
	result.TotalPaid = RoundCurrency(totalPaid)

	return result, newCarry, nil
}

// capToPool removes the cents that half-up rounding added on top of the pool.
// Rows that gained the most from rounding give back one cent each.
func capToPool(paid, unrounded []decimal.Decimal, pool decimal.Decimal) {
	excess := sumDecimals(paid).Sub(pool)
	if !excess.IsPositive() {
		return
	}

	cents := int(excess.Div(Cent).Ceil().IntPart())

	idx := make([]int, 0, len(paid))
	for i := range paid {
		if paid[i].IsPositive() {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ga := paid[idx[a]].Sub(unrounded[idx[a]])
		gb := paid[idx[b]].Sub(unrounded[idx[b]])
		return ga.GreaterThan(gb)
	})

	for _, i := range idx {
		if cents == 0 {
			return
		}
		paid[i] = paid[i].Sub(Cent)
		cents--
	}
}

// UnmatchedKeys lists advance and carry keys that belong to no holder in the
// registry, sorted and without duplicates.
func UnmatchedKeys(holders []Shareholder, advances, carry map[HolderKey]decimal.Decimal) []HolderKey {
	known := make(map[HolderKey]struct{}, len(holders))
	for _, h := range holders {
		known[h.Key()] = struct{}{}
	}

	seen := make(map[HolderKey]struct{})
	var unknown []HolderKey
	for _, m := range []map[HolderKey]decimal.Decimal{advances, carry} {
		for k := range m {
			if _, ok := known[k]; ok {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			unknown = append(unknown, k)
		}
	}

	sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
	return unknown
}
