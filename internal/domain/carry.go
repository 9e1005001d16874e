package domain

import "github.com/shopspring/decimal"

// CarryState holds the signed balance each shareholder carries into the next
// period. Positive means still owed, negative means overpaid.
type CarryState struct {
	Balances map[HolderKey]decimal.Decimal
}

// NewCarryState returns an empty carry state.
func NewCarryState() CarryState {
	return CarryState{Balances: make(map[HolderKey]decimal.Decimal)}
}

// Balance returns the carried balance for key, or zero.
func (c CarryState) Balance(key HolderKey) decimal.Decimal {
	if c.Balances == nil {
		return decimal.Zero
	}
	return c.Balances[key]
}

// Keys returns the carried keys in sorted order.
func (c CarryState) Keys() []HolderKey {
	return sortedKeys(c.Balances)
}

// Clone returns a copy that does not share the underlying map.
func (c CarryState) Clone() CarryState {
	out := NewCarryState()
	for k, v := range c.Balances {
		out.Balances[k] = v
	}
	return out
}

// Total sums all carried balances.
func (c CarryState) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range c.Balances {
		total = total.Add(v)
	}
	return total
}
