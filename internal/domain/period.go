package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PeriodLedgerEntry is one period's cash pool and the advances already paid out.
type PeriodLedgerEntry struct {
	Month     string
	TotalCash decimal.Decimal
	KeepCash  decimal.Decimal
	Advances  map[HolderKey]decimal.Decimal
}

// Distributable returns the cash available for payout.
func (e *PeriodLedgerEntry) Distributable() decimal.Decimal {
	return e.TotalCash.Sub(e.KeepCash)
}

// Advance returns the advance recorded for key, or zero.
func (e *PeriodLedgerEntry) Advance(key HolderKey) decimal.Decimal {
	if e.Advances == nil {
		return decimal.Zero
	}
	return e.Advances[key]
}

// AdvanceKeys returns the advance keys in sorted order.
func (e *PeriodLedgerEntry) AdvanceKeys() []HolderKey {
	return sortedKeys(e.Advances)
}

// SamplePeriod is the ledger entry written by the seed command.
func SamplePeriod() *PeriodLedgerEntry {
	return &PeriodLedgerEntry{
		Month:     "2025-12",
		TotalCash: decimal.NewFromInt(1000000),
		KeepCash:  decimal.Zero,
		Advances: map[HolderKey]decimal.Decimal{
			KeyOf("Burhan Arslan"): decimal.NewFromInt(120000),
			KeyOf("Emre Babur"):    decimal.Zero,
			KeyOf("Ali Babur"):     decimal.NewFromInt(20000),
			KeyOf("Selin Özcan"):   decimal.NewFromInt(5000),
		},
	}
}

func sortedKeys(m map[HolderKey]decimal.Decimal) []HolderKey {
	keys := make([]HolderKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
