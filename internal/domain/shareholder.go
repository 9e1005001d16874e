package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HolderKey is the normalized identity of a shareholder. Advances and carry
// balances are keyed by it so that "Ali Babur" and "ali babur" address the
// same holder.
type HolderKey string

// KeyOf returns the HolderKey for a display name.
func KeyOf(name string) HolderKey {
	return HolderKey(strings.ToLower(strings.TrimSpace(name)))
}

// String returns the key as a plain string.
func (k HolderKey) String() string { return string(k) }

// Shareholder is a registry record with a fixed percentage entitlement.
type Shareholder struct {
	Name      string
	Percent   decimal.Decimal
	Active    bool
	CreatedAt time.Time
}

// NewShareholder creates an active shareholder.
func NewShareholder(name string, percent decimal.Decimal) Shareholder {
	return Shareholder{
		Name:    strings.TrimSpace(name),
		Percent: percent,
		Active:  true,
	}
}

// Key returns the holder's normalized identity.
func (s Shareholder) Key() HolderKey {
	return KeyOf(s.Name)
}

// ActiveShareholders returns the active holders in registry order.
func ActiveShareholders(holders []Shareholder) []Shareholder {
	active := make([]Shareholder, 0, len(holders))
	for _, h := range holders {
		if h.Active {
			active = append(active, h)
		}
	}
	return active
}

// TotalPercent sums the percentages of holders.
func TotalPercent(holders []Shareholder) decimal.Decimal {
	total := decimal.Zero
	for _, h := range holders {
		total = total.Add(h.Percent)
	}
	return total
}

// SampleShareholders is the registry written by the seed command.
func SampleShareholders() []Shareholder {
	return []Shareholder{
		NewShareholder("Burhan Arslan", decimal.NewFromInt(50)),
		NewShareholder("Emre Babur", decimal.NewFromInt(30)),
		NewShareholder("Ali Babur", decimal.NewFromInt(10)),
		NewShareholder("Selin Özcan", decimal.NewFromInt(10)),
	}
}
