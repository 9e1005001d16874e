package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxHolderNameLength = 120
	MinHolderNameLength = 1
	MaxCashAmount       = "1000000000000" // 1 trillion
)

var (
	hundred    = decimal.NewFromInt(100)
	monthRegex = regexp.MustCompile(`^[0-9]{4}-(0[1-9]|1[0-2])$`)
)

// ValidateShareholderName validates a registry name.
func ValidateShareholderName(name string) error {
	name = strings.TrimSpace(name)

	if len(name) < MinHolderNameLength {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidHolder)
	}

	if len(name) > MaxHolderNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidHolder, MaxHolderNameLength)
	}

	return nil
}

// ValidatePercent checks that a percentage lies in [0,100].
func ValidatePercent(percent decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return fmt.Errorf("%w: percent %s outside [0,100]", ErrInvalidConfiguration, percent.String())
	}
	return nil
}

// ValidateShareholders checks that holders form a complete registry: unique
// names, valid percentages, and an exact total of 100. Every failure is an
// ErrInvalidConfiguration.
func ValidateShareholders(holders []Shareholder) error {
	if len(holders) == 0 {
		return fmt.Errorf("%w: %w: no shareholders", ErrInvalidConfiguration, ErrMissingData)
	}

	seen := make(map[HolderKey]struct{}, len(holders))
	for _, h := range holders {
		if err := ValidateShareholderName(h.Name); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
		if err := ValidatePercent(h.Percent); err != nil {
			return fmt.Errorf("%s: %w", h.Name, err)
		}
		if _, dup := seen[h.Key()]; dup {
			return fmt.Errorf("%w: %w: %s", ErrInvalidConfiguration, ErrDuplicateHolder, h.Name)
		}
		seen[h.Key()] = struct{}{}
	}

	// Exact decimal comparison: 99.99 and 100.01 are both rejected.
	total := TotalPercent(holders)
	if !total.Equal(hundred) {
		return fmt.Errorf("%w: shareholder percentages sum to %s, not 100", ErrInvalidConfiguration, total.String())
	}

	return nil
}

// ValidateMonth validates a "YYYY-MM" period identifier.
func ValidateMonth(month string) error {
	if !monthRegex.MatchString(month) {
		return fmt.Errorf("%w: %q is not YYYY-MM", ErrInvalidMonth, month)
	}
	return nil
}

// ValidateAmount validates a cash amount: not negative and not absurdly large.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}

	maxAmount, _ := decimal.NewFromString(MaxCashAmount)
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrInvalidAmount, MaxCashAmount)
	}

	return nil
}

// ValidateCashPool checks the reserve and the resulting distributable pool.
func ValidateCashPool(totalCash, keepCash decimal.Decimal) error {
	if keepCash.IsNegative() {
		return fmt.Errorf("%w: reserve %s is negative", ErrInvalidConfiguration, keepCash.String())
	}
	if totalCash.Sub(keepCash).IsNegative() {
		return fmt.Errorf("%w: distributable cash %s is negative", ErrInvalidConfiguration, totalCash.Sub(keepCash).String())
	}
	return nil
}

// ValidatePeriod validates a ledger entry before it is stored.
func ValidatePeriod(entry *PeriodLedgerEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: period entry is nil", ErrMissingData)
	}
	if err := ValidateMonth(entry.Month); err != nil {
		return err
	}
	if err := ValidateAmount(entry.TotalCash); err != nil {
		return fmt.Errorf("total cash: %w", err)
	}
	if err := ValidateCashPool(entry.TotalCash, entry.KeepCash); err != nil {
		return err
	}
	for _, key := range entry.AdvanceKeys() {
		if err := ValidateAmount(entry.Advances[key]); err != nil {
			return fmt.Errorf("advance for %s: %w", key, err)
		}
	}
	return nil
}
