package domain

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors. Always detected before any payout is computed.
	ErrInvalidConfiguration = errors.New("invalid distribution configuration")
	ErrUnknownShareholder   = errors.New("unknown shareholder")

	// Data errors
	ErrMissingData     = errors.New("missing data")
	ErrPeriodNotFound  = fmt.Errorf("%w: period not found", ErrMissingData)
	ErrInvalidMonth    = errors.New("invalid period identifier")
	ErrInvalidAmount   = errors.New("amount must not be negative")
	ErrNoSettlement    = errors.New("settlement not found")
	ErrUnknownPolicy   = errors.New("unknown shortfall policy")
	ErrInvalidHolder   = errors.New("invalid shareholder")
	ErrDuplicateHolder = errors.New("duplicate shareholder")

	// Settlement errors
	ErrPeriodAlreadyClosed = errors.New("period already closed")
	ErrPeriodLocked        = errors.New("another close is in progress")
	ErrPeriodOutOfOrder    = errors.New("a later period is already closed")
)

// IsConfigurationError reports whether err is an invalid-input error that the
// engine refuses to compute with.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) || errors.Is(err, ErrUnknownShareholder)
}

// IsMissingData reports whether err signals absent registry or period data.
func IsMissingData(err error) bool {
	return errors.Is(err, ErrMissingData) || errors.Is(err, ErrNoSettlement)
}
