package dto

import (
	"github.com/shopspring/decimal"

	"github.com/iho/kasa/internal/usecase"
)

// ShareholderRequest is one row of a registry replacement.
type ShareholderRequest struct {
	Name    string          `json:"name"`
	Percent decimal.Decimal `json:"percent"`
	Active  *bool           `json:"active,omitempty"`
}

// ReplaceShareholdersRequest replaces the whole registry.
type ReplaceShareholdersRequest struct {
	Shareholders []ShareholderRequest `json:"shareholders"`
}

// ToUseCaseInput converts to use case input. Rows without an explicit
// active flag are active.
func (r *ReplaceShareholdersRequest) ToUseCaseInput(actor, requestID string) usecase.ReplaceShareholdersInput {
	holders := make([]usecase.ShareholderInput, len(r.Shareholders))
	for i, row := range r.Shareholders {
		active := true
		if row.Active != nil {
			active = *row.Active
		}
		holders[i] = usecase.ShareholderInput{
			Name:    row.Name,
			Percent: row.Percent,
			Active:  active,
		}
	}

	return usecase.ReplaceShareholdersInput{
		Holders:   holders,
		Actor:     actor,
		RequestID: requestID,
	}
}

// RecordPeriodRequest records the cash figures of a month.
type RecordPeriodRequest struct {
	TotalCash decimal.Decimal            `json:"total_cash"`
	KeepCash  decimal.Decimal            `json:"keep_cash"`
	Advances  map[string]decimal.Decimal `json:"advances,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *RecordPeriodRequest) ToUseCaseInput(month, actor, requestID string) usecase.RecordPeriodInput {
	return usecase.RecordPeriodInput{
		Month:     month,
		TotalCash: r.TotalCash,
		KeepCash:  r.KeepCash,
		Advances:  r.Advances,
		Actor:     actor,
		RequestID: requestID,
	}
}

// ClosePeriodRequest closes a month. The body is optional.
type ClosePeriodRequest struct {
	Force bool `json:"force"`
}

// ToUseCaseInput converts to use case input.
func (r *ClosePeriodRequest) ToUseCaseInput(month, actor, requestID string) usecase.ClosePeriodInput {
	return usecase.ClosePeriodInput{
		Month:     month,
		Force:     r.Force,
		Actor:     actor,
		RequestID: requestID,
	}
}
