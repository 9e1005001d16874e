package domain

import (
	"encoding/json"
	"time"
)

// AuditLog represents an audit trail entry for a change to the books
type AuditLog struct {
	ID           string
	UserID       string // Who performed the action
	Action       string // What action (period.close, shareholders.replace, etc.)
	ResourceType string // period, registry, carry
	ResourceID   string // Month for periods, "registry" for the shareholder list
	RequestID    string // Request ID for tracing
	BeforeState  JSON   // State before the action
	AfterState   JSON   // State after the action
	Status       string // success, failure
	ErrorMessage string
	CreatedAt    time.Time
}

// JSON is a type alias for JSON data
type JSON map[string]any

// AuditAction represents different types of auditable actions
type AuditAction string

const (
	AuditActionPeriodRecord        AuditAction = "period.record"
	AuditActionPeriodClose         AuditAction = "period.close"
	AuditActionShareholdersReplace AuditAction = "shareholders.replace"
	AuditActionSeed                AuditAction = "seed"
)

// AuditStatus represents the status of an audited action
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// MarshalState converts a domain object to JSON for audit logging
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": "failed to marshal state"}
	}

	var result JSON
	if err := json.Unmarshal(data, &result); err != nil {
		return JSON{"error": "failed to unmarshal state"}
	}

	return result
}

// CarrySnapshot renders a carry state as name -> fixed decimal string.
func CarrySnapshot(c CarryState) JSON {
	out := make(JSON, len(c.Balances))
	for _, k := range c.Keys() {
		out[k.String()] = c.Balances[k].StringFixed(CurrencyPlaces)
	}
	return out
}

// AuditFilter defines filters for querying audit logs
type AuditFilter struct {
	Action       string
	ResourceType string
	ResourceID   string
	Limit        int
}
