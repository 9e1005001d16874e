package domain

import "time"

// Event types
const (
	EventTypePeriodClosed        = "period.closed"
	EventTypePeriodRecorded      = "period.recorded"
	EventTypeShareholdersChanged = "shareholders.changed"
)

// Aggregate types
const (
	AggregateTypePeriod   = "period"
	AggregateTypeRegistry = "registry"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// PeriodClosedEvent payload
type PeriodClosedEvent struct {
	SettlementID  string            `json:"settlement_id"`
	Month         string            `json:"month"`
	Distributable string            `json:"distributable"`
	TotalPaid     string            `json:"total_paid"`
	Policy        string            `json:"policy"`
	Payouts       map[string]string `json:"payouts"`
}

// NewPeriodClosedEvent builds the payload for a settlement.
func NewPeriodClosedEvent(s *Settlement) PeriodClosedEvent {
	payouts := make(map[string]string, len(s.Result.Rows))
	for _, row := range s.Result.Rows {
		payouts[row.Name] = row.Paid.StringFixed(CurrencyPlaces)
	}

	return PeriodClosedEvent{
		SettlementID:  s.ID,
		Month:         s.Month,
		Distributable: s.Result.Distributable.StringFixed(CurrencyPlaces),
		TotalPaid:     s.Result.TotalPaid.StringFixed(CurrencyPlaces),
		Policy:        s.Result.Policy,
		Payouts:       payouts,
	}
}

// Payload converts the event to the generic outbox payload.
func (e PeriodClosedEvent) Payload() map[string]any {
	return MarshalState(e)
}
