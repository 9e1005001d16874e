package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iho/kasa/internal/domain"
)

func TestNewRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := New(registry)

	if m.SettlementsClosed == nil || m.HTTPRequests == nil || m.EventsPublished == nil {
		t.Fatalf("expected key metrics to be initialized: %+v", m)
	}

	m.SettlementFailed("storage")

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	if len(metricFamilies) == 0 {
		t.Fatalf("expected registered metrics, got none")
	}
}

func TestSettlementClosed(t *testing.T) {
	m := New(prometheus.NewRegistry())

	result, _, err := domain.NewEngine().Settle(domain.SamplePeriod(), domain.SampleShareholders(), domain.NewCarryState())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.SettlementClosed(result, 50*time.Millisecond)
	m.SettlementClosed(nil, time.Millisecond)

	if got := testutil.ToFloat64(m.SettlementsClosed); got != 2 {
		t.Fatalf("expected 2 closes, got %v", got)
	}
	if got := testutil.ToFloat64(m.AmountDistributed); got != 855000 {
		t.Fatalf("expected 855000 distributed, got %v", got)
	}
	if got := testutil.ToFloat64(m.CarryOutstanding); got != 0 {
		t.Fatalf("expected no outstanding carry, got %v", got)
	}
	if got := testutil.ToFloat64(m.SettlementShortfalls); got != 0 {
		t.Fatalf("expected no shortfall, got %v", got)
	}
	if got := testutil.CollectAndCount(m.SettlementDuration); got != 1 {
		t.Fatalf("expected one histogram series, got %d", got)
	}
}

func TestFailureAndOutboxCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SettlementFailed("order")
	m.SettlementFailed("order")
	m.SettlementFailed("locked")
	m.EventPublished(domain.EventTypePeriodClosed)
	m.EventPublishFailed()

	if got := testutil.ToFloat64(m.SettlementFailures.WithLabelValues("order")); got != 2 {
		t.Fatalf("expected 2 order failures, got %v", got)
	}
	if got := testutil.ToFloat64(m.EventsPublished.WithLabelValues(domain.EventTypePeriodClosed)); got != 1 {
		t.Fatalf("expected 1 published event, got %v", got)
	}
	if got := testutil.ToFloat64(m.PublishErrors); got != 1 {
		t.Fatalf("expected 1 publish error, got %v", got)
	}
}
