package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the parking backend.
type Metrics struct {
	SessionEventsTotal   *prometheus.CounterVec
	TelemetryTotal       *prometheus.CounterVec
	AccessSignalsTotal   *prometheus.CounterVec
	NotificationsTotal   *prometheus.CounterVec
	SlotsByState         *prometheus.GaugeVec
	DwellDurationSeconds prometheus.Histogram
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Init registers the metrics with the default registry once and returns them.
func Init() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			SessionEventsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "parking_session_events_total",
					Help: "Session operations by kind and outcome",
				},
				[]string{"op", "outcome"},
			),
			TelemetryTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "parking_telemetry_messages_total",
					Help: "Slot telemetry messages by outcome",
				},
				[]string{"outcome"},
			),
			AccessSignalsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "parking_access_signals_total",
					Help: "Access signals by outcome",
				},
				[]string{"outcome"},
			),
			NotificationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "parking_push_notifications_total",
					Help: "Slot-free push notifications by outcome",
				},
				[]string{"outcome"},
			),
			SlotsByState: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "parking_slots",
					Help: "Current slots by state",
				},
				[]string{"state"},
			),
			DwellDurationSeconds: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "parking_dwell_duration_seconds",
					Help:    "Completed slot occupations",
					Buckets: []float64{30, 60, 300, 900, 1800, 3600, 7200, 14400, 28800},
				},
			),
		}
	})
	return globalMetrics
}

// RecordSession records a session operation outcome.
func (m *Metrics) RecordSession(op, outcome string) {
	if m == nil {
		return
	}
	m.SessionEventsTotal.WithLabelValues(op, outcome).Inc()
}

// RecordTelemetry records a telemetry message outcome.
func (m *Metrics) RecordTelemetry(outcome string) {
	if m == nil {
		return
	}
	m.TelemetryTotal.WithLabelValues(outcome).Inc()
}

// RecordAccess records an access signal outcome.
func (m *Metrics) RecordAccess(outcome string) {
	if m == nil {
		return
	}
	m.AccessSignalsTotal.WithLabelValues(outcome).Inc()
}

// RecordNotification records a push notification outcome.
func (m *Metrics) RecordNotification(outcome string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(outcome).Inc()
}

// SetSlots sets the slot gauge for one state.
func (m *Metrics) SetSlots(state string, count int) {
	if m == nil {
		return
	}
	m.SlotsByState.WithLabelValues(state).Set(float64(count))
}

// ObserveDwell records a completed occupation duration.
func (m *Metrics) ObserveDwell(seconds float64) {
	if m == nil {
		return
	}
	m.DwellDurationSeconds.Observe(seconds)
}
