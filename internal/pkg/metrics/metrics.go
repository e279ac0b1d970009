package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry is the process-local prometheus registry exposed on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// LinkState records the vehicle link state (1=connected, 0=disconnected).
	LinkState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aerolink_link_state",
			Help: "Vehicle link state (1=connected, 0=disconnected).",
		},
	)

	// CommandsTotal counts executed commands by name and outcome.
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aerolink_commands_total",
			Help: "Total number of commands executed, by name and outcome.",
		},
		[]string{"command", "outcome"}, // outcome: success/failed
	)

	// CommandDuration records per-command execution latency.
	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aerolink_command_duration_seconds",
			Help:    "Latency of command execution including retries.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"command"},
	)

	// FailsafeTotal counts failsafe activations by action.
	FailsafeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aerolink_failsafe_total",
			Help: "Total number of failsafe activations, by action.",
		},
		[]string{"action"},
	)

	// CollectorRestartsTotal counts telemetry collector resubscribe attempts.
	CollectorRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aerolink_collector_restarts_total",
			Help: "Total number of telemetry collector resubscriptions after a feed error.",
		},
		[]string{"category"},
	)

	// CollectorStoppedTotal counts collectors that stopped permanently for a session.
	CollectorStoppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aerolink_collector_stopped_total",
			Help: "Total number of telemetry collectors that exhausted their retries.",
		},
		[]string{"category"},
	)

	// TelemetryAge reports seconds since the last telemetry snapshot update.
	TelemetryAge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aerolink_telemetry_age_seconds",
			Help: "Seconds since the telemetry state was last written.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		LinkState,
		CommandsTotal,
		CommandDuration,
		FailsafeTotal,
		CollectorRestartsTotal,
		CollectorStoppedTotal,
		TelemetryAge,
	)
}
