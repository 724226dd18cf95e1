package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for pin synchronization
// =============================================================================

var (
	// updatesTotal counts Highway update completions.
	// Labels: outcome (applied, rejected, failed, stale)
	updatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pinsync",
		Subsystem: "engine",
		Name:      "updates_total",
		Help:      "Total Highway update completions by outcome",
	}, []string{"outcome"})

	// restoredTotal counts connections recreated after a schema replace.
	restoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pinsync",
		Subsystem: "engine",
		Name:      "connections_restored_total",
		Help:      "Connections restored by name after a schema replace",
	})

	// droppedTotal counts connections that had no counterpart after a replace.
	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pinsync",
		Subsystem: "engine",
		Name:      "connections_dropped_total",
		Help:      "Connections dropped after a schema replace",
	})

	// reactiveEvents counts connection events handled by the reactors.
	// Labels: node_type (Highway, Junction), kind (connect, disconnect, bulk_load)
	reactiveEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pinsync",
		Subsystem: "engine",
		Name:      "reactive_events_total",
		Help:      "Connection events handled by node reactors",
	}, []string{"node_type", "kind"})

	// eventsProcessed counts loop events by type and status.
	// Labels: type, status (ok, error)
	eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pinsync",
		Subsystem: "engine",
		Name:      "events_processed_total",
		Help:      "Events processed by the engine loop",
	}, []string{"type", "status"})
)

const (
	outcomeApplied  = "applied"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
	outcomeStale    = "stale"
)

func eventKind(connected, bulk bool) string {
	switch {
	case bulk:
		return "bulk_load"
	case connected:
		return "connect"
	default:
		return "disconnect"
	}
}
