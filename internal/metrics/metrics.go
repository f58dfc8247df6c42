// Package metrics exposes optional Prometheus instrumentation for the
// stack's SDO, PDO, and heartbeat activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors for one Network instance. A nil *Metrics
// is valid and every method on it is a no-op, so callers can embed it
// unconditionally and only pay for instrumentation when it is enabled.
type Metrics struct {
	sdoTransfers    *prometheus.CounterVec
	pdoFrames       *prometheus.CounterVec
	heartbeatmisses prometheus.Counter
	dispatch        prometheus.Histogram
}

// New registers the stack's collectors against reg and returns the
// resulting Metrics. If reg is nil, instrumentation is disabled and New
// returns nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	return &Metrics{
		sdoTransfers: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "conet_sdo_transfers_total",
				Help: "Total number of completed SDO transfers by direction and outcome",
			},
			[]string{"direction", "outcome"}, // direction: upload|download, outcome: ok|error
		),
		pdoFrames: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "conet_pdo_frames_total",
				Help: "Total number of PDO frames processed by direction",
			},
			[]string{"direction"}, // rpdo|tpdo
		),
		heartbeatmisses: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "conet_heartbeat_timeouts_total",
				Help: "Total number of heartbeat consumer timeout events",
			},
		),
		dispatch: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "conet_router_dispatch_seconds",
				Help:    "Time spent dispatching one inbound CAN frame to its registered receivers",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (m *Metrics) SDOTransfer(direction, outcome string) {
	if m == nil {
		return
	}
	m.sdoTransfers.WithLabelValues(direction, outcome).Inc()
}

func (m *Metrics) PDOFrame(direction string) {
	if m == nil {
		return
	}
	m.pdoFrames.WithLabelValues(direction).Inc()
}

func (m *Metrics) HeartbeatTimeout() {
	if m == nil {
		return
	}
	m.heartbeatmisses.Inc()
}

func (m *Metrics) ObserveDispatch(d time.Duration) {
	if m == nil {
		return
	}
	m.dispatch.Observe(d.Seconds())
}
