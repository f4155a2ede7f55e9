package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		stuckEvictionsTotal,
		emergencyRecoveriesTotal,
	)
}

var (
	stuckEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "widget_stuck_evictions_total",
			Help: "Operations evicted by the stuck-operation sweep.",
		},
	)

	emergencyRecoveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_emergency_recoveries_total",
			Help: "Emergency recovery runs by trigger (sweep, panic).",
		},
		[]string{"trigger"},
	)
)

func AddStuckEvictions(n int) {
	if n > 0 {
		stuckEvictionsTotal.Add(float64(n))
	}
}

func IncEmergencyRecovery(trigger string) {
	emergencyRecoveriesTotal.WithLabelValues(norm(trigger)).Inc()
}
