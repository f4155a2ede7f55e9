package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		sendsTotal,
		quotaBlocksTotal,
		spamBlocksTotal,
		sessionsTotal,
		lifecycleTransitions,
	)
}

var (
	sendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_sends_total",
			Help: "User send attempts by outcome (accepted, pending, rejected).",
		},
		[]string{"outcome"},
	)

	quotaBlocksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "widget_quota_blocks_total",
			Help: "Sends rejected by an exhausted quota window.",
		},
	)

	spamBlocksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "widget_spam_blocks_total",
			Help: "Sends rejected by the inter-message cooldown.",
		},
	)

	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_sessions_total",
			Help: "Session lifecycle events (created, ended, cleared).",
		},
		[]string{"event"},
	)

	lifecycleTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_lifecycle_transitions_total",
			Help: "Status transitions applied by the lifecycle sweeps.",
		},
		[]string{"to"},
	)
)

func IncSend(outcome string)           { sendsTotal.WithLabelValues(norm(outcome)).Inc() }
func IncQuotaBlock()                   { quotaBlocksTotal.Inc() }
func IncSpamBlock()                    { spamBlocksTotal.Inc() }
func IncSessionEvent(event string)     { sessionsTotal.WithLabelValues(norm(event)).Inc() }
func IncLifecycleTransition(to string) { lifecycleTransitions.WithLabelValues(norm(to)).Inc() }
