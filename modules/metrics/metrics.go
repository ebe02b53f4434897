package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics served on /metrics. Loops update them best-effort; the
// Status Loop refreshes the gauges on its interval.
var (
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "muse_commands_total",
		Help: "Parsed chat commands by kind.",
	}, []string{"kind"})

	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "muse_generations_total",
		Help: "Generation attempts by backend and outcome.",
	}, []string{"backend", "outcome"})

	DroppedRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "muse_dropped_requests_total",
		Help: "Generation requests dropped, by reason.",
	}, []string{"reason"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "muse_queue_depth",
		Help: "Depth of the request and playback queues.",
	}, []string{"queue"})

	BudgetRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "muse_budget_remaining_usd",
		Help: "Unspent portion of today's generation budget.",
	})
)
