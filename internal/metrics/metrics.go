package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine groups the counters the session engine reports on /metrics.
type Engine struct {
	SessionsCreated  prometheus.Counter
	SessionsFinished prometheus.Counter
	TeamsJoined      prometheus.Counter
	AnswersAccepted  prometheus.Counter
	AnswersRejected  *prometheus.CounterVec
	WSConnections    prometheus.Gauge
}

// New registers the engine collectors with reg. Pass
// prometheus.DefaultRegisterer to expose them through promhttp.Handler.
func New(reg prometheus.Registerer) *Engine {
	factory := promauto.With(reg)
	return &Engine{
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "classrally_sessions_created_total",
			Help: "Sessions created since process start.",
		}),
		SessionsFinished: factory.NewCounter(prometheus.CounterOpts{
			Name: "classrally_sessions_finished_total",
			Help: "Sessions that reached the finished state.",
		}),
		TeamsJoined: factory.NewCounter(prometheus.CounterOpts{
			Name: "classrally_teams_joined_total",
			Help: "Teams that joined a lobby.",
		}),
		AnswersAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "classrally_answers_accepted_total",
			Help: "Answer submissions recorded.",
		}),
		AnswersRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "classrally_answers_rejected_total",
			Help: "Answer submissions rejected, by reason.",
		}, []string{"reason"}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "classrally_ws_connections",
			Help: "Live WebSocket connections.",
		}),
	}
}

// Nop returns an Engine wired to a throwaway registry, for tests and optional
// wiring.
func Nop() *Engine {
	return New(prometheus.NewRegistry())
}
