package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ConnectedParticipants = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "callmatch_connected_participants",
		Help: "Number of registered signaling connections.",
	})

	AvailableCallees = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "callmatch_available_callees",
		Help: "Number of callee-capable participants currently marked available.",
	})

	LiveSessions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "callmatch_live_sessions",
		Help: "Number of call sessions by state.",
	}, []string{"state"}) // ringing/active

	SessionsEnded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "callmatch_sessions_ended_total",
		Help: "Total number of call sessions ended, by reason.",
	}, []string{"reason"})

	SignalsRelayed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "callmatch_signals_relayed_total",
		Help: "Total number of negotiation messages relayed, by kind and outcome.",
	}, []string{"kind", "outcome"}) // delivered/held/dropped/superseded

	RequestsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "callmatch_requests_rejected_total",
		Help: "Total number of client requests rejected, by request type and reason code.",
	}, []string{"request", "reason"})

	RingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "callmatch_ring_duration_seconds",
		Help:    "Time from call request to accept.",
		Buckets: prometheus.DefBuckets,
	})
)

func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		ConnectedParticipants, AvailableCallees, LiveSessions,
		SessionsEnded, SignalsRelayed, RequestsRejected, RingDuration,
	)
}
