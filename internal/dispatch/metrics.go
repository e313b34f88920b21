package dispatch

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeMatchedModel    = "matched_model"
	outcomeMatchedFallback = "matched_fallback"
	outcomeReplyModel      = "reply_model"
	outcomeReplyFallback   = "reply_fallback"
)

var outcomeCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dispatch_outcomes_total",
		Help: "Chat dispatch results by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(outcomeCounter)
}
