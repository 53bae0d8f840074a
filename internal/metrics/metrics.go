package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var JoinRequestsCreated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "joinguard_join_requests_created_total",
	Help: "Number of join requests recorded",
})

var JoinRequestTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "joinguard_join_request_transitions_total",
	Help: "Number of join requests moved to a terminal status",
}, []string{"status"})

var JoinRequestsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "joinguard_join_requests",
	Help: "Number of stored join requests per status",
}, []string{"status"})

var GatewayOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "joinguard_gateway_outcomes_total",
	Help: "Classified outcomes of platform calls",
}, []string{"op", "kind"})

var GatewayRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "joinguard_gateway_rate_limit_retries_total",
	Help: "Number of platform calls retried after a rate limit",
})

var SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "joinguard_sweep_runs_total",
	Help: "Number of expiration sweeps",
}, []string{"result"})

var SweptRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "joinguard_swept_requests_total",
	Help: "Requests handled by the expiration sweep",
}, []string{"outcome"})

var PendingQuestions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "joinguard_pending_questions",
	Help: "Moderator questions awaiting a reply",
})

var QuestionsExpired = promauto.NewCounter(prometheus.CounterOpts{
	Name: "joinguard_questions_expired_total",
	Help: "Moderator questions dropped after the timeout",
})

var SuppressedMessages = promauto.NewCounter(prometheus.CounterOpts{
	Name: "joinguard_banned_messages_suppressed_total",
	Help: "Private messages from banned applicants that were dropped",
})

var Incidents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "joinguard_incidents_total",
	Help: "Errors reported to the moderator error channel",
}, []string{"action"})

var UpdatesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "joinguard_updates_handled_total",
	Help: "Inbound platform updates by route",
}, []string{"route"})
