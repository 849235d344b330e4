package observability

import "github.com/prometheus/client_golang/prometheus"

// Request outcome label values for ConsultationRequests.
const (
	OutcomeCreated  = "created"
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeExpired  = "expired"
	OutcomeConflict = "conflict"
)

var (
	// FinalTypeFallbacks counts scoring runs whose type pair had no stored
	// combination and resolved to the default final type.
	FinalTypeFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scoring_final_type_fallback_total",
		Help: "Scoring runs that fell back to the default final type.",
	})

	// NoCandidateMatches counts matching searches that found no eligible
	// counselor and left the consultation waiting.
	NoCandidateMatches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matching_no_candidate_total",
		Help: "Matching searches that found no available counselor.",
	})

	// ConsultationRequests counts request lifecycle events by outcome.
	ConsultationRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consultation_requests_total",
		Help: "Consultation request lifecycle events by outcome.",
	}, []string{"outcome"})

	// NotificationFailures counts counselor notifications that could not be
	// delivered to the sink.
	NotificationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_failures_total",
		Help: "Counselor notifications that failed to publish.",
	})

	// StreamEventsDropped counts events discarded because a counselor's
	// stream buffer was full.
	StreamEventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stream_events_dropped_total",
		Help: "Events dropped for slow event-stream subscribers.",
	})
)

func init() {
	prometheus.MustRegister(FinalTypeFallbacks, NoCandidateMatches, ConsultationRequests, NotificationFailures, StreamEventsDropped)
}
