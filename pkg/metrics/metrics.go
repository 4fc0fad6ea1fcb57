// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// ConversationsTotal tracks conversations created by find-or-create.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_created_total",
			Help: "Total conversations created",
		},
	)

	// ConversationLookups tracks find-or-create outcomes.
	ConversationLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_lookups_total",
			Help: "Conversation find-or-create calls by outcome",
		},
		[]string{"outcome"},
	)

	// MessagesTotal tracks messages appended to the ledger.
	MessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_created_total",
			Help: "Total messages created",
		},
	)

	// MessagesUpdated tracks messages rewritten by bulk updates.
	MessagesUpdated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_updated_total",
			Help: "Total messages updated",
		},
	)

	// UnreadMarkers tracks unread markers created and cleared.
	UnreadMarkers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unread_markers_total",
			Help: "Unread markers by operation",
		},
		[]string{"op"},
	)

	// AuthorizationFailures tracks rejected mutations.
	AuthorizationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorization_failures_total",
			Help: "Requests rejected by authorization checks",
		},
		[]string{"operation"},
	)

	// EventsPublished tracks message events sent to NATS.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Message events published by result",
		},
		[]string{"type", "result"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, route, status string, duration float64) {
	RequestDuration.WithLabelValues(method, route, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, route, status).Inc()
}

// RecordLookup records a find-or-create outcome.
func RecordLookup(created bool) {
	if created {
		ConversationsTotal.Inc()
		ConversationLookups.WithLabelValues("created").Inc()
		return
	}
	ConversationLookups.WithLabelValues("found").Inc()
}

// RecordMarkers records unread markers created or cleared.
func RecordMarkers(op string, n int) {
	if n > 0 {
		UnreadMarkers.WithLabelValues(op).Add(float64(n))
	}
}

// RecordEvent records the outcome of a publish attempt.
func RecordEvent(eventType string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	EventsPublished.WithLabelValues(eventType, result).Inc()
}
