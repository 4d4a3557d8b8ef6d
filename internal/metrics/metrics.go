package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fest_http_requests_total", Help: "HTTP requests by route and status"},
		[]string{"method", "route", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "fest_http_request_duration_seconds", Help: "HTTP request latency", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)
	Registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fest_registrations_total", Help: "Registration submissions by outcome"},
		[]string{"outcome"},
	)
	PaymentVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fest_payment_verifications_total", Help: "Payment verification attempts by outcome"},
		[]string{"outcome"},
	)
	Uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fest_uploads_total", Help: "Attachment intake by backend and outcome"},
		[]string{"backend", "outcome"},
	)
	DraftRecoveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fest_draft_recoveries_total", Help: "Draft recovery results by state and source tier"},
		[]string{"state", "source"},
	)
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fest_events_published_total", Help: "Broker publishes by event type and outcome"},
		[]string{"type", "outcome"},
	)
	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fest_notifications_total", Help: "Notification deliveries by channel and outcome"},
		[]string{"channel", "outcome"},
	)
)

func Register() {
	prometheus.MustRegister(
		HTTPRequests, HTTPDuration, Registrations, PaymentVerifications,
		Uploads, DraftRecoveries, EventsPublished, NotificationsSent,
	)
}
