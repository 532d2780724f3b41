package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judoclub_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "judoclub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judoclub_bookings_total",
			Help: "Total number of bookings created, by initial status",
		},
		[]string{"status"},
	)

	BookingCancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judoclub_booking_cancellations_total",
			Help: "Total number of booking cancellations, by status at cancellation",
		},
		[]string{"status"},
	)

	WaitlistPromotionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "judoclub_waitlist_promotions_total",
			Help: "Total number of waitlisted bookings promoted to confirmed",
		},
	)

	CheckInTokensIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "judoclub_checkin_tokens_issued_total",
			Help: "Total number of check-in tokens issued",
		},
	)

	CheckInsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judoclub_checkins_total",
			Help: "Total number of check-in attempts, by method and result",
		},
		[]string{"method", "result"},
	)

	AttendanceMaterializedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judoclub_attendance_materialized_total",
			Help: "Total number of attendance records persisted by the materializer",
		},
		[]string{"status"},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judoclub_emails_sent_total",
			Help: "Total number of emails sent",
		},
		[]string{"type", "status"},
	)

	EmailQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "judoclub_email_queue_length",
			Help: "Current length of email queue",
		},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judoclub_events_published_total",
			Help: "Total number of domain events published",
		},
		[]string{"type", "status"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordBooking(status string) {
	BookingsTotal.WithLabelValues(status).Inc()
}

func RecordBookingCancellation(status string) {
	BookingCancellationsTotal.WithLabelValues(status).Inc()
}

func RecordWaitlistPromotion() {
	WaitlistPromotionsTotal.Inc()
}

func RecordTokenIssued() {
	CheckInTokensIssuedTotal.Inc()
}

func RecordCheckIn(method, result string) {
	CheckInsTotal.WithLabelValues(method, result).Inc()
}

func RecordMaterialized(status string, n int) {
	AttendanceMaterializedTotal.WithLabelValues(status).Add(float64(n))
}

func RecordEmail(emailType, status string) {
	EmailsSentTotal.WithLabelValues(emailType, status).Inc()
}

func RecordEvent(eventType, status string) {
	EventsPublishedTotal.WithLabelValues(eventType, status).Inc()
}
