// Package metrics holds the Prometheus collectors of the clinic service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinic_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clinic_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinic_login_attempts_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	appointmentOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinic_appointment_operations_total",
		Help: "Appointment bookings and cancellations by result",
	}, []string{"operation", "result"})

	appointmentsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clinic_appointments_completed_total",
		Help: "Appointments moved to completed by the sweeper",
	})

	sweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clinic_sweep_duration_seconds",
		Help:    "Duration of completion sweeps",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	authorizationDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinic_authorization_denials_total",
		Help: "Requests refused by the role policy",
	}, []string{"role", "action"})
)

// ObserveHTTPRequest records an HTTP request metric.
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// ObserveLogin counts a login attempt; result is "success", "failure" or
// "mfa_required".
func ObserveLogin(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}

// ObserveAppointment counts a booking or cancellation outcome.
func ObserveAppointment(operation, result string) {
	appointmentOps.WithLabelValues(operation, result).Inc()
}

// ObserveSweep records one sweeper run.
func ObserveSweep(result string, completed int, duration time.Duration) {
	sweepDuration.WithLabelValues(result).Observe(duration.Seconds())
	if completed > 0 {
		appointmentsCompleted.Add(float64(completed))
	}
}

// ObserveDenied counts a policy denial.
func ObserveDenied(role, action string) {
	authorizationDenials.WithLabelValues(role, action).Inc()
}
