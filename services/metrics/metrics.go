// Package metrics declares the Prometheus collectors of the application.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "academia"

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	ExamSubmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exam_submissions_total",
		Help:      "Exam submissions by outcome (passed, failed).",
	}, []string{"outcome"})

	CertificatesIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "certificates_issued_total",
		Help:      "Certificates issued.",
	})

	AttendanceRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "attendance_records_total",
		Help:      "Attendance records captured by status.",
	}, []string{"status"})

	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_requests_total",
		Help:      "Requests refused by the rate limiter, by route.",
	}, []string{"route"})
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPDuration, ExamSubmissions, CertificatesIssued, AttendanceRecords, RateLimited)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// ExamOutcome labels a submission.
func ExamOutcome(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}
