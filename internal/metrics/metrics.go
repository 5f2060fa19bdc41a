package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests"},
		[]string{"route", "method", "status"},
	)
	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request duration seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	SignupsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "account_signups_total", Help: "Accounts created"},
	)
	ResetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "account_password_resets_total", Help: "Password reset attempts"},
		[]string{"result"},
	)
)

func MustRegister() {
	prometheus.MustRegister(RequestsTotal, ReqDuration, SignupsTotal, ResetsTotal)
}
