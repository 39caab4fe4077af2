package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CheckoutsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkouts_created_total",
			Help: "Number of guest records created, by kind",
		},
		[]string{"kind"},
	)

	CheckoutsPaid = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkouts_paid_total",
			Help: "Number of guest checkouts that reached Paid, by kind",
		},
		[]string{"kind"},
	)

	CheckoutFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_failures_total",
			Help: "Number of failed checkout steps, by kind and stage",
		},
		[]string{"kind", "stage"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Time taken by academy API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func Register() {
	prometheus.MustRegister(CheckoutsCreated, CheckoutsPaid, CheckoutFailures, APIRequestDuration)
}
