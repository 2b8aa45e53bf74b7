package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters and histograms for the booking pipeline.
type BookingMetrics struct {
	commitsTotal  *prometheus.CounterVec
	paymentsTotal *prometheus.CounterVec
	gridCache     *prometheus.CounterVec
	commitLatency prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		commitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "reservation",
			Name:      "commits_total",
			Help:      "Reservation commit attempts by outcome",
		}, []string{"outcome"}),
		paymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "payment",
			Name:      "authorizations_total",
			Help:      "Payment authorization attempts by outcome",
		}, []string{"outcome"}),
		gridCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "availability",
			Name:      "grid_cache_total",
			Help:      "Slot grid cache lookups",
		}, []string{"result"}),
		commitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "reservation",
			Name:      "commit_latency_seconds",
			Help:      "Latency of reservation commits",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.commitsTotal, m.paymentsTotal, m.gridCache, m.commitLatency)
	return m
}

// Commit outcomes: committed, conflict, duplicate, invalid, unavailable.
func (m *BookingMetrics) ObserveCommit(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.commitsTotal.WithLabelValues(outcome).Inc()
	m.commitLatency.Observe(seconds)
}

// Payment outcomes: authorized, declined, timeout, error.
func (m *BookingMetrics) ObservePayment(outcome string) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveGridCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.gridCache.WithLabelValues(result).Inc()
}
