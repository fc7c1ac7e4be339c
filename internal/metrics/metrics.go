package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Checkout struct {
	Attempts  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewCheckout(service string) *Checkout {
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "minimart",
		Subsystem: service,
		Name:      "checkouts_total",
		Help:      "Checkout attempts by result.",
	}, []string{"result"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "minimart",
		Subsystem: service,
		Name:      "checkout_duration_ms",
		Help:      "Checkout latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"result"})

	prometheus.MustRegister(attempts, latency)
	return &Checkout{Attempts: attempts, LatencyMS: latency}
}

// Observe is nil-safe so wiring metrics stays optional in tests.
func (c *Checkout) Observe(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.Attempts.WithLabelValues(result).Inc()
	c.LatencyMS.WithLabelValues(result).Observe(float64(d.Milliseconds()))
}

func Handler() http.Handler {
	return promhttp.Handler()
}
