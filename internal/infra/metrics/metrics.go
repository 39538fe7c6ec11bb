// Package metrics exposes purchase and HTTP metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg prometheus.Gatherer

	purchases        *prometheus.CounterVec
	purchaseAttempts prometheus.Histogram
	httpDuration     *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		purchases: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "purchases_total",
				Help: "Finished purchase requests by outcome",
			},
			[]string{"outcome"},
		),
		purchaseAttempts: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "purchase_attempts",
				Help:    "Store transactions run per purchase request",
				Buckets: []float64{1, 2, 3, 4, 5, 8, 13},
			},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method", "route", "status"},
		),
	}
}

func (m *Metrics) ObservePurchase(outcome string, attempts int) {
	m.purchases.WithLabelValues(outcome).Inc()
	m.purchaseAttempts.Observe(float64(attempts))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Middleware records request latency labelled by the matched chi route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
