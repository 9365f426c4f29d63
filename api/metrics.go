package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	gateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_gate_decisions_total",
		Help: "Submission gate decisions by content kind and action",
	}, []string{"kind", "action"})

	moderatorActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_actions_total",
		Help: "Manual moderation actions by action",
	}, []string{"action"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// ObserveGateDecision counts one submission gate decision
func ObserveGateDecision(kind, action string) {
	gateDecisions.WithLabelValues(kind, action).Inc()
}

// ObserveModeratorAction counts one manual moderation action
func ObserveModeratorAction(action string) {
	moderatorActions.WithLabelValues(action).Inc()
}

// MetricsHandler serves the prometheus scrape endpoint
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware records request latency per route template
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		requestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}
