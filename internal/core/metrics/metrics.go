// Package metrics defines the Prometheus metrics of condfields and the
// HTTP endpoint exposing them.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DependencyResolutions counts bundle resolutions by memo outcome (hit, miss).
	DependencyResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "condfields_dependency_resolutions_total",
		Help: "Bundle dependency resolutions by memo outcome",
	}, []string{"outcome"})

	// ConditionEvaluations counts single dependency evaluations.
	ConditionEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "condfields_condition_evaluations_total",
		Help: "Dependency evaluations by values set and result",
	}, []string{"values_set", "result"})

	// StatesBuilt counts dependent fields that received client states.
	StatesBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "condfields_states_built_total",
		Help: "Dependent fields that received client states",
	})

	// RulesSkipped counts misconfigured rules skipped while building states.
	RulesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "condfields_rules_skipped_total",
		Help: "Misconfigured rules skipped while building states",
	}, []string{"reason"})

	// GuardOutcomes counts the final state of dependents at submission.
	GuardOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "condfields_guard_outcomes_total",
		Help: "Validation guard outcomes per dependent field",
	}, []string{"outcome"})

	// RequestDuration tracks gRPC handler latency.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "condfields_request_duration_seconds",
		Help:    "gRPC request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"method", "code"})
)

// Server serves /metrics over plain HTTP.
type Server struct {
	server *http.Server
}

// NewServer creates a metrics server bound to host:port.
func NewServer(host string, port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{server: &http.Server{
		Addr:              net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start blocks serving until Shutdown.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
