package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mettalint"

// Invocation outcomes used as the "outcome" label.
const (
	OutcomeSuccess   = "success"
	OutcomeMissing   = "analyzer_missing"
	OutcomeInvalid   = "invalid_target"
	OutcomeSpawn     = "spawn_error"
	OutcomeTimeout   = "timeout"
	OutcomeExecution = "execution_error"
	OutcomeMalformed = "malformed_output"
	OutcomeCancelled = "cancelled"
)

// Metrics holds the lint pipeline instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	invocations        *prometheus.CounterVec
	invocationDuration prometheus.Histogram
	skippedFindings    *prometheus.CounterVec
	publications       prometheus.Counter
	discarded          prometheus.Counter
	inFlight           prometheus.Gauge
}

// New registers the pipeline metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Analyzer invocations by outcome.",
		}, []string{"outcome"}),
		invocationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Wall-clock duration of analyzer invocations.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		skippedFindings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_findings_total",
			Help:      "Analyzer output elements dropped during validation.",
		}, []string{"reason"}),
		publications: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostic_publications_total",
			Help:      "Diagnostic sets published to the host.",
		}),
		discarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discarded_results_total",
			Help:      "Invocation results dropped because their document was closed or superseded.",
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "invocations_in_flight",
			Help:      "Analyzer processes currently running.",
		}),
	}
}

// Registry returns the registry the metrics live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveInvocation records one finished invocation.
func (m *Metrics) ObserveInvocation(outcome string, d time.Duration) {
	m.invocations.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.invocationDuration.Observe(d.Seconds())
	}
}

// SkippedFinding counts one invalid output element.
func (m *Metrics) SkippedFinding(reason string) {
	m.skippedFindings.WithLabelValues(reason).Inc()
}

// Published counts one diagnostic publication.
func (m *Metrics) Published() {
	m.publications.Inc()
}

// Discarded counts one late result.
func (m *Metrics) Discarded() {
	m.discarded.Inc()
}

// Started and Finished track running processes.
func (m *Metrics) Started()  { m.inFlight.Inc() }
func (m *Metrics) Finished() { m.inFlight.Dec() }

// Serve exposes the registry on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger hclog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
