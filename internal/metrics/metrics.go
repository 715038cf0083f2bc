// Package metrics instruments feed sessions with Prometheus collectors.
//
// Every method of [Engine] is safe on a nil receiver, which disables
// instrumentation.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace is the metric namespace used when none is configured.
const DefaultNamespace = "feedcore"

// Engine holds the collectors of the feed engine.
type Engine struct {
	sessionsActive     prometheus.Gauge
	sessionsTotal      prometheus.Counter
	executionsTotal    *prometheus.CounterVec // result: success, failed, cancelled
	executionDuration  prometheus.Histogram
	transientPublished prometheus.Counter
	messagesPublished  prometheus.Counter
	requestsCoalesced  prometheus.Counter
	dependencyFailures *prometheus.CounterVec // phase: executing, executed
	collectionChanges  *prometheus.CounterVec // kind: add, remove, replace, move, reset
}

// New creates the collectors and registers them with reg.
func New(namespace string, reg prometheus.Registerer) (*Engine, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Engine{
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of live feed sessions",
		}),
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "started_total",
			Help:      "Total number of feed sessions started",
		}),
		executionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "completed_total",
			Help:      "Total number of completed executions by result",
		}, []string{"result"}),
		executionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "duration_seconds",
			Help:      "Execution duration in seconds",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		transientPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "transient_total",
			Help:      "Total number of executions that published a transient message",
		}),
		messagesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "messages_total",
			Help:      "Total number of messages published by sessions",
		}),
		requestsCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "requests_coalesced_total",
			Help:      "Total number of execute requests merged into a pending execution",
		}),
		dependencyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dependency",
			Name:      "failures_total",
			Help:      "Total number of failed dependency callbacks",
		}, []string{"phase"}),
		collectionChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collection",
			Name:      "changes_total",
			Help:      "Total number of collection changes applied to views",
		}, []string{"kind"}),
	}

	if reg == nil {
		return m, nil
	}

	var err error
	adopt := func(c prometheus.Collector) prometheus.Collector {
		if err != nil {
			return c
		}
		var got prometheus.Collector
		got, err = register(reg, c)
		return got
	}
	m.sessionsActive = adopt(m.sessionsActive).(prometheus.Gauge)
	m.sessionsTotal = adopt(m.sessionsTotal).(prometheus.Counter)
	m.executionsTotal = adopt(m.executionsTotal).(*prometheus.CounterVec)
	m.executionDuration = adopt(m.executionDuration).(prometheus.Histogram)
	m.transientPublished = adopt(m.transientPublished).(prometheus.Counter)
	m.messagesPublished = adopt(m.messagesPublished).(prometheus.Counter)
	m.requestsCoalesced = adopt(m.requestsCoalesced).(prometheus.Counter)
	m.dependencyFailures = adopt(m.dependencyFailures).(*prometheus.CounterVec)
	m.collectionChanges = adopt(m.collectionChanges).(*prometheus.CounterVec)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// register registers c, reusing the collector already registered under
// the same descriptor.
func register(reg prometheus.Registerer, c prometheus.Collector) (prometheus.Collector, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector, nil
		}
		return c, err
	}
	return c, nil
}

// SessionStarted records a new session.
func (m *Engine) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
	m.sessionsTotal.Inc()
}

// SessionDisposed records the end of a session.
func (m *Engine) SessionDisposed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

// ExecutionCompleted records the result and duration of an execution.
func (m *Engine) ExecutionCompleted(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.executionsTotal.WithLabelValues(result).Inc()
	m.executionDuration.Observe(d.Seconds())
}

// TransientPublished records an execution going transient.
func (m *Engine) TransientPublished() {
	if m == nil {
		return
	}
	m.transientPublished.Inc()
}

// MessagePublished records a published message.
func (m *Engine) MessagePublished() {
	if m == nil {
		return
	}
	m.messagesPublished.Inc()
}

// RequestsCoalesced records n requests merged into one execution.
func (m *Engine) RequestsCoalesced(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.requestsCoalesced.Add(float64(n))
}

// DependencyFailed records a failing dependency callback.
func (m *Engine) DependencyFailed(phase string) {
	if m == nil {
		return
	}
	m.dependencyFailures.WithLabelValues(phase).Inc()
}

// CollectionChanged records a collection change of the given kind.
func (m *Engine) CollectionChanged(kind string) {
	if m == nil {
		return
	}
	m.collectionChanges.WithLabelValues(kind).Inc()
}

// Handler serves the metrics of g on /metrics and a liveness check on
// /health.
func Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}
