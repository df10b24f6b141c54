// Package metrics exports import and HTTP activity to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered for one process.
type Metrics struct {
	gatherer prometheus.Gatherer

	importsTotal   *prometheus.CounterVec
	importRows     *prometheus.CounterVec
	rowFailures    *prometheus.CounterVec
	importDuration *prometheus.HistogramVec

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry that also carries the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves gatherer.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: gatherer,
		importsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamhub",
			Subsystem: "import",
			Name:      "runs_total",
			Help:      "Total number of completed import runs.",
		}, []string{"entity", "status"}),
		importRows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamhub",
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Total number of rows processed by imports.",
		}, []string{"entity"}),
		rowFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamhub",
			Subsystem: "import",
			Name:      "row_failures_total",
			Help:      "Total number of rows rejected by imports.",
		}, []string{"entity"}),
		importDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "teamhub",
			Subsystem: "import",
			Name:      "duration_seconds",
			Help:      "Latency distribution of import runs.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"entity"}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamhub",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "code"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "teamhub",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// ObserveImport records a finished import run.
func (m *Metrics) ObserveImport(entity string, status domain.ImportStatus, rows int, elapsed time.Duration) {
	m.importsTotal.WithLabelValues(entity, string(status)).Inc()
	m.importRows.WithLabelValues(entity).Add(float64(rows))
	m.importDuration.WithLabelValues(entity).Observe(elapsed.Seconds())
}

// ObserveRowFailure counts one rejected row.
func (m *Metrics) ObserveRowFailure(entity string) {
	m.rowFailures.WithLabelValues(entity).Inc()
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware counts requests per mux route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
