package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fast-track-solutions1/msi-teamhub/internal/domain"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveImport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg, reg)

	m.ObserveImport("grade", domain.ImportStatusPartial, 2, 150*time.Millisecond)
	m.ObserveRowFailure("grade")

	require.Equal(t, 1.0, testutil.ToFloat64(m.importsTotal.WithLabelValues("grade", "partial")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.importRows.WithLabelValues("grade")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.rowFailures.WithLabelValues("grade")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg, reg)

	router := mux.NewRouter()
	router.Use(m.Middleware)
	router.HandleFunc("/api/import/history/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	router.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/import/history/abc", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/api/import/history/{id}", "GET", "404")))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "teamhub_http_requests_total"))
}
