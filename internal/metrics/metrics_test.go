package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExporterCounts(t *testing.T) {
	e := New()

	e.RecordRequest(http.MethodPost, "/api/lens-summary", 200, 120*time.Millisecond)
	e.RecordRequest(http.MethodPost, "/api/lens-summary", 200, 80*time.Millisecond)
	e.RecordRequest(http.MethodGet, "", 404, time.Millisecond)
	e.RecordLens("ok")
	e.RecordLens("upstream_unavailable")
	e.ObserveUpstream("inference", "huggingface", "transient", 2*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(e.httpRequests.WithLabelValues("POST", "/api/lens-summary", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.httpRequests.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.lensResults.WithLabelValues("upstream_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.upstreamCalls.WithLabelValues("inference", "huggingface", "transient")))
}

func TestExporterHandler(t *testing.T) {
	e := New()
	e.ObserveUpstream("reference", "origin", "ok", 10*time.Millisecond)

	w := httptest.NewRecorder()
	e.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "lensproxy_upstream_calls_total")
	assert.Contains(t, body, "lensproxy_upstream_call_duration_seconds_bucket")
	assert.Contains(t, body, "go_goroutines")
}
