package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsRecord(t *testing.T) {
	m := New()

	m.ObserveJob("image", "success", 1.2)
	m.ObserveJob("image", "success", 0.4)
	m.ObserveTransfer("in", nil)
	m.ObserveTransfer("out", errors.New("boom"))
	m.AddPurged(3)
	m.DeletionScheduled()
	m.DeletionScheduled()
	m.DeletionSettled()
	m.ObserveDeletion("deleted")

	body := scrape(t, m)
	assert.Contains(t, body, `mediaforge_jobs_total{category="image",outcome="success"} 2`)
	assert.Contains(t, body, `mediaforge_transfers_total{direction="out",result="error"} 1`)
	assert.Contains(t, body, "mediaforge_purged_files_total 3")
	assert.Contains(t, body, "mediaforge_pending_deletions 1")
	assert.Contains(t, body, `mediaforge_remote_deletions_total{result="deleted"} 1`)
	assert.Contains(t, body, `mediaforge_job_duration_seconds_count{category="image"} 2`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveJob("audio", "failed", 1)
	m.IncrementRequest("GET", "/health", 200)
	m.DeletionSettled()
}

func TestHandlerServesExposition(t *testing.T) {
	m := New()
	m.IncrementRequest(http.MethodPost, "/api/convert/process", 400)
	m.IncrementRateLimitHit()

	body := scrape(t, m)
	assert.Contains(t, body, `mediaforge_http_requests_total{method="POST",route="/api/convert/process",status="400"} 1`)
	assert.Contains(t, body, "mediaforge_rate_limit_hits_total 1")
	assert.Contains(t, body, "go_goroutines")
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
