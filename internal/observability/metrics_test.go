package observability

import (
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skyerrors "github.com/skyglow/skyglow-go/internal/errors"
	"github.com/skyglow/skyglow-go/internal/observability/metrics"
)

func newMetrics(t *testing.T) *Metrics {
	t.Helper()
	m, err := NewMetrics()
	require.NoError(t, err)
	return m
}

func TestPipelineMetrics(t *testing.T) {
	m := newMetrics(t)

	m.Pipeline.RecordImages(metrics.OutcomeInserted, 12)
	m.Pipeline.RecordImages(metrics.OutcomeSkipped, 3)
	m.Pipeline.RecordImages(metrics.OutcomeFailed, 0)
	m.Pipeline.RecordRegistrationDuration(2 * time.Second)
	m.Pipeline.RecordStats(12, 10, 2, time.Second)
	m.Pipeline.RecordPublish(3, 10, time.Second, nil)
	m.Pipeline.RecordPublish(1, 0, time.Second, errors.New("503"))
	m.Pipeline.RecordRun(0)

	expected := `
# HELP skyglow_registration_images_total Images seen by registration, by outcome
# TYPE skyglow_registration_images_total counter
skyglow_registration_images_total{outcome="inserted"} 12
skyglow_registration_images_total{outcome="skipped"} 3
# HELP skyglow_stats_images_total Images processed by the statistics engine, by outcome
# TYPE skyglow_stats_images_total counter
skyglow_stats_images_total{outcome="flagged"} 2
skyglow_stats_images_total{outcome="measured"} 10
# HELP skyglow_publish_runs_total Publishing runs, by status
# TYPE skyglow_publish_runs_total counter
skyglow_publish_runs_total{status="error"} 1
skyglow_publish_runs_total{status="success"} 1
# HELP skyglow_publish_records_total Measurements marked as published
# TYPE skyglow_publish_records_total counter
skyglow_publish_records_total 10
# HELP skyglow_publish_pages_total Pages sent to the publishing endpoint
# TYPE skyglow_publish_pages_total counter
skyglow_publish_pages_total 4
# HELP skyglow_stats_pending_images Pending images found at the start of the last statistics run
# TYPE skyglow_stats_pending_images gauge
skyglow_stats_pending_images 12
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"skyglow_registration_images_total",
		"skyglow_stats_images_total",
		"skyglow_publish_runs_total",
		"skyglow_publish_records_total",
		"skyglow_publish_pages_total",
		"skyglow_stats_pending_images",
	))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Pipeline, "skyglow_pipeline_runs_total"))
}

func TestHTTPClientObserver(t *testing.T) {
	m := newMetrics(t)

	u, err := url.Parse("https://skyglow.example.org/api/measurements")
	require.NoError(t, err)
	req := &http.Request{Method: http.MethodPost, URL: u, ContentLength: 2048}

	m.HTTP.ObserveClient(req, &http.Response{StatusCode: http.StatusCreated}, nil, 120*time.Millisecond)
	m.HTTP.ObserveClient(req, nil, errors.New("connection reset"), time.Second)
	m.HTTP.ObserveClient(nil, nil, nil, 0)

	expected := `
# HELP skyglow_http_client_requests_total Outgoing HTTP requests
# TYPE skyglow_http_client_requests_total counter
skyglow_http_client_requests_total{host="skyglow.example.org",method="POST",status_code="201"} 1
skyglow_http_client_requests_total{host="skyglow.example.org",method="POST",status_code="error"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"skyglow_http_client_requests_total"))
}

func TestErrorReporter(t *testing.T) {
	m := newMetrics(t)
	skyerrors.SetReporters(m.Errors)
	t.Cleanup(func() { skyerrors.SetReporters() })

	_ = skyerrors.Newf("no frames").
		Component("stats").
		Category(skyerrors.CategoryBias).
		Build()
	_ = skyerrors.Newf("no frames again").
		Component("stats").
		Category(skyerrors.CategoryBias).
		Build()

	expected := `
# HELP skyglow_errors_total Errors built by the application, by component and category
# TYPE skyglow_errors_total counter
skyglow_errors_total{category="bias-validation",component="stats"} 2
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "skyglow_errors_total"))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := newMetrics(t)
	m.HTTP.RecordAPIRequest(http.MethodGet, "/api/v1/status", http.StatusOK, 5*time.Millisecond)

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, m.RegisterDB(db, "skyglow"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `skyglow_api_requests_total{method="GET",path="/api/v1/status",status_code="200"} 1`)
	assert.Contains(t, body, `go_sql_open_connections{db_name="skyglow"}`)
	assert.Contains(t, body, "go_goroutines")
}
