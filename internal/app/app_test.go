package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyglow/skyglow-go/internal/buildinfo"
	"github.com/skyglow/skyglow-go/internal/conf"
	"github.com/skyglow/skyglow-go/internal/errors"
	"github.com/skyglow/skyglow-go/internal/logger"
	"github.com/skyglow/skyglow-go/internal/notify"
	"github.com/skyglow/skyglow-go/internal/pipeline"
	"github.com/skyglow/skyglow-go/internal/publish"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	s := &conf.Settings{}
	s.Database.Type = "sqlite"
	s.Database.SQLite.Path = filepath.Join(t.TempDir(), "skyglow.db")
	s.Main.Name = "hilltop"
	s.Processing.BatchSize = 10
	s.Publish.URL = "https://sky.example.org/api/measurements"
	s.Publish.PageSize = 5
	return s
}

func newApp(t *testing.T, s *conf.Settings) *App {
	t.Helper()
	a, err := New(s, buildinfo.NewContext("1.4.0", "2024-03-01"), WithLogger(logger.NewDiscardLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNewRejectsNilSettings(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestNewAssemblesServices(t *testing.T) {
	a := newApp(t, testSettings(t))

	assert.Equal(t, "1.4.0", a.Settings.Version)
	assert.Equal(t, "2024-03-01", a.Settings.BuildDate)
	require.NotNil(t, a.Store)
	require.NotNil(t, a.Defaults)
	require.NotNil(t, a.Metrics)
	assert.False(t, a.Telemetry.IsEnabled())

	assert.NotNil(t, a.Registration())
	assert.NotNil(t, a.Stats(context.Background()))
	assert.NotNil(t, a.Exporter())

	p, err := a.Publisher()
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.Same(t, a.HTTPClient(), a.HTTPClient())

	// the database collector is registered on the app registry
	families, err := a.Metrics.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "go_sql_open_connections")
}

func TestWorkers(t *testing.T) {
	s := testSettings(t)
	s.Processing.Workers = 3
	a := newApp(t, s)
	assert.Equal(t, 3, a.Workers(1<<30))

	a.Settings.Processing.Workers = 0
	assert.GreaterOrEqual(t, a.Workers(0), 1)
	assert.GreaterOrEqual(t, a.Workers(^uint64(0)), 1)
}

func TestPublisherRejectsPlainHTTP(t *testing.T) {
	s := testSettings(t)
	s.Publish.URL = "http://sky.example.org/api"
	a := newApp(t, s)

	_, err := a.Publisher()
	require.ErrorIs(t, err, publish.ErrInsecureURL)

	_, err = a.Pipeline(context.Background(), true)
	require.ErrorIs(t, err, publish.ErrInsecureURL)

	// registration and statistics still run without an endpoint
	r, err := a.Pipeline(context.Background(), false)
	require.NoError(t, err)
	st := r.Run(context.Background(), pipeline.Options{Stats: true})
	require.Error(t, st.Err, "no default roi is configured")
	assert.Equal(t, pipeline.ExitFailure, st.ExitCode)
}

func TestNotifier(t *testing.T) {
	s := testSettings(t)
	a := newApp(t, s)

	n, err := a.Notifier()
	require.NoError(t, err)
	assert.IsType(t, notify.Nop{}, n)

	a.Settings.MQTT.Enabled = true
	a.Settings.MQTT.Broker = "tcp://127.0.0.1:1"
	a.Settings.MQTT.Topic = "skyglow/hilltop"
	a.Settings.Notify.URLs = []string{"logger://"}
	n, err = a.Notifier()
	require.NoError(t, err)
	multi, ok := n.(notify.Multi)
	require.True(t, ok)
	assert.Len(t, multi, 2)

	a.Settings.Notify.URLs = []string{"nosuchservice://"}
	_, err = a.Notifier()
	require.Error(t, err)
}

func TestCloseDetachesReporters(t *testing.T) {
	s := testSettings(t)
	a, err := New(s, buildinfo.NewContext("", ""), WithLogger(logger.NewDiscardLogger()))
	require.NoError(t, err)
	assert.Equal(t, buildinfo.UnknownValue, a.Settings.Version)

	require.NoError(t, a.Close())
	ee := errors.Newf("after close").Component("app").Build()
	assert.False(t, ee.IsReported())
}
