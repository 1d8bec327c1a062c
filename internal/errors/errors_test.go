package errors

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	mu   sync.Mutex
	seen []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, ee)
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestFastPathWithoutReporters(t *testing.T) {
	SetReporters()

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.IsReported())
}

func TestBuilderKeepsExplicitValues(t *testing.T) {
	SetReporters()

	ee := New(NewStd("write failed")).
		Component("datastore").
		Category(CategoryDatabase).
		Priority("bogus").
		Context("table", "images").
		Build()

	assert.Equal(t, "datastore", ee.GetComponent())
	assert.Equal(t, "database", ee.GetCategory())
	assert.Equal(t, PriorityMedium, ee.GetPriority())
	assert.Equal(t, map[string]any{"table": "images"}, ee.GetContext())
}

func TestReportersReceiveErrors(t *testing.T) {
	rec := &recordingReporter{}
	SetReporters(rec)
	t.Cleanup(func() { SetReporters() })

	ee := New(NewStd("cannot open file")).Component("metadata").Build()

	require.Len(t, rec.seen, 1)
	assert.Same(t, ee, rec.seen[0])
	assert.True(t, ee.IsReported())
	assert.Equal(t, CategoryFileIO, ee.Category, "category detected from message")
}

func TestIsMatchesWrappedSentinel(t *testing.T) {
	sentinel := NewStd("camera not found")
	ee := New(fmt.Errorf("register: %w", sentinel)).Category(CategoryNotFound).Build()

	assert.True(t, Is(ee, sentinel))
	assert.True(t, IsNotFound(ee))
	assert.True(t, IsCategory(fmt.Errorf("outer: %w", ee), CategoryNotFound))
	assert.False(t, IsCategory(sentinel, CategoryNotFound))
}

func TestFileContext(t *testing.T) {
	ee := New(NewStd("x")).FileContext("/data/night/IMG_0001.CR2", 25*1024*1024).Build()
	ctx := ee.GetContext()

	assert.Equal(t, "IMG_0001.CR2", ctx["file_name"])
	assert.Equal(t, "cr2", ctx["file_extension"])
	assert.Equal(t, "medium", ctx["file_size_category"])
}

func TestNetworkAndTimingContext(t *testing.T) {
	ee := Newf("post failed").
		NetworkContext("https://station:pw@skyglow.example.org/api?token=abc", 30*time.Second).
		Timing("publish_page", 1500*time.Millisecond).
		Build()
	ctx := ee.GetContext()

	assert.Equal(t, "https-endpoint", ctx["url_category"])
	assert.InDelta(t, 30.0, ctx["timeout_seconds"], 1e-9)
	assert.Equal(t, "publish_page", ctx["operation"])
	assert.Equal(t, int64(1500), ctx["duration_ms"])
	for _, v := range ctx {
		assert.NotContains(t, fmt.Sprint(v), "skyglow.example.org")
	}

	ctx = Newf("connect failed").NetworkContext("tcp://broker:1883", 0).Build().GetContext()
	assert.Equal(t, "mqtt-broker", ctx["url_category"])
	assert.NotContains(t, ctx, "timeout_seconds")
}

func TestPackageComponent(t *testing.T) {
	tests := []struct {
		fn   string
		want string
	}{
		{"internal/datastore/repository.(*imageRepository).InsertBatch", "datastore"},
		{"internal/stats.(*Engine).Run.func1", "stats"},
		{"internal/conf.Load", "configuration"},
		{"internal/suncalc.(*SunCalc).Twilight", "suncalc"},
		{"cmd/run.execute", "run"},
	}
	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			assert.Equal(t, tt.want, packageComponent(tt.fn))
		})
	}
}

func TestCallerComponentSkipsErrorsPackage(t *testing.T) {
	rec := &recordingReporter{}
	SetReporters(rec)
	t.Cleanup(func() { SetReporters() })

	// only the errors package and the test runner are on the stack
	ee := Newf("no caller component").Build()
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
}

func TestScrubMessage(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
	}{
		{"basic auth in url", "post https://user:pw@example.org/api failed", "post https://[REDACTED]@example.org/api failed"},
		{"query string", "GET https://example.org/x?token=abc", "GET https://example.org/x?[REDACTED]"},
		{"password pair", "login password=hunter2 rejected", "login password=[REDACTED] rejected"},
		{"nothing to scrub", "plain message", "plain message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScrubMessage(tt.in))
		})
	}
}
