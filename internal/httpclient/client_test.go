package httpclient

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	client := New(nil)
	assert.Equal(t, DefaultTimeout, client.timeout)
	assert.Equal(t, defaultUserAgent, client.userAgent)

	client = New(&Config{Timeout: 5 * time.Second, UserAgent: "skyglow-test/1.0"})
	assert.Equal(t, 5*time.Second, client.timeout)
	assert.Equal(t, "skyglow-test/1.0", client.userAgent)
}

func TestPostJSON(t *testing.T) {
	server := endpoint(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "skyglow", r.Header.Get("User-Agent"))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok, "basic auth expected")
		assert.Equal(t, "observer", user)
		assert.Equal(t, "secret", pass)

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `[{"name":"a.tif"}]`, string(body))
		w.WriteHeader(http.StatusCreated)
	})

	client := newClient(t, &Config{Username: "observer", Password: "secret"})
	resp, err := client.PostJSON(t.Context(), server.URL, []map[string]string{{"name": "a.tif"}})
	require.NoError(t, err)
	defer drain(t, resp)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestNoBasicAuthWithoutUsername(t *testing.T) {
	server := endpoint(t, func(w http.ResponseWriter, r *http.Request) {
		_, _, ok := r.BasicAuth()
		assert.False(t, ok)
	})

	client := newClient(t, nil)
	resp, err := client.PostJSON(t.Context(), server.URL, nil)
	require.NoError(t, err)
	drain(t, resp)
}

func TestDefaultTimeout(t *testing.T) {
	server := endpoint(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	client := newClient(t, &Config{Timeout: 50 * time.Millisecond})
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)

	resp, err := client.Do(t.Context(), req)
	defer drain(t, resp)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestContextDeadlineOverridesDefault(t *testing.T) {
	server := endpoint(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte("late but fine"))
	})

	client := newClient(t, &Config{Timeout: 5 * time.Millisecond})
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)
	resp, err := client.Do(ctx, req)
	require.NoError(t, err)
	defer drain(t, resp)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "late but fine", string(body))
}

func TestBodyReadableAfterDo(t *testing.T) {
	server := endpoint(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"accepted":2}`))
	})

	client := newClient(t, nil)
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)
	resp, err := client.Do(t.Context(), req)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"accepted":2}`, string(body))
	require.NoError(t, resp.Body.Close())
}

func TestCancelledContext(t *testing.T) {
	server := endpoint(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	})

	client := newClient(t, nil)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)
	resp, err := client.Do(ctx, req)
	defer drain(t, resp)
	require.ErrorIs(t, err, context.Canceled)
}

func TestObserver(t *testing.T) {
	server := endpoint(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	client := newClient(t, nil)
	var calls atomic.Int32
	client.SetObserver(func(req *http.Request, resp *http.Response, err error, elapsed time.Duration) {
		calls.Add(1)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.GreaterOrEqual(t, elapsed, time.Duration(0))
	})

	resp, err := client.PostJSON(t.Context(), server.URL, map[string]int{"n": 1})
	require.NoError(t, err)
	drain(t, resp)
	assert.Equal(t, int32(1), calls.Load())

	client.SetObserver(nil)
	resp, err = client.PostJSON(t.Context(), server.URL, nil)
	require.NoError(t, err)
	drain(t, resp)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoRejectsNilRequest(t *testing.T) {
	_, err := newClient(t, nil).Do(t.Context(), nil)
	require.Error(t, err)
}
