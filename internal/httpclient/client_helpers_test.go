package httpclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newClient builds a client from cfg, nil meaning defaults, and closes it
// with the test
func newClient(t *testing.T, cfg *Config) *Client {
	t.Helper()
	c := New(cfg)
	t.Cleanup(c.Close)
	return c
}

// endpoint stands in for the measurement collection server
func endpoint(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

// drain discards what is left of the body so the connection can be reused
func drain(t *testing.T, resp *http.Response) {
	t.Helper()
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	if err := resp.Body.Close(); err != nil {
		t.Logf("closing response body: %v", err)
	}
}
