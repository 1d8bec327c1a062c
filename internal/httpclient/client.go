// Package httpclient is the outbound HTTP client used for publishing. It
// applies a per-request timeout, basic-auth credentials and a User-Agent,
// and reports every round trip to an optional observer for metrics.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultTimeout applies when the request context has no deadline
	DefaultTimeout = 30 * time.Second

	defaultMaxIdleConnsPerHost   = 4
	defaultIdleConnTimeout       = 90 * time.Second
	defaultTLSHandshakeTimeout   = 10 * time.Second
	defaultResponseHeaderTimeout = 20 * time.Second
	defaultDialTimeout           = 15 * time.Second
	defaultDialKeepAlive         = 30 * time.Second

	defaultUserAgent = "skyglow"
)

// Observer receives every completed round trip. resp is nil when err is set.
type Observer func(req *http.Request, resp *http.Response, err error, elapsed time.Duration)

// Client wraps http.Client. Safe for concurrent use.
type Client struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	username  string
	password  string

	mu       sync.RWMutex
	observer Observer
}

// Config holds client settings. Zero values fall back to defaults.
type Config struct {
	Timeout   time.Duration
	UserAgent string

	// Username and Password are sent as basic auth when Username is set
	Username string
	Password string

	MaxIdleConnsPerHost int

	// Transport replaces the tuned default transport, e.g. in tests
	Transport http.RoundTripper
}

// New creates a client. cfg may be nil.
func New(cfg *Config) *Client {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
	}

	transport := c.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   defaultDialTimeout,
				KeepAlive: defaultDialKeepAlive,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConnsPerHost:   c.MaxIdleConnsPerHost,
			IdleConnTimeout:       defaultIdleConnTimeout,
			TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
			ResponseHeaderTimeout: defaultResponseHeaderTimeout,
		}
	}

	return &Client{
		// timeouts are applied per request through the context
		client:    &http.Client{Transport: transport},
		timeout:   c.Timeout,
		userAgent: c.UserAgent,
		username:  c.Username,
		password:  c.Password,
	}
}

// Do sends req under ctx. If ctx has no deadline the client timeout is
// applied. The caller closes the response body.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		resp, err := c.do(ctx, req)
		if err != nil || resp == nil {
			cancel()
			return resp, err
		}
		// the deadline must outlive the body read
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}
	return c.do(ctx, req)
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.client.Do(req)

	c.mu.RLock()
	observe := c.observer
	c.mu.RUnlock()
	if observe != nil {
		observe(req, resp, err, time.Since(start))
	}
	return resp, err
}

// PostJSON marshals body and POSTs it to url
func (c *Client) PostJSON(ctx context.Context, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.Do(ctx, req)
}

// SetObserver installs fn for all later requests; nil removes it
func (c *Client) SetObserver(fn Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = fn
}

// Timeout is the per-request timeout applied when the context has none
func (c *Client) Timeout() time.Duration { return c.timeout }

// HTTPClient exposes the underlying client, e.g. for httpmock activation
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// Close drops idle connections
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

// cancelOnClose releases the request timeout once the body is closed
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
