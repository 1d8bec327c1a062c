package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// captureTransport keeps events in memory instead of sending them
type captureTransport struct {
	mu      sync.Mutex
	events  []*sentry.Event
	flushes int
	closed  bool
}

func (c *captureTransport) Configure(sentry.ClientOptions) {} //nolint:gocritic // sentry.Transport signature

func (c *captureTransport) SendEvent(event *sentry.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.events = append(c.events, event)
	}
}

func (c *captureTransport) Flush(time.Duration) bool {
	c.mu.Lock()
	c.flushes++
	c.mu.Unlock()
	return true
}

func (c *captureTransport) FlushWithContext(ctx context.Context) bool {
	return c.Flush(0) && ctx.Err() == nil
}

func (c *captureTransport) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// sent returns a copy of the captured events
func (c *captureTransport) sent() []*sentry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*sentry.Event(nil), c.events...)
}

func (c *captureTransport) flushCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushes
}
