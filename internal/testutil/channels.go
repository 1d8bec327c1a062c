// Package testutil provides shared test helpers: timeouts, channel waits and
// writers for synthetic FITS and raw TIFF fixtures.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// DefaultTestTimeout bounds waits on asynchronous operations
const DefaultTestTimeout = 5 * time.Second

// WaitForChannel waits for a value on ch or fails after timeout.
func WaitForChannel[T any](t *testing.T, ch <-chan T, timeout time.Duration, msg string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		require.FailNow(t, msg)
	}
	var zero T
	return zero
}
