package errors

import (
	"regexp"
	"sync"
	"sync/atomic"
)

// Reporter receives every error built while reporting is active
type Reporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

var (
	reportersMu        sync.RWMutex
	reporters          []Reporter
	hasActiveReporting atomic.Bool
)

// SetReporters replaces the registered reporters. Passing none disables
// reporting and restores the fast path in Build.
func SetReporters(rs ...Reporter) {
	reportersMu.Lock()
	defer reportersMu.Unlock()

	reporters = reporters[:0]
	for _, r := range rs {
		if r != nil {
			reporters = append(reporters, r)
		}
	}
	hasActiveReporting.Store(len(reporters) > 0)
}

// AddReporter appends a reporter to the registered set
func AddReporter(r Reporter) {
	if r == nil {
		return
	}
	reportersMu.Lock()
	defer reportersMu.Unlock()
	reporters = append(reporters, r)
	hasActiveReporting.Store(true)
}

func report(ee *EnhancedError) {
	reportersMu.RLock()
	rs := make([]Reporter, len(reporters))
	copy(rs, reporters)
	reportersMu.RUnlock()

	delivered := false
	for _, r := range rs {
		if r.IsEnabled() {
			r.ReportError(ee)
			delivered = true
		}
	}
	if delivered {
		ee.MarkReported()
	}
}

var (
	userInfoRegex  = regexp.MustCompile(`(https?|tcp|ssl|mqtts?)://[^/@\s]+@`)
	queryRegex     = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	credentialExpr = regexp.MustCompile(`(?i)(password|passwd|token|api[_-]?key|secret)[=:]\S+`)
)

// ScrubMessage removes credentials and query strings from an error message
// before it leaves the process.
func ScrubMessage(message string) string {
	scrubbed := userInfoRegex.ReplaceAllString(message, "$1://[REDACTED]@")
	scrubbed = queryRegex.ReplaceAllString(scrubbed, "$1?[REDACTED]")
	scrubbed = credentialExpr.ReplaceAllString(scrubbed, "$1=[REDACTED]")
	return scrubbed
}
