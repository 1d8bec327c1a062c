package telemetry

import (
	"github.com/getsentry/sentry-go"

	"github.com/skyglow/skyglow-go/internal/errors"
)

var allowedExtra = map[string]bool{
	"error_type": true,
	"component":  true,
}

// applyPrivacyFilters strips host and user identifying data from event
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if !allowedExtra[k] {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	event.Message = errors.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = errors.ScrubMessage(event.Exception[i].Value)
	}
	return event
}
