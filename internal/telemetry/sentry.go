// Package telemetry reports errors to Sentry. Reporting is opt-in and every
// event passes through a privacy filter before it leaves the process.
package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/skyglow/skyglow-go/internal/conf"
	"github.com/skyglow/skyglow-go/internal/errors"
	"github.com/skyglow/skyglow-go/internal/logger"
)

// DefaultFlushTimeout bounds Close
const DefaultFlushTimeout = 2 * time.Second

// Reporter forwards built errors to Sentry. It implements errors.Reporter.
type Reporter struct {
	hub     *sentry.Hub
	enabled bool
	log     logger.Logger
}

// Options carries what New needs besides the settings
type Options struct {
	Version string
	// Transport replaces the HTTP transport, used by tests
	Transport sentry.Transport
	Logger    logger.Logger
}

// New creates a Reporter. A disabled configuration yields a Reporter whose
// IsEnabled is false and which never contacts Sentry.
func New(settings *conf.TelemetrySettings, opts Options) (*Reporter, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	log = log.Module("telemetry")

	if settings == nil || !settings.Enabled {
		log.Debug("telemetry disabled")
		return &Reporter{log: log}, nil
	}
	if settings.DSN == "" {
		return nil, errors.Newf("telemetry is enabled but no dsn is configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	environment := settings.Environment
	if environment == "" {
		environment = "production"
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              settings.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       "",
		Release:          fmt.Sprintf("skyglow@%s", opts.Version),
		Transport:        opts.Transport,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return nil, errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	log.Info("telemetry enabled", logger.String("environment", environment))
	return &Reporter{
		hub:     sentry.NewHub(client, sentry.NewScope()),
		enabled: true,
		log:     log,
	}, nil
}

// IsEnabled implements errors.Reporter
func (r *Reporter) IsEnabled() bool {
	return r != nil && r.enabled
}

// ReportError implements errors.Reporter
func (r *Reporter) ReportError(ee *errors.EnhancedError) {
	if !r.IsEnabled() || ee == nil {
		return
	}
	// cancellations are user-initiated
	if ee.Category == errors.CategoryCancellation {
		return
	}

	message := errors.ScrubMessage(ee.Error())
	component := ee.GetComponent()
	title := errorTitle(ee)

	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetTag("category", ee.GetCategory())
		scope.SetFingerprint([]string{title, component})

		event := sentry.NewEvent()
		event.Level = level(ee)
		event.Timestamp = ee.GetTimestamp()
		event.Message = message
		event.Exception = []sentry.Exception{{Type: title, Value: message}}
		event.Extra = map[string]any{"component": component, "error_type": fmt.Sprintf("%T", ee.Err)}
		r.hub.CaptureEvent(event)
	})
	r.log.Debug("error reported",
		logger.String("component", component),
		logger.String("category", ee.GetCategory()))
}

// Close flushes buffered events
func (r *Reporter) Close() {
	if !r.IsEnabled() {
		return
	}
	if !r.hub.Flush(DefaultFlushTimeout) {
		r.log.Warn("telemetry flush timed out", logger.Duration("timeout", DefaultFlushTimeout))
	}
}

// errorTitle is "<Component> <category>", e.g. "Publish network"
func errorTitle(ee *errors.EnhancedError) string {
	component := ee.GetComponent()
	if component == "" {
		component = errors.ComponentUnknown
	}
	return strings.ToUpper(component[:1]) + component[1:] + " " + ee.GetCategory()
}

func level(ee *errors.EnhancedError) sentry.Level {
	switch ee.GetPriority() {
	case errors.PriorityCritical:
		return sentry.LevelFatal
	case errors.PriorityLow:
		return sentry.LevelInfo
	}
	switch ee.Category {
	case errors.CategoryValidation, errors.CategoryNotFound, errors.CategoryConflict:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}
