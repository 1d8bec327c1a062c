// Package pipeline runs registration, statistics and publishing in
// sequence on one coordinating goroutine and reports the outcome as an
// explicit Status.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skyglow/skyglow-go/internal/errors"
	"github.com/skyglow/skyglow-go/internal/logger"
	"github.com/skyglow/skyglow-go/internal/notify"
	"github.com/skyglow/skyglow-go/internal/observability/metrics"
	"github.com/skyglow/skyglow-go/internal/publish"
	"github.com/skyglow/skyglow-go/internal/registration"
	"github.com/skyglow/skyglow-go/internal/stats"
)

// Exit codes carried by Status
const (
	ExitOK            = 0
	ExitFailure       = 1 // a stage failed fatally
	ExitPublishFailed = 2 // images were processed but the publish batch was rejected
	ExitCancelled     = 130
)

// Registrar registers one directory
type Registrar interface {
	Register(ctx context.Context, dir string) (registration.Result, error)
}

// StatsRunner drains the pending set
type StatsRunner interface {
	Run(ctx context.Context) (stats.Result, error)
}

// Publisher sends unpublished measurements
type Publisher interface {
	Publish(ctx context.Context, observerID uint) (publish.Result, error)
}

// Recorder receives run metrics. *metrics.PipelineMetrics implements it.
type Recorder interface {
	RecordImages(outcome string, n int)
	RecordRegistrationDuration(d time.Duration)
	RecordStats(pending, measured, flagged int, d time.Duration)
	RecordPublish(pages int, published int64, d time.Duration, err error)
	RecordRun(exitCode int)
}

// Options selects the stages of one run
type Options struct {
	Dirs       []string
	Stats      bool
	Publish    bool
	ObserverID uint // publish scope, 0 for all observers
}

// Status is the outcome of one Run
type Status struct {
	RunID        string                `json:"run_id"`
	ExitCode     int                   `json:"exit_code"`
	Registration registration.Result   `json:"registration"`
	Directories  []registration.Result `json:"directories,omitempty"`
	Statistics   *stats.Result         `json:"statistics,omitempty"`
	Publishing   *publish.Result       `json:"publishing,omitempty"`
	Err          error                 `json:"-"`
	Duration     time.Duration         `json:"duration"`
}

// OK reports whether every requested stage succeeded
func (s Status) OK() bool { return s.ExitCode == ExitOK }

// Summary is a one-line human readable account of the run
func (s Status) Summary() string {
	var parts []string
	if len(s.Directories) > 0 {
		r := s.Registration
		parts = append(parts, fmt.Sprintf("registered %d of %d files (%d skipped, %d failed)",
			r.Processed, r.Found, r.Skipped, r.Failed))
	}
	if s.Statistics != nil {
		parts = append(parts, fmt.Sprintf("measured %d of %d pending (%d flagged)",
			s.Statistics.Succeeded, s.Statistics.Pending, s.Statistics.Flagged))
	}
	if s.Publishing != nil {
		parts = append(parts, fmt.Sprintf("published %d of %d", s.Publishing.Published, s.Publishing.Total))
	}
	if len(parts) == 0 {
		return "nothing to do"
	}
	return strings.Join(parts, ", ")
}

// AsError returns nil for a successful run and a *RunError carrying the
// exit code otherwise
func (s Status) AsError() error {
	if s.Err == nil && s.ExitCode == ExitOK {
		return nil
	}
	return &RunError{Status: s}
}

// RunError is a failed run seen as an error. Commands return it so the
// process exits with Status.ExitCode.
type RunError struct {
	Status Status
}

func (e *RunError) Error() string {
	if e.Status.Err == nil {
		return fmt.Sprintf("run %s exited with code %d", e.Status.RunID, e.Status.ExitCode)
	}
	return e.Status.Err.Error()
}

func (e *RunError) Unwrap() error { return e.Status.Err }

// ExitCode is the process exit code for the run
func (e *RunError) ExitCode() int { return e.Status.ExitCode }

// Runner wires the stages together. Any stage may be nil when the
// corresponding option is never requested.
type Runner struct {
	registrar Registrar
	stats     StatsRunner
	publisher Publisher
	notifier  notify.Notifier
	recorder  Recorder
	station   string
	log       logger.Logger
	now       func() time.Time
}

// Config collects the Runner dependencies
type Config struct {
	Registrar Registrar
	Stats     StatsRunner
	Publisher Publisher
	Notifier  notify.Notifier
	Recorder  Recorder
	Station   string
	Logger    logger.Logger
}

// New creates a Runner
func New(cfg Config) *Runner {
	log := cfg.Logger
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	n := cfg.Notifier
	if n == nil {
		n = notify.Nop{}
	}
	return &Runner{
		registrar: cfg.Registrar,
		stats:     cfg.Stats,
		publisher: cfg.Publisher,
		notifier:  n,
		recorder:  cfg.Recorder,
		station:   cfg.Station,
		log:       log.Module("pipeline"),
		now:       time.Now,
	}
}

// Run executes the requested stages in order. A fatal error ends the run at
// that stage; work committed before it stays committed. Notification
// failures are logged only.
func (r *Runner) Run(ctx context.Context, opts Options) Status {
	start := r.now()
	st := Status{RunID: uuid.NewString()}
	log := r.log.With(logger.String("run_id", st.RunID))
	log.Info("pipeline run started",
		logger.Int("directories", len(opts.Dirs)),
		logger.Bool("stats", opts.Stats),
		logger.Bool("publish", opts.Publish))

	st.Err = r.run(ctx, opts, &st, log)
	st.ExitCode = exitCode(st.Err)
	st.Duration = r.now().Sub(start)

	if r.recorder != nil {
		r.recorder.RecordRun(st.ExitCode)
	}
	if st.Err != nil {
		log.Error("pipeline run failed", logger.Int("exit_code", st.ExitCode), logger.Error(st.Err))
	} else {
		log.Info("pipeline run finished", logger.String("summary", st.Summary()),
			logger.Duration("duration", st.Duration))
	}

	r.notify(ctx, log, notify.Event{
		Kind:    notify.KindPipeline,
		Success: st.Err == nil,
		Title:   "skyglow run " + outcomeWord(st.Err),
		Message: st.Summary(),
		Error:   errText(st.Err),
		Details: st,
	})
	return st
}

func (r *Runner) run(ctx context.Context, opts Options, st *Status, log logger.Logger) error {
	for _, dir := range opts.Dirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.registrar == nil {
			return missingStage("registration")
		}
		res, err := r.registrar.Register(ctx, dir)
		st.Directories = append(st.Directories, res)
		st.Registration.Add(res)
		r.recordRegistration(res)
		if err != nil {
			return err
		}
		log.Info("directory registered",
			logger.String("directory", dir),
			logger.String("status", res.Status().String()),
			logger.Int("processed", res.Processed),
			logger.Int("found", res.Found))
	}

	if opts.Stats {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.stats == nil {
			return missingStage("stats")
		}
		res, err := r.stats.Run(ctx)
		st.Statistics = &res
		if r.recorder != nil {
			r.recorder.RecordStats(res.Pending, res.Succeeded, res.Flagged, res.Duration)
		}
		if err != nil {
			return err
		}
	}

	if opts.Publish {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.publisher == nil {
			return missingStage("publish")
		}
		res, err := r.publisher.Publish(ctx, opts.ObserverID)
		st.Publishing = &res
		if r.recorder != nil {
			r.recorder.RecordPublish(res.Pages, res.Published, res.Duration, err)
		}
		r.notify(ctx, log, notify.Event{
			Kind:    notify.KindPublish,
			Success: err == nil,
			Title:   "skyglow publish " + outcomeWord(err),
			Message: fmt.Sprintf("published %d of %d measurements in %d pages", res.Published, res.Total, res.Pages),
			Error:   errText(err),
			Details: res,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) recordRegistration(res registration.Result) {
	if r.recorder == nil {
		return
	}
	r.recorder.RecordImages(metrics.OutcomeInserted, res.Processed)
	r.recorder.RecordImages(metrics.OutcomeSkipped, res.Skipped)
	r.recorder.RecordImages(metrics.OutcomeDirectoryFixed, res.DirectoryFixed)
	r.recorder.RecordImages(metrics.OutcomeDiscarded, res.Discarded)
	r.recorder.RecordImages(metrics.OutcomeFailed, res.Failed)
	r.recorder.RecordRegistrationDuration(res.Duration)
}

// notify delivers e with the station name and time filled in
func (r *Runner) notify(ctx context.Context, log logger.Logger, e notify.Event) {
	e.Station = r.station
	e.Time = r.now().UTC()
	// a cancelled run still reports how far it got
	if err := r.notifier.Notify(context.WithoutCancel(ctx), e); err != nil {
		log.Warn("notification failed", logger.String("kind", string(e.Kind)), logger.Error(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ExitCancelled
	case errors.Is(err, publish.ErrPublishFailed):
		return ExitPublishFailed
	default:
		return ExitFailure
	}
}

func missingStage(stage string) error {
	return errors.Newf("%s stage is not configured", stage).
		Component("pipeline").
		Category(errors.CategoryConfiguration).
		Build()
}

func outcomeWord(err error) string {
	if err != nil {
		return "failed"
	}
	return "finished"
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
