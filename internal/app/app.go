// Package app assembles the skyglow services from the settings. Commands
// get everything they need from an App and close it when they finish.
package app

import (
	"context"
	"time"

	"github.com/skyglow/skyglow-go/internal/buildinfo"
	"github.com/skyglow/skyglow-go/internal/conf"
	"github.com/skyglow/skyglow-go/internal/cpuspec"
	"github.com/skyglow/skyglow-go/internal/datastore"
	"github.com/skyglow/skyglow-go/internal/defaults"
	"github.com/skyglow/skyglow-go/internal/errors"
	"github.com/skyglow/skyglow-go/internal/export"
	"github.com/skyglow/skyglow-go/internal/hashing"
	"github.com/skyglow/skyglow-go/internal/httpclient"
	"github.com/skyglow/skyglow-go/internal/logger"
	"github.com/skyglow/skyglow-go/internal/metadata"
	"github.com/skyglow/skyglow-go/internal/notify"
	"github.com/skyglow/skyglow-go/internal/observability"
	"github.com/skyglow/skyglow-go/internal/pipeline"
	"github.com/skyglow/skyglow-go/internal/publish"
	"github.com/skyglow/skyglow-go/internal/registration"
	"github.com/skyglow/skyglow-go/internal/stats"
	"github.com/skyglow/skyglow-go/internal/telemetry"
)

const notifyTimeout = 15 * time.Second

// App holds the assembled application state
type App struct {
	Settings  *conf.Settings
	Build     *buildinfo.Context
	Log       logger.Logger
	Store     *datastore.Store
	Defaults  *defaults.Provider
	Metrics   *observability.Metrics
	Telemetry *telemetry.Reporter

	central *logger.CentralLogger
	client  *httpclient.Client
	mqtt    *notify.MQTT
	cpu     cpuspec.CPUSpec
}

// Option adjusts an App before its services are built
type Option func(*App)

// WithLogger replaces the central logger, used by tests
func WithLogger(l logger.Logger) Option {
	return func(a *App) { a.Log = l }
}

// New opens the store and wires logging, metrics and telemetry. Close
// releases everything New acquired.
func New(settings *conf.Settings, build *buildinfo.Context, opts ...Option) (*App, error) {
	if settings == nil {
		return nil, errors.Newf("settings are nil").
			Component("app").
			Category(errors.CategoryConfiguration).
			Build()
	}
	settings.Version = build.Version()
	settings.BuildDate = build.BuildDate()

	a := &App{Settings: settings, Build: build, cpu: cpuspec.GetCPUSpec()}
	for _, opt := range opts {
		opt(a)
	}

	if a.Log == nil {
		if settings.Debug {
			settings.Logging.DefaultLevel = "debug"
			if settings.Logging.Console != nil {
				settings.Logging.Console.Level = "debug"
			}
		}
		central, err := logger.NewCentralLogger(&settings.Logging)
		if err != nil {
			return nil, errors.New(err).
				Component("app").
				Category(errors.CategoryConfiguration).
				Context("operation", "init-logger").
				Build()
		}
		a.central = central
		a.Log = central.Root("skyglow")
	}

	if err := a.init(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init() error {
	s := a.Settings

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}
	a.Metrics = metrics

	a.Telemetry, err = telemetry.New(&s.Telemetry, telemetry.Options{
		Version: a.Build.Version(),
		Logger:  a.Log,
	})
	if err != nil {
		return err
	}
	errors.SetReporters(a.Telemetry, metrics.Errors)

	mgr, err := datastore.Open(&s.Database, a.Log)
	if err != nil {
		return err
	}
	a.Store = datastore.NewStore(mgr)
	if sqlDB, err := mgr.DB().DB(); err == nil {
		if err := metrics.RegisterDB(sqlDB, "skyglow"); err != nil {
			a.Log.Warn("database metrics unavailable", logger.Error(err))
		}
	}

	a.Defaults = defaults.NewProvider(defaults.FromStore(a.Store), metadata.Optics{
		FocalLength: s.Optics.FocalLength,
		FNumber:     s.Optics.FNumber,
	})

	a.Log.Debug("application assembled",
		logger.String("version", a.Build.Version()),
		logger.String("database", mgr.Path()),
		logger.String("cpu", a.cpu.BrandName),
		logger.Int("logical_cores", a.cpu.LogicalCores),
		logger.Bool("telemetry", a.Telemetry.IsEnabled()))
	return nil
}

// Workers is the configured pool size, or one sized for jobs holding
// perJob bytes when the configuration leaves it at 0
func (a *App) Workers(perJob uint64) int {
	if w := a.Settings.Processing.Workers; w > 0 {
		return w
	}
	return a.cpu.Workers(perJob)
}

// Registration builds the registration stage
func (a *App) Registration() *registration.Pipeline {
	p := a.Settings.Processing
	return registration.New(a.Store.Images, a.Store.Cameras,
		registration.Providers{
			Camera:   a.Defaults,
			Observer: a.Defaults,
			Location: a.Defaults,
			Optics:   a.Defaults,
		},
		metadata.NewExtractor(),
		hashing.New(p.HashBlockSize),
		registration.Config{Workers: a.Workers(0), BatchSize: p.BatchSize},
		a.Log)
}

// Stats builds the statistics stage. The pool is sized for planes of the
// default camera when one is configured.
func (a *App) Stats(ctx context.Context) *stats.Engine {
	var perJob uint64
	if cam, err := a.Defaults.DefaultCamera(ctx); err == nil {
		perJob = cpuspec.PlaneBytes(cam.Width, cam.Length)
	}
	return stats.New(a.Store.Images, a.Store.Measurements, a.Store.Cameras, a.Defaults,
		metadata.NewExtractor(),
		stats.Config{Workers: a.Workers(perJob), BatchSize: a.Settings.Processing.BatchSize},
		a.Log)
}

// Exporter builds the CSV exporter
func (a *App) Exporter() *export.Exporter {
	return export.New(a.Store.Measurements, a.Log)
}

// HTTPClient returns the shared publishing client, reporting round trips
// to the metrics
func (a *App) HTTPClient() *httpclient.Client {
	if a.client == nil {
		s := a.Settings.Publish
		a.client = httpclient.New(&httpclient.Config{
			Timeout:   s.Timeout,
			UserAgent: a.Build.UserAgent(),
			Username:  s.Username,
			Password:  s.Password,
		})
		a.client.SetObserver(a.Metrics.HTTP.ObserveClient)
	}
	return a.client
}

// Publisher builds the publishing stage. It fails when the endpoint is
// not a valid https URL.
func (a *App) Publisher() (*publish.Publisher, error) {
	return publish.New(a.Store.Measurements, a.HTTPClient(),
		publish.ConfigFromSettings(&a.Settings.Publish), a.Log)
}

// Notifier combines the enabled notification targets
func (a *App) Notifier() (notify.Notifier, error) {
	var targets notify.Multi
	if s := a.Settings.MQTT; s.Enabled {
		if a.mqtt == nil {
			a.mqtt = notify.NewMQTT(notify.MQTTConfigFromSettings(&s, a.Settings.Main.Name), a.Log)
		}
		targets = append(targets, a.mqtt)
	}
	if urls := a.Settings.Notify.URLs; len(urls) > 0 {
		sh, err := notify.NewShoutrrr(urls, notifyTimeout)
		if err != nil {
			return nil, err
		}
		targets = append(targets, sh)
	}
	if len(targets) == 0 {
		return notify.Nop{}, nil
	}
	return targets, nil
}

// Pipeline builds a runner over every stage. The publish stage is only
// built when withPublish is set, so a missing endpoint does not block
// registration and statistics.
func (a *App) Pipeline(ctx context.Context, withPublish bool) (*pipeline.Runner, error) {
	n, err := a.Notifier()
	if err != nil {
		return nil, err
	}
	cfg := pipeline.Config{
		Registrar: a.Registration(),
		Stats:     a.Stats(ctx),
		Notifier:  n,
		Recorder:  a.Metrics.Pipeline,
		Station:   a.Settings.Main.Name,
		Logger:    a.Log,
	}
	if withPublish {
		p, err := a.Publisher()
		if err != nil {
			return nil, err
		}
		cfg.Publisher = p
	}
	return pipeline.New(cfg), nil
}

// Close releases the store, notifier connections, telemetry and log files
func (a *App) Close() error {
	var errs []error
	if a.mqtt != nil {
		a.mqtt.Close()
	}
	if a.client != nil {
		a.client.Close()
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.Telemetry != nil {
		a.Telemetry.Close()
	}
	errors.SetReporters()
	if a.central != nil {
		errs = append(errs, a.central.Close())
	}
	return errors.Join(errs...)
}

// Source hands commands the App. Implementations open it on first use so
// commands that never touch the store do not create one.
type Source interface {
	App() (*App, error)
}
