// Package registration walks an image directory and records every new
// frame in the store, deduplicating by content hash.
package registration

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/skyglow/skyglow-go/internal/datastore/entities"
	"github.com/skyglow/skyglow-go/internal/datastore/repository"
	"github.com/skyglow/skyglow-go/internal/defaults"
	"github.com/skyglow/skyglow-go/internal/errors"
	"github.com/skyglow/skyglow-go/internal/logger"
	"github.com/skyglow/skyglow-go/internal/metadata"
)

const (
	// DefaultBatchSize is the number of images written per transaction
	DefaultBatchSize = 50

	cameraCacheTTL = 5 * time.Minute
)

// ErrCameraNotFound is returned when an image names a camera model that is
// not configured. It ends the run; batches already flushed stay committed.
var ErrCameraNotFound = errors.NewStd("camera model not configured")

// Extractor reads capture metadata from one file
type Extractor interface {
	Extract(path string, headerType metadata.HeaderType, defaults metadata.Optics) (*metadata.Info, error)
}

// Hasher digests file content
type Hasher interface {
	File(path string) ([]byte, error)
}

// Providers resolves the defaults a run registers images with
type Providers struct {
	Camera   defaults.DefaultCameraProvider
	Observer defaults.DefaultObserverProvider
	Location defaults.DefaultLocationProvider
	Optics   defaults.OpticsProvider
}

// Config tunes a Pipeline
type Config struct {
	Workers   int // hashing and extraction workers, at least 1
	BatchSize int // images per insert transaction
}

// Status summarizes how a run ended
type Status int

const (
	// NoFiles means the directory held no file with the camera extension
	NoFiles Status = iota
	// NothingNew means files were found but none was inserted
	NothingNew
	// Registered means at least one image was inserted
	Registered
)

func (s Status) String() string {
	switch s {
	case NoFiles:
		return "no-files"
	case NothingNew:
		return "nothing-new"
	case Registered:
		return "registered"
	default:
		return "unknown"
	}
}

// Result counts what happened to the files of one directory
type Result struct {
	Directory      string        `json:"directory"`
	Found          int           `json:"found"`
	Processed      int           `json:"processed"`
	Skipped        int           `json:"skipped"`
	DirectoryFixed int           `json:"directory_fixed"`
	Discarded      int           `json:"discarded"`
	Failed         int           `json:"failed"`
	Duration       time.Duration `json:"duration"`
}

// Status derives the run outcome from the counters
func (r Result) Status() Status {
	switch {
	case r.Found == 0:
		return NoFiles
	case r.Processed == 0:
		return NothingNew
	default:
		return Registered
	}
}

// Add accumulates o into r, for multi-directory runs
func (r *Result) Add(o Result) {
	r.Found += o.Found
	r.Processed += o.Processed
	r.Skipped += o.Skipped
	r.DirectoryFixed += o.DirectoryFixed
	r.Discarded += o.Discarded
	r.Failed += o.Failed
	r.Duration += o.Duration
}

// Pipeline registers directories. It is safe to reuse across runs but not
// to run concurrently on one database.
type Pipeline struct {
	images    repository.ImageRepository
	cameras   repository.CameraRepository
	providers Providers
	extractor Extractor
	hasher    Hasher
	cfg       Config
	log       logger.Logger

	cameraCache *cache.Cache
	now         func() time.Time
}

// New creates a Pipeline
func New(images repository.ImageRepository, cameras repository.CameraRepository, providers Providers,
	extractor Extractor, hasher Hasher, cfg Config, log logger.Logger) *Pipeline {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultBatchSize
	}
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &Pipeline{
		images:      images,
		cameras:     cameras,
		providers:   providers,
		extractor:   extractor,
		hasher:      hasher,
		cfg:         cfg,
		log:         log.Module("registration"),
		cameraCache: cache.New(cameraCacheTTL, 2*cameraCacheTTL),
		now:         time.Now,
	}
}

// cameraByModel resolves a camera through the cache. Misses are not cached
// so a camera configured mid-session is picked up on the next run.
func (p *Pipeline) cameraByModel(ctx context.Context, model string) (*entities.Camera, error) {
	if cached, found := p.cameraCache.Get(model); found {
		if cam, ok := cached.(*entities.Camera); ok {
			return cam, nil
		}
	}
	cam, err := p.cameras.LoadByNaturalKey(ctx, model)
	if errors.Is(err, repository.ErrCameraNotFound) {
		return nil, errors.New(ErrCameraNotFound).
			Component("registration").
			Category(errors.CategoryNotFound).
			Context("model", model).
			Build()
	}
	if err != nil {
		return nil, err
	}
	p.cameraCache.Set(model, cam, cache.DefaultExpiration)
	return cam, nil
}

// InvalidateCameras drops cached camera rows, e.g. after a bias update
func (p *Pipeline) InvalidateCameras() {
	p.cameraCache.Flush()
}
