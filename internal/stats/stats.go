// Package stats computes per-channel sky brightness for every pending image
// over the default region of interest.
package stats

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/skyglow/skyglow-go/internal/cfa"
	"github.com/skyglow/skyglow-go/internal/datastore/entities"
	"github.com/skyglow/skyglow-go/internal/datastore/repository"
	"github.com/skyglow/skyglow-go/internal/defaults"
	"github.com/skyglow/skyglow-go/internal/errors"
	"github.com/skyglow/skyglow-go/internal/geometry"
	"github.com/skyglow/skyglow-go/internal/logger"
	"github.com/skyglow/skyglow-go/internal/metadata"
	"github.com/skyglow/skyglow-go/internal/workpool"
)

// DefaultBatchSize is the number of measurements written per transaction
const DefaultBatchSize = 50

// Decoder reads the raw sensor plane of an image file
type Decoder interface {
	Plane(path string, headerType metadata.HeaderType) (*cfa.Plane, error)
}

// Config tunes an Engine
type Config struct {
	Workers   int // decoding workers, at least 1
	BatchSize int // measurements per insert transaction, also the page size
}

// Result counts the outcome of one run
type Result struct {
	Succeeded int           `json:"succeeded"`
	Pending   int           `json:"pending"`
	Flagged   int           `json:"flagged"`
	Duration  time.Duration `json:"duration"`
}

// Engine drains the pending set. Like registration it must not run
// concurrently with itself on one database.
type Engine struct {
	images       repository.ImageRepository
	measurements repository.MeasurementRepository
	cameras      repository.CameraRepository
	roi          defaults.DefaultROIProvider
	decoder      Decoder
	cfg          Config
	log          logger.Logger
	now          func() time.Time
}

// New creates an Engine
func New(images repository.ImageRepository, measurements repository.MeasurementRepository,
	cameras repository.CameraRepository, roi defaults.DefaultROIProvider, decoder Decoder,
	cfg Config, log logger.Logger) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultBatchSize
	}
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &Engine{
		images:       images,
		measurements: measurements,
		cameras:      cameras,
		roi:          roi,
		decoder:      decoder,
		cfg:          cfg,
		log:          log.Module("stats"),
		now:          time.Now,
	}
}

// outcome is the worker result for one image
type outcome struct {
	channels [4]cfa.Stats
	err      error
}

// run is the state of one Run call
type run struct {
	roi     *entities.ROI
	rect    geometry.Rect
	pending []*entities.SkyBrightness
	result  Result
	started time.Time
}

// Run measures every unflagged image that has no measurement yet. Images
// that cannot be decoded, or that the ROI does not fit, are flagged and
// skipped. The returned error is reserved for a missing default ROI, store
// failures and cancellation; measurements flushed before it stay committed.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	start := e.now()
	roi, err := e.roi.DefaultROI(ctx)
	if err != nil {
		return Result{}, err
	}

	total, err := e.images.CountPending(ctx)
	if err != nil {
		return Result{}, err
	}
	r := &run{roi: roi, rect: roi.Rect(), result: Result{Pending: int(total)}, started: start}
	log := e.log.With(logger.String("roi", roi.DisplayName))
	log.Info("statistics started", logger.Int64("pending", total))

	err = e.drain(ctx, r)
	r.result.Duration = e.now().Sub(start)
	if err != nil {
		log.Error("statistics aborted",
			logger.Error(err),
			logger.Int("succeeded", r.result.Succeeded),
			logger.Int("flagged", r.result.Flagged))
		return r.result, err
	}
	log.Info("statistics finished",
		logger.Int("succeeded", r.result.Succeeded),
		logger.Int("pending", r.result.Pending),
		logger.Int("flagged", r.result.Flagged),
		logger.Duration("duration", r.result.Duration))
	return r.result, nil
}

// drain pages through the pending set by id. Measured and flagged images
// leave the set, so the cursor only guards against revisiting rows that a
// failed flag left behind.
func (e *Engine) drain(ctx context.Context, r *run) error {
	var afterID uint
	for {
		if err := ctx.Err(); err != nil {
			return e.cancelled(ctx, r, err)
		}
		page, err := e.images.Pending(ctx, afterID, e.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return e.flush(ctx, r)
		}
		afterID = page[len(page)-1].ID

		err = workpool.Ordered(ctx, e.cfg.Workers, page,
			func(img *entities.Image) outcome { return e.measure(img, r.rect) },
			func(img *entities.Image, o outcome) error { return e.consume(ctx, r, img, o) })
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return e.cancelled(ctx, r, err)
			}
			return err
		}
	}
}

// measure runs on a worker goroutine
func (e *Engine) measure(img *entities.Image, roi geometry.Rect) outcome {
	if img.Camera == nil {
		return outcome{err: fmt.Errorf("image %d has no camera", img.ID)}
	}
	headerType, err := metadata.ParseHeaderType(img.Camera.HeaderType)
	if err != nil {
		return outcome{err: err}
	}
	pattern, err := cfa.ParsePattern(img.Camera.BayerPattern)
	if err != nil {
		return outcome{err: err}
	}
	plane, err := e.decoder.Plane(filepath.Join(img.Directory, img.Name), headerType)
	if err != nil {
		return outcome{err: err}
	}
	if err := cfa.Validate(plane.Width, plane.Height, roi); err != nil {
		return outcome{err: err}
	}
	channels, err := cfa.AllChannels(plane, pattern, roi)
	return outcome{channels: channels, err: err}
}

func (e *Engine) consume(ctx context.Context, r *run, img *entities.Image, o outcome) error {
	if o.err != nil {
		if err := e.images.Flag(ctx, img.ID); err != nil {
			return err
		}
		r.result.Flagged++
		e.log.Warn("image flagged",
			logger.String("file", filepath.Join(img.Directory, img.Name)),
			logger.Error(o.err))
		return nil
	}

	c := o.channels
	r.pending = append(r.pending, &entities.SkyBrightness{
		ImageID:      img.ID,
		ROIID:        r.roi.ID,
		AverSignalR:  c[cfa.R].Mean,
		VariSignalR:  c[cfa.R].Variance,
		AverSignalG1: c[cfa.G1].Mean,
		VariSignalG1: c[cfa.G1].Variance,
		AverSignalG2: c[cfa.G2].Mean,
		VariSignalG2: c[cfa.G2].Variance,
		AverSignalB:  c[cfa.B].Mean,
		VariSignalB:  c[cfa.B].Variance,
	})
	if len(r.pending) >= e.cfg.BatchSize {
		return e.flush(ctx, r)
	}
	return nil
}

func (e *Engine) flush(ctx context.Context, r *run) error {
	if len(r.pending) == 0 {
		return nil
	}
	if err := e.measurements.InsertBatch(ctx, r.pending); err != nil {
		return err
	}
	r.result.Succeeded += len(r.pending)
	r.pending = r.pending[:0]
	return nil
}

// cancelled keeps the measurements already computed and wraps cause
func (e *Engine) cancelled(ctx context.Context, r *run, cause error) error {
	err := errors.New(cause).
		Component("stats").
		Category(errors.CategoryCancellation).
		Context("succeeded", r.result.Succeeded).
		Timing("measure_pending", e.now().Sub(r.started)).
		Build()
	if flushErr := e.flush(context.WithoutCancel(ctx), r); flushErr != nil {
		return errors.Join(err, flushErr)
	}
	return err
}
