package registration

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/skyglow/skyglow-go/internal/cfa"
	"github.com/skyglow/skyglow-go/internal/datastore/entities"
	"github.com/skyglow/skyglow-go/internal/datastore/repository"
	"github.com/skyglow/skyglow-go/internal/daterange"
	"github.com/skyglow/skyglow-go/internal/errors"
	"github.com/skyglow/skyglow-go/internal/logger"
	"github.com/skyglow/skyglow-go/internal/metadata"
	"github.com/skyglow/skyglow-go/internal/suncalc"
	"github.com/skyglow/skyglow-go/internal/workpool"
)

// extraction is the worker output for one file
type extraction struct {
	info *metadata.Info
	hash []byte
	err  error
}

// run holds the per-invocation state resolved before the first file
type run struct {
	dir        string
	headerType metadata.HeaderType
	optics     metadata.Optics
	observer   *entities.Observer
	location   *entities.Location
	sun        *suncalc.SunCalc
	session    int64
	started    time.Time

	names   []string // files not registered yet, sorted
	pending []*entities.Image
	result  Result

	patternWarned map[string]bool // camera models already reported
}

// Register records the new images of dir. Per-file failures are counted in
// Result.Failed; the returned error is reserved for conditions that end the
// run: a missing default, an unknown camera model, a store failure or
// cancellation.
func (p *Pipeline) Register(ctx context.Context, dir string) (Result, error) {
	start := p.now()
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Result{Directory: dir}, errors.New(err).
			Component("registration").
			Category(errors.CategoryFileIO).
			Context("directory", dir).
			Build()
	}

	r, err := p.prepare(ctx, abs, start)
	if err != nil {
		return Result{Directory: abs}, err
	}

	err = p.process(ctx, r)
	r.result.Duration = p.now().Sub(start)

	log := p.log.With(logger.String("directory", abs))
	if err != nil {
		log.Error("registration aborted",
			logger.Error(err),
			logger.Int("processed", r.result.Processed))
		return r.result, err
	}
	log.Info("registration finished",
		logger.String("status", r.result.Status().String()),
		logger.Int("found", r.result.Found),
		logger.Int("processed", r.result.Processed),
		logger.Int("skipped", r.result.Skipped),
		logger.Int("directory_fixed", r.result.DirectoryFixed),
		logger.Int("discarded", r.result.Discarded),
		logger.Int("failed", r.result.Failed),
		logger.Duration("duration", r.result.Duration))
	return r.result, nil
}

func (p *Pipeline) prepare(ctx context.Context, dir string, start time.Time) (*run, error) {
	cam, err := p.providers.Camera.DefaultCamera(ctx)
	if err != nil {
		return nil, err
	}
	headerType, err := metadata.ParseHeaderType(cam.HeaderType)
	if err != nil {
		return nil, err
	}
	observer, err := p.providers.Observer.DefaultObserver(ctx)
	if err != nil {
		return nil, err
	}
	location, err := p.providers.Location.DefaultLocation(ctx)
	if err != nil {
		return nil, err
	}
	optics, err := p.providers.Optics.Optics(ctx)
	if err != nil {
		return nil, err
	}

	names, err := listImages(dir, cam.Extension)
	if err != nil {
		return nil, err
	}

	r := &run{
		dir:        dir,
		headerType: headerType,
		optics:     optics,
		observer:   observer,
		location:   location,
		sun:        suncalc.NewSunCalc(location.Latitude, location.Longitude),
		session:    start.UTC().Unix(),
		started:    start,

		patternWarned: make(map[string]bool),
		result:     Result{Directory: dir, Found: len(names)},
	}
	if len(names) == 0 {
		return r, nil
	}

	known, err := p.images.KnownNames(ctx, dir)
	if err != nil {
		return nil, err
	}
	r.result.Skipped = len(names)
	names = slices.DeleteFunc(names, func(n string) bool {
		_, ok := known[n]
		return ok
	})
	r.result.Skipped -= len(names)
	r.names = names
	return r, nil
}

// listImages returns the regular files of dir whose extension matches ext
// case-insensitively, sorted by name
func listImages(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.New(err).
			Component("registration").
			Category(errors.CategoryFileIO).
			Context("operation", "read_dir").
			Context("directory", dir).
			Build()
	}
	ext = strings.TrimSpace(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ext) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// process fans hashing and extraction out to the worker pool and consumes
// the results in name order on the calling goroutine
func (p *Pipeline) process(ctx context.Context, r *run) error {
	extract := func(name string) extraction {
		path := filepath.Join(r.dir, name)
		hash, err := p.hasher.File(path)
		if err != nil {
			return extraction{err: err}
		}
		info, err := p.extractor.Extract(path, r.headerType, r.optics)
		return extraction{info: info, hash: hash, err: err}
	}

	err := workpool.Ordered(ctx, p.cfg.Workers, r.names, extract, func(name string, x extraction) error {
		return p.consume(ctx, r, name, x)
	})
	switch {
	case err == nil:
		return p.flush(ctx, r)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		err = errors.New(err).
			Component("registration").
			Category(errors.CategoryCancellation).
			Context("directory", r.dir).
			Context("processed", r.result.Processed).
			Timing("register_directory", p.now().Sub(r.started)).
			Build()
		// keep what the workers already finished
		if flushErr := p.flush(context.WithoutCancel(ctx), r); flushErr != nil {
			err = errors.Join(err, flushErr)
		}
	}
	return err
}

func (p *Pipeline) consume(ctx context.Context, r *run, name string, x extraction) error {
	if x.err != nil {
		r.result.Failed++
		p.log.Warn("skipping unreadable image",
			logger.String("file", filepath.Join(r.dir, name)),
			logger.Error(x.err))
		return nil
	}

	img, err := p.buildImage(ctx, r, name, x)
	if err != nil {
		return err
	}
	r.pending = append(r.pending, img)
	if len(r.pending) >= p.cfg.BatchSize {
		return p.flush(ctx, r)
	}
	return nil
}

func (p *Pipeline) buildImage(ctx context.Context, r *run, name string, x extraction) (*entities.Image, error) {
	info := x.info
	cam, err := p.cameraByModel(ctx, info.Model)
	if err != nil {
		return nil, err
	}
	p.checkPattern(r, name, info, cam)

	img := &entities.Image{
		Name:         name,
		Directory:    r.dir,
		Hash:         x.hash,
		ISO:          info.ISO,
		Gain:         info.Gain,
		LogGain:      info.LogGain,
		ExposureTime: info.ExposureTime,
		FocalLength:  info.FocalLength,
		FNumber:      info.FNumber,
		ImageType:    string(metadata.ClassifyImageType(r.dir, name)),
		Session:      r.session,
		DateID:       info.DateID,
		TimeID:       info.TimeID,
		NightID:      daterange.NightID(info.DateID, info.TimeID),
		Width:        info.Width,
		Length:       info.Length,
		CameraID:     cam.ID,
		ObserverID:   r.observer.ID,
		LocationID:   r.location.ID,
	}
	if night, ok := r.sun.IsAstronomicalNight(suncalc.LocalToUTC(info.Timestamp, r.location.UTCOffset)); ok {
		img.AstroNight = &night
	}
	return img, nil
}

// checkPattern warns once per model when the header's CFA layout differs
// from the catalogued camera; the catalogue wins, so channels would be swapped
func (p *Pipeline) checkPattern(r *run, name string, info *metadata.Info, cam *entities.Camera) {
	if info.BayerPattern == "" || r.patternWarned[cam.Model] {
		return
	}
	want, err := cfa.ParsePattern(cam.BayerPattern)
	if err != nil || want == info.BayerPattern {
		return
	}
	r.patternWarned[cam.Model] = true
	p.log.Warn("bayer pattern differs from camera",
		logger.String("file", filepath.Join(r.dir, name)),
		logger.String("model", cam.Model),
		logger.String("camera_pattern", string(want)),
		logger.String("header_pattern", string(info.BayerPattern)))
}

// flush writes the buffered images in one transaction and folds the
// per-row outcomes into the result
func (p *Pipeline) flush(ctx context.Context, r *run) error {
	if len(r.pending) == 0 {
		return nil
	}
	results, err := p.images.InsertBatch(ctx, r.pending)
	if err != nil {
		return err
	}
	r.pending = r.pending[:0]

	for _, res := range results {
		switch res.Outcome {
		case repository.Inserted:
			r.result.Processed++
		case repository.DirectoryFixed:
			r.result.DirectoryFixed++
			p.log.Info("image moved, directory updated",
				logger.String("name", res.Image.Name),
				logger.String("from", res.Existing.Directory),
				logger.String("to", res.Image.Directory))
		case repository.Discarded:
			r.result.Discarded++
			p.log.Warn("duplicate content under another name, discarded",
				logger.String("file", filepath.Join(res.Image.Directory, res.Image.Name)),
				logger.String("registered_as", filepath.Join(res.Existing.Directory, res.Existing.Name)))
		case repository.AlreadyRegistered:
			r.result.Skipped++
		}
	}
	return nil
}
