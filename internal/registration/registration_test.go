package registration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skyglow/skyglow-go/internal/datastore"
	"github.com/skyglow/skyglow-go/internal/datastore/datastoretest"
	"github.com/skyglow/skyglow-go/internal/daterange"
	"github.com/skyglow/skyglow-go/internal/defaults"
	skyerrors "github.com/skyglow/skyglow-go/internal/errors"
	"github.com/skyglow/skyglow-go/internal/hashing"
	"github.com/skyglow/skyglow-go/internal/logger"
	"github.com/skyglow/skyglow-go/internal/metadata"
	"github.com/skyglow/skyglow-go/internal/testutil"
)

// frame returns a small raw TIFF whose pixels depend on seed, so distinct
// seeds hash differently
func frame(model string, seed uint16) testutil.RawTIFF {
	pix := make([]uint16, 8*6)
	for i := range pix {
		pix[i] = 2048 + seed + uint16(i)
	}
	return testutil.RawTIFF{
		Width:            8,
		Height:           6,
		Pix:              pix,
		Model:            model,
		DateTimeOriginal: "2024:01:10 22:00:00",
		ISO:              1600,
		ExposureTime:     [2]uint32{30, 1},
		FNumber:          [2]uint32{28, 10},
		FocalLength:      [2]uint32{24, 1},
		CFAPattern:       "RGGB",
	}
}

type env struct {
	store    *datastore.Store
	fx       datastoretest.Fixture
	provider *defaults.Provider
}

func newEnv(t *testing.T) env {
	t.Helper()
	store := datastoretest.New(t)
	fx := datastoretest.Seed(t, store)
	provider := defaults.NewProvider(defaults.FromStore(store), metadata.Optics{FocalLength: 14, FNumber: 2.8})

	ctx := context.Background()
	require.NoError(t, provider.SetCamera(ctx, fx.Camera.Model))
	require.NoError(t, provider.SetObserver(ctx, fx.Observer.FamilyName, fx.Observer.Surname))
	require.NoError(t, provider.SetLocation(ctx, fx.Location.SiteName, fx.Location.Location))
	return env{store: store, fx: fx, provider: provider}
}

func (e env) pipeline(cfg Config, hasher Hasher) *Pipeline {
	return e.pipelineWithLog(cfg, hasher, nil)
}

func (e env) pipelineWithLog(cfg Config, hasher Hasher, log logger.Logger) *Pipeline {
	if hasher == nil {
		hasher = hashing.New(0)
	}
	return New(e.store.Images, e.store.Cameras, Providers{
		Camera:   e.provider,
		Observer: e.provider,
		Location: e.provider,
		Optics:   e.provider,
	}, metadata.NewExtractor(), hasher, cfg, log)
}

func writeFrames(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for i, name := range names {
		testutil.WriteRawTIFF(t, filepath.Join(dir, name), frame("Canon EOS 6D", uint16(i*100)))
	}
}

func TestRegisterNewDirectory(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	writeFrames(t, dir, "IMG_0003.tif", "IMG_0001.TIF", "IMG_0002.tif")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.tif"), 0o755))

	p := e.pipeline(Config{Workers: 2, BatchSize: 2}, nil)
	res, err := p.Register(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Found)
	assert.Equal(t, 3, res.Processed)
	assert.Zero(t, res.Skipped)
	assert.Zero(t, res.Failed)
	assert.Equal(t, Registered, res.Status())

	known, err := e.store.Images.KnownNames(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, known, 3)

	pending, err := e.store.Images.Pending(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	img := pending[0]
	assert.Equal(t, "IMG_0001.TIF", img.Name, "consumed in name order")
	assert.Equal(t, e.fx.Camera.ID, img.CameraID)
	assert.Equal(t, e.fx.Observer.ID, img.ObserverID)
	assert.Equal(t, e.fx.Location.ID, img.LocationID)
	assert.Equal(t, "LIGHT", img.ImageType)
	require.NotNil(t, img.ISO)
	assert.Equal(t, 1600, *img.ISO)
	assert.Nil(t, img.Gain)
	assert.Equal(t, 20240110, img.DateID)
	assert.Equal(t, 220000, img.TimeID)
	assert.Equal(t, daterange.NightID(20240110, 220000), img.NightID)
	assert.Equal(t, 8, img.Width)
	assert.NotZero(t, img.Session)
	require.NotNil(t, img.AstroNight)
	assert.True(t, *img.AstroNight)
}

func TestRegisterWarnsOnBayerPatternMismatch(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	for i, name := range []string{"a.tif", "b.tif"} {
		f := frame("Canon EOS 6D", uint16(i*100))
		f.CFAPattern = "BGGR"
		testutil.WriteRawTIFF(t, filepath.Join(dir, name), f)
	}

	var buf bytes.Buffer
	p := e.pipelineWithLog(Config{Workers: 1}, nil, logger.NewSlogLogger(&buf, logger.LogLevelWarn, nil))
	res, err := p.Register(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed, "mismatch is reported, not fatal")

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "bayer pattern differs from camera"), "once per model")
	assert.Contains(t, out, "RGGB")
	assert.Contains(t, out, "BGGR")
}

func TestRegisterMatchingBayerPatternIsQuiet(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	writeFrames(t, dir, "a.tif")

	var buf bytes.Buffer
	p := e.pipelineWithLog(Config{Workers: 1}, nil, logger.NewSlogLogger(&buf, logger.LogLevelWarn, nil))
	_, err := p.Register(context.Background(), dir)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "bayer pattern")
}

func TestRegisterIsResumable(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	writeFrames(t, dir, "a.tif", "b.tif")
	p := e.pipeline(Config{Workers: 2}, nil)

	_, err := p.Register(context.Background(), dir)
	require.NoError(t, err)

	writeFrames(t, dir, "a.tif", "b.tif", "c.tif")
	res, err := p.Register(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Found)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 1, res.Processed)

	res, err = p.Register(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Skipped)
	assert.Equal(t, NothingNew, res.Status())
}

func TestRegisterEmptyDirectory(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("x"), 0o600))

	res, err := e.pipeline(Config{}, nil).Register(context.Background(), dir)
	require.NoError(t, err)
	assert.Zero(t, res.Found)
	assert.Equal(t, NoFiles, res.Status())

	_, err = e.pipeline(Config{}, nil).Register(context.Background(), filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestRegisterMovedAndCopiedFiles(t *testing.T) {
	e := newEnv(t)
	root := t.TempDir()
	original := filepath.Join(root, "night1")
	writeFrames(t, original, "IMG_0001.tif")

	p := e.pipeline(Config{Workers: 1}, nil)
	_, err := p.Register(context.Background(), original)
	require.NoError(t, err)

	moved := filepath.Join(root, "archive")
	writeFrames(t, moved, "IMG_0001.tif")
	res, err := p.Register(context.Background(), moved)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DirectoryFixed)
	assert.Zero(t, res.Processed)

	copied := filepath.Join(root, "copies")
	writeFrames(t, copied, "COPY_0001.tif")
	res, err = p.Register(context.Background(), copied)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Discarded)
	assert.Zero(t, res.Processed)

	counts, err := e.store.Images.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Total)

	known, err := e.store.Images.KnownNames(context.Background(), moved)
	require.NoError(t, err)
	assert.Contains(t, known, "IMG_0001.tif")
}

func TestRegisterCountsUnreadableFiles(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	writeFrames(t, dir, "good.tif")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.tif"), []byte("not a tiff"), 0o600))

	bad := frame("Canon EOS 6D", 7)
	bad.DateTimeOriginal = "yesterday"
	testutil.WriteRawTIFF(t, filepath.Join(dir, "clock.tif"), bad)

	res, err := e.pipeline(Config{Workers: 3}, nil).Register(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Found)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 2, res.Failed)
}

func TestRegisterUnknownCameraIsFatal(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	writeFrames(t, dir, "a.tif")
	testutil.WriteRawTIFF(t, filepath.Join(dir, "b.tif"), frame("Nikon D810", 1))

	res, err := e.pipeline(Config{Workers: 2, BatchSize: 1}, nil).Register(context.Background(), dir)
	require.ErrorIs(t, err, ErrCameraNotFound)
	assert.Equal(t, 1, res.Processed, "flushed batch stays committed")

	counts, err := e.store.Images.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Total)
}

func TestRegisterRequiresDefaults(t *testing.T) {
	store := datastoretest.New(t)
	provider := defaults.NewProvider(defaults.FromStore(store), metadata.Optics{})
	p := New(store.Images, store.Cameras, Providers{provider, provider, provider, provider},
		metadata.NewExtractor(), hashing.New(0), Config{}, nil)

	_, err := p.Register(context.Background(), t.TempDir())
	require.ErrorIs(t, err, defaults.ErrMissingDefault)
}

// cancellingHasher cancels the run once it has hashed after files
type cancellingHasher struct {
	*hashing.Hasher
	after  int32
	calls  atomic.Int32
	cancel context.CancelFunc
}

func (h *cancellingHasher) File(path string) ([]byte, error) {
	if h.calls.Add(1) == h.after {
		h.cancel()
	}
	return h.Hasher.File(path)
}

func TestRegisterStopsOnCancellation(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	writeFrames(t, dir, "a.tif", "b.tif", "c.tif", "d.tif", "e.tif", "f.tif")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hasher := &cancellingHasher{Hasher: hashing.New(0), after: 1, cancel: cancel}

	res, err := e.pipeline(Config{Workers: 1}, hasher).Register(ctx, dir)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, res.Processed, res.Found)
	var ee *skyerrors.EnhancedError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, skyerrors.CategoryCancellation, ee.Category)
	assert.Equal(t, "register_directory", ee.GetContext()["operation"])
	assert.Contains(t, ee.GetContext(), "duration_ms")
	assert.LessOrEqual(t, int(hasher.calls.Load()), 2)

	// whatever was consumed before the cancellation is committed
	counts, err := e.store.Images.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(res.Processed), counts.Total)
}

func TestRegisterLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreCurrent(),
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)

	e := newEnv(t)
	dir := t.TempDir()
	writeFrames(t, dir, "a.tif", "b.tif", "c.tif", "d.tif")

	_, err := e.pipeline(Config{Workers: 4, BatchSize: 3}, nil).Register(context.Background(), dir)
	require.NoError(t, err)
	require.NoError(t, e.store.Close())
}

func TestResultAdd(t *testing.T) {
	total := Result{Found: 1, Processed: 1}
	total.Add(Result{Found: 2, Skipped: 1, Failed: 1})
	assert.Equal(t, Result{Found: 3, Processed: 1, Skipped: 1, Failed: 1}, total)
}
