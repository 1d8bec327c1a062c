package stats

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skyglow/skyglow-go/internal/cfa"
	"github.com/skyglow/skyglow-go/internal/datastore"
	"github.com/skyglow/skyglow-go/internal/datastore/datastoretest"
	"github.com/skyglow/skyglow-go/internal/datastore/entities"
	"github.com/skyglow/skyglow-go/internal/defaults"
	skyerrors "github.com/skyglow/skyglow-go/internal/errors"
	"github.com/skyglow/skyglow-go/internal/metadata"
	"github.com/skyglow/skyglow-go/internal/testutil"
)

// channelBase is the level of R, G1, G2 and B in generated frames
var channelBase = [4]uint16{100, 200, 300, 400}

// rggbFrame is a 48x32 RGGB sensor whose channels alternate base-1 and
// base+1 in a checkerboard, so any even-sized ROI has mean base and
// variance 1.
func rggbFrame(width, height int, offset uint16) testutil.RawTIFF {
	pix := make([]uint16, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c cfa.Channel
			switch {
			case y%2 == 0 && x%2 == 0:
				c = cfa.R
			case y%2 == 0:
				c = cfa.G1
			case x%2 == 0:
				c = cfa.G2
			default:
				c = cfa.B
			}
			v := channelBase[c] + offset + 1
			if (x/2+y/2)%2 == 1 {
				v -= 2
			}
			pix[y*width+x] = v
		}
	}
	return testutil.RawTIFF{
		Width:            width,
		Height:           height,
		Pix:              pix,
		Model:            "Canon EOS 6D",
		DateTimeOriginal: "2024:01:10 22:00:00",
		ISO:              1600,
		ExposureTime:     [2]uint32{30, 1},
		CFAPattern:       "RGGB",
	}
}

type env struct {
	store    *datastore.Store
	fx       datastoretest.Fixture
	provider *defaults.Provider
	dir      string
}

func newEnv(t *testing.T) env {
	t.Helper()
	store := datastoretest.New(t)
	fx := datastoretest.Seed(t, store)
	provider := defaults.NewProvider(defaults.FromStore(store), metadata.Optics{})
	require.NoError(t, provider.SetROI(context.Background(), fx.ROI.Rect()))
	return env{store: store, fx: fx, provider: provider, dir: t.TempDir()}
}

func (e env) engine(cfg Config, decoder Decoder) *Engine {
	if decoder == nil {
		decoder = metadata.NewExtractor()
	}
	return New(e.store.Images, e.store.Measurements, e.store.Cameras, e.provider, decoder, cfg, nil)
}

// addFrame writes a frame to disk and registers it
func (e env) addFrame(t *testing.T, name string, frame testutil.RawTIFF) *entities.Image {
	t.Helper()
	testutil.WriteRawTIFF(t, filepath.Join(e.dir, name), frame)
	return e.register(t, name, "LIGHT")
}

func (e env) register(t *testing.T, name, imageType string) *entities.Image {
	t.Helper()
	img := e.fx.Image(name, e.dir, 20240110, 220000)
	img.ImageType = imageType
	_, err := e.store.Images.InsertBatch(context.Background(), []*entities.Image{img})
	require.NoError(t, err)
	return img
}

func TestRunMeasuresPendingImages(t *testing.T) {
	e := newEnv(t)
	good := e.addFrame(t, "a.tif", rggbFrame(48, 32, 0))
	brighter := e.addFrame(t, "b.tif", rggbFrame(48, 32, 10))
	missing := e.register(t, "gone.tif", "LIGHT")
	small := e.addFrame(t, "small.tif", rggbFrame(16, 16, 0))

	res, err := e.engine(Config{Workers: 3}, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Pending)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 2, res.Flagged)

	ctx := context.Background()
	m, err := e.store.Measurements.LoadByImage(ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, e.fx.ROI.ID, m.ROIID)
	assert.InDelta(t, 100.0, m.AverSignalR, 1e-9)
	assert.InDelta(t, 1.0, m.VariSignalR, 1e-9)
	assert.InDelta(t, 200.0, m.AverSignalG1, 1e-9)
	assert.InDelta(t, 300.0, m.AverSignalG2, 1e-9)
	assert.InDelta(t, 400.0, m.AverSignalB, 1e-9)
	assert.InDelta(t, 1.0, m.VariSignalB, 1e-9)
	assert.False(t, m.Published)

	m, err = e.store.Measurements.LoadByImage(ctx, brighter.ID)
	require.NoError(t, err)
	assert.InDelta(t, 110.0, m.AverSignalR, 1e-9)

	for _, img := range []*entities.Image{missing, small} {
		loaded, err := e.store.Images.LoadByID(ctx, img.ID)
		require.NoError(t, err)
		assert.True(t, loaded.Flagged, img.Name)
	}

	pending, err := e.store.Images.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	res, err = e.engine(Config{}, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Duration: res.Duration}, res)
}

func TestRunPagesThroughLargeSets(t *testing.T) {
	e := newEnv(t)
	for _, name := range []string{"a.tif", "b.tif", "c.tif", "d.tif", "e.tif"} {
		e.addFrame(t, name, rggbFrame(48, 32, 0))
	}
	e.register(t, "gone.tif", "LIGHT")

	res, err := e.engine(Config{Workers: 2, BatchSize: 2}, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Succeeded)
	assert.Equal(t, 1, res.Flagged)

	count, err := e.store.Images.Counts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count.Pending)
}

func TestRunRequiresDefaultROI(t *testing.T) {
	store := datastoretest.New(t)
	provider := defaults.NewProvider(defaults.FromStore(store), metadata.Optics{})
	eng := New(store.Images, store.Measurements, store.Cameras, provider, metadata.NewExtractor(), Config{}, nil)

	_, err := eng.Run(context.Background())
	require.ErrorIs(t, err, defaults.ErrMissingDefault)
}

// cancellingDecoder cancels the run on its first call
type cancellingDecoder struct {
	Decoder
	calls  atomic.Int32
	cancel context.CancelFunc
}

func (d *cancellingDecoder) Plane(path string, headerType metadata.HeaderType) (*cfa.Plane, error) {
	if d.calls.Add(1) == 1 {
		d.cancel()
	}
	return d.Decoder.Plane(path, headerType)
}

func TestRunStopsOnCancellation(t *testing.T) {
	e := newEnv(t)
	for _, name := range []string{"a.tif", "b.tif", "c.tif", "d.tif", "e.tif"} {
		e.addFrame(t, name, rggbFrame(48, 32, 0))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	decoder := &cancellingDecoder{Decoder: metadata.NewExtractor(), cancel: cancel}

	res, err := e.engine(Config{Workers: 1, BatchSize: 10}, decoder).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, res.Succeeded, 5)
	var ee *skyerrors.EnhancedError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, skyerrors.CategoryCancellation, ee.Category)
	assert.Equal(t, "measure_pending", ee.GetContext()["operation"])
	assert.Contains(t, ee.GetContext(), "duration_ms")
	assert.LessOrEqual(t, int(decoder.calls.Load()), 2)

	// measurements computed before the cancellation are kept
	left, err := e.store.Images.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5-res.Succeeded), left)
}

func TestRunLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	e := newEnv(t)
	for _, name := range []string{"a.tif", "b.tif", "c.tif"} {
		e.addFrame(t, name, rggbFrame(48, 32, 0))
	}
	_, err := e.engine(Config{Workers: 4, BatchSize: 2}, nil).Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.store.Close())
}
