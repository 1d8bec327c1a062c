package defaults_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyglow/skyglow-go/internal/datastore/datastoretest"
	"github.com/skyglow/skyglow-go/internal/datastore/entities"
	"github.com/skyglow/skyglow-go/internal/datastore/repository"
	"github.com/skyglow/skyglow-go/internal/defaults"
	"github.com/skyglow/skyglow-go/internal/geometry"
	"github.com/skyglow/skyglow-go/internal/metadata"
)

func TestMissingDefaults(t *testing.T) {
	t.Parallel()
	store := datastoretest.New(t)
	p := defaults.NewProvider(defaults.FromStore(store), metadata.Optics{})
	ctx := context.Background()

	_, err := p.DefaultCamera(ctx)
	require.ErrorIs(t, err, defaults.ErrMissingDefault)
	_, err = p.DefaultObserver(ctx)
	require.ErrorIs(t, err, defaults.ErrMissingDefault)
	_, err = p.DefaultLocation(ctx)
	require.ErrorIs(t, err, defaults.ErrMissingDefault)
	_, err = p.DefaultROI(ctx)
	require.ErrorIs(t, err, defaults.ErrMissingDefault)
}

func TestDefaultsRoundTrip(t *testing.T) {
	t.Parallel()
	store := datastoretest.New(t)
	fx := datastoretest.Seed(t, store)
	p := defaults.NewProvider(defaults.FromStore(store), metadata.Optics{FocalLength: 14, FNumber: 2.8})
	ctx := context.Background()

	require.NoError(t, p.SetCamera(ctx, fx.Camera.Model))
	require.NoError(t, p.SetObserver(ctx, fx.Observer.FamilyName, fx.Observer.Surname))
	require.NoError(t, p.SetLocation(ctx, fx.Location.SiteName, fx.Location.Location))
	require.NoError(t, p.SetROI(ctx, fx.ROI.Rect()))

	cam, err := p.DefaultCamera(ctx)
	require.NoError(t, err)
	assert.Equal(t, fx.Camera.ID, cam.ID)

	loc, err := p.DefaultLocation(ctx)
	require.NoError(t, err)
	assert.Equal(t, fx.Location.ID, loc.ID)

	roi, err := p.DefaultROI(ctx)
	require.NoError(t, err)
	assert.Equal(t, fx.ROI.ID, roi.ID)

	all, err := p.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, "[8:16,8:24]", all[defaults.KeyROI])

	// a new observer version is picked up without touching the defaults
	changed := *fx.Observer
	changed.Affiliation = "Another Society"
	require.NoError(t, store.Observers.Save(ctx, &changed))
	obs, err := p.DefaultObserver(ctx)
	require.NoError(t, err)
	assert.Equal(t, changed.ID, obs.ID)
	assert.Equal(t, "Another Society", obs.Affiliation)
}

func TestSetRejectsUnknownRows(t *testing.T) {
	t.Parallel()
	store := datastoretest.New(t)
	p := defaults.NewProvider(defaults.FromStore(store), metadata.Optics{})
	ctx := context.Background()

	require.ErrorIs(t, p.SetCamera(ctx, "Nikon D810"), repository.ErrCameraNotFound)
	require.ErrorIs(t, p.SetObserver(ctx, "Nobody", ""), repository.ErrObserverNotFound)
	require.ErrorIs(t, p.SetLocation(ctx, "Nowhere", "x"), repository.ErrLocationNotFound)
	require.ErrorIs(t, p.SetROI(ctx, geometry.NewRect(0, 0, 2, 2)), repository.ErrROINotFound)
}

func TestDanglingDefaultIsMissing(t *testing.T) {
	t.Parallel()
	store := datastoretest.New(t)
	p := defaults.NewProvider(defaults.FromStore(store), metadata.Optics{})
	ctx := context.Background()

	cam := &entities.Camera{Model: "Gone", Extension: ".tif", HeaderType: entities.HeaderEXIF, BayerPattern: "RGGB"}
	require.NoError(t, store.Cameras.Save(ctx, cam))
	require.NoError(t, p.SetCamera(ctx, "Gone"))
	require.NoError(t, store.Cameras.DeleteByNaturalKey(ctx, "Gone"))

	_, err := p.DefaultCamera(ctx)
	require.ErrorIs(t, err, defaults.ErrMissingDefault)

	require.NoError(t, store.Configs.Set(ctx, defaults.Section, defaults.KeyROI, "not a rect"))
	_, err = p.DefaultROI(ctx)
	require.ErrorIs(t, err, defaults.ErrMissingDefault)
}

func TestOpticsFallback(t *testing.T) {
	t.Parallel()
	store := datastoretest.New(t)
	p := defaults.NewProvider(defaults.FromStore(store), metadata.Optics{FocalLength: 14, FNumber: 2.8})
	ctx := context.Background()

	optics, err := p.Optics(ctx)
	require.NoError(t, err)
	assert.Equal(t, metadata.Optics{FocalLength: 14, FNumber: 2.8}, optics)

	require.NoError(t, p.SetOptics(ctx, metadata.Optics{FocalLength: 24}))
	optics, err = p.Optics(ctx)
	require.NoError(t, err)
	assert.Equal(t, metadata.Optics{FocalLength: 24, FNumber: 2.8}, optics)

	require.NoError(t, store.Configs.Set(ctx, defaults.Section, defaults.KeyFNumber, "f/2"))
	_, err = p.Optics(ctx)
	require.Error(t, err)
}
