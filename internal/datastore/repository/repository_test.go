package repository_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyglow/skyglow-go/internal/datastore/datastoretest"
	"github.com/skyglow/skyglow-go/internal/datastore/entities"
	"github.com/skyglow/skyglow-go/internal/datastore/repository"
	"github.com/skyglow/skyglow-go/internal/daterange"
	"github.com/skyglow/skyglow-go/internal/geometry"
)

func TestCameraUpsertByModel(t *testing.T) {
	t.Parallel()
	store := datastoretest.New(t)
	fx := datastoretest.Seed(t, store)
	ctx := context.Background()

	replacement := &entities.Camera{
		Model:        fx.Camera.Model,
		Bias:         1024,
		Extension:    ".cr2",
		HeaderType:   entities.HeaderEXIF,
		BayerPattern: "GRBG",
	}
	require.NoError(t, store.Cameras.Save(ctx, replacement))
	assert.Equal(t, fx.Camera.ID, replacement.ID)

	got, err := store.Cameras.LoadByNaturalKey(ctx, fx.Camera.Model)
	require.NoError(t, err)
	assert.Equal(t, 1024, got.Bias)
	assert.Equal(t, "GRBG", got.BayerPattern)

	id, err := store.Cameras.Lookup(ctx, fx.Camera.Model)
	require.NoError(t, err)
	assert.Equal(t, fx.Camera.ID, id)

	_, err = store.Cameras.Lookup(ctx, "Nikon D810")
	require.ErrorIs(t, err, repository.ErrCameraNotFound)

	cameras, err := store.Cameras.List(ctx)
	require.NoError(t, err)
	assert.Len(t, cameras, 1)
}

func TestCameraUpdateBiasAndDelete(t *testing.T) {
	t.Parallel()
	store := datastoretest.New(t)
	fx := datastoretest.Seed(t, store)
	ctx := context.Background()

	require.NoError(t, store.Cameras.UpdateBias(ctx, fx.Camera.Model, 512))
	got, err := store.Cameras.LoadByID(ctx, fx.Camera.ID)
	require.NoError(t, err)
	assert.Equal(t, 512, got.Bias)

	require.ErrorIs(t, store.Cameras.UpdateBias(ctx, "missing", 512), repository.ErrCameraNotFound)

	fx.AddImage(t, store, "IMG_0001.tif", 20240110, 220000)
	require.ErrorIs(t, store.Cameras.DeleteByNaturalKey(ctx, fx.Camera.Model), repository.ErrInUse)
}

func TestObserverVersioning(t *testing.T) {
	t.Parallel()
	store := datastoretest.New(t)
	ctx := context.Background()

	first := &entities.Observer{FamilyName: "Smith", Surname: "Ann", Affiliation: "Club A"}
	require.NoError(t, store.Observers.Save(ctx, first))
	firstID := first.ID

	// unchanged save is a no-op
	again := &entities.Observer{FamilyName: "Smith", Surname: "Ann", Affiliation: "Club A"}
	require.NoError(t, store.Observers.Save(ctx, again))
	assert.Equal(t, firstID, again.ID)

	second := &entities.Observer{FamilyName: "Smith", Surname: "Ann", Affiliation: "Club B"}
	require.NoError(t, store.Observers.Save(ctx, second))
	assert.NotEqual(t, firstID, second.ID)

	current, err := store.Observers.Current(ctx, "Smith", "Ann")
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)
	assert.Equal(t, "Club B", current.Affiliation)
	assert.Equal(t, entities.ValidCurrent, current.ValidState)

	versions, err := store.Observers.Versions(ctx, "Smith", "Ann")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, firstID, versions[0].ID)
	assert.Equal(t, entities.ValidExpired, versions[0].ValidState)
	require.NotNil(t, versions[0].ValidUntil)
	assert.False(t, versions[0].ValidUntil.After(versions[1].ValidSince))

	expired, err := store.Observers.LoadByID(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, "Club A", expired.Affiliation)
}

func TestObserverPurgeSkipsReferencedVersions(t *testing.T) {
	t.Parallel()
	store := datastoretest.New(t)
	fx := datastoretest.Seed(t, store)
	ctx := context.Background()

	img := fx.AddImage(t, store, "IMG_0001.tif", 20240110, 220000)
	fx.AddMeasurement(t, store, img, 100)

	changed := *fx.Observer
	changed.Affiliation = "New Club"
	require.NoError(t, store.Observers.Save(ctx, &changed))

	purged, err := store.Observers.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, purged, "expired version is still referenced")

	_, err = store.Images.DeleteBySelection(ctx, fx.Observer.ID, daterange.SelectAll())
	require.NoError(t, err)

	purged, err = store.Observers.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	versions, err := store.Observers.Versions(ctx, fx.Observer.FamilyName, fx.Observer.Surname)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "New Club", versions[0].Affiliation)
}

func TestObserverDeleteByNaturalKey(t *testing.T) {
	t.Parallel()
	store := datastoretest.New(t)
	fx := datastoretest.Seed(t, store)
	ctx := context.Background()

	fx.AddImage(t, store, "IMG_0001.tif", 20240110, 220000)
	require.ErrorIs(t, store.Observers.DeleteByNaturalKey(ctx, "Doe", "Jane"), repository.ErrInUse)
	require.ErrorIs(t, store.Observers.DeleteByNaturalKey(ctx, "Nobody", ""), repository.ErrObserverNotFound)

	other := &entities.Observer{FamilyName: "Roe", Surname: "Rick"}
	require.NoError(t, store.Observers.Save(ctx, other))
	require.NoError(t, store.Observers.DeleteByNaturalKey(ctx, "Roe", "Rick"))
	_, err := store.Observers.Lookup(ctx, "Roe", "Rick")
	require.ErrorIs(t, err, repository.ErrObserverNotFound)
}

func assertPerturbed(t *testing.T, truth, got float64) {
	t.Helper()
	assert.LessOrEqual(t, math.Abs(got-truth), 1000.0/111000.0+1e-4)
	assert.InDelta(t, got, math.Trunc(got*1e4)/1e4, 1e-12, "four decimals")
}

func TestLocationRandomization(t *testing.T) {
	t.Parallel()
	store := datastoretest.New(t)
	ctx := context.Background()

	loc := &entities.Location{SiteName: "Farm", Location: "Field", Longitude: 10.5, Latitude: 45.25, Randomized: true}
	require.NoError(t, store.Locations.Save(ctx, loc))
	require.NotNil(t, loc.RandLongitude)
	require.NotNil(t, loc.RandLatitude)
	assertPerturbed(t, 10.5, *loc.RandLongitude)
	assertPerturbed(t, 45.25, *loc.RandLatitude)
	firstLon, firstLat := *loc.RandLongitude, *loc.RandLatitude

	// same true coordinates keep the stored perturbation
	resave := &entities.Location{SiteName: "Farm", Location: "Field", Longitude: 10.5, Latitude: 45.25, Randomized: true, UTCOffset: 2}
	require.NoError(t, store.Locations.Save(ctx, resave))
	assert.Equal(t, loc.ID, resave.ID)
	assert.InDelta(t, firstLon, *resave.RandLongitude, 0)
	assert.InDelta(t, firstLat, *resave.RandLatitude, 0)

	// moved site gets a pair around the new coordinates
	moved := &entities.Location{SiteName: "Farm", Location: "Field", Longitude: 11.0, Latitude: 46.0, Randomized: true}
	require.NoError(t, store.Locations.Save(ctx, moved))
	assertPerturbed(t, 11.0, *moved.RandLongitude)
	assertPerturbed(t, 46.0, *moved.RandLatitude)

	stored, err := store.Locations.LoadByNaturalKey(ctx, "Farm", "Field")
	require.NoError(t, err)
	lon, lat := stored.PublicCoordinates()
	assert.InDelta(t, *moved.RandLongitude, lon, 0)
	assert.InDelta(t, *moved.RandLatitude, lat, 0)

	// clearing the flag drops the pair
	plain := &entities.Location{SiteName: "Farm", Location: "Field", Longitude: 11.0, Latitude: 46.0}
	require.NoError(t, store.Locations.Save(ctx, plain))
	stored, err = store.Locations.LoadByID(ctx, loc.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.RandLongitude)
	lon, lat = stored.PublicCoordinates()
	assert.InDelta(t, 11.0, lon, 0)
	assert.InDelta(t, 46.0, lat, 0)
}

func TestROIUpsertNormalizes(t *testing.T) {
	t.Parallel()
	store := datastoretest.New(t)
	ctx := context.Background()

	roi := &entities.ROI{Comment: "first"}
	roi.SetRect(geometry.NewRect(40, 30, 10, 20))
	require.NoError(t, store.ROIs.Save(ctx, roi))
	assert.Equal(t, "[20:30,10:40]", roi.DisplayName)

	again := &entities.ROI{X1: 10, Y1: 20, X2: 40, Y2: 30, Comment: "second"}
	require.NoError(t, store.ROIs.Save(ctx, again))
	assert.Equal(t, roi.ID, again.ID)

	got, err := store.ROIs.LoadByNaturalKey(ctx, geometry.NewRect(10, 30, 40, 20))
	require.NoError(t, err)
	assert.Equal(t, "second", got.Comment)

	empty := &entities.ROI{X1: 5, Y1: 5, X2: 5, Y2: 9}
	require.ErrorIs(t, store.ROIs.Save(ctx, empty), geometry.ErrEmptyRect)

	require.NoError(t, store.ROIs.DeleteByNaturalKey(ctx, geometry.NewRect(10, 20, 40, 30)))
	_, err = store.ROIs.Lookup(ctx, geometry.NewRect(10, 20, 40, 30))
	require.ErrorIs(t, err, repository.ErrROINotFound)
}

func TestConfigStore(t *testing.T) {
	t.Parallel()
	store := datastoretest.New(t)
	ctx := context.Background()

	_, err := store.Configs.Get(ctx, "defaults", "camera")
	require.ErrorIs(t, err, repository.ErrConfigNotFound)

	require.NoError(t, store.Configs.Set(ctx, "defaults", "camera", "1"))
	require.NoError(t, store.Configs.Set(ctx, "defaults", "camera", "2"))
	require.NoError(t, store.Configs.Set(ctx, "defaults", "roi", "3"))
	require.NoError(t, store.Configs.Set(ctx, "publish", "page_size", "100"))

	v, err := store.Configs.Get(ctx, "defaults", "camera")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	all, err := store.Configs.List(ctx, "defaults")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"camera": "2", "roi": "3"}, all)

	require.NoError(t, store.Configs.Delete(ctx, "defaults", "roi"))
	require.ErrorIs(t, store.Configs.Delete(ctx, "defaults", "roi"), repository.ErrConfigNotFound)
	require.ErrorIs(t, store.Configs.Set(ctx, "", "x", "y"), repository.ErrInvalidInput)
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()
	store := datastoretest.New(t)
	datastoretest.Seed(t, store)

	dup := &entities.Camera{Model: "Canon EOS 6D", Extension: ".tif", HeaderType: "EXIF", BayerPattern: "RGGB"}
	err := store.DB().Create(dup).Error
	require.Error(t, err)
	assert.True(t, repository.IsUniqueViolation(err))

	assert.False(t, repository.IsUniqueViolation(nil))
	assert.False(t, repository.IsUniqueViolation(context.Canceled))
}

func TestObserverVersionTimesAreStrictlyIncreasing(t *testing.T) {
	t.Parallel()
	store := datastoretest.New(t)
	ctx := context.Background()

	for i, aff := range []string{"A", "B", "C"} {
		o := &entities.Observer{FamilyName: "Fast", Surname: "Saver", Affiliation: aff}
		require.NoError(t, store.Observers.Save(ctx, o), "save %d", i)
	}
	versions, err := store.Observers.Versions(ctx, "Fast", "Saver")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	for i := 1; i < len(versions); i++ {
		assert.True(t, versions[i].ValidSince.After(versions[i-1].ValidSince))
		assert.Equal(t, time.Duration(0), versions[i].ValidSince.Sub(versions[i].ValidSince.Truncate(time.Millisecond)))
	}
}
