// Package datastoretest provides in-memory stores and seed data for tests.
package datastoretest

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"unicode"

	"github.com/stretchr/testify/require"

	"github.com/skyglow/skyglow-go/internal/datastore"
	"github.com/skyglow/skyglow-go/internal/datastore/entities"
	"github.com/skyglow/skyglow-go/internal/daterange"
	"github.com/skyglow/skyglow-go/internal/geometry"
)

var seq atomic.Uint64

// New returns an initialized store backed by a private in-memory SQLite
// database that is closed when the test ends.
func New(t testing.TB) *datastore.Store {
	t.Helper()

	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, t.Name())
	path := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	mgr, err := datastore.NewSQLiteManager(path, nil, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	require.NoError(t, mgr.Initialize())

	return datastore.NewStore(mgr)
}

// Fixture holds one saved row of each reference entity
type Fixture struct {
	Camera   *entities.Camera
	Observer *entities.Observer
	Location *entities.Location
	ROI      *entities.ROI
}

// Seed saves a camera, observer, location and ROI
func Seed(t testing.TB, store *datastore.Store) Fixture {
	t.Helper()
	ctx := context.Background()

	fx := Fixture{
		Camera: &entities.Camera{
			Model:        "Canon EOS 6D",
			Bias:         2048,
			Extension:    ".tif",
			HeaderType:   entities.HeaderEXIF,
			BayerPattern: "RGGB",
			Width:        64,
			Length:       48,
			PixelSize:    6.54,
		},
		Observer: &entities.Observer{
			FamilyName:  "Doe",
			Surname:     "Jane",
			Affiliation: "Dark Sky Society",
			Acronym:     "DSS",
		},
		Location: &entities.Location{
			SiteName:  "Observatory",
			Location:  "Hilltop",
			Longitude: -3.7038,
			Latitude:  40.4168,
			UTCOffset: 1,
		},
		ROI: &entities.ROI{Comment: "centre"},
	}
	fx.ROI.SetRect(geometry.NewRect(8, 8, 24, 16))

	require.NoError(t, store.Cameras.Save(ctx, fx.Camera))
	require.NoError(t, store.Observers.Save(ctx, fx.Observer))
	require.NoError(t, store.Locations.Save(ctx, fx.Location))
	require.NoError(t, store.ROIs.Save(ctx, fx.ROI))
	return fx
}

// Image builds an unsaved LIGHT image referencing fx. The hash is derived
// from name and directory so distinct paths never collide.
func (fx Fixture) Image(name, directory string, dateID, timeID int) *entities.Image {
	sum := sha256.Sum256([]byte(directory + "/" + name))
	iso := 1600
	return &entities.Image{
		Name:         name,
		Directory:    directory,
		Hash:         sum[:],
		ISO:          &iso,
		ExposureTime: 30,
		FocalLength:  24,
		FNumber:      2.8,
		ImageType:    "LIGHT",
		DateID:       dateID,
		TimeID:       timeID,
		NightID:      daterange.NightID(dateID, timeID),
		CameraID:     fx.Camera.ID,
		ObserverID:   fx.Observer.ID,
		LocationID:   fx.Location.ID,
	}
}

// AddImage saves a new image and returns it
func (fx Fixture) AddImage(t testing.TB, store *datastore.Store, name string, dateID, timeID int) *entities.Image {
	t.Helper()
	img := fx.Image(name, "/data/"+fmt.Sprint(dateID), dateID, timeID)
	res, err := store.Images.InsertBatch(context.Background(), []*entities.Image{img})
	require.NoError(t, err)
	require.Len(t, res, 1)
	return img
}

// AddMeasurement saves a measurement for img whose channel means are base,
// base+1, base+2, base+3 and whose variances are 4, 9, 16, 25.
func (fx Fixture) AddMeasurement(t testing.TB, store *datastore.Store, img *entities.Image, base float64) *entities.SkyBrightness {
	t.Helper()
	m := &entities.SkyBrightness{
		ImageID:      img.ID,
		ROIID:        fx.ROI.ID,
		AverSignalR:  base,
		VariSignalR:  4,
		AverSignalG1: base + 1,
		VariSignalG1: 9,
		AverSignalG2: base + 2,
		VariSignalG2: 16,
		AverSignalB:  base + 3,
		VariSignalB:  25,
	}
	require.NoError(t, store.Measurements.InsertBatch(context.Background(), []*entities.SkyBrightness{m}))
	return m
}
