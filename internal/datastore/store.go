package datastore

import (
	"github.com/skyglow/skyglow-go/internal/datastore/repository"
)

// Store bundles the repositories over one database
type Store struct {
	Manager

	Cameras      repository.CameraRepository
	Observers    repository.ObserverRepository
	Locations    repository.LocationRepository
	ROIs         repository.ROIRepository
	Images       repository.ImageRepository
	Measurements repository.MeasurementRepository
	Configs      repository.ConfigRepository
}

// NewStore builds the repositories on mgr's connection
func NewStore(mgr Manager) *Store {
	db := mgr.DB()
	return &Store{
		Manager:      mgr,
		Cameras:      repository.NewCameraRepository(db),
		Observers:    repository.NewObserverRepository(db),
		Locations:    repository.NewLocationRepository(db),
		ROIs:         repository.NewROIRepository(db),
		Images:       repository.NewImageRepository(db),
		Measurements: repository.NewMeasurementRepository(db),
		Configs:      repository.NewConfigRepository(db),
	}
}
