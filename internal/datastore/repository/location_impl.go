package repository

import (
	"context"
	"math"
	"math/rand/v2"

	"gorm.io/gorm"

	"github.com/skyglow/skyglow-go/internal/datastore/entities"
	"github.com/skyglow/skyglow-go/internal/errors"
)

const (
	// metresPerDegree is the flat-earth conversion used for perturbation
	metresPerDegree = 111000.0
	// maxPerturbation bounds the offset applied to each axis, in metres
	maxPerturbation = 1000.0
)

type locationRepository struct {
	db *gorm.DB
	// jitter returns a value in [0, 1)
	jitter func() float64
}

// NewLocationRepository creates a new LocationRepository
func NewLocationRepository(db *gorm.DB) LocationRepository {
	return &locationRepository{db: db, jitter: rand.Float64}
}

func (r *locationRepository) Save(ctx context.Context, location *entities.Location) error {
	if location == nil || location.SiteName == "" {
		return ErrInvalidInput
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing entities.Location
		err := tx.Where("site_name = ? AND location = ?", location.SiteName, location.Location).
			First(&existing).Error
		found := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return dbError(err, "find_location", "site_name", location.SiteName)
		}

		r.applyRandomization(location, &existing, found)

		if found {
			location.ID = existing.ID
			if err := tx.Save(location).Error; err != nil {
				return dbError(err, "update_location", "site_name", location.SiteName)
			}
			return nil
		}
		location.ID = 0
		if err := tx.Create(location).Error; err != nil {
			return dbError(err, "insert_location", "site_name", location.SiteName)
		}
		return nil
	})
}

// applyRandomization keeps a stored perturbation as long as the true
// coordinates are unchanged and derives a new one otherwise.
func (r *locationRepository) applyRandomization(location, existing *entities.Location, found bool) {
	if !location.Randomized {
		location.RandLongitude, location.RandLatitude = nil, nil
		return
	}

	if found && existing.RandLongitude != nil && existing.RandLatitude != nil &&
		existing.Longitude == location.Longitude && existing.Latitude == location.Latitude {
		location.RandLongitude = existing.RandLongitude
		location.RandLatitude = existing.RandLatitude
		return
	}

	lon := perturb(location.Longitude, r.jitter())
	lat := perturb(location.Latitude, r.jitter())
	location.RandLongitude = &lon
	location.RandLatitude = &lat
}

// perturb shifts deg by up to maxPerturbation metres; u in [0, 1) maps to
// [-max, +max). The result is truncated to four decimals.
func perturb(deg, u float64) float64 {
	offset := (2*u - 1) * maxPerturbation / metresPerDegree
	return math.Trunc((deg+offset)*1e4) / 1e4
}

func (r *locationRepository) LoadByNaturalKey(ctx context.Context, siteName, location string) (*entities.Location, error) {
	var loc entities.Location
	err := r.db.WithContext(ctx).
		Where("site_name = ? AND location = ?", siteName, location).
		First(&loc).Error
	if err != nil {
		return nil, notFound(err, ErrLocationNotFound, "load_location", "site_name", siteName)
	}
	return &loc, nil
}

func (r *locationRepository) LoadByID(ctx context.Context, id uint) (*entities.Location, error) {
	var loc entities.Location
	if err := r.db.WithContext(ctx).First(&loc, id).Error; err != nil {
		return nil, notFound(err, ErrLocationNotFound, "load_location", "id", id)
	}
	return &loc, nil
}

func (r *locationRepository) Lookup(ctx context.Context, siteName, location string) (uint, error) {
	loc, err := r.LoadByNaturalKey(ctx, siteName, location)
	if err != nil {
		return 0, err
	}
	return loc.ID, nil
}

func (r *locationRepository) DeleteByNaturalKey(ctx context.Context, siteName, location string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var loc entities.Location
		err := tx.Where("site_name = ? AND location = ?", siteName, location).First(&loc).Error
		if err != nil {
			return notFound(err, ErrLocationNotFound, "delete_location", "site_name", siteName)
		}
		inUse, err := referenced(tx, "location_id", loc.ID)
		if err != nil {
			return err
		}
		if inUse {
			return ErrInUse
		}
		if err := tx.Delete(&loc).Error; err != nil {
			return dbError(err, "delete_location", "site_name", siteName)
		}
		return nil
	})
}

func (r *locationRepository) List(ctx context.Context) ([]*entities.Location, error) {
	var locations []*entities.Location
	if err := r.db.WithContext(ctx).Order("site_name ASC, location ASC").Find(&locations).Error; err != nil {
		return nil, dbError(err, "list_locations")
	}
	return locations, nil
}
