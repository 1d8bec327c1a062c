package repository

import (
	"context"

	"github.com/skyglow/skyglow-go/internal/datastore/entities"
)

// LocationRepository provides access to the locations table
type LocationRepository interface {
	// Save upserts by (site_name, location). For randomized sites a
	// perturbed coordinate pair is derived when none exists or when the true
	// coordinates changed; otherwise the stored pair is kept.
	Save(ctx context.Context, location *entities.Location) error

	// LoadByNaturalKey returns ErrLocationNotFound if absent
	LoadByNaturalKey(ctx context.Context, siteName, location string) (*entities.Location, error)

	LoadByID(ctx context.Context, id uint) (*entities.Location, error)
	Lookup(ctx context.Context, siteName, location string) (uint, error)

	// DeleteByNaturalKey returns ErrInUse while images reference the site
	DeleteByNaturalKey(ctx context.Context, siteName, location string) error

	List(ctx context.Context) ([]*entities.Location, error)
}
