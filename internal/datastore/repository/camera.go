package repository

import (
	"context"

	"github.com/skyglow/skyglow-go/internal/datastore/entities"
)

// CameraRepository provides access to the cameras table
type CameraRepository interface {
	// Save inserts the camera or replaces the row with the same model.
	// camera.ID is set on return.
	Save(ctx context.Context, camera *entities.Camera) error

	// LoadByNaturalKey returns the camera with the given model.
	// Returns ErrCameraNotFound if absent.
	LoadByNaturalKey(ctx context.Context, model string) (*entities.Camera, error)

	// LoadByID returns ErrCameraNotFound if absent.
	LoadByID(ctx context.Context, id uint) (*entities.Camera, error)

	// Lookup returns the id of the camera with the given model.
	Lookup(ctx context.Context, model string) (uint, error)

	// DeleteByNaturalKey removes the camera. Returns ErrInUse while images
	// reference it.
	DeleteByNaturalKey(ctx context.Context, model string) error

	// UpdateBias stores a new pedestal level for model
	UpdateBias(ctx context.Context, model string, bias int) error

	// List returns all cameras ordered by model
	List(ctx context.Context) ([]*entities.Camera, error)
}
