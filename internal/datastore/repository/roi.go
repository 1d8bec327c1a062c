package repository

import (
	"context"

	"github.com/skyglow/skyglow-go/internal/datastore/entities"
	"github.com/skyglow/skyglow-go/internal/geometry"
)

// ROIRepository provides access to the rois table. Rectangles are
// normalized before every lookup.
type ROIRepository interface {
	// Save upserts by rectangle, refreshing display name and comment
	Save(ctx context.Context, roi *entities.ROI) error

	LoadByNaturalKey(ctx context.Context, rect geometry.Rect) (*entities.ROI, error)
	LoadByID(ctx context.Context, id uint) (*entities.ROI, error)
	Lookup(ctx context.Context, rect geometry.Rect) (uint, error)

	// DeleteByNaturalKey returns ErrInUse while measurements reference it
	DeleteByNaturalKey(ctx context.Context, rect geometry.Rect) error

	List(ctx context.Context) ([]*entities.ROI, error)
}
