package repository

import (
	"context"

	"github.com/skyglow/skyglow-go/internal/datastore/entities"
	"github.com/skyglow/skyglow-go/internal/daterange"
)

// ChannelLevels is the average of stored channel means over a set of frames
type ChannelLevels struct {
	R, G1, G2, B float64
	Frames       int64
}

// MeasurementRepository provides access to the sky_brightness table
type MeasurementRepository interface {
	// InsertBatch writes measurements in one transaction
	InsertBatch(ctx context.Context, measurements []*entities.SkyBrightness) error

	// LoadByImage returns ErrMeasurementNotFound if the image is unmeasured
	LoadByImage(ctx context.Context, imageID uint) (*entities.SkyBrightness, error)

	// Records returns the selected measurements joined with their context,
	// ordered by capture time.
	Records(ctx context.Context, observerID uint, sel daterange.Selector) ([]*MeasurementRecord, error)

	// Count returns the number of measurements sel picks
	Count(ctx context.Context, observerID uint, sel daterange.Selector) (int64, error)

	// CountUnpublished is Count with the Unpublished selector
	CountUnpublished(ctx context.Context, observerID uint) (int64, error)

	// UnpublishedPage returns up to limit unpublished records with
	// measurement id greater than afterID, ordered by measurement id.
	UnpublishedPage(ctx context.Context, observerID, afterID uint, limit int) ([]*MeasurementRecord, error)

	// MarkPublished flips published for ids in a single transaction
	MarkPublished(ctx context.Context, ids []uint) (int64, error)

	// DeleteBySelection removes measurements only; images stay registered
	// and become pending again.
	DeleteBySelection(ctx context.Context, observerID uint, sel daterange.Selector) (int64, error)

	// Levels averages the channel means of measured frames of the given
	// image types taken with camera
	Levels(ctx context.Context, cameraID uint, imageTypes ...string) (ChannelLevels, error)
}
