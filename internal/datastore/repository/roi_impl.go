package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/skyglow/skyglow-go/internal/datastore/entities"
	"github.com/skyglow/skyglow-go/internal/errors"
	"github.com/skyglow/skyglow-go/internal/geometry"
)

type roiRepository struct {
	db *gorm.DB
}

// NewROIRepository creates a new ROIRepository
func NewROIRepository(db *gorm.DB) ROIRepository {
	return &roiRepository{db: db}
}

func rectWhere(db *gorm.DB, rect geometry.Rect) *gorm.DB {
	n := rect.Normalize()
	return db.Where("x1 = ? AND y1 = ? AND x2 = ? AND y2 = ?", n.X1, n.Y1, n.X2, n.Y2)
}

func (r *roiRepository) Save(ctx context.Context, roi *entities.ROI) error {
	if roi == nil {
		return ErrInvalidInput
	}
	rect := roi.Rect().Normalize()
	if rect.Empty() {
		return errors.New(geometry.ErrEmptyRect).
			Component("datastore").
			Category(errors.CategoryValidation).
			Context("rect", rect.String()).
			Build()
	}
	roi.SetRect(rect)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing entities.ROI
		err := rectWhere(tx, rect).First(&existing).Error
		switch {
		case err == nil:
			roi.ID = existing.ID
			if err := tx.Save(roi).Error; err != nil {
				return dbError(err, "update_roi", "rect", roi.DisplayName)
			}
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			roi.ID = 0
			if err := tx.Create(roi).Error; err != nil {
				return dbError(err, "insert_roi", "rect", roi.DisplayName)
			}
			return nil
		default:
			return dbError(err, "find_roi", "rect", roi.DisplayName)
		}
	})
}

func (r *roiRepository) LoadByNaturalKey(ctx context.Context, rect geometry.Rect) (*entities.ROI, error) {
	var roi entities.ROI
	if err := rectWhere(r.db.WithContext(ctx), rect).First(&roi).Error; err != nil {
		return nil, notFound(err, ErrROINotFound, "load_roi", "rect", rect.Normalize().String())
	}
	return &roi, nil
}

func (r *roiRepository) LoadByID(ctx context.Context, id uint) (*entities.ROI, error) {
	var roi entities.ROI
	if err := r.db.WithContext(ctx).First(&roi, id).Error; err != nil {
		return nil, notFound(err, ErrROINotFound, "load_roi", "id", id)
	}
	return &roi, nil
}

func (r *roiRepository) Lookup(ctx context.Context, rect geometry.Rect) (uint, error) {
	roi, err := r.LoadByNaturalKey(ctx, rect)
	if err != nil {
		return 0, err
	}
	return roi.ID, nil
}

func (r *roiRepository) DeleteByNaturalKey(ctx context.Context, rect geometry.Rect) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var roi entities.ROI
		if err := rectWhere(tx, rect).First(&roi).Error; err != nil {
			return notFound(err, ErrROINotFound, "delete_roi", "rect", rect.Normalize().String())
		}
		var refs int64
		if err := tx.Table(tableSkyBrightness).Where("roi_id = ?", roi.ID).Count(&refs).Error; err != nil {
			return dbError(err, "count_roi_references")
		}
		if refs > 0 {
			return ErrInUse
		}
		if err := tx.Delete(&roi).Error; err != nil {
			return dbError(err, "delete_roi", "rect", roi.DisplayName)
		}
		return nil
	})
}

func (r *roiRepository) List(ctx context.Context) ([]*entities.ROI, error) {
	var rois []*entities.ROI
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rois).Error; err != nil {
		return nil, dbError(err, "list_rois")
	}
	return rois, nil
}
