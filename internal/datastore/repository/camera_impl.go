package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/skyglow/skyglow-go/internal/datastore/entities"
	"github.com/skyglow/skyglow-go/internal/errors"
)

type cameraRepository struct {
	db *gorm.DB
}

// NewCameraRepository creates a new CameraRepository
func NewCameraRepository(db *gorm.DB) CameraRepository {
	return &cameraRepository{db: db}
}

func (r *cameraRepository) Save(ctx context.Context, camera *entities.Camera) error {
	if camera == nil || camera.Model == "" {
		return ErrInvalidInput
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing entities.Camera
		err := tx.Where("model = ?", camera.Model).First(&existing).Error
		switch {
		case err == nil:
			camera.ID = existing.ID
			camera.CreatedAt = existing.CreatedAt
			if err := tx.Save(camera).Error; err != nil {
				return dbError(err, "update_camera", "model", camera.Model)
			}
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			camera.ID = 0
			if err := tx.Create(camera).Error; err != nil {
				return dbError(err, "insert_camera", "model", camera.Model)
			}
			return nil
		default:
			return dbError(err, "find_camera", "model", camera.Model)
		}
	})
}

func (r *cameraRepository) LoadByNaturalKey(ctx context.Context, model string) (*entities.Camera, error) {
	var camera entities.Camera
	err := r.db.WithContext(ctx).Where("model = ?", model).First(&camera).Error
	if err != nil {
		return nil, notFound(err, ErrCameraNotFound, "load_camera", "model", model)
	}
	return &camera, nil
}

func (r *cameraRepository) LoadByID(ctx context.Context, id uint) (*entities.Camera, error) {
	var camera entities.Camera
	if err := r.db.WithContext(ctx).First(&camera, id).Error; err != nil {
		return nil, notFound(err, ErrCameraNotFound, "load_camera", "id", id)
	}
	return &camera, nil
}

func (r *cameraRepository) Lookup(ctx context.Context, model string) (uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&entities.Camera{}).
		Where("model = ?", model).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, dbError(err, "lookup_camera", "model", model)
	}
	if len(ids) == 0 {
		return 0, ErrCameraNotFound
	}
	return ids[0], nil
}

func (r *cameraRepository) DeleteByNaturalKey(ctx context.Context, model string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var camera entities.Camera
		if err := tx.Where("model = ?", model).First(&camera).Error; err != nil {
			return notFound(err, ErrCameraNotFound, "delete_camera", "model", model)
		}
		inUse, err := referenced(tx, "camera_id", camera.ID)
		if err != nil {
			return err
		}
		if inUse {
			return ErrInUse
		}
		if err := tx.Delete(&camera).Error; err != nil {
			return dbError(err, "delete_camera", "model", model)
		}
		return nil
	})
}

func (r *cameraRepository) UpdateBias(ctx context.Context, model string, bias int) error {
	if bias < 0 {
		return ErrInvalidInput
	}
	result := r.db.WithContext(ctx).Model(&entities.Camera{}).
		Where("model = ?", model).
		Update("bias", bias)
	if result.Error != nil {
		return dbError(result.Error, "update_bias", "model", model)
	}
	if result.RowsAffected == 0 {
		return ErrCameraNotFound
	}
	return nil
}

func (r *cameraRepository) List(ctx context.Context) ([]*entities.Camera, error) {
	var cameras []*entities.Camera
	if err := r.db.WithContext(ctx).Order("model ASC").Find(&cameras).Error; err != nil {
		return nil, dbError(err, "list_cameras")
	}
	return cameras, nil
}

// referenced reports whether any image points at id through column
func referenced(tx *gorm.DB, column string, id uint) (bool, error) {
	var count int64
	err := tx.Table(tableImages).Where(column+" = ?", id).Limit(1).Count(&count).Error
	if err != nil {
		return false, dbError(err, "count_references", "column", column)
	}
	return count > 0, nil
}
