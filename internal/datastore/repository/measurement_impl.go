package repository

import (
	"context"
	"slices"

	"gorm.io/gorm"

	"github.com/skyglow/skyglow-go/internal/datastore/entities"
	"github.com/skyglow/skyglow-go/internal/daterange"
)

type measurementRepository struct {
	db *gorm.DB
}

// NewMeasurementRepository creates a new MeasurementRepository
func NewMeasurementRepository(db *gorm.DB) MeasurementRepository {
	return &measurementRepository{db: db}
}

func (r *measurementRepository) InsertBatch(ctx context.Context, measurements []*entities.SkyBrightness) error {
	if len(measurements) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit("Image", "ROI").CreateInBatches(measurements, len(measurements)).Error
	})
	if err != nil {
		return dbError(err, "insert_measurements", "batch_size", len(measurements))
	}
	return nil
}

func (r *measurementRepository) LoadByImage(ctx context.Context, imageID uint) (*entities.SkyBrightness, error) {
	var m entities.SkyBrightness
	if err := r.db.WithContext(ctx).Where("image_id = ?", imageID).First(&m).Error; err != nil {
		return nil, notFound(err, ErrMeasurementNotFound, "load_measurement", "image_id", imageID)
	}
	return &m, nil
}

// joined is the measurement-to-context join shared by record queries
func joined(db *gorm.DB) *gorm.DB {
	return db.Table(tableSkyBrightness).
		Joins("JOIN " + tableImages + " ON " + tableImages + ".id = " + tableSkyBrightness + ".image_id")
}

func withContextTables(db *gorm.DB) *gorm.DB {
	return db.
		Joins("JOIN " + tableCameras + " ON " + tableCameras + ".id = " + tableImages + ".camera_id").
		Joins("JOIN " + tableObservers + " ON " + tableObservers + ".id = " + tableImages + ".observer_id").
		Joins("JOIN " + tableLocations + " ON " + tableLocations + ".id = " + tableImages + ".location_id").
		Joins("JOIN " + tableROIs + " ON " + tableROIs + ".id = " + tableSkyBrightness + ".roi_id")
}

func (r *measurementRepository) Records(ctx context.Context, observerID uint, sel daterange.Selector) ([]*MeasurementRecord, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	db := r.db.WithContext(ctx)
	var records []*MeasurementRecord
	err := withContextTables(joined(db)).
		Select(recordColumns).
		Scopes(Selection(db, observerID, sel)).
		Order(tableImages + ".date_id ASC, " + tableImages + ".time_id ASC, " + tableSkyBrightness + ".id ASC").
		Scan(&records).Error
	if err != nil {
		return nil, dbError(err, "select_records", "selector", sel.String())
	}
	return records, nil
}

func (r *measurementRepository) Count(ctx context.Context, observerID uint, sel daterange.Selector) (int64, error) {
	if err := sel.Validate(); err != nil {
		return 0, err
	}
	db := r.db.WithContext(ctx)
	var count int64
	err := joined(db).
		Scopes(Selection(db, observerID, sel)).
		Count(&count).Error
	if err != nil {
		return 0, dbError(err, "count_measurements", "selector", sel.String())
	}
	return count, nil
}

func (r *measurementRepository) CountUnpublished(ctx context.Context, observerID uint) (int64, error) {
	return r.Count(ctx, observerID, daterange.SelectUnpublished())
}

func (r *measurementRepository) UnpublishedPage(ctx context.Context, observerID, afterID uint, limit int) ([]*MeasurementRecord, error) {
	if limit <= 0 {
		return nil, ErrInvalidInput
	}
	db := r.db.WithContext(ctx)
	var records []*MeasurementRecord
	err := withContextTables(joined(db)).
		Select(recordColumns).
		Scopes(Selection(db, observerID, daterange.SelectUnpublished())).
		Where(tableSkyBrightness+".id > ?", afterID).
		Order(tableSkyBrightness + ".id ASC").
		Limit(limit).
		Scan(&records).Error
	if err != nil {
		return nil, dbError(err, "select_unpublished_page", "after_id", afterID)
	}
	return records, nil
}

func (r *measurementRepository) MarkPublished(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var updated int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for chunk := range slices.Chunk(ids, batchChunk) {
			result := tx.Model(&entities.SkyBrightness{}).
				Where("id IN ?", chunk).
				Update("published", true)
			if result.Error != nil {
				return result.Error
			}
			updated += result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, dbError(err, "mark_published", "count", len(ids))
	}
	return updated, nil
}

func (r *measurementRepository) DeleteBySelection(ctx context.Context, observerID uint, sel daterange.Selector) (int64, error) {
	if err := sel.Validate(); err != nil {
		return 0, err
	}
	db := r.db.WithContext(ctx)
	selected := db.Session(&gorm.Session{NewDB: true}).
		Table(tableImages).
		Select(tableImages + ".id").
		Scopes(Selection(db, observerID, sel))

	result := db.Where("image_id IN (?)", selected).Delete(&entities.SkyBrightness{})
	if result.Error != nil {
		return 0, dbError(result.Error, "delete_measurements", "selector", sel.String())
	}
	return result.RowsAffected, nil
}

func (r *measurementRepository) Levels(ctx context.Context, cameraID uint, imageTypes ...string) (ChannelLevels, error) {
	var levels ChannelLevels
	q := joined(r.db.WithContext(ctx)).
		Select(`COUNT(*) AS frames,
			AVG(` + tableSkyBrightness + `.aver_signal_r) AS r,
			AVG(` + tableSkyBrightness + `.aver_signal_g1) AS g1,
			AVG(` + tableSkyBrightness + `.aver_signal_g2) AS g2,
			AVG(` + tableSkyBrightness + `.aver_signal_b) AS b`).
		Where(tableImages+".camera_id = ?", cameraID)
	if len(imageTypes) > 0 {
		q = q.Where(tableImages+".imagetype IN ?", imageTypes)
	}

	var row struct {
		Frames int64    `gorm:"column:frames"`
		R      *float64 `gorm:"column:r"`
		G1     *float64 `gorm:"column:g1"`
		G2     *float64 `gorm:"column:g2"`
		B      *float64 `gorm:"column:b"`
	}
	if err := q.Scan(&row).Error; err != nil {
		return levels, dbError(err, "channel_levels", "camera_id", cameraID)
	}
	levels.Frames = row.Frames
	if row.Frames == 0 {
		return levels, nil
	}
	levels.R, levels.G1, levels.G2, levels.B = deref(row.R), deref(row.G1), deref(row.G2), deref(row.B)
	return levels, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
