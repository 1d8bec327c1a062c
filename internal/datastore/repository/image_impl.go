package repository

import (
	"context"
	"slices"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skyglow/skyglow-go/internal/datastore/entities"
	"github.com/skyglow/skyglow-go/internal/daterange"
	"github.com/skyglow/skyglow-go/internal/errors"
)

type imageRepository struct {
	db *gorm.DB
}

// NewImageRepository creates a new ImageRepository
func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

func (r *imageRepository) KnownNames(ctx context.Context, directory string) (map[string]struct{}, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&entities.Image{}).
		Where("directory = ?", directory).
		Pluck("name", &names).Error
	if err != nil {
		return nil, dbError(err, "known_names", "directory", directory)
	}
	known := make(map[string]struct{}, len(names))
	for _, n := range names {
		known[n] = struct{}{}
	}
	return known, nil
}

func (r *imageRepository) Exists(ctx context.Context, name, directory string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Image{}).
		Where("name = ? AND directory = ?", name, directory).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, dbError(err, "image_exists", "name", name)
	}
	return count > 0, nil
}

func (r *imageRepository) LoadByHash(ctx context.Context, hash []byte) (*entities.Image, error) {
	var img entities.Image
	if err := r.db.WithContext(ctx).Where("hash = ?", hash).First(&img).Error; err != nil {
		return nil, notFound(err, ErrImageNotFound, "load_image_by_hash")
	}
	return &img, nil
}

func (r *imageRepository) LoadByID(ctx context.Context, id uint) (*entities.Image, error) {
	var img entities.Image
	err := r.db.WithContext(ctx).
		Preload("Camera").
		Preload("Observer").
		Preload("Location").
		First(&img, id).Error
	if err != nil {
		return nil, notFound(err, ErrImageNotFound, "load_image", "id", id)
	}
	return &img, nil
}

func (r *imageRepository) InsertBatch(ctx context.Context, images []*entities.Image) ([]InsertResult, error) {
	if len(images) == 0 {
		return nil, nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).CreateInBatches(images, len(images)).Error
	})
	if err == nil {
		results := make([]InsertResult, len(images))
		for i, img := range images {
			results[i] = InsertResult{Image: img, Outcome: Inserted}
		}
		return results, nil
	}
	if !IsUniqueViolation(err) {
		return nil, dbError(err, "insert_images", "batch_size", len(images))
	}

	// A hash in the batch is already stored, or repeats within the batch.
	results := make([]InsertResult, 0, len(images))
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		results = results[:0]
		for _, img := range images {
			img.ID = 0
			res, err := insertOrResolve(tx, img)
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// insertOrResolve inserts img unless its hash is already stored, in which
// case the conflict is resolved against the stored row.
func insertOrResolve(tx *gorm.DB, img *entities.Image) (InsertResult, error) {
	var existing entities.Image
	err := tx.Where("hash = ?", img.Hash).First(&existing).Error
	if err == nil {
		return resolveConflict(tx, img, &existing)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return InsertResult{}, dbError(err, "find_image_by_hash", "name", img.Name)
	}

	if err := tx.Omit(clause.Associations).Create(img).Error; err != nil {
		if !IsUniqueViolation(err) {
			return InsertResult{}, dbError(err, "insert_image", "name", img.Name)
		}
		// Lost a race with another writer; resolve against its row.
		if findErr := tx.Where("hash = ?", img.Hash).First(&existing).Error; findErr != nil {
			return InsertResult{}, dbError(err, "insert_image", "name", img.Name)
		}
		img.ID = 0
		return resolveConflict(tx, img, &existing)
	}
	return InsertResult{Image: img, Outcome: Inserted}, nil
}

func resolveConflict(tx *gorm.DB, img, existing *entities.Image) (InsertResult, error) {
	res := InsertResult{Image: img, Existing: existing}
	switch {
	case existing.Name != img.Name:
		res.Outcome = Discarded
	case existing.Directory == img.Directory:
		res.Outcome = AlreadyRegistered
	default:
		err := tx.Model(&entities.Image{}).
			Where("id = ?", existing.ID).
			Update("directory", img.Directory).Error
		if err != nil {
			return InsertResult{}, dbError(err, "fix_image_directory", "id", existing.ID)
		}
		res.Outcome = DirectoryFixed
	}
	return res, nil
}

// pendingQuery selects unflagged images without a measurement
func pendingQuery(db *gorm.DB) *gorm.DB {
	return db.Model(&entities.Image{}).
		Joins("LEFT JOIN " + tableSkyBrightness + " ON " + tableSkyBrightness + ".image_id = " + tableImages + ".id").
		Where(tableSkyBrightness+".id IS NULL AND "+tableImages+".flagged = ?", false)
}

func (r *imageRepository) Pending(ctx context.Context, afterID uint, limit int) ([]*entities.Image, error) {
	var images []*entities.Image
	err := pendingQuery(r.db.WithContext(ctx)).
		Select(tableImages+".*").
		Where(tableImages+".id > ?", afterID).
		Preload("Camera").
		Order(tableImages + ".id ASC").
		Limit(limit).
		Find(&images).Error
	if err != nil {
		return nil, dbError(err, "pending_images", "after_id", afterID)
	}
	return images, nil
}

func (r *imageRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	if err := pendingQuery(r.db.WithContext(ctx)).Count(&count).Error; err != nil {
		return 0, dbError(err, "count_pending")
	}
	return count, nil
}

func (r *imageRepository) Flag(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&entities.Image{}).
		Where("id = ?", id).
		Update("flagged", true)
	if result.Error != nil {
		return dbError(result.Error, "flag_image", "id", id)
	}
	if result.RowsAffected == 0 {
		// MySQL reports zero for rows already flagged
		if _, err := r.exists(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *imageRepository) Counts(ctx context.Context) (ImageCounts, error) {
	var c ImageCounts
	db := r.db.WithContext(ctx)
	if err := db.Model(&entities.Image{}).Count(&c.Total).Error; err != nil {
		return c, dbError(err, "count_images")
	}
	if err := db.Model(&entities.Image{}).Where("flagged = ?", true).Count(&c.Flagged).Error; err != nil {
		return c, dbError(err, "count_flagged")
	}
	if err := db.Model(&entities.Image{}).Where("astro_night = ?", false).Count(&c.Twilight).Error; err != nil {
		return c, dbError(err, "count_twilight")
	}
	pending, err := r.CountPending(ctx)
	if err != nil {
		return c, err
	}
	c.Pending = pending
	return c, nil
}

func (r *imageRepository) DeleteBySelection(ctx context.Context, observerID uint, sel daterange.Selector) (int64, error) {
	if err := sel.Validate(); err != nil {
		return 0, err
	}

	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// MySQL cannot delete from a table it selects from in a subquery,
		// so the ids are resolved first.
		var ids []uint
		err := tx.Model(&entities.Image{}).
			Scopes(Selection(tx, observerID, sel)).
			Pluck(tableImages+".id", &ids).Error
		if err != nil {
			return dbError(err, "select_images", "selector", sel.String())
		}

		for chunk := range slices.Chunk(ids, batchChunk) {
			if err := tx.Where("image_id IN ?", chunk).Delete(&entities.SkyBrightness{}).Error; err != nil {
				return dbError(err, "delete_measurements", "selector", sel.String())
			}
			result := tx.Where("id IN ?", chunk).Delete(&entities.Image{})
			if result.Error != nil {
				return dbError(result.Error, "delete_images", "selector", sel.String())
			}
			deleted += result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (r *imageRepository) exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.Image{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, dbError(err, "image_exists", "id", id)
	}
	if count == 0 {
		return false, ErrImageNotFound
	}
	return true, nil
}
