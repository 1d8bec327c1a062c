package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skyglow/skyglow-go/internal/datastore/entities"
)

type configRepository struct {
	db *gorm.DB
}

// NewConfigRepository creates a new ConfigRepository
func NewConfigRepository(db *gorm.DB) ConfigRepository {
	return &configRepository{db: db}
}

func (r *configRepository) Get(ctx context.Context, section, property string) (string, error) {
	var cfg entities.Config
	err := r.db.WithContext(ctx).
		Where("section = ? AND property = ?", section, property).
		First(&cfg).Error
	if err != nil {
		return "", notFound(err, ErrConfigNotFound, "get_config", "section", section, "property", property)
	}
	return cfg.Value, nil
}

func (r *configRepository) Set(ctx context.Context, section, property, value string) error {
	if section == "" || property == "" {
		return ErrInvalidInput
	}
	cfg := entities.Config{Section: section, Property: property, Value: value}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "section"}, {Name: "property"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&cfg).Error
	if err != nil {
		return dbError(err, "set_config", "section", section, "property", property)
	}
	return nil
}

func (r *configRepository) Delete(ctx context.Context, section, property string) error {
	result := r.db.WithContext(ctx).
		Where("section = ? AND property = ?", section, property).
		Delete(&entities.Config{})
	if result.Error != nil {
		return dbError(result.Error, "delete_config", "section", section, "property", property)
	}
	if result.RowsAffected == 0 {
		return ErrConfigNotFound
	}
	return nil
}

func (r *configRepository) List(ctx context.Context, section string) (map[string]string, error) {
	var rows []entities.Config
	if err := r.db.WithContext(ctx).Where("section = ?", section).Find(&rows).Error; err != nil {
		return nil, dbError(err, "list_config", "section", section)
	}
	out := make(map[string]string, len(rows))
	for i := range rows {
		out[rows[i].Property] = rows[i].Value
	}
	return out, nil
}
