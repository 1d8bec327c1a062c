package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skyglow/skyglow-go/internal/datastore/entities"
	"github.com/skyglow/skyglow-go/internal/errors"
)

// versionPrecision matches the millisecond DATETIME precision GORM uses on MySQL
const versionPrecision = time.Millisecond

type observerRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewObserverRepository creates a new ObserverRepository
func NewObserverRepository(db *gorm.DB) ObserverRepository {
	return &observerRepository{db: db, now: time.Now}
}

func (r *observerRepository) Save(ctx context.Context, observer *entities.Observer) error {
	if observer == nil || observer.FamilyName == "" {
		return ErrInvalidInput
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current entities.Observer
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("family_name = ? AND surname = ? AND valid_state = ?",
				observer.FamilyName, observer.Surname, entities.ValidCurrent).
			First(&current).Error

		now := r.now().UTC().Truncate(versionPrecision)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// first version
		case err != nil:
			return dbError(err, "find_current_observer", "family_name", observer.FamilyName)
		case current.SameAttributes(observer):
			*observer = current
			return nil
		default:
			if !now.After(current.ValidSince) {
				now = current.ValidSince.Add(versionPrecision)
			}
			expiry := now
			err := tx.Model(&entities.Observer{}).
				Where("id = ?", current.ID).
				Updates(map[string]any{
					"valid_until": expiry,
					"valid_state": entities.ValidExpired,
				}).Error
			if err != nil {
				return dbError(err, "expire_observer", "id", current.ID)
			}
		}

		observer.ID = 0
		observer.ValidSince = now
		observer.ValidUntil = nil
		observer.ValidState = entities.ValidCurrent
		if err := tx.Create(observer).Error; err != nil {
			return dbError(err, "insert_observer", "family_name", observer.FamilyName)
		}
		return nil
	})
}

func (r *observerRepository) Current(ctx context.Context, familyName, surname string) (*entities.Observer, error) {
	var observer entities.Observer
	err := r.db.WithContext(ctx).
		Where("family_name = ? AND surname = ? AND valid_state = ?", familyName, surname, entities.ValidCurrent).
		First(&observer).Error
	if err != nil {
		return nil, notFound(err, ErrObserverNotFound, "load_observer", "family_name", familyName)
	}
	return &observer, nil
}

func (r *observerRepository) LoadByNaturalKey(ctx context.Context, familyName, surname string) (*entities.Observer, error) {
	return r.Current(ctx, familyName, surname)
}

func (r *observerRepository) LoadByID(ctx context.Context, id uint) (*entities.Observer, error) {
	var observer entities.Observer
	if err := r.db.WithContext(ctx).First(&observer, id).Error; err != nil {
		return nil, notFound(err, ErrObserverNotFound, "load_observer", "id", id)
	}
	return &observer, nil
}

func (r *observerRepository) Lookup(ctx context.Context, familyName, surname string) (uint, error) {
	observer, err := r.Current(ctx, familyName, surname)
	if err != nil {
		return 0, err
	}
	return observer.ID, nil
}

func (r *observerRepository) Versions(ctx context.Context, familyName, surname string) ([]*entities.Observer, error) {
	var versions []*entities.Observer
	err := r.db.WithContext(ctx).
		Where("family_name = ? AND surname = ?", familyName, surname).
		Order("valid_since ASC").
		Find(&versions).Error
	if err != nil {
		return nil, dbError(err, "list_observer_versions", "family_name", familyName)
	}
	return versions, nil
}

func (r *observerRepository) DeleteByNaturalKey(ctx context.Context, familyName, surname string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		err := tx.Model(&entities.Observer{}).
			Where("family_name = ? AND surname = ?", familyName, surname).
			Pluck("id", &ids).Error
		if err != nil {
			return dbError(err, "find_observer_versions", "family_name", familyName)
		}
		if len(ids) == 0 {
			return ErrObserverNotFound
		}

		var refs int64
		if err := tx.Table(tableImages).Where("observer_id IN ?", ids).Count(&refs).Error; err != nil {
			return dbError(err, "count_observer_references")
		}
		if refs > 0 {
			return ErrInUse
		}
		if err := tx.Where("id IN ?", ids).Delete(&entities.Observer{}).Error; err != nil {
			return dbError(err, "delete_observer", "family_name", familyName)
		}
		return nil
	})
}

func (r *observerRepository) PurgeExpired(ctx context.Context) (int64, error) {
	db := r.db.WithContext(ctx)
	referencedIDs := db.Session(&gorm.Session{NewDB: true}).
		Table(tableImages).
		Distinct("observer_id")

	result := db.
		Where("valid_state = ?", entities.ValidExpired).
		Where("id NOT IN (?)", referencedIDs).
		Delete(&entities.Observer{})
	if result.Error != nil {
		return 0, dbError(result.Error, "purge_expired_observers")
	}
	return result.RowsAffected, nil
}

func (r *observerRepository) List(ctx context.Context) ([]*entities.Observer, error) {
	var observers []*entities.Observer
	err := r.db.WithContext(ctx).
		Where("valid_state = ?", entities.ValidCurrent).
		Order("family_name ASC, surname ASC").
		Find(&observers).Error
	if err != nil {
		return nil, dbError(err, "list_observers")
	}
	return observers, nil
}
