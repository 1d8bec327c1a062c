package repository

import (
	"context"

	"github.com/skyglow/skyglow-go/internal/datastore/entities"
)

// ObserverRepository provides versioned access to the observers table
type ObserverRepository interface {
	// Save stores observer as the current version of its (family_name,
	// surname). An unchanged observer is a no-op; a changed one expires the
	// previous current version. observer.ID is the current id on return.
	Save(ctx context.Context, observer *entities.Observer) error

	// LoadByNaturalKey returns the current version.
	// Returns ErrObserverNotFound if there is none.
	LoadByNaturalKey(ctx context.Context, familyName, surname string) (*entities.Observer, error)

	// LoadByID returns any version, current or expired
	LoadByID(ctx context.Context, id uint) (*entities.Observer, error)

	// Lookup returns the id of the current version
	Lookup(ctx context.Context, familyName, surname string) (uint, error)

	// Current is LoadByNaturalKey under its domain name
	Current(ctx context.Context, familyName, surname string) (*entities.Observer, error)

	// Versions returns every version, oldest first
	Versions(ctx context.Context, familyName, surname string) ([]*entities.Observer, error)

	// DeleteByNaturalKey removes every version. Returns ErrInUse if any
	// version is referenced by images.
	DeleteByNaturalKey(ctx context.Context, familyName, surname string) error

	// PurgeExpired deletes expired versions no image references and
	// returns how many were removed.
	PurgeExpired(ctx context.Context) (int64, error)

	// List returns the current versions ordered by name
	List(ctx context.Context) ([]*entities.Observer, error)
}
