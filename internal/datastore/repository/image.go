package repository

import (
	"context"

	"github.com/skyglow/skyglow-go/internal/datastore/entities"
	"github.com/skyglow/skyglow-go/internal/daterange"
)

// InsertOutcome is what happened to one image in InsertBatch
type InsertOutcome int

const (
	// Inserted means a new row was written
	Inserted InsertOutcome = iota
	// DirectoryFixed means the content exists under the same name and the
	// stored directory was moved to the candidate's
	DirectoryFixed
	// Discarded means the content exists under a different name
	Discarded
	// AlreadyRegistered means the same name and directory already hold the content
	AlreadyRegistered
)

func (o InsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case DirectoryFixed:
		return "directory-fixed"
	case Discarded:
		return "discarded"
	case AlreadyRegistered:
		return "already-registered"
	default:
		return "unknown"
	}
}

// InsertResult reports the outcome for one candidate. Existing is the row
// that holds the hash when the outcome is not Inserted.
type InsertResult struct {
	Image    *entities.Image
	Outcome  InsertOutcome
	Existing *entities.Image
}

// ImageCounts summarizes the images table
type ImageCounts struct {
	Total    int64 `json:"total"`
	Flagged  int64 `json:"flagged"`
	Pending  int64 `json:"pending"`
	Twilight int64 `json:"twilight"`
}

// ImageRepository provides access to the images table
type ImageRepository interface {
	// KnownNames returns the names already registered under directory
	KnownNames(ctx context.Context, directory string) (map[string]struct{}, error)

	// Exists reports whether (name, directory) is registered
	Exists(ctx context.Context, name, directory string) (bool, error)

	// LoadByHash returns ErrImageNotFound if no image has the digest
	LoadByHash(ctx context.Context, hash []byte) (*entities.Image, error)

	// LoadByID preloads camera, observer and location
	LoadByID(ctx context.Context, id uint) (*entities.Image, error)

	// InsertBatch writes images in one transaction. When the batch hits a
	// hash conflict it is retried row by row, and each conflict is resolved
	// by name: same name moves the directory, a different name discards.
	InsertBatch(ctx context.Context, images []*entities.Image) ([]InsertResult, error)

	// Pending returns up to limit unflagged, unmeasured images with id
	// greater than afterID, ordered by id, with their camera preloaded.
	Pending(ctx context.Context, afterID uint, limit int) ([]*entities.Image, error)

	CountPending(ctx context.Context) (int64, error)

	// Flag marks an image as unusable for statistics
	Flag(ctx context.Context, id uint) error

	Counts(ctx context.Context) (ImageCounts, error)

	// DeleteBySelection deletes the selected images and, by cascade, their
	// measurements. Returns the number of images removed.
	DeleteBySelection(ctx context.Context, observerID uint, sel daterange.Selector) (int64, error)
}
