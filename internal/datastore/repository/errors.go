package repository

import (
	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/skyglow/skyglow-go/internal/errors"
)

// Sentinel errors for repository operations. Callers match them with
// errors.Is instead of inspecting GORM or driver errors.
var (
	// ErrCameraNotFound indicates no camera with the requested model or id
	ErrCameraNotFound = errors.NewStd("camera not found")

	// ErrObserverNotFound indicates no current observer with the requested name or id
	ErrObserverNotFound = errors.NewStd("observer not found")

	// ErrLocationNotFound indicates the requested location does not exist
	ErrLocationNotFound = errors.NewStd("location not found")

	// ErrROINotFound indicates the requested region of interest does not exist
	ErrROINotFound = errors.NewStd("region of interest not found")

	// ErrImageNotFound indicates the requested image does not exist
	ErrImageNotFound = errors.NewStd("image not found")

	// ErrMeasurementNotFound indicates no measurement exists for the image
	ErrMeasurementNotFound = errors.NewStd("measurement not found")

	// ErrConfigNotFound indicates the (section, property) pair is unset
	ErrConfigNotFound = errors.NewStd("configuration value not found")

	// ErrInUse indicates the row is still referenced by images
	ErrInUse = errors.NewStd("referenced by registered images")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.NewStd("invalid input")
)

// mysqlDuplicateEntry is ER_DUP_ENTRY
const mysqlDuplicateEntry = 1062

// IsUniqueViolation reports whether err is a unique or primary key
// constraint failure from either supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}
	return false
}

// dbError wraps a driver error with datastore context
func dbError(err error, operation string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}
	return builder.Build()
}

// notFound maps gorm.ErrRecordNotFound to sentinel and wraps anything else
func notFound(err, sentinel error, operation string, context ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return dbError(err, operation, context...)
}
