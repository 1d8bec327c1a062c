// Package datastore opens the skyglow database and assembles the
// repositories that operate on it.
package datastore

import (
	"gorm.io/gorm"

	"github.com/skyglow/skyglow-go/internal/conf"
	"github.com/skyglow/skyglow-go/internal/errors"
	"github.com/skyglow/skyglow-go/internal/logger"
)

// Manager defines the interface for database lifecycle operations.
type Manager interface {
	// Initialize creates or migrates the schema.
	Initialize() error
	// DB returns the underlying GORM database.
	DB() *gorm.DB
	// Path returns the database location (file path for SQLite, host:port/db for MySQL).
	Path() string
	// Close closes the database connection.
	Close() error
	// IsMySQL returns true if this is a MySQL manager.
	IsMySQL() bool
}

// Open creates the manager selected by settings.Type and initializes the schema
func Open(settings *conf.DatabaseSettings, log logger.Logger) (Manager, error) {
	if settings == nil {
		return nil, errors.Newf("database settings are nil").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	var (
		mgr Manager
		err error
	)
	switch settings.Type {
	case "", "sqlite":
		mgr, err = NewSQLiteManager(settings.SQLite.Path, log, settings.SlowThreshold)
	case "mysql":
		mgr, err = NewMySQLManager(&MySQLConfig{
			Host:     settings.MySQL.Host,
			Port:     settings.MySQL.Port,
			Username: settings.MySQL.Username,
			Password: settings.MySQL.Password,
			Database: settings.MySQL.Database,
		}, log, settings.SlowThreshold)
	default:
		return nil, errors.Newf("unsupported database type %q", settings.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err != nil {
		return nil, err
	}

	if err := mgr.Initialize(); err != nil {
		_ = mgr.Close()
		return nil, err
	}
	return mgr, nil
}

// closeDB closes the connection pool behind db
func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_sql_db").
			Build()
	}
	return sqlDB.Close()
}

func migrationError(err error, backend string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Priority(errors.PriorityCritical).
		Context("operation", "auto_migrate").
		Context("backend", backend).
		Build()
}
