package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/skyglow/skyglow-go/internal/datastore/entities"
	"github.com/skyglow/skyglow-go/internal/errors"
	"github.com/skyglow/skyglow-go/internal/logger"
)

// lowDiskSpace is the free-space level below which Initialize warns
const lowDiskSpace = 100 << 20

// sqlitePragmas are appended to every DSN
const sqlitePragmas = "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"

// SQLiteManager handles a single-file SQLite database.
type SQLiteManager struct {
	db     *gorm.DB
	dbPath string
	log    logger.Logger
}

// NewSQLiteManager opens path with WAL, a busy timeout and foreign keys
// enabled. The pool holds a single connection so SQLite sees one writer.
// path may also be a "file:" URI, which tests use for in-memory databases.
func NewSQLiteManager(path string, log logger.Logger, slowThreshold time.Duration) (*SQLiteManager, error) {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	if path == "" {
		return nil, errors.Newf("sqlite path is empty").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if !isMemoryPath(path) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("operation", "create_db_dir").
				Context("path", path).
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log, slowThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	return &SQLiteManager{db: db, dbPath: path, log: log}, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + sqlitePragmas
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file:") && strings.Contains(path, "mode=memory")
}

// Initialize creates the schema and the cascade trigger.
func (m *SQLiteManager) Initialize() error {
	if err := m.db.AutoMigrate(entities.All()...); err != nil {
		return migrationError(err, "sqlite")
	}

	if err := m.ensureCascadeTrigger(); err != nil {
		return fmt.Errorf("failed to create cascade trigger: %w", err)
	}

	if !isMemoryPath(m.dbPath) {
		free, err := m.FreeSpace()
		switch {
		case err != nil:
			m.log.Debug("free space check failed", logger.String("path", m.dbPath), logger.Error(err))
		case free < lowDiskSpace:
			m.log.Warn("low disk space for database",
				logger.String("path", m.dbPath),
				logger.Uint64("free_bytes", free))
		}
	}
	return nil
}

// ensureCascadeTrigger deletes measurements together with their image.
// Databases created before foreign keys were declared lack the ON DELETE
// CASCADE clause, and SQLite cannot add it afterwards.
func (m *SQLiteManager) ensureCascadeTrigger() error {
	triggerSQL := `
		CREATE TRIGGER IF NOT EXISTS trg_images_delete_cascade
		BEFORE DELETE ON images
		FOR EACH ROW
		BEGIN
			DELETE FROM sky_brightness WHERE image_id = OLD.id;
		END
	`
	return m.db.Exec(triggerSQL).Error
}

// FreeSpace returns the free bytes on the filesystem holding the database
func (m *SQLiteManager) FreeSpace() (uint64, error) {
	return diskFreeSpace(filepath.Dir(m.dbPath))
}

// DB returns the underlying GORM database.
func (m *SQLiteManager) DB() *gorm.DB {
	return m.db
}

// Path returns the database file path.
func (m *SQLiteManager) Path() string {
	return m.dbPath
}

// Close closes the database connection.
func (m *SQLiteManager) Close() error {
	return closeDB(m.db)
}

// IsMySQL returns false for SQLite manager.
func (m *SQLiteManager) IsMySQL() bool {
	return false
}
