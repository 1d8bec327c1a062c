package datastore

import (
	"fmt"
	"net"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/skyglow/skyglow-go/internal/datastore/entities"
	"github.com/skyglow/skyglow-go/internal/logger"
)

// MySQLConfig holds MySQL connection settings.
type MySQLConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// DSN renders the config for go-sql-driver. Times are read and written as UTC.
func (c *MySQLConfig) DSN() string {
	cfg := mysqldriver.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, c.Port)
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// MySQLManager handles a MySQL database.
type MySQLManager struct {
	db       *gorm.DB
	location string // host:port/database for display
}

// NewMySQLManager connects to the configured server.
func NewMySQLManager(cfg *MySQLConfig, log logger.Logger, slowThreshold time.Duration) (*MySQLManager, error) {
	if log == nil {
		log = logger.NewDiscardLogger()
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log, slowThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetMaxOpenConns(8)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &MySQLManager{
		db:       db,
		location: fmt.Sprintf("%s/%s", net.JoinHostPort(cfg.Host, cfg.Port), cfg.Database),
	}, nil
}

// Initialize creates the schema. MySQL honours the declared ON DELETE
// clauses, so no trigger is needed.
func (m *MySQLManager) Initialize() error {
	if err := m.db.AutoMigrate(entities.All()...); err != nil {
		return migrationError(err, "mysql")
	}
	return nil
}

// DB returns the underlying GORM database.
func (m *MySQLManager) DB() *gorm.DB {
	return m.db
}

// Path returns host:port/database.
func (m *MySQLManager) Path() string {
	return m.location
}

// Close closes the database connection.
func (m *MySQLManager) Close() error {
	return closeDB(m.db)
}

// IsMySQL returns true for MySQL manager.
func (m *MySQLManager) IsMySQL() bool {
	return true
}
