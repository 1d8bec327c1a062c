package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerAdapter routes GORM output into a module logger. Statements
// go to TRACE, so SQL only shows up with module_levels.datastore: trace.
type GormLoggerAdapter struct {
	log           Logger
	slowThreshold time.Duration
}

// NewGormLoggerAdapter wraps log. Queries slower than slowThreshold are
// logged at WARN; zero disables the check.
func NewGormLoggerAdapter(log Logger, slowThreshold time.Duration) *GormLoggerAdapter {
	if log == nil {
		log = NewSlogLogger(nil, LogLevelInfo, nil)
	}
	return &GormLoggerAdapter{log: log, slowThreshold: slowThreshold}
}

// LogMode is ignored; levels come from the logging configuration.
func (a *GormLoggerAdapter) LogMode(_ gormlogger.LogLevel) gormlogger.Interface {
	return a
}

func (a *GormLoggerAdapter) Info(ctx context.Context, msg string, data ...any) {
	a.log.WithContext(ctx).Debug(fmt.Sprintf(msg, data...))
}

func (a *GormLoggerAdapter) Warn(ctx context.Context, msg string, data ...any) {
	a.log.WithContext(ctx).Warn(fmt.Sprintf(msg, data...))
}

func (a *GormLoggerAdapter) Error(ctx context.Context, msg string, data ...any) {
	a.log.WithContext(ctx).Error(fmt.Sprintf(msg, data...))
}

// Trace is called by GORM after every statement
func (a *GormLoggerAdapter) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	log := a.log.WithContext(ctx)

	fields := []Field{
		String("sql", sql),
		Int64("rows", rows),
		Duration("elapsed", elapsed),
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		log.Warn("statement failed", append(fields, Error(err))...)
	case a.slowThreshold > 0 && elapsed > a.slowThreshold:
		log.Warn("slow statement", append(fields, Duration("threshold", a.slowThreshold))...)
	default:
		log.Trace("statement", fields...)
	}
}
