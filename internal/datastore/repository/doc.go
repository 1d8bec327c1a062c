// Package repository provides repository interfaces and GORM implementations
// for the skyglow schema.
//
// # Natural keys
//
// Camera, Location and ROI are upserted by their natural key. Observer saves
// are versioned: a changed observer expires the current row and inserts a new
// one in the same transaction.
//
// # Selection
//
// Selection is the only place that turns a daterange.Selector into SQL.
// Measurement deletion, image deletion, export and the unpublished count all
// apply it, so the same selector picks the same rows everywhere.
//
// # Error Handling
//
// Repositories return sentinel errors (ErrCameraNotFound, etc.) instead of
// leaking gorm.ErrRecordNotFound. Other database errors are wrapped with
// CategoryDatabase.
//
// # Thread Safety
//
// All repository methods are safe for concurrent use. Writers on SQLite are
// serialized by the single-connection pool the manager configures.
package repository
