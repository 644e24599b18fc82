// Package sqlite persists knowledge records and scheduler state in a single
// SQLite database.
//
// It uses modernc.org/sqlite, a pure Go driver, so the binary builds without
// CGO. One Store hands out the individual port implementations:
//
//   - KnowledgeRecordStore: append-only knowledge records, reloaded at startup
//   - SchedulerStore: background task state and run history
//
// # Schema
//
// The schema is managed through numbered migrations embedded from the
// migrations/ directory. Applied versions are recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.emma/data/emma.db
//
// # Thread Safety
//
// All operations are safe for concurrent use. The database runs in WAL mode
// with a busy timeout.
package sqlite
