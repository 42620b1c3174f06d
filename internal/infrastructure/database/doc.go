// Package database provides the SQLite persistence layer for SensorGrid Core.
//
// It wraps database/sql with lifecycle management (directory creation, WAL
// mode, busy timeout, file permissions), health checks, and an embedded
// migration runner.
//
// The connection pool is deliberately limited to one connection. SQLite
// allows a single writer, and the marketplace's accounting semantics lean
// on the same property: every mutating operation (registration, purchase)
// executes as one serialised, all-or-nothing transaction, so concurrent
// purchases on the same subscriber/device pair compose in commit order.
//
// Migrations are plain SQL files embedded into the binary by the top-level
// migrations package, named YYYYMMDD_HHMMSS_description.up.sql (with an
// optional matching .down.sql). Each migration is applied in its own
// transaction and recorded in schema_migrations.
package database
