// Package ledger persists per-archive processing state in SQLite so repeated
// runs stay incremental.
//
// The Store keeps one row per archive, keyed by the archive's path normalized
// to a stable slash-separated relative form. Moving or renaming an archive is
// deliberately treated as a new entity. A companion runs table records one
// row per invocation for external reporting tools; only aggregates land
// there, never per-image outcomes.
//
// Writes go through a single *sql.DB in WAL mode, one statement per upsert,
// so a crash mid-write cannot corrupt neighboring records. Treat this package
// as the single source of truth for status semantics; new statuses belong in
// models.go and schema.sql together, with the version in schema.go bumped.
package ledger
