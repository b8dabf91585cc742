// Package sqlite persists clustering runs and their vertices to the
// service database. Stores are thin wrappers over *sql.DB; schema lives
// in internal/db/migrations.
package sqlite
