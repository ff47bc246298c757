// Package sqlite provides the SQLite implementation of the document store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It persists document records and their
// versions; the version that is active and the fragment ids it produced are the
// source of truth for what the vector index should contain.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// A partial unique index guarantees at most one active version per document.
//
// # Data Location
//
// By default, the database is stored at ~/.sous/data/documents.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode. Version commits run in a single transaction.
package sqlite
