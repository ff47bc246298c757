package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sous/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
)

// Store is a SQLite-backed document store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.sous/data/documents.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sous", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "documents.db")

	// WAL for concurrent readers; foreign keys per connection.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const recordColumns = `id, owner_id, source_location, title, dish_name, created_at`

const versionColumns = `id, document_id, content_hash, version_number, active, created_at, fragment_ids`

// GetBySource retrieves a record by source location.
func (s *documentStore) GetBySource(ctx context.Context, sourceLocation string) (*domain.DocumentRecord, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM documents WHERE source_location = ?`, sourceLocation)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, err
	}
	return rec, s.loadVersionIDs(ctx, rec)
}

// GetDocument retrieves a record by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM documents WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, err
	}
	return rec, s.loadVersionIDs(ctx, rec)
}

// ListDocuments returns an owner's records ordered by source location.
func (s *documentStore) ListDocuments(ctx context.Context, ownerID string) ([]domain.DocumentRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM documents`
	var args []any
	if ownerID != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY source_location`

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var records []domain.DocumentRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	for i := range records {
		if err := s.loadVersionIDs(ctx, &records[i]); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// ListVersions returns a document's versions in chronological order.
func (s *documentStore) ListVersions(ctx context.Context, documentID string) ([]domain.DocumentVersion, error) {
	var exists int
	err := s.store.db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, documentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checking document: %w", err)
	}

	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM document_versions WHERE document_id = ? ORDER BY version_number`,
		documentID)
	if err != nil {
		return nil, fmt.Errorf("querying versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.DocumentVersion //nolint:prealloc // size unknown from query
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating versions: %w", err)
	}
	return versions, nil
}

// ActiveVersion returns the active version of a document.
func (s *documentStore) ActiveVersion(ctx context.Context, documentID string) (*domain.DocumentVersion, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM document_versions
		 WHERE document_id = ? AND active = 1
		 ORDER BY version_number DESC LIMIT 1`, documentID)
	return scanVersion(row)
}

// CommitVersion inserts or updates the record, deactivates the previous
// version and inserts the new one in one transaction.
func (s *documentStore) CommitVersion(ctx context.Context, c driven.VersionCommit) error {
	if c.Record == nil || c.Version == nil {
		return fmt.Errorf("%w: commit requires a record and a version", domain.ErrInvalidInput)
	}
	rec, v := c.Record, c.Version

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if c.CreateRecord {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (id, owner_id, source_location, title, dish_name, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rec.ID, rec.OwnerID, rec.SourceLocation, rec.Title, rec.DishName, rec.CreatedAt)
		if isUniqueViolation(err) {
			return fmt.Errorf("creating document for %s: %w", rec.SourceLocation, domain.ErrAlreadyExists)
		}
		if err != nil {
			return fmt.Errorf("creating document: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx,
			`UPDATE documents SET title = ?, dish_name = ? WHERE id = ?`,
			rec.Title, rec.DishName, rec.ID)
		if err != nil {
			return fmt.Errorf("updating document: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("committing version for %s: %w", rec.ID, domain.ErrNotFound)
		}
	}

	// Guarded: only succeeds if the version is still the active one.
	if c.DeactivateVersionID != "" {
		res, err := tx.ExecContext(ctx, `
			UPDATE document_versions SET active = 0
			WHERE id = ? AND document_id = ? AND active = 1
		`, c.DeactivateVersionID, rec.ID)
		if err != nil {
			return fmt.Errorf("deactivating version: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("deactivating version %s: %w", c.DeactivateVersionID, domain.ErrConflict)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO document_versions (`+versionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, v.ID, rec.ID, v.ContentHash, v.VersionNumber, v.Active, v.CreatedAt, v.FragmentBlob)
	if isUniqueViolation(err) {
		return fmt.Errorf("inserting version %d of %s: %w", v.VersionNumber, rec.ID, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("inserting version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ClearFragmentIDs empties the fragment id blob of inactive versions.
func (s *documentStore) ClearFragmentIDs(ctx context.Context, versionIDs []string) error {
	if len(versionIDs) == 0 {
		return nil
	}
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE document_versions SET fragment_ids = '' WHERE id = ? AND active = 0`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range versionIDs {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("clearing fragment ids: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// DeleteDocument removes a record and its versions.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_versions WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("deleting versions: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *documentStore) loadVersionIDs(ctx context.Context, rec *domain.DocumentRecord) error {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT id FROM document_versions WHERE document_id = ? ORDER BY version_number`, rec.ID)
	if err != nil {
		return fmt.Errorf("querying version ids: %w", err)
	}
	defer rows.Close()

	rec.VersionIDs = nil
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scanning version id: %w", err)
		}
		rec.VersionIDs = append(rec.VersionIDs, id)
	}
	return rows.Err()
}

// ==================== Helper Functions ====================

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a single document record.
func scanRecord(row scanner) (*domain.DocumentRecord, error) {
	var rec domain.DocumentRecord
	if err := row.Scan(&rec.ID, &rec.OwnerID, &rec.SourceLocation, &rec.Title,
		&rec.DishName, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	return &rec, nil
}

// scanVersion scans a single document version.
func scanVersion(row scanner) (*domain.DocumentVersion, error) {
	var v domain.DocumentVersion
	if err := row.Scan(&v.ID, &v.DocumentID, &v.ContentHash, &v.VersionNumber,
		&v.Active, &v.CreatedAt, &v.FragmentBlob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning version: %w", err)
	}
	return &v, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
