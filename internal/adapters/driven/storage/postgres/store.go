// Package postgres implements driven.DocumentStore on PostgreSQL.
//
// The Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

var _ driven.DocumentStore = (*Store)(nil)

// Store implements driven.DocumentStore backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Init creates the tables and indexes. Safe to call multiple times.
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			source_location TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			dish_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS documents_owner_idx ON documents(owner_id)`,

		`CREATE TABLE IF NOT EXISTS document_versions (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			content_hash TEXT NOT NULL,
			version_number INTEGER NOT NULL,
			active BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			fragment_ids TEXT NOT NULL DEFAULT '',
			UNIQUE (document_id, version_number)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS document_versions_one_active
			ON document_versions(document_id) WHERE active`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}
	return nil
}

const recordColumns = `id, owner_id, source_location, title, dish_name, created_at`

const versionColumns = `id, document_id, content_hash, version_number, active, created_at, fragment_ids`

// GetBySource retrieves a record by source location.
func (s *Store) GetBySource(ctx context.Context, sourceLocation string) (*domain.DocumentRecord, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM documents WHERE source_location = $1`, sourceLocation))
	if err != nil {
		return nil, err
	}
	return rec, s.loadVersionIDs(ctx, rec)
}

// GetDocument retrieves a record by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM documents WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	return rec, s.loadVersionIDs(ctx, rec)
}

// ListDocuments returns an owner's records ordered by source location.
func (s *Store) ListDocuments(ctx context.Context, ownerID string) ([]domain.DocumentRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM documents
		 WHERE $1 = '' OR owner_id = $1
		 ORDER BY source_location`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list documents: %w", err)
	}
	defer rows.Close()

	var records []domain.DocumentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate documents: %w", err)
	}

	for i := range records {
		if err := s.loadVersionIDs(ctx, &records[i]); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// ListVersions returns a document's versions in chronological order.
func (s *Store) ListVersions(ctx context.Context, documentID string) ([]domain.DocumentVersion, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, documentID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("postgres: check document: %w", err)
	}
	if !exists {
		return nil, domain.ErrNotFound
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+versionColumns+` FROM document_versions
		 WHERE document_id = $1 ORDER BY version_number`, documentID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.DocumentVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

// ActiveVersion returns the active version of a document.
func (s *Store) ActiveVersion(ctx context.Context, documentID string) (*domain.DocumentVersion, error) {
	return scanVersion(s.pool.QueryRow(ctx,
		`SELECT `+versionColumns+` FROM document_versions
		 WHERE document_id = $1 AND active
		 ORDER BY version_number DESC LIMIT 1`, documentID))
}

// CommitVersion applies the commit in a single transaction.
func (s *Store) CommitVersion(ctx context.Context, c driven.VersionCommit) error {
	if c.Record == nil || c.Version == nil {
		return fmt.Errorf("%w: commit requires a record and a version", domain.ErrInvalidInput)
	}
	rec, v := c.Record, c.Version

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if c.CreateRecord {
		_, err = tx.Exec(ctx,
			`INSERT INTO documents (`+recordColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
			rec.ID, rec.OwnerID, rec.SourceLocation, rec.Title, rec.DishName, rec.CreatedAt)
		if isUniqueViolation(err) {
			return fmt.Errorf("creating document for %s: %w", rec.SourceLocation, domain.ErrAlreadyExists)
		}
		if err != nil {
			return fmt.Errorf("postgres: insert document: %w", err)
		}
	} else {
		tag, err := tx.Exec(ctx,
			`UPDATE documents SET title = $1, dish_name = $2 WHERE id = $3`,
			rec.Title, rec.DishName, rec.ID)
		if err != nil {
			return fmt.Errorf("postgres: update document: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("committing version for %s: %w", rec.ID, domain.ErrNotFound)
		}
	}

	if c.DeactivateVersionID != "" {
		tag, err := tx.Exec(ctx,
			`UPDATE document_versions SET active = FALSE
			 WHERE id = $1 AND document_id = $2 AND active`,
			c.DeactivateVersionID, rec.ID)
		if err != nil {
			return fmt.Errorf("postgres: deactivate version: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("deactivating version %s: %w", c.DeactivateVersionID, domain.ErrConflict)
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO document_versions (`+versionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		v.ID, rec.ID, v.ContentHash, v.VersionNumber, v.Active, v.CreatedAt, v.FragmentBlob)
	if isUniqueViolation(err) {
		return fmt.Errorf("inserting version %d of %s: %w", v.VersionNumber, rec.ID, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("postgres: insert version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// ClearFragmentIDs empties the fragment id blob of inactive versions.
func (s *Store) ClearFragmentIDs(ctx context.Context, versionIDs []string) error {
	if len(versionIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE document_versions SET fragment_ids = ''
		 WHERE id = ANY($1) AND NOT active`, versionIDs)
	if err != nil {
		return fmt.Errorf("postgres: clear fragment ids: %w", err)
	}
	return nil
}

// DeleteDocument removes a record; its versions go with it.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) loadVersionIDs(ctx context.Context, rec *domain.DocumentRecord) error {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM document_versions WHERE document_id = $1 ORDER BY version_number`, rec.ID)
	if err != nil {
		return fmt.Errorf("postgres: version ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("postgres: scan version ids: %w", err)
	}
	rec.VersionIDs = ids
	return nil
}

func scanRecord(row pgx.Row) (*domain.DocumentRecord, error) {
	var rec domain.DocumentRecord
	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.SourceLocation, &rec.Title, &rec.DishName, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan document: %w", err)
	}
	return &rec, nil
}

func scanVersion(row pgx.Row) (*domain.DocumentVersion, error) {
	var v domain.DocumentVersion
	err := row.Scan(&v.ID, &v.DocumentID, &v.ContentHash, &v.VersionNumber, &v.Active, &v.CreatedAt, &v.FragmentBlob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan version: %w", err)
	}
	return &v, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
