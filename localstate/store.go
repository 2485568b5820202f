// Package localstate persists small client-side state in a local sqlite
// database: upload resume records and the notification cursor.
package localstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/placereel/placereel/upload"
)

const schema = `
CREATE TABLE IF NOT EXISTS uploads (
	fingerprint TEXT PRIMARY KEY,
	upload_url  TEXT NOT NULL,
	byte_offset INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS cursors (
	service TEXT PRIMARY KEY,
	cursor  INTEGER NOT NULL
);`

// Store implements upload.ResumeStore and notify.CursorStore on sqlite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. The caller should
// call Close when the store is no longer needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or updates the resume record for a fingerprint.
func (s *Store) Save(ctx context.Context, rec upload.Record) error {
	query := `
		INSERT INTO uploads (fingerprint, upload_url, byte_offset, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (fingerprint) DO UPDATE SET
			upload_url = excluded.upload_url,
			byte_offset = excluded.byte_offset,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		rec.Fingerprint,
		rec.UploadURL,
		rec.Offset,
		time.Now().Unix(),
	)
	return err
}

// Load retrieves the resume record for a fingerprint, or nil when none is
// stored.
func (s *Store) Load(ctx context.Context, fingerprint string) (*upload.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, upload_url, byte_offset FROM uploads WHERE fingerprint = ?`,
		fingerprint,
	)

	var rec upload.Record
	if err := row.Scan(&rec.Fingerprint, &rec.UploadURL, &rec.Offset); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan resume record: %w", err)
	}
	return &rec, nil
}

// Delete removes the resume record for a fingerprint.
func (s *Store) Delete(ctx context.Context, fingerprint string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM uploads WHERE fingerprint = ?`, fingerprint)
	return err
}

// GetCursor retrieves the last-processed notification cursor for the given
// service name. Returns 0 if no cursor has been saved.
func (s *Store) GetCursor(ctx context.Context, service string) (int64, error) {
	row := s.db.QueryRowContext(ctx, `SELECT cursor FROM cursors WHERE service = ?`, service)

	var cursor int64
	if err := row.Scan(&cursor); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("scan cursor: %w", err)
	}
	return cursor, nil
}

// UpdateCursor persists the notification cursor so the subscriber can
// resume after a restart.
func (s *Store) UpdateCursor(ctx context.Context, service string, cursor int64) error {
	query := `
		INSERT INTO cursors (service, cursor)
		VALUES (?, ?)
		ON CONFLICT (service) DO UPDATE SET cursor = excluded.cursor`

	_, err := s.db.ExecContext(ctx, query, service, cursor)
	return err
}
