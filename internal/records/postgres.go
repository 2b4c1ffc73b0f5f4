// Package records persists transfer records in PostgreSQL. The table
// carries a global UNIQUE constraint on transfer_key; the cleanup job
// deleting expired rows is what returns keys to the pool.
package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/jayrajpamnani/HexDrop/internal/transfer"
)

const uniqueViolation = "23505"

// Store implements transfer.RecordStore over *sql.DB. The handle may be
// opened with either the pgx stdlib driver or lib/pq; unique-violation
// detection covers both.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// isUniqueViolation recognises Postgres error 23505 from either driver.
func isUniqueViolation(err error) bool {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}

// Create inserts a new transfer record. A unique violation on the transfer
// key surfaces as transfer.ErrDuplicateKey so the upload pipeline can
// resample.
func (s *Store) Create(ctx context.Context, rec *transfer.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transfers
			(id, transfer_key, file_name, file_size, mime_type,
			 storage_locator, encryption_iv, auth_tag,
			 download_count, max_downloads, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID, rec.TransferKey, rec.FileName, rec.FileSize, rec.MimeType,
		rec.StorageLocator, rec.EncryptionIV, rec.AuthTag,
		rec.DownloadCount, rec.MaxDownloads, rec.CreatedAt, rec.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: key %d", transfer.ErrDuplicateKey, rec.TransferKey)
		}
		return fmt.Errorf("insert transfer record: %w", err)
	}
	return nil
}

// FindByKey loads the record for a transfer key, or transfer.ErrKeyNotFound.
func (s *Store) FindByKey(ctx context.Context, key int) (*transfer.Record, error) {
	var rec transfer.Record
	err := s.db.QueryRowContext(ctx, `
		SELECT id, transfer_key, file_name, file_size, mime_type,
		       storage_locator, encryption_iv, auth_tag,
		       download_count, max_downloads, created_at, expires_at
		FROM transfers
		WHERE transfer_key = $1`,
		key,
	).Scan(
		&rec.ID, &rec.TransferKey, &rec.FileName, &rec.FileSize, &rec.MimeType,
		&rec.StorageLocator, &rec.EncryptionIV, &rec.AuthTag,
		&rec.DownloadCount, &rec.MaxDownloads, &rec.CreatedAt, &rec.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, transfer.ErrKeyNotFound
		}
		return nil, fmt.Errorf("select transfer record: %w", err)
	}
	return &rec, nil
}

// KeyExists reports whether any record holds the candidate key.
func (s *Store) KeyExists(ctx context.Context, key int) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM transfers WHERE transfer_key = $1)`, key,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check transfer key: %w", err)
	}
	return exists, nil
}

// IncrementIfBelow bumps the download counter only while it is below max,
// in a single statement so concurrent downloads cannot push the counter
// past the ceiling. Returns transfer.ErrDownloadLimitExceeded when the
// record is already at the limit.
func (s *Store) IncrementIfBelow(ctx context.Context, id uuid.UUID, max int) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		UPDATE transfers
		SET download_count = download_count + 1
		WHERE id = $1 AND download_count < $2
		RETURNING download_count`,
		id, max,
	).Scan(&count)
	if err == nil {
		return count, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("increment download count: %w", err)
	}

	// No row matched: either the record is gone or it is at the limit.
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM transfers WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return 0, fmt.Errorf("increment download count: %w", err)
	}
	if !exists {
		return 0, transfer.ErrKeyNotFound
	}
	return 0, transfer.ErrDownloadLimitExceeded
}

// Delete removes the record for a transfer key.
func (s *Store) Delete(ctx context.Context, key int) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM transfers WHERE transfer_key = $1`, key,
	); err != nil {
		return fmt.Errorf("delete transfer record: %w", err)
	}
	return nil
}

// ExpiredBefore returns up to limit records whose TTL elapsed before
// cutoff, oldest first. Used by the cleanup sweeper.
func (s *Store) ExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]transfer.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transfer_key, file_name, file_size, mime_type,
		       storage_locator, encryption_iv, auth_tag,
		       download_count, max_downloads, created_at, expires_at
		FROM transfers
		WHERE expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select expired transfers: %w", err)
	}
	defer rows.Close()

	var recs []transfer.Record
	for rows.Next() {
		var rec transfer.Record
		if err := rows.Scan(
			&rec.ID, &rec.TransferKey, &rec.FileName, &rec.FileSize, &rec.MimeType,
			&rec.StorageLocator, &rec.EncryptionIV, &rec.AuthTag,
			&rec.DownloadCount, &rec.MaxDownloads, &rec.CreatedAt, &rec.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("scan expired transfer: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
