// Package transfer implements the ephemeral encrypted transfer core:
// short-key generation, per-transfer encryption, and the upload/download
// pipelines that enforce expiry and download-count invariants against a
// persisted record.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jayrajpamnani/HexDrop/internal/logging"
)

// ObjectStore is the blob backend: opaque bytes addressed by locator.
type ObjectStore interface {
	Put(ctx context.Context, locator string, data []byte, contentType string) error
	Get(ctx context.Context, locator string) ([]byte, error)
	Remove(ctx context.Context, locator string) error
}

// RecordStore persists transfer records. Create must surface a unique
// violation on TransferKey as ErrDuplicateKey; IncrementIfBelow is the
// atomic compare-and-increment that gates the download ceiling.
type RecordStore interface {
	Create(ctx context.Context, rec *Record) error
	FindByKey(ctx context.Context, key int) (*Record, error)
	KeyExists(ctx context.Context, key int) (bool, error)
	IncrementIfBelow(ctx context.Context, id uuid.UUID, max int) (int, error)
	Delete(ctx context.Context, key int) error
}

// Options carries the per-service policy constants.
type Options struct {
	MaxFileSize  int64         // reject larger uploads, default 2 GiB
	TTL          time.Duration // default 24h
	MaxDownloads int           // per-transfer ceiling, default 1
}

const (
	DefaultMaxFileSize  = int64(2) << 30
	DefaultTTL          = 24 * time.Hour
	DefaultMaxDownloads = 1

	// Extra key-assignment attempts after the record store rejects a
	// minted key that lost a concurrent-create race.
	createRetries = 2
)

// Service orchestrates uploads and downloads over injected stores.
type Service struct {
	objects ObjectStore
	records RecordStore
	log     *logging.Logger
	opts    Options
	now     func() time.Time
}

// NewService wires a transfer service. A nil logger falls back to the
// process default; zero options get defaults.
func NewService(objects ObjectStore, records RecordStore, log *logging.Logger, opts Options) *Service {
	if log == nil {
		log = logging.Default
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxDownloads <= 0 {
		opts.MaxDownloads = DefaultMaxDownloads
	}
	return &Service{
		objects: objects,
		records: records,
		log:     log,
		opts:    opts,
		now:     time.Now,
	}
}

// Locator derives the deterministic blob address for a transfer. The file
// name has already been sanitised at the transport boundary and is never
// path-interpreted by the store.
func Locator(key int, fileName string) string {
	return fmt.Sprintf("uploads/%d/%s", key, fileName)
}

// Upload encrypts the payload under a freshly minted key, writes the blob,
// then creates the record. The key is returned only after both writes
// succeeded. A record-create failure triggers a best-effort delete of the
// blob written in the same call; a duplicate-key rejection resamples the
// key and retries the whole key-assignment step.
func (s *Service) Upload(ctx context.Context, data []byte, fileName, mimeType string, fileSize int64) (int, error) {
	if fileName == "" {
		return 0, &ValidationError{Reason: "file name missing"}
	}
	if mimeType == "" {
		return 0, &ValidationError{Reason: "content type missing"}
	}
	if fileSize < 0 {
		return 0, &ValidationError{Reason: "negative file size"}
	}
	if fileSize > s.opts.MaxFileSize {
		return 0, &ValidationError{Reason: fmt.Sprintf("file too large: %d bytes exceeds limit of %d", fileSize, s.opts.MaxFileSize)}
	}

	for attempt := 0; ; attempt++ {
		key, err := GenerateKey(ctx, s.records.KeyExists)
		if err != nil {
			return 0, err
		}

		ciphertext, ivHex, tagHex, err := Encrypt(data, strconv.Itoa(key))
		if err != nil {
			return 0, err
		}

		locator := Locator(key, fileName)
		if err := s.objects.Put(ctx, locator, ciphertext, mimeType); err != nil {
			// No record exists yet, so nothing dangles except possibly a
			// partial blob, which is unreachable without a record.
			return 0, fmt.Errorf("%w: %v", ErrStorageWrite, err)
		}

		now := s.now()
		rec := &Record{
			ID:             uuid.New(),
			TransferKey:    key,
			FileName:       fileName,
			FileSize:       fileSize,
			MimeType:       mimeType,
			StorageLocator: locator,
			EncryptionIV:   ivHex,
			AuthTag:        tagHex,
			DownloadCount:  0,
			MaxDownloads:   s.opts.MaxDownloads,
			CreatedAt:      now,
			ExpiresAt:      now.Add(s.opts.TTL),
		}

		err = s.records.Create(ctx, rec)
		if err == nil {
			return key, nil
		}

		// Roll back the blob written for this key before reporting or
		// retrying. Compensation failures are logged, never propagated
		// over the original error.
		if rmErr := s.objects.Remove(ctx, locator); rmErr != nil {
			s.log.Error("compensating blob delete failed, orphan left for cleanup",
				map[string]any{"locator": locator, "transfer_key": key}, rmErr)
		}

		if errors.Is(err, ErrDuplicateKey) && attempt < createRetries {
			s.log.Warn("transfer key lost a concurrent-create race, resampling",
				map[string]any{"transfer_key": key, "attempt": attempt + 1})
			continue
		}
		if errors.Is(err, ErrDuplicateKey) {
			return 0, fmt.Errorf("%w: repeated unique violations on create", ErrKeyExhausted)
		}
		return 0, fmt.Errorf("%w: %v", ErrMetadataWrite, err)
	}
}

// Download is the result of a successful fetch.
type Download struct {
	Data     []byte
	FileName string
	MimeType string
}

// Download validates the key, applies the access policy before any storage
// I/O, fetches and decrypts the blob, then claims a download slot with an
// atomic compare-and-increment. A concurrent download that would push the
// counter past the ceiling is denied; a counter-store outage is logged and
// does not withhold bytes that already materialised.
func (s *Service) Download(ctx context.Context, key string) (*Download, error) {
	k, err := ParseKey(key)
	if err != nil {
		return nil, err
	}

	rec, err := s.records.FindByKey(ctx, k)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("look up transfer record: %w", err)
	}

	switch CheckDownloadAllowed(rec, s.now()) {
	case DeniedExpired:
		return nil, ErrTransferExpired
	case DeniedExhausted:
		return nil, ErrDownloadLimitExceeded
	}

	ciphertext, err := s.objects.Get(ctx, rec.StorageLocator)
	if err != nil {
		if errors.Is(err, ErrObjectMissing) {
			// The record exists but the blob does not: bytes missing with
			// bookkeeping present, worth alerting on.
			s.log.Error("transfer record has no backing object",
				map[string]any{"transfer_key": k, "locator": rec.StorageLocator}, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}

	plaintext, err := Decrypt(ciphertext, strconv.Itoa(k), rec.EncryptionIV, rec.AuthTag)
	if err != nil {
		return nil, err
	}

	if _, err := s.records.IncrementIfBelow(ctx, rec.ID, rec.MaxDownloads); err != nil {
		if errors.Is(err, ErrDownloadLimitExceeded) {
			return nil, ErrDownloadLimitExceeded
		}
		// Best-effort accounting: availability of the fetched bytes
		// outranks a perfect counter.
		s.log.Error("download counter increment failed",
			map[string]any{"transfer_key": k}, err)
	}

	return &Download{
		Data:     plaintext,
		FileName: rec.FileName,
		MimeType: rec.MimeType,
	}, nil
}

// ParseKey checks that a presented key is syntactically a 6-digit number
// in the valid range. Free, so it runs before any lookup.
func ParseKey(key string) (int, error) {
	if len(key) != 6 {
		return 0, ErrInvalidKeyFormat
	}
	k, err := strconv.Atoi(key)
	if err != nil || k < KeyMin || k > KeyMax {
		return 0, ErrInvalidKeyFormat
	}
	return k, nil
}
