package transfer

import (
	"errors"
	"fmt"
)

// Sentinel errors for every distinguishable failure kind in the transfer
// core. Callers match with errors.Is to choose an HTTP status; wrapping
// preserves the underlying cause for logs.
var (
	// ErrKeyExhausted means the key generator gave up after its retry bound.
	ErrKeyExhausted = errors.New("transfer key space exhausted")

	// ErrInvalidKeyFormat means the presented key is not a 6-digit number.
	ErrInvalidKeyFormat = errors.New("invalid transfer key format")

	// ErrKeyNotFound means no record exists for the presented key.
	ErrKeyNotFound = errors.New("transfer key not found")

	// ErrTransferExpired means the record's TTL has elapsed.
	ErrTransferExpired = errors.New("transfer expired")

	// ErrDownloadLimitExceeded means the download-count ceiling was reached.
	ErrDownloadLimitExceeded = errors.New("download limit exceeded")

	// ErrDuplicateKey is returned by a record store whose uniqueness
	// constraint rejected a freshly minted key. The upload pipeline
	// resamples and retries.
	ErrDuplicateKey = errors.New("transfer key already exists")

	// ErrInvalidEncryptionMaterial means the stored IV or auth tag is not
	// 32 hex characters. Raised before any cipher work.
	ErrInvalidEncryptionMaterial = errors.New("invalid encryption material")

	// ErrAuthenticationFailed means the AEAD tag did not verify: the
	// ciphertext, IV, or tag was tampered with or corrupted.
	ErrAuthenticationFailed = errors.New("ciphertext authentication failed")

	// ErrDecryptionFailed covers cipher setup failures on malformed input.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrStorageWrite and ErrStorageRead keep blob failures distinguishable
	// from record-store failures.
	ErrStorageWrite = errors.New("storage write failed")
	ErrStorageRead  = errors.New("storage read failed")

	// ErrObjectMissing means the record exists but its blob does not.
	// A data-consistency anomaly, logged distinctly.
	ErrObjectMissing = errors.New("stored object missing")

	// ErrMetadataWrite means the record create failed after the blob was
	// written; the blob is removed best-effort before this is returned.
	ErrMetadataWrite = errors.New("metadata write failed")
)

// ValidationError rejects an upload before any side effect.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}
