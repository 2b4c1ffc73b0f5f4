package transfer

import "time"

// Decision is the outcome of the download access check.
type Decision int

const (
	Allowed Decision = iota
	DeniedExpired
	DeniedExhausted
)

// IsExpired reports whether the record's TTL has elapsed at now.
// Expiry is inclusive: a download at exactly ExpiresAt is rejected.
func IsExpired(rec *Record, now time.Time) bool {
	return !now.Before(rec.ExpiresAt)
}

// IsExhausted reports whether the download-count ceiling has been reached.
func IsExhausted(rec *Record) bool {
	return rec.DownloadCount >= rec.MaxDownloads
}

// CheckDownloadAllowed evaluates the access policy on a record snapshot.
// Expiry takes precedence when a record is both expired and exhausted.
// Evaluated strictly before any storage read.
func CheckDownloadAllowed(rec *Record, now time.Time) Decision {
	if IsExpired(rec, now) {
		return DeniedExpired
	}
	if IsExhausted(rec) {
		return DeniedExhausted
	}
	return Allowed
}
