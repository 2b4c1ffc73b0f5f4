package transfer

import (
	"time"

	"github.com/google/uuid"
)

// Record is the durable description of one transfer. Created atomically
// with the blob write at upload time and mutated only by the download
// counter; the IV and auth tag are set once and never change.
type Record struct {
	ID             uuid.UUID
	TransferKey    int
	FileName       string
	FileSize       int64
	MimeType       string
	StorageLocator string
	EncryptionIV   string // 32 hex chars (16-byte nonce)
	AuthTag        string // 32 hex chars (16-byte GCM tag)
	DownloadCount  int
	MaxDownloads   int
	CreatedAt      time.Time
	ExpiresAt      time.Time
}
