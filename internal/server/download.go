package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jayrajpamnani/HexDrop/internal/logging"
	"github.com/jayrajpamnani/HexDrop/internal/transfer"
)

// downloadHandler handles GET /api/download/{key}. The policy checks run
// inside the service before any storage read; this handler only maps
// error kinds to HTTP statuses and restores the original file headers.
func (cfg Config) downloadHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		key := r.PathValue("key")

		d, err := cfg.Service.Download(r.Context(), key)
		if err != nil {
			rid := RequestIDFromContext(r.Context())
			switch {
			case errors.Is(err, transfer.ErrInvalidKeyFormat):
				http.Error(w, "key must be a 6-digit number", http.StatusBadRequest)
			case errors.Is(err, transfer.ErrKeyNotFound):
				// Expected rejection, not a failure.
				http.Error(w, "key not found", http.StatusNotFound)
			case errors.Is(err, transfer.ErrTransferExpired):
				GetMetrics().RecordRejectedExpired()
				http.Error(w, "transfer expired", http.StatusGone)
			case errors.Is(err, transfer.ErrDownloadLimitExceeded):
				GetMetrics().RecordRejectedExhausted()
				http.Error(w, "download limit exceeded", http.StatusForbidden)
			case errors.Is(err, transfer.ErrStorageRead):
				GetMetrics().RecordDownloadError()
				logging.Default.Error("download failed: storage read",
					map[string]any{"rid": rid, "key": key}, err)
				http.Error(w, "storage error", http.StatusBadGateway)
			case errors.Is(err, transfer.ErrAuthenticationFailed),
				errors.Is(err, transfer.ErrInvalidEncryptionMaterial),
				errors.Is(err, transfer.ErrDecryptionFailed):
				// Tampering or corrupted persisted material. Alert-worthy,
				// never retried.
				GetMetrics().RecordAuthFailure()
				logging.Default.Error("download failed: ciphertext verification",
					map[string]any{"rid": rid, "key": key}, err)
				http.Error(w, "file integrity check failed", http.StatusInternalServerError)
			default:
				GetMetrics().RecordDownloadError()
				logging.Default.Error("download failed",
					map[string]any{"rid": rid, "key": key}, err)
				http.Error(w, "download failed", http.StatusInternalServerError)
			}
			return
		}

		GetMetrics().RecordDownload(int64(len(d.Data)), time.Since(start))

		if d.MimeType != "" {
			w.Header().Set("Content-Type", d.MimeType)
		} else {
			w.Header().Set("Content-Type", "application/octet-stream")
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(d.Data)))
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, d.FileName))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(d.Data)
	})
}
