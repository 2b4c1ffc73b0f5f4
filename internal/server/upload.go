package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/jayrajpamnani/HexDrop/internal/logging"
	"github.com/jayrajpamnani/HexDrop/internal/transfer"
)

// uploadResp is the JSON response returned after a successful upload.
// The key is what the sender shares out-of-band with the receiver.
type uploadResp struct {
	Key int `json:"key"`
}

// uploadHandler handles POST /api/upload. It reads the multipart form
// field "file", hands the bytes to the transfer service, and returns the
// minted 6-digit key.
func (cfg Config) uploadHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if cfg.MaxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
		}

		mr, err := r.MultipartReader()
		if err != nil {
			http.Error(w, "bad multipart", http.StatusBadRequest)
			return
		}

		var (
			data        []byte
			fileName    string
			contentType string
			found       bool
		)
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				// The body cap can trip mid-boundary, not just while the
				// file part is being read.
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
					return
				}
				http.Error(w, "bad multipart", http.StatusBadRequest)
				return
			}
			if part.FormName() != "file" {
				_ = part.Close()
				continue
			}

			data, err = io.ReadAll(part)
			_ = part.Close()
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
					return
				}
				http.Error(w, "bad multipart", http.StatusBadRequest)
				return
			}
			fileName = SanitizeFilename(part.FileName())
			contentType = part.Header.Get("Content-Type")
			found = true
			break
		}
		if !found {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}

		key, err := cfg.Service.Upload(r.Context(), data, fileName, contentType, int64(len(data)))
		if err != nil {
			GetMetrics().RecordUploadError()

			rid := RequestIDFromContext(r.Context())
			var vErr *transfer.ValidationError
			switch {
			case errors.As(err, &vErr):
				http.Error(w, vErr.Reason, http.StatusBadRequest)
			case errors.Is(err, transfer.ErrKeyExhausted):
				logging.Default.Error("upload failed: key space exhausted",
					map[string]any{"rid": rid}, err)
				http.Error(w, "could not allocate transfer key", http.StatusInternalServerError)
			case errors.Is(err, transfer.ErrStorageWrite):
				logging.Default.Error("upload failed: storage write",
					map[string]any{"rid": rid}, err)
				http.Error(w, "storage error", http.StatusBadGateway)
			case errors.Is(err, transfer.ErrMetadataWrite):
				logging.Default.Error("upload failed: metadata write",
					map[string]any{"rid": rid}, err)
				http.Error(w, "upload failed", http.StatusInternalServerError)
			default:
				logging.Default.Error("upload failed",
					map[string]any{"rid": rid}, err)
				http.Error(w, "upload failed", http.StatusInternalServerError)
			}
			return
		}

		GetMetrics().RecordUpload(int64(len(data)), time.Since(start))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(uploadResp{Key: key})
	})
}
