package server

import (
	"path/filepath"
	"strings"
)

// SanitizeFilename strips path separators and control bytes from a client
// supplied file name. The result is only ever used for the storage locator
// suffix and the Content-Disposition header, never path-interpreted.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "\x00", "")
	filename = strings.ReplaceAll(filename, "\"", "_")
	filename = strings.Trim(filename, " .")

	if len(filename) > 255 {
		ext := filepath.Ext(filename)
		if len(ext) >= 255 {
			// The extension alone overflows the limit; keep the head of
			// the raw name instead.
			filename = filename[:255]
		} else {
			name := filename[:len(filename)-len(ext)]
			filename = name[:255-len(ext)] + ext
		}
	}

	if filename == "" {
		filename = "unnamed"
	}
	return filename
}
