// prometheus.go - Prometheus text-format exporter for the in-process
// counters.
package server

import (
	"fmt"
	"net/http"
	"strings"
)

// PrometheusExporter renders internal metrics in Prometheus exposition
// format.
type PrometheusExporter struct {
	version string
}

func NewPrometheusExporter(version string) *PrometheusExporter {
	return &PrometheusExporter{version: version}
}

// Handler returns the /metrics endpoint handler.
func (p *PrometheusExporter) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := GetMetrics().Snapshot()

		var out strings.Builder

		out.WriteString("# HELP hexdrop_info Application version info\n")
		out.WriteString("# TYPE hexdrop_info gauge\n")
		fmt.Fprintf(&out, "hexdrop_info{version=%q} 1\n\n", p.version)

		counter := func(name, help string, value int64) {
			fmt.Fprintf(&out, "# HELP %s %s\n", name, help)
			fmt.Fprintf(&out, "# TYPE %s counter\n", name)
			fmt.Fprintf(&out, "%s %d\n\n", name, value)
		}

		counter("hexdrop_requests_total", "Total number of HTTP requests", snap.RequestsTotal)
		counter("hexdrop_request_errors_4xx_total", "HTTP requests answered with a 4xx status", snap.RequestErrors4xx)
		counter("hexdrop_request_errors_5xx_total", "HTTP requests answered with a 5xx status", snap.RequestErrors5xx)

		counter("hexdrop_uploads_total", "Total number of completed uploads", snap.UploadsTotal)
		counter("hexdrop_upload_bytes_total", "Total uploaded payload bytes", snap.UploadBytesTotal)
		counter("hexdrop_upload_errors_total", "Total failed uploads", snap.UploadErrorsTotal)

		counter("hexdrop_downloads_total", "Total number of completed downloads", snap.DownloadsTotal)
		counter("hexdrop_download_bytes_total", "Total downloaded payload bytes", snap.DownloadBytesTotal)
		counter("hexdrop_download_errors_total", "Total failed downloads", snap.DownloadErrorsTotal)

		counter("hexdrop_rejected_expired_total", "Downloads denied because the transfer expired", snap.RejectedExpiredTotal)
		counter("hexdrop_rejected_exhausted_total", "Downloads denied at the download-count ceiling", snap.RejectedExhaustedTotal)
		counter("hexdrop_auth_failures_total", "Ciphertext verification failures", snap.AuthFailuresTotal)

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(out.String()))
	}
}
