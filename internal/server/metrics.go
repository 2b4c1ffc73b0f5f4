package server

import (
	"sync"
	"time"
)

// Metrics holds in-process application counters.
type Metrics struct {
	mu sync.RWMutex

	uploadsTotal        int64
	uploadBytesTotal    int64
	uploadErrorsTotal   int64
	uploadDurationTotal time.Duration

	downloadsTotal        int64
	downloadBytesTotal    int64
	downloadErrorsTotal   int64
	downloadDurationTotal time.Duration

	rejectedExpiredTotal   int64
	rejectedExhaustedTotal int64
	authFailuresTotal      int64

	requestsTotal    int64
	requestErrors4xx int64
	requestErrors5xx int64
}

var globalMetrics = &Metrics{}

// GetMetrics returns the global metrics instance.
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordUpload records a successful upload.
func (m *Metrics) RecordUpload(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadBytesTotal += bytes
	m.uploadDurationTotal += duration
}

// RecordUploadError records a failed upload.
func (m *Metrics) RecordUploadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErrorsTotal++
}

// RecordDownload records a successful download.
func (m *Metrics) RecordDownload(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadsTotal++
	m.downloadBytesTotal += bytes
	m.downloadDurationTotal += duration
}

// RecordDownloadError records a failed download.
func (m *Metrics) RecordDownloadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadErrorsTotal++
}

// RecordRejectedExpired counts downloads denied because the TTL elapsed.
func (m *Metrics) RecordRejectedExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectedExpiredTotal++
}

// RecordRejectedExhausted counts downloads denied at the count ceiling.
func (m *Metrics) RecordRejectedExhausted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectedExhaustedTotal++
}

// RecordAuthFailure counts ciphertext verification failures.
func (m *Metrics) RecordAuthFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authFailuresTotal++
}

// RecordRequest records one handled HTTP request.
func (m *Metrics) RecordRequest(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++
	switch {
	case status >= 500:
		m.requestErrors5xx++
	case status >= 400:
		m.requestErrors4xx++
	}
}

// Snapshot is a consistent copy of all counters.
type Snapshot struct {
	UploadsTotal        int64
	UploadBytesTotal    int64
	UploadErrorsTotal   int64
	DownloadsTotal      int64
	DownloadBytesTotal  int64
	DownloadErrorsTotal int64

	RejectedExpiredTotal   int64
	RejectedExhaustedTotal int64
	AuthFailuresTotal      int64

	RequestsTotal    int64
	RequestErrors4xx int64
	RequestErrors5xx int64
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		UploadsTotal:           m.uploadsTotal,
		UploadBytesTotal:       m.uploadBytesTotal,
		UploadErrorsTotal:      m.uploadErrorsTotal,
		DownloadsTotal:         m.downloadsTotal,
		DownloadBytesTotal:     m.downloadBytesTotal,
		DownloadErrorsTotal:    m.downloadErrorsTotal,
		RejectedExpiredTotal:   m.rejectedExpiredTotal,
		RejectedExhaustedTotal: m.rejectedExhaustedTotal,
		AuthFailuresTotal:      m.authFailuresTotal,
		RequestsTotal:          m.requestsTotal,
		RequestErrors4xx:       m.requestErrors4xx,
		RequestErrors5xx:       m.requestErrors5xx,
	}
}
