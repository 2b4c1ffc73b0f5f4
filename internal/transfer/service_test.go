package transfer

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jayrajpamnani/HexDrop/internal/logging"
)

// memObjects is an in-memory ObjectStore fake.
type memObjects struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	types    map[string]string
	putErr   error
	getErr   error
	remErr   error
	getCalls int
	removed  []string
}

func newMemObjects() *memObjects {
	return &memObjects{
		blobs: make(map[string][]byte),
		types: make(map[string]string),
	}
}

func (m *memObjects) Put(ctx context.Context, locator string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.blobs[locator] = append([]byte(nil), data...)
	m.types[locator] = contentType
	return nil
}

func (m *memObjects) Get(ctx context.Context, locator string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.blobs[locator]
	if !ok {
		return nil, ErrObjectMissing
	}
	return append([]byte(nil), data...), nil
}

func (m *memObjects) Remove(ctx context.Context, locator string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, locator)
	if m.remErr != nil {
		return m.remErr
	}
	delete(m.blobs, locator)
	delete(m.types, locator)
	return nil
}

// memRecords is an in-memory RecordStore fake. createErrs are popped one
// per Create call to script partial failures.
type memRecords struct {
	mu         sync.Mutex
	byKey      map[int]*Record
	createErrs []error
	incErr     error
}

func newMemRecords() *memRecords {
	return &memRecords{byKey: make(map[int]*Record)}
}

func (m *memRecords) Create(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return err
		}
	}
	if _, exists := m.byKey[rec.TransferKey]; exists {
		return ErrDuplicateKey
	}
	cp := *rec
	m.byKey[rec.TransferKey] = &cp
	return nil
}

func (m *memRecords) FindByKey(ctx context.Context, key int) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byKey[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memRecords) KeyExists(ctx context.Context, key int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byKey[key]
	return ok, nil
}

func (m *memRecords) IncrementIfBelow(ctx context.Context, id uuid.UUID, max int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incErr != nil {
		return 0, m.incErr
	}
	for _, rec := range m.byKey {
		if rec.ID == id {
			if rec.DownloadCount >= max {
				return rec.DownloadCount, ErrDownloadLimitExceeded
			}
			rec.DownloadCount++
			return rec.DownloadCount, nil
		}
	}
	return 0, ErrKeyNotFound
}

func (m *memRecords) Delete(ctx context.Context, key int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byKey, key)
	return nil
}

func testLogger() *logging.Logger {
	return logging.New(&bytes.Buffer{}, logging.LevelError, false)
}

func keyString(key int) string {
	return strconv.Itoa(key)
}

func TestUploadDownload_RoundTrip(t *testing.T) {
	objects := newMemObjects()
	records := newMemRecords()
	svc := NewService(objects, records, testLogger(), Options{MaxDownloads: 3})

	payload := []byte("ten bytes!")
	key, err := svc.Upload(context.Background(), payload, "a.txt", "text/plain", int64(len(payload)))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if key < KeyMin || key > KeyMax {
		t.Fatalf("Expected 6-digit key, got %d", key)
	}

	// The stored blob must not be the plaintext.
	locator := Locator(key, "a.txt")
	if bytes.Equal(objects.blobs[locator], payload) {
		t.Error("Expected ciphertext at rest, found plaintext")
	}

	got, err := svc.Download(context.Background(), keyString(key))
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if !bytes.Equal(got.Data, payload) {
		t.Errorf("Expected payload %q back, got %q", payload, got.Data)
	}
	if got.FileName != "a.txt" {
		t.Errorf("Expected file name a.txt, got %q", got.FileName)
	}
	if got.MimeType != "text/plain" {
		t.Errorf("Expected mime type text/plain, got %q", got.MimeType)
	}

	rec, err := records.FindByKey(context.Background(), key)
	if err != nil {
		t.Fatalf("FindByKey failed: %v", err)
	}
	if rec.DownloadCount != 1 {
		t.Errorf("Expected download count 1 after one download, got %d", rec.DownloadCount)
	}
}

func TestDownload_LimitExceeded(t *testing.T) {
	objects := newMemObjects()
	records := newMemRecords()
	svc := NewService(objects, records, testLogger(), Options{MaxDownloads: 1})

	key, err := svc.Upload(context.Background(), []byte("once only"), "once.bin", "application/octet-stream", 9)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if _, err := svc.Download(context.Background(), keyString(key)); err != nil {
		t.Fatalf("First download failed: %v", err)
	}

	_, err = svc.Download(context.Background(), keyString(key))
	if !errors.Is(err, ErrDownloadLimitExceeded) {
		t.Fatalf("Expected ErrDownloadLimitExceeded on second download, got %v", err)
	}
}

func TestDownload_Expired(t *testing.T) {
	objects := newMemObjects()
	records := newMemRecords()
	svc := NewService(objects, records, testLogger(), Options{})

	key, err := svc.Upload(context.Background(), []byte("stale"), "stale.txt", "text/plain", 5)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	// Move the clock past the TTL.
	svc.now = func() time.Time { return time.Now().Add(DefaultTTL + time.Minute) }

	objects.getCalls = 0
	_, err = svc.Download(context.Background(), keyString(key))
	if !errors.Is(err, ErrTransferExpired) {
		t.Fatalf("Expected ErrTransferExpired, got %v", err)
	}
	if objects.getCalls != 0 {
		t.Errorf("Expected no storage read for an expired transfer, got %d", objects.getCalls)
	}
}

func TestDownload_CorruptedCiphertext(t *testing.T) {
	objects := newMemObjects()
	records := newMemRecords()
	svc := NewService(objects, records, testLogger(), Options{})

	key, err := svc.Upload(context.Background(), []byte("integrity matters"), "i.txt", "text/plain", 17)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	// Corrupt one byte of the stored ciphertext between upload and download.
	locator := Locator(key, "i.txt")
	objects.blobs[locator][0] ^= 0x01

	_, err = svc.Download(context.Background(), keyString(key))
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("Expected ErrAuthenticationFailed for corrupted blob, got %v", err)
	}
}

func TestDownload_ErrorKinds(t *testing.T) {
	objects := newMemObjects()
	records := newMemRecords()
	svc := NewService(objects, records, testLogger(), Options{})

	t.Run("bad key format", func(t *testing.T) {
		_, err := svc.Download(context.Background(), "12ab56")
		if !errors.Is(err, ErrInvalidKeyFormat) {
			t.Errorf("Expected ErrInvalidKeyFormat, got %v", err)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := svc.Download(context.Background(), "123456")
		if !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("Expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("blob missing behind record", func(t *testing.T) {
		key, err := svc.Upload(context.Background(), []byte("gone"), "g.txt", "text/plain", 4)
		if err != nil {
			t.Fatalf("Upload failed: %v", err)
		}
		delete(objects.blobs, Locator(key, "g.txt"))

		_, err = svc.Download(context.Background(), keyString(key))
		if !errors.Is(err, ErrStorageRead) {
			t.Errorf("Expected ErrStorageRead for missing blob, got %v", err)
		}
	})
}

func TestUpload_Validation(t *testing.T) {
	svc := NewService(newMemObjects(), newMemRecords(), testLogger(), Options{MaxFileSize: 100})

	tests := []struct {
		name     string
		fileName string
		mimeType string
		fileSize int64
	}{
		{"missing file name", "", "text/plain", 10},
		{"missing mime type", "a.txt", "", 10},
		{"negative size", "a.txt", "text/plain", -1},
		{"over size limit", "a.txt", "text/plain", 101},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), []byte("x"), tt.fileName, tt.mimeType, tt.fileSize)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("Expected ValidationError, got %v", err)
			}
		})
	}
}

func TestUpload_StorageWriteFailure(t *testing.T) {
	objects := newMemObjects()
	objects.putErr = errors.New("bucket unreachable")
	records := newMemRecords()
	svc := NewService(objects, records, testLogger(), Options{})

	_, err := svc.Upload(context.Background(), []byte("data"), "a.txt", "text/plain", 4)
	if !errors.Is(err, ErrStorageWrite) {
		t.Fatalf("Expected ErrStorageWrite, got %v", err)
	}
	if len(records.byKey) != 0 {
		t.Error("Expected no record after a failed storage write")
	}
}

func TestUpload_CompensatingDeleteOnMetadataFailure(t *testing.T) {
	objects := newMemObjects()
	records := newMemRecords()
	records.createErrs = []error{errors.New("constraint violation on insert")}
	svc := NewService(objects, records, testLogger(), Options{})

	_, err := svc.Upload(context.Background(), []byte("data"), "a.txt", "text/plain", 4)
	if !errors.Is(err, ErrMetadataWrite) {
		t.Fatalf("Expected ErrMetadataWrite, got %v", err)
	}
	if len(objects.removed) != 1 {
		t.Fatalf("Expected one compensating blob delete, got %d", len(objects.removed))
	}
	if len(objects.blobs) != 0 {
		t.Error("Expected the just-written blob to be rolled back")
	}
}

func TestUpload_CompensationFailureStillReportsMetadataError(t *testing.T) {
	objects := newMemObjects()
	objects.remErr = errors.New("remove refused")
	records := newMemRecords()
	records.createErrs = []error{errors.New("insert failed")}
	svc := NewService(objects, records, testLogger(), Options{})

	_, err := svc.Upload(context.Background(), []byte("data"), "a.txt", "text/plain", 4)
	if !errors.Is(err, ErrMetadataWrite) {
		t.Fatalf("Expected ErrMetadataWrite over the compensation failure, got %v", err)
	}
}

func TestUpload_RetriesOnDuplicateKey(t *testing.T) {
	objects := newMemObjects()
	records := newMemRecords()
	records.createErrs = []error{ErrDuplicateKey, nil}
	svc := NewService(objects, records, testLogger(), Options{})

	key, err := svc.Upload(context.Background(), []byte("data"), "a.txt", "text/plain", 4)
	if err != nil {
		t.Fatalf("Expected upload to survive one duplicate-key race, got %v", err)
	}
	if len(records.byKey) != 1 {
		t.Fatalf("Expected exactly one record, got %d", len(records.byKey))
	}
	if _, ok := records.byKey[key]; !ok {
		t.Errorf("Expected record stored under returned key %d", key)
	}
	// The blob for the losing key must have been rolled back.
	if len(objects.removed) != 1 {
		t.Errorf("Expected one compensating delete for the losing key, got %d", len(objects.removed))
	}
	if len(objects.blobs) != 1 {
		t.Errorf("Expected a single live blob, got %d", len(objects.blobs))
	}
}

func TestUpload_GivesUpAfterRepeatedDuplicates(t *testing.T) {
	objects := newMemObjects()
	records := newMemRecords()
	records.createErrs = []error{ErrDuplicateKey, ErrDuplicateKey, ErrDuplicateKey}
	svc := NewService(objects, records, testLogger(), Options{})

	_, err := svc.Upload(context.Background(), []byte("data"), "a.txt", "text/plain", 4)
	if !errors.Is(err, ErrKeyExhausted) {
		t.Fatalf("Expected ErrKeyExhausted after repeated duplicates, got %v", err)
	}
	if len(objects.blobs) != 0 {
		t.Errorf("Expected all losing blobs rolled back, %d left", len(objects.blobs))
	}
}

func TestDownload_CounterFailureStillReturnsBytes(t *testing.T) {
	objects := newMemObjects()
	records := newMemRecords()
	svc := NewService(objects, records, testLogger(), Options{MaxDownloads: 5})

	payload := []byte("availability over accounting")
	key, err := svc.Upload(context.Background(), payload, "a.txt", "text/plain", int64(len(payload)))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	records.incErr = errors.New("counter store down")
	got, err := svc.Download(context.Background(), keyString(key))
	if err != nil {
		t.Fatalf("Expected download to succeed despite counter failure, got %v", err)
	}
	if !bytes.Equal(got.Data, payload) {
		t.Errorf("Expected payload back, got %q", got.Data)
	}
}
