package server

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/jayrajpamnani/HexDrop/internal/transfer"
)

// fakeObjects is an in-memory object store for handler tests.
type fakeObjects struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{blobs: make(map[string][]byte)}
}

func (f *fakeObjects) Put(ctx context.Context, locator string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[locator] = append([]byte(nil), data...)
	return nil
}

func (f *fakeObjects) Get(ctx context.Context, locator string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[locator]
	if !ok {
		return nil, transfer.ErrObjectMissing
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeObjects) Remove(ctx context.Context, locator string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, locator)
	return nil
}

// fakeRecords is an in-memory record store for handler tests.
type fakeRecords struct {
	mu    sync.Mutex
	byKey map[int]*transfer.Record
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{byKey: make(map[int]*transfer.Record)}
}

func (f *fakeRecords) Create(ctx context.Context, rec *transfer.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byKey[rec.TransferKey]; exists {
		return transfer.ErrDuplicateKey
	}
	cp := *rec
	f.byKey[rec.TransferKey] = &cp
	return nil
}

func (f *fakeRecords) FindByKey(ctx context.Context, key int) (*transfer.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byKey[key]
	if !ok {
		return nil, transfer.ErrKeyNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRecords) KeyExists(ctx context.Context, key int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byKey[key]
	return ok, nil
}

func (f *fakeRecords) IncrementIfBelow(ctx context.Context, id uuid.UUID, max int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.byKey {
		if rec.ID == id {
			if rec.DownloadCount >= max {
				return rec.DownloadCount, transfer.ErrDownloadLimitExceeded
			}
			rec.DownloadCount++
			return rec.DownloadCount, nil
		}
	}
	return 0, transfer.ErrKeyNotFound
}

func (f *fakeRecords) Delete(ctx context.Context, key int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byKey, key)
	return nil
}

// testEnv bundles a wired service with direct access to its fakes.
type testEnv struct {
	cfg     Config
	objects *fakeObjects
	records *fakeRecords
}

func newTestEnv(t *testing.T, opts transfer.Options) *testEnv {
	t.Helper()
	objects := newFakeObjects()
	records := newFakeRecords()
	return &testEnv{
		cfg: Config{
			Service:        transfer.NewService(objects, records, nil, opts),
			MaxUploadBytes: 1 << 20,
		},
		objects: objects,
		records: records,
	}
}

// uploadFile posts a multipart upload and returns the recorder.
func (e *testEnv) uploadFile(t *testing.T, name, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="file"; filename="` + name + `"`}
	hdr["Content-Type"] = []string{contentType}
	part, err := writer.CreatePart(hdr)
	if err != nil {
		t.Fatalf("Failed to create form part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("Failed to write form part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	e.cfg.uploadHandler().ServeHTTP(rr, req)
	return rr
}

// downloadKey fetches /api/download/{key} through the handler.
func (e *testEnv) downloadKey(t *testing.T, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/download/"+key, nil)
	req.SetPathValue("key", key)
	rr := httptest.NewRecorder()
	e.cfg.downloadHandler().ServeHTTP(rr, req)
	return rr
}
