package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"meridian/api/internal/store"
)

// fakeBlobs keeps attachment payloads in memory.
type fakeBlobs struct {
	mu     sync.Mutex
	blobs  map[string][]byte
	putErr error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{blobs: map[string][]byte{}}
}

func (f *fakeBlobs) Put(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = data
	return nil
}

func (f *fakeBlobs) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[key]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBlobs) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, key)
	return nil
}

func TestUploadAttachmentStoresBlobAndMetadata(t *testing.T) {
	var captured store.Attachment
	fs := &fakeStore{
		insertAttachmentFn: func(_ context.Context, a store.Attachment) error {
			captured = a
			return nil
		},
	}
	fs.getAttachmentFn = func(_ context.Context, id string) (store.Attachment, error) {
		return captured, nil
	}
	blobs := newFakeBlobs()
	svc := newTestService(fs)
	svc.blobs = blobs

	content := []byte("quarterly report")
	created, err := svc.UploadAttachment(context.Background(), agentSession(),
		"Ticket", "tkt-1", "report.pdf", "application/pdf", bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("UploadAttachment: %v", err)
	}
	if created.Module != "ticket" {
		t.Fatalf("expected lowercased module, got %q", created.Module)
	}
	wantPrefix := "ticket/tkt-1/"
	if !strings.HasPrefix(created.StorageKey, wantPrefix) || !strings.HasSuffix(created.StorageKey, "-report.pdf") {
		t.Fatalf("unexpected storage key %q", created.StorageKey)
	}
	if created.UploadedBy != "Avery Quinn" {
		t.Fatalf("expected the session user as uploader, got %q", created.UploadedBy)
	}
	stored, ok := blobs.blobs[created.StorageKey]
	if !ok || !bytes.Equal(stored, content) {
		t.Fatal("expected the blob persisted under the storage key")
	}
}

func TestUploadAttachmentCleansUpBlobOnMetadataFailure(t *testing.T) {
	fs := &fakeStore{
		insertAttachmentFn: func(context.Context, store.Attachment) error {
			return errors.New("insert failed")
		},
	}
	blobs := newFakeBlobs()
	svc := newTestService(fs)
	svc.blobs = blobs

	content := []byte("orphan")
	_, err := svc.UploadAttachment(context.Background(), agentSession(),
		"ticket", "tkt-1", "orphan.txt", "text/plain", bytes.NewReader(content), int64(len(content)))
	if err == nil {
		t.Fatal("expected the upload to fail")
	}
	blobs.mu.Lock()
	defer blobs.mu.Unlock()
	if len(blobs.blobs) != 0 {
		t.Fatalf("expected the blob cleaned up, found %d blobs", len(blobs.blobs))
	}
}

func TestUploadAttachmentValidation(t *testing.T) {
	svc := newTestService(&fakeStore{})
	svc.blobs = newFakeBlobs()

	tests := []struct {
		name     string
		module   string
		recordID string
		filename string
		size     int64
	}{
		{name: "unknown module", module: "payroll", recordID: "rec-1", filename: "a.txt", size: 10},
		{name: "missing record", module: "ticket", recordID: "  ", filename: "a.txt", size: 10},
		{name: "missing filename", module: "ticket", recordID: "rec-1", filename: "", size: 10},
		{name: "empty file", module: "ticket", recordID: "rec-1", filename: "a.txt", size: 0},
		{name: "oversized file", module: "ticket", recordID: "rec-1", filename: "a.txt", size: maxAttachmentSize + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UploadAttachment(context.Background(), agentSession(),
				tt.module, tt.recordID, tt.filename, "text/plain", strings.NewReader("x"), tt.size)
			assertDomainCode(t, err, "VALIDATION_ERROR")
		})
	}
}

func TestUploadAttachmentWithoutStorage(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.UploadAttachment(context.Background(), agentSession(),
		"ticket", "tkt-1", "a.txt", "text/plain", strings.NewReader("x"), 1)
	assertDomainCode(t, err, "STORAGE_UNAVAILABLE")
}

func TestUploadAttachmentStripsPathTraversal(t *testing.T) {
	var captured store.Attachment
	fs := &fakeStore{
		insertAttachmentFn: func(_ context.Context, a store.Attachment) error {
			captured = a
			return nil
		},
	}
	fs.getAttachmentFn = func(_ context.Context, id string) (store.Attachment, error) {
		return captured, nil
	}
	svc := newTestService(fs)
	svc.blobs = newFakeBlobs()

	created, err := svc.UploadAttachment(context.Background(), agentSession(),
		"ticket", "tkt-1", "../../etc/passwd", "text/plain", strings.NewReader("x"), 1)
	if err != nil {
		t.Fatalf("UploadAttachment: %v", err)
	}
	if created.Filename != "passwd" {
		t.Fatalf("expected the path stripped to its base, got %q", created.Filename)
	}
}

func TestDownloadAttachmentRoundTrip(t *testing.T) {
	blobs := newFakeBlobs()
	blobs.blobs["ticket/tkt-1/att-1-notes.txt"] = []byte("escalation notes")
	fs := &fakeStore{
		getAttachmentFn: func(_ context.Context, id string) (store.Attachment, error) {
			return store.Attachment{
				ID:          id,
				Filename:    "notes.txt",
				ContentType: "text/plain",
				StorageKey:  "ticket/tkt-1/att-1-notes.txt",
			}, nil
		},
	}
	svc := newTestService(fs)
	svc.blobs = blobs

	attachment, body, err := svc.DownloadAttachment(context.Background(), "att-1")
	if err != nil {
		t.Fatalf("DownloadAttachment: %v", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "escalation notes" {
		t.Fatalf("unexpected payload %q", data)
	}
	if attachment.Filename != "notes.txt" {
		t.Fatalf("unexpected filename %q", attachment.Filename)
	}
}
