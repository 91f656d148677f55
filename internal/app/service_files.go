package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"meridian/api/internal/store"
	"meridian/api/internal/util"
)

// maxAttachmentSize caps uploads at 25 MiB.
const maxAttachmentSize = 25 << 20

// attachmentModules are the record types files can hang off.
var attachmentModules = map[string]struct{}{
	"ticket":   {},
	"approval": {},
	"account":  {},
	"issue":    {},
	"invoice":  {},
	"asset":    {},
	"contract": {},
}

func (s *Service) UploadAttachment(ctx context.Context, session Session, module, recordID, filename, contentType string, body io.Reader, size int64) (store.Attachment, error) {
	if s.blobs == nil {
		return store.Attachment{}, domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "file storage is not configured", nil)
	}
	module = strings.ToLower(strings.TrimSpace(module))
	if _, ok := attachmentModules[module]; !ok {
		return store.Attachment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown module", map[string]any{"module": module})
	}
	if strings.TrimSpace(recordID) == "" {
		return store.Attachment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "recordId is required", nil)
	}
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == "/" {
		return store.Attachment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "filename is required", nil)
	}
	if size <= 0 || size > maxAttachmentSize {
		return store.Attachment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file size must be between 1 byte and 25 MiB", map[string]any{"size": size})
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	attachment := store.Attachment{
		ID:          util.NewID("att"),
		Module:      module,
		RecordID:    recordID,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		UploadedBy:  session.UserName,
	}
	attachment.StorageKey = fmt.Sprintf("%s/%s/%s-%s", module, recordID, attachment.ID, filename)

	if err := s.blobs.Put(ctx, attachment.StorageKey, contentType, body, size); err != nil {
		return store.Attachment{}, fmt.Errorf("store blob: %w", err)
	}
	if err := s.store.InsertAttachment(ctx, attachment); err != nil {
		// Best effort cleanup so failed metadata writes do not leak blobs.
		_ = s.blobs.Delete(ctx, attachment.StorageKey)
		return store.Attachment{}, err
	}
	return s.store.GetAttachment(ctx, attachment.ID)
}

func (s *Service) ListAttachments(ctx context.Context, module, recordID string) ([]store.Attachment, error) {
	return s.store.ListAttachments(ctx, strings.ToLower(module), recordID)
}

func (s *Service) DownloadAttachment(ctx context.Context, id string) (store.Attachment, io.ReadCloser, error) {
	attachment, err := s.store.GetAttachment(ctx, id)
	if err != nil {
		return store.Attachment{}, nil, err
	}
	if s.blobs == nil {
		return store.Attachment{}, nil, domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "file storage is not configured", nil)
	}
	body, err := s.blobs.Get(ctx, attachment.StorageKey)
	if err != nil {
		return store.Attachment{}, nil, fmt.Errorf("fetch blob %s: %w", attachment.StorageKey, err)
	}
	return attachment, body, nil
}

func (s *Service) DeleteAttachment(ctx context.Context, id string) error {
	attachment, err := s.store.GetAttachment(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAttachment(ctx, attachment.ID); err != nil {
		return err
	}
	if s.blobs != nil {
		if err := s.blobs.Delete(ctx, attachment.StorageKey); err != nil {
			return fmt.Errorf("delete blob %s: %w", attachment.StorageKey, err)
		}
	}
	return nil
}
