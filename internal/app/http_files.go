package app

import (
	"io"
	"net/http"
	"strings"

	"meridian/api/internal/rbac"
)

func (s *HTTPServer) routeFiles(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			module := strings.TrimSpace(r.URL.Query().Get("module"))
			recordID := strings.TrimSpace(r.URL.Query().Get("recordId"))
			if module == "" || recordID == "" {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "module and recordId are required", nil)
				return
			}
			items, err := s.service.ListAttachments(r.Context(), module, recordID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"attachments": items})
			return
		case http.MethodPost:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			s.handleFileUpload(w, r, session)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(rest) == 1 {
		attachmentID := rest[0]
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			attachment, body, err := s.service.DownloadAttachment(r.Context(), attachmentID)
			if err != nil {
				s.fail(w, err)
				return
			}
			defer body.Close()
			w.Header().Set("Content-Disposition", "attachment; filename=\""+attachment.Filename+"\"")
			w.Header().Set("Content-Type", attachment.ContentType)
			_, _ = io.Copy(w, body)
			return
		case http.MethodDelete:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			if err := s.service.DeleteAttachment(r.Context(), attachmentID); err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleFileUpload(w http.ResponseWriter, r *http.Request, session Session) {
	if err := r.ParseMultipartForm(maxAttachmentSize); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart body", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file field is required", nil)
		return
	}
	defer file.Close()

	attachment, err := s.service.UploadAttachment(
		r.Context(),
		session,
		r.FormValue("module"),
		r.FormValue("recordId"),
		header.Filename,
		header.Header.Get("Content-Type"),
		file,
		header.Size,
	)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeData(w, http.StatusCreated, attachment)
}
