package app

import (
	"net/http"
	"strings"
	"time"

	"meridian/api/internal/rbac"
)

func (s *HTTPServer) routePosts(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListSocialPosts(r.Context(), strings.TrimSpace(r.URL.Query().Get("status")))
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"posts": items})
			return
		case http.MethodPost:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body SocialPostInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			post, err := s.service.CreateSocialPost(r.Context(), session, body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusCreated, post)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	postID := rest[0]

	if len(rest) == 1 {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			post, err := s.service.GetSocialPost(r.Context(), postID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, post)
			return
		case http.MethodPut:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body SocialPostInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			post, err := s.service.UpdateSocialPost(r.Context(), postID, body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, post)
			return
		case http.MethodDelete:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			if err := s.service.DeleteSocialPost(r.Context(), postID); err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(rest) == 2 && r.Method == http.MethodPost {
		switch rest[1] {
		case "schedule":
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body struct {
				ScheduledAt time.Time `json:"scheduledAt"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			post, err := s.service.ScheduleSocialPost(r.Context(), postID, body.ScheduledAt)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, post)
			return
		case "unschedule":
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			post, err := s.service.UnscheduleSocialPost(r.Context(), postID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, post)
			return
		case "publish":
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			post, err := s.service.PublishSocialPost(r.Context(), postID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, post)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}
