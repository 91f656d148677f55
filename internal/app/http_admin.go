package app

import (
	"net/http"

	"meridian/api/internal/rbac"
)

func (s *HTTPServer) routeUsers(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) == 0 && r.Method == http.MethodGet {
		if !s.can(w, session, rbac.ActionRead) {
			return
		}
		items, err := s.service.ListUsers(r.Context())
		if err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"users": items})
		return
	}

	if len(rest) == 2 && rest[1] == "role" && r.Method == http.MethodPut {
		if !s.can(w, session, rbac.ActionAdmin) {
			return
		}
		var body struct {
			Role string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.UpdateUserRole(r.Context(), rest[0], body.Role); err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) routeWebhooks(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if !s.can(w, session, rbac.ActionAdmin) {
		return
	}

	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListWebhooks(r.Context())
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"webhooks": items})
			return
		case http.MethodPost:
			var body struct {
				Event  string `json:"event"`
				URL    string `json:"url"`
				Secret string `json:"secret"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			hook, err := s.service.CreateWebhook(r.Context(), body.Event, body.URL, body.Secret, session.UserName)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusCreated, hook)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(rest) == 1 && r.Method == http.MethodDelete {
		if err := s.service.DeleteWebhook(r.Context(), rest[0]); err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}
