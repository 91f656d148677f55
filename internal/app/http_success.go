package app

import (
	"net/http"
	"strings"

	"meridian/api/internal/rbac"
)

func (s *HTTPServer) routeAccounts(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListAccounts(r.Context(),
				strings.TrimSpace(r.URL.Query().Get("plan")),
				intQuery(r, "renewalWithinDays", 0))
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"accounts": items})
			return
		case http.MethodPost:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body AccountInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			account, err := s.service.CreateAccount(r.Context(), body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusCreated, account)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	accountID := rest[0]

	if len(rest) == 1 {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			account, err := s.service.GetAccount(r.Context(), accountID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, account)
			return
		case http.MethodPut:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body AccountInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			account, err := s.service.UpdateAccount(r.Context(), accountID, body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, account)
			return
		case http.MethodDelete:
			if !s.can(w, session, rbac.ActionAdmin) {
				return
			}
			if err := s.service.DeleteAccount(r.Context(), accountID); err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(rest) == 2 && rest[1] == "touchpoints" {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListTouchpoints(r.Context(), accountID, intQuery(r, "limit", 50))
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"touchpoints": items})
			return
		case http.MethodPost:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body TouchpointInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			touchpoint, err := s.service.AddTouchpoint(r.Context(), accountID, session, body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusCreated, touchpoint)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}
