package app

import (
	"net/http"
	"strings"

	"meridian/api/internal/rbac"
)

func (s *HTTPServer) routeApprovals(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListApprovalRequests(r.Context(),
				strings.TrimSpace(r.URL.Query().Get("status")),
				strings.TrimSpace(r.URL.Query().Get("kind")))
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"approvals": items})
			return
		case http.MethodPost:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body CreateApprovalInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			request, err := s.service.CreateApprovalRequest(r.Context(), session, body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusCreated, request)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	requestID := rest[0]

	if len(rest) == 1 && r.Method == http.MethodGet {
		if !s.can(w, session, rbac.ActionRead) {
			return
		}
		request, err := s.service.GetApprovalRequest(r.Context(), requestID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, request)
		return
	}

	if len(rest) == 2 && rest[1] == "decide" && r.Method == http.MethodPost {
		if !s.can(w, session, rbac.ActionApprove) {
			return
		}
		var body struct {
			Approve bool   `json:"approve"`
			Note    string `json:"note"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		request, err := s.service.DecideApprovalRequest(r.Context(), requestID, session, body.Approve, body.Note)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, request)
		return
	}

	if len(rest) == 2 && rest[1] == "cancel" && r.Method == http.MethodPost {
		if !s.can(w, session, rbac.ActionWrite) {
			return
		}
		request, err := s.service.CancelApprovalRequest(r.Context(), requestID, session)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, request)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}
