package app

import (
	"net/http"
	"strings"

	"meridian/api/internal/rbac"
	"meridian/api/internal/store"
)

func (s *HTTPServer) routeTickets(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			filter := store.TicketFilter{
				Status:     strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))),
				Priority:   strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("priority"))),
				AssigneeID: strings.TrimSpace(r.URL.Query().Get("assigneeId")),
				Query:      strings.TrimSpace(r.URL.Query().Get("q")),
				Limit:      intQuery(r, "limit", 50),
				Offset:     intQuery(r, "offset", 0),
			}
			items, err := s.service.ListTickets(r.Context(), filter)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"tickets": items})
			return
		case http.MethodPost:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body CreateTicketInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			ticket, err := s.service.CreateTicket(r.Context(), body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusCreated, ticket)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	ticketID := rest[0]

	if len(rest) == 1 {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			ticket, err := s.service.GetTicket(r.Context(), ticketID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, ticket)
			return
		case http.MethodPut:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body UpdateTicketInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			ticket, err := s.service.UpdateTicket(r.Context(), ticketID, body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, ticket)
			return
		case http.MethodDelete:
			if !s.can(w, session, rbac.ActionAdmin) {
				return
			}
			if err := s.service.DeleteTicket(r.Context(), ticketID); err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(rest) == 2 && rest[1] == "status" && r.Method == http.MethodPost {
		if !s.can(w, session, rbac.ActionWrite) {
			return
		}
		var body struct {
			Status string `json:"status"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		ticket, err := s.service.UpdateTicketStatus(r.Context(), ticketID, body.Status)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, ticket)
		return
	}

	if len(rest) == 2 && rest[1] == "assign" && r.Method == http.MethodPost {
		if !s.can(w, session, rbac.ActionWrite) {
			return
		}
		var body struct {
			AssigneeID *string `json:"assigneeId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		ticket, err := s.service.AssignTicket(r.Context(), ticketID, body.AssigneeID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, ticket)
		return
	}

	if len(rest) == 2 && rest[1] == "comments" {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			// Internal notes are staff-only.
			includeInternal := s.service.Can(session.Role, rbac.ActionWrite)
			items, err := s.service.ListTicketComments(r.Context(), ticketID, includeInternal)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"comments": items})
			return
		case http.MethodPost:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body struct {
				Body     string `json:"body"`
				Internal bool   `json:"internal"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			comment, err := s.service.AddTicketComment(r.Context(), ticketID, session, body.Body, body.Internal)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusCreated, comment)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}
