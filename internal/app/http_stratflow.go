package app

import (
	"net/http"
	"strings"

	"meridian/api/internal/rbac"
	"meridian/api/internal/store"
)

func (s *HTTPServer) routeProjects(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListProjects(r.Context())
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"projects": items})
			return
		case http.MethodPost:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body ProjectInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			project, err := s.service.CreateProject(r.Context(), body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusCreated, project)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	projectID := rest[0]

	if len(rest) == 1 {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			payload, err := s.service.GetProject(r.Context(), projectID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, payload)
			return
		case http.MethodPut:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body ProjectInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			project, err := s.service.UpdateProject(r.Context(), projectID, body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, project)
			return
		case http.MethodDelete:
			if !s.can(w, session, rbac.ActionAdmin) {
				return
			}
			if err := s.service.DeleteProject(r.Context(), projectID); err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(rest) == 2 && rest[1] == "board" && r.Method == http.MethodGet {
		if !s.can(w, session, rbac.ActionRead) {
			return
		}
		payload, err := s.service.Board(r.Context(), projectID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, payload)
		return
	}

	if len(rest) == 2 && rest[1] == "columns" && r.Method == http.MethodPost {
		if !s.can(w, session, rbac.ActionWrite) {
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		column, err := s.service.AddBoardColumn(r.Context(), projectID, body.Name)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusCreated, column)
		return
	}

	if len(rest) == 2 && rest[1] == "issues" {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListIssues(r.Context(), store.IssueFilter{
				ProjectID:  projectID,
				ColumnID:   strings.TrimSpace(r.URL.Query().Get("columnId")),
				SprintID:   strings.TrimSpace(r.URL.Query().Get("sprintId")),
				AssigneeID: strings.TrimSpace(r.URL.Query().Get("assigneeId")),
			})
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"issues": items})
			return
		case http.MethodPost:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body IssueInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			issue, err := s.service.CreateIssue(r.Context(), projectID, session, body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusCreated, issue)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(rest) == 2 && rest[1] == "sprints" {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListSprints(r.Context(), projectID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"sprints": items})
			return
		case http.MethodPost:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body struct {
				Name string `json:"name"`
				Goal string `json:"goal"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			sprint, err := s.service.CreateSprint(r.Context(), projectID, body.Name, body.Goal)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusCreated, sprint)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) routeColumns(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	columnID := rest[0]

	switch r.Method {
	case http.MethodPut:
		if !s.can(w, session, rbac.ActionWrite) {
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		column, err := s.service.RenameBoardColumn(r.Context(), columnID, body.Name)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, column)
		return
	case http.MethodDelete:
		if !s.can(w, session, rbac.ActionWrite) {
			return
		}
		if err := s.service.DeleteBoardColumn(r.Context(), columnID); err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) routeIssues(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	issueID := rest[0]

	if len(rest) == 1 {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			issue, err := s.service.GetIssue(r.Context(), issueID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, issue)
			return
		case http.MethodPut:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body UpdateIssueInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			issue, err := s.service.UpdateIssue(r.Context(), issueID, body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, issue)
			return
		case http.MethodDelete:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			if err := s.service.DeleteIssue(r.Context(), issueID); err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(rest) == 2 && rest[1] == "move" && r.Method == http.MethodPost {
		if !s.can(w, session, rbac.ActionWrite) {
			return
		}
		var body MoveIssueInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		issue, err := s.service.MoveIssue(r.Context(), issueID, body)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, issue)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) routeSprints(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
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
		sprint, err := s.service.UpdateSprintStatus(r.Context(), rest[0], body.Status)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, sprint)
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}
