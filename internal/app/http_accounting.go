package app

import (
	"net/http"
	"strings"
	"time"

	"meridian/api/internal/rbac"
)

func (s *HTTPServer) routeJournal(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			from, ok := dateQuery(w, r, "from")
			if !ok {
				return
			}
			to, ok := dateQuery(w, r, "to")
			if !ok {
				return
			}
			items, err := s.service.ListJournalEntries(r.Context(), from, to, intQuery(r, "limit", 100))
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"entries": items})
			return
		case http.MethodPost:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body JournalEntryInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			entry, err := s.service.CreateJournalEntry(r.Context(), session, body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusCreated, entry)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(rest) == 1 && r.Method == http.MethodGet {
		if !s.can(w, session, rbac.ActionRead) {
			return
		}
		entry, err := s.service.GetJournalEntry(r.Context(), rest[0])
		if err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, entry)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) routeInvoices(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListInvoices(r.Context(),
				strings.TrimSpace(r.URL.Query().Get("accountId")),
				strings.TrimSpace(r.URL.Query().Get("status")))
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"invoices": items})
			return
		case http.MethodPost:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body InvoiceInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			invoice, err := s.service.CreateInvoice(r.Context(), body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusCreated, invoice)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	invoiceID := rest[0]

	if len(rest) == 1 && r.Method == http.MethodGet {
		if !s.can(w, session, rbac.ActionRead) {
			return
		}
		invoice, err := s.service.GetInvoice(r.Context(), invoiceID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, invoice)
		return
	}

	if len(rest) == 2 && rest[1] == "lines" && r.Method == http.MethodPut {
		if !s.can(w, session, rbac.ActionWrite) {
			return
		}
		var body InvoiceInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		invoice, err := s.service.UpdateInvoiceLines(r.Context(), invoiceID, body)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, invoice)
		return
	}

	if len(rest) == 2 && r.Method == http.MethodPost {
		switch rest[1] {
		case "issue":
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			invoice, err := s.service.IssueInvoice(r.Context(), invoiceID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, invoice)
			return
		case "pay":
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			invoice, err := s.service.MarkInvoicePaid(r.Context(), invoiceID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, invoice)
			return
		case "void":
			if !s.can(w, session, rbac.ActionApprove) {
				return
			}
			invoice, err := s.service.VoidInvoice(r.Context(), invoiceID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, invoice)
			return
		case "export":
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			result, err := s.service.ExportInvoicePDF(r.Context(), invoiceID)
			if err != nil {
				s.fail(w, err)
				return
			}
			w.Header().Set("Content-Disposition", "attachment; filename=\""+result.Filename+"\"")
			w.Header().Set("Content-Type", result.MimeType)
			w.Write(result.Data)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// dateQuery parses an optional RFC 3339 date or datetime query parameter.
func dateQuery(w http.ResponseWriter, r *http.Request, key string) (*time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, true
	}
	if parsed, err := time.Parse("2006-01-02", raw); err == nil {
		return &parsed, true
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return &parsed, true
	}
	writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", key+" must be a date (2006-01-02) or RFC 3339 timestamp", nil)
	return nil, false
}
