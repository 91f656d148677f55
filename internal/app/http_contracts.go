package app

import (
	"net/http"
	"strings"

	"meridian/api/internal/rbac"
)

func (s *HTTPServer) routeContracts(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListContracts(r.Context(),
				strings.TrimSpace(r.URL.Query().Get("status")),
				strings.TrimSpace(r.URL.Query().Get("accountId")))
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"contracts": items})
			return
		case http.MethodPost:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body ContractInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			contract, err := s.service.CreateContract(r.Context(), session, body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusCreated, contract)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	contractID := rest[0]

	if len(rest) == 1 {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			payload, err := s.service.GetContract(r.Context(), contractID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, payload)
			return
		case http.MethodDelete:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			if err := s.service.DeleteContract(r.Context(), contractID); err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(rest) == 2 && rest[1] == "body" && r.Method == http.MethodPut {
		if !s.can(w, session, rbac.ActionWrite) {
			return
		}
		var body ContractInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		contract, err := s.service.UpdateContractBody(r.Context(), contractID, session, body)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, contract)
		return
	}

	if len(rest) == 2 && rest[1] == "history" && r.Method == http.MethodGet {
		if !s.can(w, session, rbac.ActionRead) {
			return
		}
		revisions, err := s.service.ContractHistory(r.Context(), contractID, intQuery(r, "limit", 50))
		if err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"revisions": revisions})
		return
	}

	if len(rest) == 3 && rest[1] == "revisions" && r.Method == http.MethodGet {
		if !s.can(w, session, rbac.ActionRead) {
			return
		}
		payload, err := s.service.ContractRevision(r.Context(), contractID, rest[2])
		if err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, payload)
		return
	}

	if len(rest) == 2 && rest[1] == "signers" {
		switch r.Method {
		case http.MethodPost:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body SignerInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			signer, err := s.service.AddSigner(r.Context(), contractID, body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusCreated, signer)
			return
		case http.MethodDelete:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			if err := s.service.RemoveSigners(r.Context(), contractID); err != nil {
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
		case "send":
			if !s.can(w, session, rbac.ActionApprove) {
				return
			}
			contract, err := s.service.SendContract(r.Context(), contractID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, contract)
			return
		case "void":
			if !s.can(w, session, rbac.ActionApprove) {
				return
			}
			contract, err := s.service.VoidContract(r.Context(), contractID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, contract)
			return
		case "export":
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			result, err := s.service.ExportContractPDF(r.Context(), contractID)
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

// routeSigning serves the public signing endpoints. parts is the full split
// path, so parts[2] is the raw signing token.
func (s *HTTPServer) routeSigning(w http.ResponseWriter, r *http.Request, parts []string) {
	token := parts[2]
	if token == "" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	if len(parts) == 3 && r.Method == http.MethodGet {
		payload, err := s.service.SignerByToken(r.Context(), token)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, payload)
		return
	}

	if len(parts) == 4 && r.Method == http.MethodPost {
		switch parts[3] {
		case "sign":
			payload, err := s.service.SignContract(r.Context(), token)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, payload)
			return
		case "decline":
			var body struct {
				Reason string `json:"reason"`
			}
			_ = decodeBody(r, &body)
			payload, err := s.service.DeclineContract(r.Context(), token, body.Reason)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, payload)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}
