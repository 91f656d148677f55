package app

import (
	"net/http"
	"strings"

	"meridian/api/internal/rbac"
)

func (s *HTTPServer) routeAssets(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListAssets(r.Context(),
				strings.TrimSpace(r.URL.Query().Get("category")),
				strings.TrimSpace(r.URL.Query().Get("status")))
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"assets": items})
			return
		case http.MethodPost:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body AssetInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			asset, err := s.service.CreateAsset(r.Context(), body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusCreated, asset)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(rest) == 1 {
		assetID := rest[0]
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			asset, err := s.service.GetAsset(r.Context(), assetID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, asset)
			return
		case http.MethodPut:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body AssetInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			asset, err := s.service.UpdateAsset(r.Context(), assetID, body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, asset)
			return
		case http.MethodDelete:
			if !s.can(w, session, rbac.ActionAdmin) {
				return
			}
			if err := s.service.DeleteAsset(r.Context(), assetID); err != nil {
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

func (s *HTTPServer) routeLicenses(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListLicenses(r.Context())
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"licenses": items})
			return
		case http.MethodPost:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body LicenseInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			license, err := s.service.CreateLicense(r.Context(), body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusCreated, license)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	licenseID := rest[0]

	if len(rest) == 1 {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			license, err := s.service.GetLicense(r.Context(), licenseID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, license)
			return
		case http.MethodPut:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body LicenseInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			license, err := s.service.UpdateLicense(r.Context(), licenseID, body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, license)
			return
		case http.MethodDelete:
			if !s.can(w, session, rbac.ActionAdmin) {
				return
			}
			if err := s.service.DeleteLicense(r.Context(), licenseID); err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(rest) == 2 && rest[1] == "assignments" {
		switch r.Method {
		case http.MethodGet:
			if !s.can(w, session, rbac.ActionRead) {
				return
			}
			items, err := s.service.ListLicenseAssignments(r.Context(), licenseID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"assignments": items})
			return
		case http.MethodPost:
			if !s.can(w, session, rbac.ActionWrite) {
				return
			}
			var body struct {
				UserID string `json:"userId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			license, err := s.service.AssignLicenseSeat(r.Context(), licenseID, body.UserID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeData(w, http.StatusCreated, license)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(rest) == 3 && rest[1] == "assignments" && r.Method == http.MethodDelete {
		if !s.can(w, session, rbac.ActionWrite) {
			return
		}
		license, err := s.service.ReleaseLicenseSeat(r.Context(), licenseID, rest[2])
		if err != nil {
			s.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, license)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}
