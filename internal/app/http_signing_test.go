package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// The signing endpoints carry the credential in the URL; no Authorization
// header is required.

func TestSigningPageLoadsWithoutSession(t *testing.T) {
	server := NewHTTPServer(newTestService(signingStore("tok-public", "SENT")), "*")

	req := httptest.NewRequest(http.MethodGet, "/api/sign/tok-public", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	data := dataField(t, rr)
	contract, _ := data["contract"].(map[string]any)
	if contract["number"] != "CTR-2026-0001" {
		t.Fatalf("unexpected contract payload %v", data)
	}
	signer, _ := data["signer"].(map[string]any)
	if signer["email"] != "a@example.com" {
		t.Fatalf("unexpected signer payload %v", data)
	}
}

func TestSigningPageUnknownTokenReturnsNotFound(t *testing.T) {
	server := NewHTTPServer(newTestService(signingStore("tok-real", "SENT")), "*")

	req := httptest.NewRequest(http.MethodGet, "/api/sign/tok-wrong", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestSigningSignEndpointWithoutSession(t *testing.T) {
	fs := signingStore("tok-sign", "SENT")
	fs.markSignerSignedFn = func(context.Context, string) (bool, error) {
		return true, nil
	}
	fs.countPendingSignersFn = func(context.Context, string) (int, error) {
		return 0, nil
	}
	fs.markContractCompletedFn = func(context.Context, string) error {
		return nil
	}
	server := NewHTTPServer(newTestService(fs), "*")

	req := httptest.NewRequest(http.MethodPost, "/api/sign/tok-sign/sign", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if data := dataField(t, rr); data["completed"] != true {
		t.Fatalf("expected completed=true, got %v", data)
	}
}

func TestSigningDeclineEndpointPersistsReason(t *testing.T) {
	fs := signingStore("tok-no", "SENT")
	var gotReason string
	fs.markSignerDeclinedFn = func(_ context.Context, _, reason string) (bool, error) {
		gotReason = reason
		return true, nil
	}
	fs.markContractDeclinedFn = func(context.Context, string) error {
		return nil
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doJSON(server, http.MethodPost, "/api/sign/tok-no/decline", `{"reason":"terms changed"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if gotReason != "terms changed" {
		t.Fatalf("expected the reason persisted, got %q", gotReason)
	}
}

func TestSigningUnknownActionReturnsNotFound(t *testing.T) {
	server := NewHTTPServer(newTestService(signingStore("tok-x", "SENT")), "*")

	rr := doJSON(server, http.MethodPost, "/api/sign/tok-x/forward", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload["code"] != "NOT_FOUND" {
		t.Fatalf("expected code NOT_FOUND, got %v", payload["code"])
	}
}
