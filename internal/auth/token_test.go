package auth

import (
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("unit-test-secret")

func validClaims() Claims {
	return Claims{
		Sub:  "usr-1",
		Name: "Avery Quinn",
		Role: "agent",
		JTI:  "jti-1",
		Exp:  time.Now().Add(time.Hour).Unix(),
	}
}

func TestIssueAndParseToken(t *testing.T) {
	token, err := IssueToken(testSecret, validClaims())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	claims, err := ParseToken(testSecret, token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Sub != "usr-1" || claims.Name != "Avery Quinn" || claims.Role != "agent" || claims.JTI != "jti-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := IssueToken(testSecret, validClaims())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := ParseToken([]byte("other-secret"), token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseTokenRejectsTamperedPayload(t *testing.T) {
	token, err := IssueToken(testSecret, validClaims())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	parts := strings.SplitN(token, ".", 2)
	tampered := "eyJzdWIiOiJ1c3ItZXZpbCJ9" + "." + parts[1]
	if _, err := ParseToken(testSecret, tampered); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseTokenRejectsMalformedInput(t *testing.T) {
	for _, token := range []string{"", "one-part", "a.b.c", "!!!.###"} {
		if _, err := ParseToken(testSecret, token); err != ErrInvalidToken {
			t.Errorf("ParseToken(%q): expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	claims := validClaims()
	claims.Exp = time.Now().Add(-time.Minute).Unix()
	token, err := IssueToken(testSecret, claims)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := ParseToken(testSecret, token); err != ErrExpiredToken {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestParseTokenRequiresCoreClaims(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Claims)
	}{
		{"missing sub", func(c *Claims) { c.Sub = "" }},
		{"missing name", func(c *Claims) { c.Name = "" }},
		{"missing jti", func(c *Claims) { c.JTI = "" }},
		{"missing exp", func(c *Claims) { c.Exp = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			tt.mutate(&claims)
			token, err := IssueToken(testSecret, claims)
			if err != nil {
				t.Fatalf("IssueToken: %v", err)
			}
			if _, err := ParseToken(testSecret, token); err != ErrInvalidToken {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestHashToken(t *testing.T) {
	hash := HashToken("tok-abc")
	if len(hash) != 64 {
		t.Fatalf("expected a 64 character hex digest, got %d", len(hash))
	}
	if hash != HashToken("tok-abc") {
		t.Fatal("hashing must be deterministic")
	}
	if hash == HashToken("tok-abd") {
		t.Fatal("different tokens must not collide")
	}
}
