package authpw

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"meridian/api/internal/store"
)

type mockUserStore struct {
	users  map[string]store.User
	resets map[string]string
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: map[string]store.User{}, resets: map[string]string{}}
}

func (m *mockUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return store.User{}, errors.New("not found")
}

func (m *mockUserStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	user, ok := m.users[id]
	if !ok {
		return store.User{}, errors.New("not found")
	}
	return user, nil
}

func (m *mockUserStore) CreateUser(_ context.Context, user store.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserStore) UpdateUserVerificationToken(_ context.Context, userID, token string, _ time.Time) error {
	user, ok := m.users[userID]
	if !ok {
		return errors.New("not found")
	}
	user.VerificationToken = token
	m.users[userID] = user
	return nil
}

func (m *mockUserStore) VerifyUserEmail(_ context.Context, token string) error {
	for id, user := range m.users {
		if token != "" && user.VerificationToken == token {
			user.IsEmailVerified = true
			user.VerificationToken = ""
			m.users[id] = user
			return nil
		}
	}
	return errors.New("not found")
}

func (m *mockUserStore) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	user, ok := m.users[userID]
	if !ok {
		return errors.New("not found")
	}
	user.PasswordHash = passwordHash
	m.users[userID] = user
	return nil
}

func (m *mockUserStore) CreatePasswordReset(_ context.Context, userID, token string, _ time.Time) error {
	m.resets[token] = userID
	return nil
}

func (m *mockUserStore) GetPasswordReset(_ context.Context, token string) (string, error) {
	userID, ok := m.resets[token]
	if !ok {
		return "", errors.New("not found")
	}
	return userID, nil
}

func (m *mockUserStore) MarkPasswordResetUsed(_ context.Context, token string) error {
	delete(m.resets, token)
	return nil
}

func signUp(t *testing.T, svc *Service) *SignUpResponse {
	t.Helper()
	resp, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:       "dana@example.com",
		Password:    "correct horse",
		DisplayName: "Dana Soto",
	})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	return resp
}

func TestSignUpCreatesUnverifiedAgent(t *testing.T) {
	mock := newMockUserStore()
	svc := NewService(mock)

	resp := signUp(t, svc)
	if !resp.RequiresEmailVerify {
		t.Fatal("expected email verification required")
	}
	if resp.VerificationToken == "" {
		t.Fatal("expected a verification token")
	}

	user := mock.users[resp.UserID]
	if user.Role != "agent" {
		t.Fatalf("expected the agent role, got %q", user.Role)
	}
	if user.IsEmailVerified {
		t.Fatal("new accounts must start unverified")
	}
	if user.PasswordHash == "correct horse" || user.PasswordHash == "" {
		t.Fatal("expected the password stored as a hash")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct horse")); err != nil {
		t.Fatalf("stored hash does not match the password: %v", err)
	}
}

func TestSignUpValidation(t *testing.T) {
	svc := NewService(newMockUserStore())
	tests := []struct {
		name string
		req  SignUpRequest
	}{
		{"missing email", SignUpRequest{Password: "longenough", DisplayName: "Dana"}},
		{"missing password", SignUpRequest{Email: "a@example.com", DisplayName: "Dana"}},
		{"missing name", SignUpRequest{Email: "a@example.com", Password: "longenough"}},
		{"short password", SignUpRequest{Email: "a@example.com", Password: "short", DisplayName: "Dana"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.SignUp(context.Background(), tt.req); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	svc := NewService(newMockUserStore())
	signUp(t, svc)

	_, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:       "dana@example.com",
		Password:    "another pass",
		DisplayName: "Dana Again",
	})
	if err == nil || err.Error() != "email already registered" {
		t.Fatalf("expected the duplicate rejected, got %v", err)
	}
}

func TestSignInBeforeVerification(t *testing.T) {
	svc := NewService(newMockUserStore())
	signUp(t, svc)

	resp, err := svc.SignIn(context.Background(), SignInRequest{Email: "dana@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if !resp.RequiresVerify {
		t.Fatal("expected verification required before sign-in")
	}
}

func TestSignInAfterVerification(t *testing.T) {
	mock := newMockUserStore()
	svc := NewService(mock)
	created := signUp(t, svc)

	if err := svc.VerifyEmail(context.Background(), created.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}

	resp, err := svc.SignIn(context.Background(), SignInRequest{Email: "dana@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if resp.RequiresVerify {
		t.Fatal("expected no further verification needed")
	}
	if resp.User.ID != created.UserID {
		t.Fatalf("expected user %s, got %s", created.UserID, resp.User.ID)
	}
}

func TestSignInRejectsWrongPassword(t *testing.T) {
	svc := NewService(newMockUserStore())
	created := signUp(t, svc)
	if err := svc.VerifyEmail(context.Background(), created.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}

	if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "dana@example.com", Password: "wrong"}); err == nil {
		t.Fatal("expected the wrong password rejected")
	}
	if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "nobody@example.com", Password: "correct horse"}); err == nil {
		t.Fatal("expected the unknown email rejected")
	}
}

func TestVerifyEmailRejectsBadTokens(t *testing.T) {
	svc := NewService(newMockUserStore())
	if err := svc.VerifyEmail(context.Background(), ""); err == nil {
		t.Fatal("expected an empty token rejected")
	}
	if err := svc.VerifyEmail(context.Background(), "bogus"); err == nil {
		t.Fatal("expected an unknown token rejected")
	}
}

func TestRequestPasswordResetHidesUnknownEmails(t *testing.T) {
	svc := NewService(newMockUserStore())
	token, err := svc.RequestPasswordReset(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if token != "" {
		t.Fatal("unknown emails must not yield a token")
	}
}

func TestResetPasswordFlow(t *testing.T) {
	mock := newMockUserStore()
	svc := NewService(mock)
	created := signUp(t, svc)
	if err := svc.VerifyEmail(context.Background(), created.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}

	token, err := svc.RequestPasswordReset(context.Background(), "dana@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if token == "" {
		t.Fatal("expected a reset token")
	}

	if err := svc.ResetPassword(context.Background(), ResetPasswordRequest{Token: token, NewPassword: "brand new pass"}); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "dana@example.com", Password: "correct horse"}); err == nil {
		t.Fatal("expected the old password invalidated")
	}
	if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "dana@example.com", Password: "brand new pass"}); err != nil {
		t.Fatalf("sign in with the new password: %v", err)
	}

	// The token is single use.
	if err := svc.ResetPassword(context.Background(), ResetPasswordRequest{Token: token, NewPassword: "yet another"}); err == nil {
		t.Fatal("expected the used token rejected")
	}
}

func TestResetPasswordValidation(t *testing.T) {
	svc := NewService(newMockUserStore())
	if err := svc.ResetPassword(context.Background(), ResetPasswordRequest{Token: "", NewPassword: "longenough"}); err == nil {
		t.Fatal("expected a missing token rejected")
	}
	if err := svc.ResetPassword(context.Background(), ResetPasswordRequest{Token: "tok", NewPassword: "short"}); err == nil {
		t.Fatal("expected a short password rejected")
	}
}
