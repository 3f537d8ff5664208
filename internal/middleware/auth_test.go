package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/productivitygo/internal/model"
)

const (
	testSecret   = "test-secret-at-least-32-bytes-long!!"
	testAudience = "authenticated"
	testUserID   = "6f1c2a0e-4b7d-4f7e-9a52-3c0f1e2d4b11"
)

// signToken はテスト用にHS256署名したJWTを生成する。
func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func validClaims() jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   testUserID,
		Audience:  jwt.ClaimStrings{testAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
}

// mockTokenVerifier はTokenVerifierのテスト用モック。
type mockTokenVerifier struct {
	verifyFn func(token string) (string, error)
}

func (m *mockTokenVerifier) Verify(token string) (string, error) {
	return m.verifyFn(token)
}

func TestJWTVerifier_Verify(t *testing.T) {
	verifier := NewJWTVerifier(testSecret, testAudience)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.ClaimStrings{"anon"}

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	nonUUIDSubject := validClaims()
	nonUUIDSubject.Subject = "not-a-uuid"

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid token", signToken(t, testSecret, validClaims()), false},
		{"wrong secret", signToken(t, "another-secret-also-32-bytes-long!!", validClaims()), true},
		{"expired", signToken(t, testSecret, expired), true},
		{"wrong audience", signToken(t, testSecret, wrongAudience), true},
		{"missing exp", signToken(t, testSecret, noExpiry), true},
		{"subject is not a UUID", signToken(t, testSecret, nonUUIDSubject), true},
		{"malformed", "not.a.jwt", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID, err := verifier.Verify(tt.token)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got userID %q", userID)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if userID != testUserID {
				t.Errorf("userID = %q, want %q", userID, testUserID)
			}
		})
	}
}

func TestJWTVerifier_RejectsOtherSigningMethods(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, validClaims()).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := NewJWTVerifier(testSecret, testAudience).Verify(token); err == nil {
		t.Error("expected HS512 token to be rejected")
	}
}

func TestJWTVerifier_EmptyAudienceSkipsCheck(t *testing.T) {
	claims := validClaims()
	claims.Audience = nil

	userID, err := NewJWTVerifier(testSecret, "").Verify(signToken(t, testSecret, claims))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if userID != testUserID {
		t.Errorf("userID = %q, want %q", userID, testUserID)
	}
}

func TestAuthMiddleware_InjectsUserID(t *testing.T) {
	mw := NewAuthMiddleware(NewJWTVerifier(testSecret, testAudience))

	var gotUserID string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/users/profile", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims()))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotUserID != testUserID {
		t.Errorf("user ID = %q, want %q", gotUserID, testUserID)
	}
}

func TestAuthMiddleware_RejectsUnauthenticated(t *testing.T) {
	verifier := &mockTokenVerifier{
		verifyFn: func(token string) (string, error) {
			if token == "good" {
				return testUserID, nil
			}
			return "", errors.New("invalid token")
		},
	}

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"empty token", "Bearer "},
		{"invalid token", "Bearer bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := NewAuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/users/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if called {
				t.Error("next handler should not be called")
			}

			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Code != model.ErrCodeUnauthorized {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
			}
		})
	}
}

func TestAuthMiddleware_SchemeIsCaseInsensitive(t *testing.T) {
	verifier := &mockTokenVerifier{
		verifyFn: func(token string) (string, error) { return testUserID, nil },
	}
	handler := NewAuthMiddleware(verifier)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/users/profile", nil)
	req.Header.Set("Authorization", "bearer token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestUserIDFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := UserIDFromContext(req.Context()); err == nil {
		t.Error("expected error for context without user ID")
	}
}
