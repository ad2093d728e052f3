// ABOUTME: Tests for authentication middleware and token handling.
// ABOUTME: Verifies JWT round trips, dev tokens, and user extraction from requests.

package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testSecret = "test-secret-key-at-least-32-chars!"

func TestMiddleware_ExtractsUser(t *testing.T) {
	a := NewAuthenticator(testSecret, time.Hour, true)
	token, err := a.IssueToken("harper", "Harper")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	tests := []struct {
		name       string
		authHeader string
		cookie     string
		query      string
		wantUser   string
		wantStatus int
	}{
		{"user prefix", "Bearer user:harper", "", "", "harper", http.StatusOK},
		{"no token", "", "", "", "default", http.StatusOK},
		{"empty bearer", "Bearer ", "", "", "default", http.StatusOK},
		{"jwt header", "Bearer " + token, "", "", "harper", http.StatusOK},
		{"jwt cookie", "", token, "", "harper", http.StatusOK},
		{"query token", "", "", "user:sam", "sam", http.StatusOK},
		{"garbage token", "Bearer some-random-token", "", "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = UserFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			target := "/test"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest("GET", target, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if gotUser != tt.wantUser {
				t.Errorf("UserFromContext() = %q, want %q", gotUser, tt.wantUser)
			}
		})
	}
}

func TestMiddleware_DevTokensDisabled(t *testing.T) {
	a := NewAuthenticator(testSecret, time.Hour, false)
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, header := range []string{"", "Bearer user:harper"} {
		req := httptest.NewRequest("GET", "/test", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rr.Code)
		}
	}
}

func TestParseToken(t *testing.T) {
	a := NewAuthenticator(testSecret, time.Minute, false)
	issued := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return issued }

	token, err := a.IssueToken("harper", "Harper")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	claims, err := a.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "harper" || claims.Name != "Harper" || claims.ID == "" {
		t.Errorf("claims = %+v", claims)
	}

	other := NewAuthenticator("another-secret-key-at-least-32-chars", time.Minute, false)
	other.now = a.now
	if _, err := other.ParseToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken() with wrong secret error = %v, want ErrTokenInvalid", err)
	}

	a.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := a.ParseToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken() after expiry error = %v, want ErrTokenInvalid", err)
	}
}

func TestIssueToken_RequiresSecret(t *testing.T) {
	a := NewAuthenticator("", time.Hour, true)
	if _, err := a.IssueToken("harper", ""); err == nil {
		t.Error("IssueToken() without secret should fail")
	}
	if _, err := a.Resolve("eyJhbGciOiJIUzI1NiJ9.e30.x"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Resolve() without secret error = %v, want ErrTokenInvalid", err)
	}
}

func TestWithUserSlot_ReportsResolvedUser(t *testing.T) {
	a := NewAuthenticator(testSecret, time.Hour, true)
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer user:sam")
	ctx, resolved := WithUserSlot(req.Context())
	if got := resolved(); got != DefaultUser {
		t.Errorf("before auth: resolved() = %q, want %q", got, DefaultUser)
	}

	handler.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))
	if got := resolved(); got != "sam" {
		t.Errorf("after auth: resolved() = %q, want %q", got, "sam")
	}
}
