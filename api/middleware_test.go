package api_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/thepathwise/intake/api"
)

func TestLoggingMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("ok"))
	})

	handler := api.LoggingMiddleware(next)
	req := httptest.NewRequest(http.MethodGet, "/log", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)
	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusTeapot {
		t.Fatalf("expected status passed through, got %d", res.StatusCode)
	}
	b, _ := io.ReadAll(res.Body)
	if string(b) != "ok" {
		t.Fatalf("unexpected body: %q", string(b))
	}
}

func TestCORSMiddleware(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	handler := api.CORSMiddleware([]string{"https://www.thepathwise.org"})(next)

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
		wantNext   bool
	}{
		{"preflight allowed", http.MethodOptions, "https://www.thepathwise.org", http.StatusNoContent, "https://www.thepathwise.org", false},
		{"post allowed", http.MethodPost, "https://www.thepathwise.org", http.StatusOK, "https://www.thepathwise.org", true},
		{"no origin", http.MethodPost, "", http.StatusOK, "", true},
		{"foreign origin", http.MethodPost, "https://evil.example", http.StatusForbidden, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = false
			req := httptest.NewRequest(tt.method, "/api/forms/submit", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Fatalf("unexpected Allow-Origin %q", got)
			}
			if called != tt.wantNext {
				t.Fatalf("next called=%v, want %v", called, tt.wantNext)
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	pan := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := api.RecoveryMiddleware(pan)
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", w.Code)
	}
}

func TestJWTAuthMiddleware(t *testing.T) {
	secret := "testsecret"
	var subject any
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = r.Context().Value(api.CtxSubject)
		w.WriteHeader(http.StatusOK)
	})
	handler := api.JWTAuthMiddlewareWithSecret(secret)(next)

	valid, err := api.IssueAdminToken(secret, "ops@thepathwise.org", time.Hour)
	if err != nil {
		t.Fatalf("IssueAdminToken: %v", err)
	}
	expired, _ := api.IssueAdminToken(secret, "ops", -time.Minute)
	otherKey, _ := api.IssueAdminToken("different", "ops", time.Hour)
	notAdmin, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "someone",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"role": "admin"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "Bearer " + otherKey, http.StatusUnauthorized},
		{"none alg", "Bearer " + noneAlg, http.StatusUnauthorized},
		{"not admin", "Bearer " + notAdmin, http.StatusForbidden},
		{"valid", "Bearer " + valid, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject = nil
			req := httptest.NewRequest(http.MethodPost, "/v1/admin/sync", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
			if tt.want == http.StatusOK && subject != "ops@thepathwise.org" {
				t.Fatalf("expected subject in context, got %v", subject)
			}
		})
	}
}

func TestIssueAdminToken_Errors(t *testing.T) {
	if _, err := api.IssueAdminToken("", "ops", time.Hour); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	if _, err := api.IssueAdminToken("s", "", time.Hour); err == nil {
		t.Fatalf("expected error for empty subject")
	}
}
