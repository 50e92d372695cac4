package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSignAndVerifyJWT(t *testing.T) {
	token, err := SignJWT("test-secret", "user-123", time.Hour)
	if err != nil {
		t.Fatalf("SignJWT() unexpected error: %v", err)
	}
	claims, err := VerifyJWT("test-secret", token)
	if err != nil {
		t.Fatalf("VerifyJWT() unexpected error: %v", err)
	}
	if claims.Subject != "user-123" {
		t.Fatalf("VerifyJWT() subject = %q, want user-123", claims.Subject)
	}
}

func TestVerifyJWTInvalidSignature(t *testing.T) {
	token, err := SignJWT("secret-a", "user-123", time.Hour)
	if err != nil {
		t.Fatalf("SignJWT() error: %v", err)
	}
	if _, err := VerifyJWT("secret-b", token); err == nil {
		t.Fatalf("VerifyJWT() expected invalid signature error")
	}
}

func TestVerifyJWTExpired(t *testing.T) {
	token, err := SignJWT("secret", "user-123", -time.Minute)
	if err != nil {
		t.Fatalf("SignJWT() error: %v", err)
	}
	if _, err := VerifyJWT("secret", token); err == nil {
		t.Fatalf("VerifyJWT() expected expiration error")
	}
}

func TestSignJWTRequiresSubject(t *testing.T) {
	if _, err := SignJWT("secret", " ", time.Hour); err == nil {
		t.Fatal("SignJWT() expected error for blank subject")
	}
}

func TestAuthJWTMiddleware(t *testing.T) {
	token, err := SignJWT("secret", "user-9", time.Hour)
	if err != nil {
		t.Fatalf("SignJWT() error: %v", err)
	}
	var seen string
	handler := AuthJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not.a.token", want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + token, want: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/v1/tasks/1", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("status = %d, want %d", rr.Code, tc.want)
			}
			if tc.want == http.StatusOK && seen != "user-9" {
				t.Fatalf("user id = %q, want user-9", seen)
			}
			if tc.want == http.StatusUnauthorized && !strings.Contains(rr.Body.String(), `"unauthorized"`) {
				t.Fatalf("unexpected body %s", rr.Body.String())
			}
		})
	}
}

func TestRequestIDHonorsValidHeader(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if seen != "abc-123" || rr.Header().Get(RequestIDHeader) != "abc-123" {
		t.Fatalf("expected caller id to be kept, got %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "has space")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if seen == "has space" || len(seen) != 36 {
		t.Fatalf("expected generated id, got %q", seen)
	}
}
