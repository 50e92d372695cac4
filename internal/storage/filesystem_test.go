package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAndServe(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	key, err := store.Write(context.Background(), "/generated/ip_generation/abc.png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if key != "generated/ip_generation/abc.png" {
		t.Fatalf("Write() key = %q", key)
	}
	data, err := os.ReadFile(filepath.Join(store.BasePath(), "generated", "ip_generation", "abc.png"))
	if err != nil || string(data) != "png-bytes" {
		t.Fatalf("stored file = %q, err %v", data, err)
	}
	matches, _ := filepath.Glob(filepath.Join(store.BasePath(), "generated", "ip_generation", ".upload-*"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}

	rr := httptest.NewRecorder()
	store.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/generated/ip_generation/abc.png", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "png-bytes" {
		t.Fatalf("serve: status %d body %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	store.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/generated/", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("directory listing: status %d, want 404", rr.Code)
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "a/b.png", want: "a/b.png"},
		{key: "./a//b.png", want: "a/b.png"},
		{key: `a\b.png`, want: "a/b.png"},
		{key: "", wantErr: true},
		{key: "../etc/passwd", wantErr: true},
		{key: "a/../../x", wantErr: true},
	}
	for _, tc := range tests {
		got, err := sanitizeKey(tc.key)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("sanitizeKey(%q) expected error, got %q", tc.key, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("sanitizeKey(%q) = %q, %v; want %q", tc.key, got, err, tc.want)
		}
	}
}
