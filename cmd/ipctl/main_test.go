package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ipstudio/internal/domain"
	"ipstudio/internal/domain/jsoncfg"
	"ipstudio/internal/middleware"
)

func immediate(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

type fakeServer struct {
	polls atomic.Int32
	auth  atomic.Value
}

func newFakeServer(t *testing.T) (*fakeServer, string) {
	t.Helper()
	f := &fakeServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.auth.Store(r.Header.Get("Authorization"))
		id := r.PathValue("id")
		task := jsoncfg.TaskJSON{ID: id, TaskType: "ip_generation", Status: "processing"}
		switch id {
		case "done-1":
			if f.polls.Add(1) >= 2 {
				task.Status = "completed"
				task.Result = &jsoncfg.TaskResultJSON{ImageURL: "https://img.test/done.png"}
			}
		case "bad-1":
			msg := "ip_generation: generation failed: content rejected"
			task.Status = "failed"
			task.Error = &msg
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(jsoncfg.ErrorBodyJSON{Error: jsoncfg.ErrorJSON{Code: "not_found", Message: "resource not found"}})
			return
		}
		_ = json.NewEncoder(w).Encode(task)
	})
	mux.HandleFunc("GET /v1/batches/{id}", func(w http.ResponseWriter, r *http.Request) {
		msg := "dependency failed: multi_view_back"
		_ = json.NewEncoder(w).Encode(jsoncfg.BatchJSON{
			BatchID: r.PathValue("id"),
			Tasks: []jsoncfg.TaskJSON{
				{ID: "aaaa-1", TaskType: "multi_view_left", Status: "completed", Result: &jsoncfg.TaskResultJSON{ImageURL: "https://img.test/l.png"}},
				{ID: "bbbb-2", TaskType: "3d_model", Status: "failed", Error: &msg},
			},
			Summary: domain.BatchSummary{Total: 2, Completed: 1, Failed: 1},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv.URL
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := buildRootCommand(&commandContext{after: immediate})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTaskGetRendersTable(t *testing.T) {
	_, url := newFakeServer(t)
	out, err := runCLI(t, "--api-url", url, "--token", "tok", "task", "get", "bad-1")
	if err != nil {
		t.Fatalf("task get error: %v", err)
	}
	for _, want := range []string{"bad-1", "failed", "content rejected"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTaskWaitPollsUntilTerminal(t *testing.T) {
	f, url := newFakeServer(t)
	out, err := runCLI(t, "--api-url", url, "--token", "tok", "--json", "task", "wait", "done-1")
	if err != nil {
		t.Fatalf("task wait error: %v", err)
	}
	var got jsoncfg.TaskJSON
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if got.Status != "completed" || got.Result == nil || got.Result.ImageURL != "https://img.test/done.png" {
		t.Fatalf("unexpected task %+v", got)
	}
	if f.polls.Load() != 2 {
		t.Fatalf("polls = %d, want 2", f.polls.Load())
	}
}

func TestTaskWaitReportsFailure(t *testing.T) {
	_, url := newFakeServer(t)
	_, err := runCLI(t, "--api-url", url, "--token", "tok", "task", "wait", "bad-1")
	if err == nil || !strings.Contains(err.Error(), "failed") {
		t.Fatalf("expected failure error, got %v", err)
	}
}

func TestTaskGetUnknown(t *testing.T) {
	_, url := newFakeServer(t)
	_, err := runCLI(t, "--api-url", url, "--token", "tok", "task", "get", "nope")
	if err == nil || !strings.Contains(err.Error(), "not_found") {
		t.Fatalf("expected not_found error, got %v", err)
	}
}

func TestBatchShowPrintsSummary(t *testing.T) {
	_, url := newFakeServer(t)
	out, err := runCLI(t, "--api-url", url, "--token", "tok", "batch", "show", "b1")
	if err != nil {
		t.Fatalf("batch show error: %v", err)
	}
	for _, want := range []string{"aaaa", "multi_view_left", "dependency failed: multi_view_back", "total 2", "(done)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestUserFlagMintsToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	f, url := newFakeServer(t)
	if _, err := runCLI(t, "--api-url", url, "--user", "u7", "task", "get", "bad-1"); err != nil {
		t.Fatalf("task get error: %v", err)
	}
	header, _ := f.auth.Load().(string)
	claims, err := middleware.VerifyJWT("cli-secret", strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		t.Fatalf("minted token invalid: %v", err)
	}
	if claims.Subject != "u7" {
		t.Fatalf("subject = %q, want u7", claims.Subject)
	}
}

func TestMissingCredentials(t *testing.T) {
	t.Setenv("IPSTUDIO_TOKEN", "")
	_, err := runCLI(t, "--api-url", "http://127.0.0.1:1", "task", "get", "x")
	if err == nil || !strings.Contains(err.Error(), "no credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := runCLI(t, "migrate", "up")
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected database url error, got %v", err)
	}
}

func TestRenderTableEmptyHeaders(t *testing.T) {
	if got := renderTable(nil, [][]string{{"x"}}, nil); got != "" {
		t.Fatalf("renderTable() = %q, want empty", got)
	}
}
