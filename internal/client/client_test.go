package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipstudio/internal/domain"
	"ipstudio/internal/domain/jsoncfg"
	"ipstudio/internal/poller"
)

type fakeAPI struct {
	polls int
}

func (f *fakeAPI) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			writeJSON(w, http.StatusUnauthorized, jsoncfg.ErrorBodyJSON{Error: jsoncfg.ErrorJSON{Code: "unauthorized", Message: "invalid token"}})
			return
		}
		if r.PathValue("id") != "t1" {
			writeJSON(w, http.StatusNotFound, jsoncfg.ErrorBodyJSON{Error: jsoncfg.ErrorJSON{Code: "not_found", Message: "resource not found"}})
			return
		}
		f.polls++
		status := "processing"
		var result *jsoncfg.TaskResultJSON
		if f.polls >= 2 {
			status = "completed"
			result = &jsoncfg.TaskResultJSON{ImageURL: "https://x/preview.png", ModelURL: "https://x/m.glb"}
		}
		writeJSON(w, http.StatusOK, jsoncfg.TaskJSON{ID: "t1", TaskType: "3d_model", Status: status, Result: result})
	})
	mux.HandleFunc("POST /v1/tasks/{id}/retry", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, jsoncfg.ErrorBodyJSON{Error: jsoncfg.ErrorJSON{Code: "invalid_state", Message: "task t1 is completed"}})
	})
	mux.HandleFunc("POST /v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		var req jsoncfg.CreateTaskJSON
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" {
			writeJSON(w, http.StatusBadRequest, jsoncfg.ErrorBodyJSON{Error: jsoncfg.ErrorJSON{Code: "bad_request", Message: "prompt is required"}})
			return
		}
		writeJSON(w, http.StatusAccepted, jsoncfg.CreatedTaskJSON{TaskID: "t9", Status: "processing"})
	})
	mux.HandleFunc("GET /v1/batches/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, jsoncfg.BatchJSON{
			BatchID: r.PathValue("id"),
			Summary: domain.BatchSummary{Total: 2, Completed: 1, Failed: 1},
		})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, token string) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api.routes())
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL + "/", Token: token})
	require.NoError(t, err)
	return c, api
}

func immediate(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func TestClientSatisfiesPollerSources(t *testing.T) {
	c, api := newTestClient(t, "tok")
	p := poller.New(poller.Options{MaxAttempts: 5, After: immediate}, zerolog.Nop())

	task, err := p.UntilTerminal(context.Background(), c, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	assert.Equal(t, "https://x/m.glb", task.ModelURL())
	assert.Equal(t, "https://x/preview.png", domain.Deref(task.ResultImageURL))
	assert.Equal(t, 2, api.polls)

	summary, err := p.UntilBatchTerminal(context.Background(), c, "b1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
}

func TestClientMapsErrors(t *testing.T) {
	c, _ := newTestClient(t, "tok")
	ctx := context.Background()

	_, err := c.GetTask(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "not_found", apiErr.Code)

	_, err = c.RetryTask(ctx, "t1")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = c.CreateTask(ctx, jsoncfg.CreateTaskJSON{TaskType: "ip_generation"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	created, err := c.CreateTask(ctx, jsoncfg.CreateTaskJSON{TaskType: "ip_generation", Prompt: "cat"})
	require.NoError(t, err)
	assert.Equal(t, "t9", created.TaskID)

	anon, _ := newTestClient(t, "")
	_, err = anon.GetTask(ctx, "t1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}
