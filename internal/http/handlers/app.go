package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"ipstudio/internal/batch"
	"ipstudio/internal/domain"
	"ipstudio/internal/domain/jsoncfg"
	"ipstudio/internal/infra"
	"ipstudio/internal/middleware"
	"ipstudio/internal/task"
)

// TaskService is the orchestrator surface used by the task endpoints.
type TaskService interface {
	Create(ctx context.Context, p task.CreateParams) (*domain.GenerationTask, error)
	Submit(ctx context.Context, t *domain.GenerationTask) error
	Get(ctx context.Context, id string) (*domain.GenerationTask, error)
}

// BatchService lists siblings and launches merchandise batches.
type BatchService interface {
	ListByBatch(ctx context.Context, batchID string) ([]domain.GenerationTask, error)
	LaunchMerchandise(ctx context.Context, userID, characterID string, req batch.MerchandiseRequest) (*batch.Launched, error)
}

// RetryService resubmits failed tasks.
type RetryService interface {
	RetryFailedTask(ctx context.Context, taskID, userID string) (*domain.GenerationTask, error)
}

// CharacterService manages IP characters.
type CharacterService interface {
	CreateFromTask(ctx context.Context, userID, taskID, name string) (*domain.IPCharacter, error)
	List(ctx context.Context, userID string) ([]domain.IPCharacter, error)
	Get(ctx context.Context, userID, id string) (*domain.CharacterView, error)
	ListTasks(ctx context.Context, userID, id string) ([]domain.GenerationTask, error)
}

type App struct {
	Tasks      TaskService
	Batches    BatchService
	Retry      RetryService
	Characters CharacterService
	// ImageHosts restricts original_image_url hosts. Empty allows any host.
	ImageHosts []string
	StoreName  string
	Logger     infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, msg string) {
	a.json(w, code, jsoncfg.ErrorBodyJSON{Error: jsoncfg.ErrorJSON{Code: errCode, Message: msg}})
}

// fail maps a domain error onto an HTTP status.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrStatusConflict):
		a.error(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidTaskType),
		errors.Is(err, domain.ErrEmptyBatch):
		a.error(w, http.StatusUnprocessableEntity, "invalid_input", err.Error())
	default:
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}

// allowedImageHost reports whether raw points at a permitted host.
func (a *App) allowedImageHost(raw string) bool {
	if raw == "" || len(a.ImageHosts) == 0 {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range a.ImageHosts {
		allowed = strings.ToLower(allowed)
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
