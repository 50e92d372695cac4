package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ipstudio/internal/domain"
	"ipstudio/internal/domain/jsoncfg"
	"ipstudio/internal/task"
)

// CreateTask inserts a task for the caller and hands it to its producer.
// The response only acknowledges the row; the outcome is read by polling.
func (a *App) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req jsoncfg.CreateTaskJSON
	if !a.decode(w, r, &req) {
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if !a.allowedImageHost(req.OriginalImageURL) {
		a.error(w, http.StatusBadRequest, "bad_request", "original_image_url host is not allowed")
		return
	}
	taskType, _ := domain.ParseTaskType(req.TaskType)
	if req.ParentCharacterID != "" {
		if _, err := a.Characters.Get(r.Context(), userID, req.ParentCharacterID); err != nil {
			a.fail(w, r, err)
			return
		}
	}
	if req.BatchID != "" {
		if err := a.batchOpenTo(r, userID, req.BatchID); err != nil {
			a.fail(w, r, err)
			return
		}
	}

	created, err := a.Tasks.Create(r.Context(), task.CreateParams{
		TaskType:          taskType,
		Prompt:            req.Prompt,
		OriginalImageURL:  req.OriginalImageURL,
		UserID:            userID,
		BatchID:           req.BatchID,
		ParentCharacterID: req.ParentCharacterID,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.Tasks.Submit(r.Context(), created); err != nil {
		// The row exists and is observable; a submit error is recorded on it.
		a.Logger.Warn().Err(err).Str("task_id", created.ID).Msg("submit after create failed")
	}
	status := created.Status
	if current, err := a.Tasks.Get(r.Context(), created.ID); err == nil {
		status = current.Status
	}
	a.json(w, http.StatusAccepted, jsoncfg.CreatedTaskJSON{TaskID: created.ID, Status: string(status)})
}

func (a *App) GetTask(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	t, err := a.Tasks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !t.OwnedBy(userID) {
		a.fail(w, r, domain.ErrNotFound)
		return
	}
	a.json(w, http.StatusOK, jsoncfg.NewTaskJSON(*t))
}

func (a *App) RetryTask(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	t, err := a.Retry.RetryFailedTask(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, jsoncfg.RetryJSON{OK: true, Task: jsoncfg.NewTaskJSON(*t)})
}

// GetBatch reports every sibling of a batch with its summary. Batches that
// are empty or not entirely owned by the caller are reported as missing.
func (a *App) GetBatch(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	batchID := chi.URLParam(r, "id")
	tasks, err := a.Batches.ListByBatch(r.Context(), batchID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if len(tasks) == 0 {
		a.fail(w, r, domain.ErrNotFound)
		return
	}
	for _, t := range tasks {
		if !t.OwnedBy(userID) {
			a.fail(w, r, domain.ErrNotFound)
			return
		}
	}
	a.json(w, http.StatusOK, jsoncfg.BatchJSON{
		BatchID: batchID,
		Tasks:   jsoncfg.NewTaskListJSON(tasks),
		Summary: domain.Summarize(tasks),
	})
}

// batchOpenTo reports ErrNotFound when batchID already holds tasks of another
// user. An unused batch id may be claimed by anyone.
func (a *App) batchOpenTo(r *http.Request, userID, batchID string) error {
	tasks, err := a.Batches.ListByBatch(r.Context(), batchID)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if !t.OwnedBy(userID) {
			return domain.ErrNotFound
		}
	}
	return nil
}
