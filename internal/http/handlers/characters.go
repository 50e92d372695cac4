package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ipstudio/internal/batch"
	"ipstudio/internal/domain"
	"ipstudio/internal/domain/jsoncfg"
)

func (a *App) CreateCharacter(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req jsoncfg.CreateCharacterJSON
	if !a.decode(w, r, &req) {
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	c, err := a.Characters.CreateFromTask(r.Context(), userID, req.TaskID, req.Name)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, c)
}

func (a *App) ListCharacters(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	items, err := a.Characters.List(r.Context(), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if items == nil {
		items = []domain.IPCharacter{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) GetCharacter(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	view, err := a.Characters.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, view)
}

func (a *App) ListCharacterTasks(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	tasks, err := a.Characters.ListTasks(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": jsoncfg.NewTaskListJSON(tasks)})
}

// LaunchMerchandise fans out merchandise and optional 3D work for a character.
func (a *App) LaunchMerchandise(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req jsoncfg.MerchandiseJSON
	if !a.decode(w, r, &req) {
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	launched, err := a.Batches.LaunchMerchandise(r.Context(), userID, chi.URLParam(r, "id"), batch.MerchandiseRequest{
		Kinds:        req.Kinds,
		Custom:       req.Custom,
		IncludeModel: req.IncludeModel,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := jsoncfg.LaunchJSON{BatchID: launched.BatchID, Tasks: jsoncfg.NewTaskListJSON(launched.Tasks)}
	for _, f := range launched.Failures {
		out.Failures = append(out.Failures, f.Error())
	}
	a.json(w, http.StatusAccepted, out)
}
