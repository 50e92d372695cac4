package task

import (
	"context"
	"errors"
	"fmt"

	"ipstudio/internal/domain"
	"ipstudio/internal/providers"
)

// SubmitModel submits a pending 3D model task once both multi-view siblings
// have completed. If a view failed or was never created the model task is
// failed so its batch still converges. Otherwise it stays pending and is
// re-checked whenever a view settles.
func (o *Orchestrator) SubmitModel(ctx context.Context, id string) error {
	t, err := o.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if t.TaskType != domain.TaskType3DModel {
		return fmt.Errorf("%w: %s is not a 3d model task", domain.ErrInvalidTaskType, t.TaskType)
	}
	if t.Status != domain.TaskStatusPending {
		return &domain.TransitionError{TaskID: id, From: t.Status, To: domain.TaskStatusProcessing}
	}
	siblings, err := o.siblings(ctx, *t)
	if err != nil {
		return err
	}
	left := latestOfType(siblings, domain.TaskTypeMultiViewLeft)
	back := latestOfType(siblings, domain.TaskTypeMultiViewBack)

	for _, dep := range []struct {
		typ  domain.TaskType
		task *domain.GenerationTask
	}{{domain.TaskTypeMultiViewLeft, left}, {domain.TaskTypeMultiViewBack, back}} {
		if dep.task == nil {
			return o.failDependency(ctx, id, fmt.Sprintf("dependency missing: %s", dep.typ))
		}
		if dep.task.Status == domain.TaskStatusFailed {
			return o.failDependency(ctx, id, fmt.Sprintf("dependency failed: %s", dep.typ))
		}
	}
	if left.Status != domain.TaskStatusCompleted || back.Status != domain.TaskStatusCompleted {
		o.logger.Debug().
			Str("task_id", id).
			Str("left", string(left.Status)).
			Str("back", string(back.Status)).
			Msg("3d model waiting on views")
		return nil
	}

	claimed, ok, err := o.claim(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		// Another completion already submitted it.
		return nil
	}
	views := make([]string, 0, 3)
	if src := domain.Deref(claimed.OriginalImageURL); src != "" {
		views = append(views, src)
	}
	views = append(views, domain.Deref(left.ResultImageURL), domain.Deref(back.ResultImageURL))
	job := providers.ModelJob{TaskID: claimed.ID, Views: views, Prompt: claimed.Prompt}
	o.dispatch(ctx, *claimed, func(ctx context.Context) (Result, error) {
		res, err := o.models.SubmitModelJob(ctx, job)
		if err != nil {
			return Result{}, err
		}
		out := Result{ImageURL: res.PreviewImageURL}
		if res.ModelURL != "" {
			out.Data = map[string]any{domain.ResultModelURLKey: res.ModelURL}
		}
		return out, nil
	})
	return nil
}

func (o *Orchestrator) failDependency(ctx context.Context, id, msg string) error {
	_, ok, err := o.claim(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	o.logger.Warn().Str("task_id", id).Str("reason", msg).Msg("3d model dependency unavailable")
	_, err = o.Fail(ctx, id, msg)
	return err
}

// advanceDependents re-checks every pending 3D model task that shares a
// batch (or character, for unbatched tasks) with a settled view.
func (o *Orchestrator) advanceDependents(ctx context.Context, view domain.GenerationTask) {
	siblings, err := o.siblings(ctx, view)
	if err != nil {
		o.logger.Error().Err(err).Str("task_id", view.ID).Msg("list view siblings")
		return
	}
	for _, s := range siblings {
		if s.TaskType != domain.TaskType3DModel || s.Status != domain.TaskStatusPending {
			continue
		}
		if err := o.SubmitModel(ctx, s.ID); err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
			o.logger.Error().Err(err).Str("task_id", s.ID).Msg("advance 3d model")
		}
	}
}

// siblings lists the tasks sharing t's batch (or character, for unbatched
// tasks) that belong to the same user as t.
func (o *Orchestrator) siblings(ctx context.Context, t domain.GenerationTask) ([]domain.GenerationTask, error) {
	var (
		list []domain.GenerationTask
		err  error
	)
	switch {
	case t.BatchID != nil:
		list, err = o.store.ListByField(ctx, domain.TaskFieldBatchID, *t.BatchID)
	case t.ParentCharacterID != nil:
		list, err = o.store.ListByField(ctx, domain.TaskFieldParentCharacterID, *t.ParentCharacterID)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	owner := domain.Deref(t.UserID)
	out := make([]domain.GenerationTask, 0, len(list))
	for _, s := range list {
		if domain.Deref(s.UserID) == owner {
			out = append(out, s)
		}
	}
	return out, nil
}

// latestOfType picks the most recently created task of typ. Lists are in
// creation order.
func latestOfType(tasks []domain.GenerationTask, typ domain.TaskType) *domain.GenerationTask {
	for i := len(tasks) - 1; i >= 0; i-- {
		if tasks[i].TaskType == typ {
			t := tasks[i]
			return &t
		}
	}
	return nil
}
