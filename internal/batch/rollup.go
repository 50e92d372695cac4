package batch

import (
	"context"

	"ipstudio/internal/domain"
)

// TaskSettled copies a completed task's result onto its parent character.
// Each task type writes only its own field or merchandise key, so rollups
// from siblings commute.
func (c *Coordinator) TaskSettled(ctx context.Context, t domain.GenerationTask) {
	if c.characters == nil || t.Status != domain.TaskStatusCompleted || t.ParentCharacterID == nil {
		return
	}
	charID := *t.ParentCharacterID
	url := domain.Deref(t.ResultImageURL)

	var err error
	switch {
	case t.TaskType.IsMerchandise():
		err = c.characters.MergeMerchandiseURL(ctx, charID, t.MerchandiseKey(), url)
	case t.TaskType == domain.TaskTypeMultiViewLeft:
		err = c.characters.SetViewURL(ctx, charID, domain.ViewSideLeft, url)
	case t.TaskType == domain.TaskTypeMultiViewBack:
		err = c.characters.SetViewURL(ctx, charID, domain.ViewSideBack, url)
	case t.TaskType == domain.TaskType3DModel:
		if model := t.ModelURL(); model != "" {
			err = c.characters.SetModelURL(ctx, charID, model)
		}
	default:
		return
	}
	if err != nil {
		c.logger.Error().Err(err).
			Str("task_id", t.ID).
			Str("character_id", charID).
			Msg("rollup into character failed")
		return
	}
	c.logger.Debug().Str("task_id", t.ID).Str("character_id", charID).Str("task_type", string(t.TaskType)).Msg("rolled up")
}
