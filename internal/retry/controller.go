// Package retry lets a user resubmit one of their failed tasks without
// creating a new row.
package retry

import (
	"context"
	"errors"
	"fmt"

	"ipstudio/internal/domain"
	"ipstudio/internal/infra"
)

// Tasks is the orchestrator surface used for retries.
type Tasks interface {
	Get(ctx context.Context, id string) (*domain.GenerationTask, error)
	Reset(ctx context.Context, id string) (*domain.GenerationTask, error)
	SubmitImage(ctx context.Context, t *domain.GenerationTask) error
	SubmitModel(ctx context.Context, id string) error
}

// Controller checks ownership and state before a retry and routes the reset
// task to the producer path for its type.
type Controller struct {
	tasks  Tasks
	logger infra.Logger
}

// NewController builds a Controller.
func NewController(tasks Tasks, logger infra.Logger) *Controller {
	return &Controller{tasks: tasks, logger: logger.With().Str("component", "retry").Logger()}
}

// RetryFailedTask resets a failed task owned by userID to pending and
// resubmits it. It returns once the task is handed off; callers observe the
// outcome by polling.
//
// Unknown tasks and tasks owned by someone else yield ErrNotFound. Tasks not
// in failed yield ErrInvalidState, including when a concurrent retry won.
func (c *Controller) RetryFailedTask(ctx context.Context, taskID, userID string) (*domain.GenerationTask, error) {
	t, err := c.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !t.OwnedBy(userID) {
		return nil, domain.ErrNotFound
	}
	if t.Status != domain.TaskStatusFailed {
		return nil, fmt.Errorf("%w: task %s is %s", domain.ErrInvalidState, taskID, t.Status)
	}

	reset, err := c.tasks.Reset(ctx, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidState, err)
		}
		return nil, err
	}

	route := "image"
	if reset.TaskType == domain.TaskType3DModel {
		route = "model"
	}
	c.logger.Info().
		Str("task_id", taskID).
		Str("task_type", string(reset.TaskType)).
		Str("route", route).
		Msg("retrying failed task")

	if route == "model" {
		err = c.tasks.SubmitModel(ctx, reset.ID)
	} else {
		err = c.tasks.SubmitImage(ctx, reset)
	}
	if err != nil {
		c.logger.Error().Err(err).Str("task_id", taskID).Msg("resubmit failed")
		return nil, err
	}
	return reset, nil
}
