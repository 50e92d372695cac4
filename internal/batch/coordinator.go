// Package batch groups sibling tasks created by one user action under a
// shared batch id, reports their aggregate state and rolls completed results
// up into the parent character.
package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ipstudio/internal/domain"
	"ipstudio/internal/infra"
	"ipstudio/internal/task"
)

// DefaultConcurrency bounds parallel task creation within one launch.
const DefaultConcurrency = 4

// Tasks is the orchestrator surface the coordinator needs.
type Tasks interface {
	Create(ctx context.Context, p task.CreateParams) (*domain.GenerationTask, error)
	Submit(ctx context.Context, t *domain.GenerationTask) error
	List(ctx context.Context, field domain.TaskField, value string) ([]domain.GenerationTask, error)
}

// Coordinator fans out batches and aggregates their state.
type Coordinator struct {
	tasks       Tasks
	characters  domain.CharacterRepository
	logger      infra.Logger
	concurrency int
	newID       func() string
}

// NewCoordinator wires a coordinator. characters may be nil when no rollup
// target exists.
func NewCoordinator(tasks Tasks, characters domain.CharacterRepository, logger infra.Logger) *Coordinator {
	return &Coordinator{
		tasks:       tasks,
		characters:  characters,
		logger:      logger.With().Str("component", "batch").Logger(),
		concurrency: DefaultConcurrency,
		newID:       uuid.NewString,
	}
}

// Launched describes the outcome of a fan-out. Failures holds creation
// errors for items that produced no task.
type Launched struct {
	BatchID  string
	Tasks    []domain.GenerationTask
	Failures []error
}

// Launch creates every item under a fresh batch id and then submits the
// created tasks. Creation errors for individual items are collected; if no
// item could be created the launch fails with ErrEmptyBatch.
func (c *Coordinator) Launch(ctx context.Context, items []task.CreateParams) (*Launched, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items", domain.ErrEmptyBatch)
	}
	batchID := c.newID()

	created := make([]*domain.GenerationTask, len(items))
	failures := make([]error, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, item := range items {
		item.BatchID = batchID
		g.Go(func() error {
			t, err := c.tasks.Create(gctx, item)
			if err != nil {
				failures[i] = err
				return nil
			}
			created[i] = t
			return nil
		})
	}
	_ = g.Wait()

	out := &Launched{BatchID: batchID}
	for i, t := range created {
		if t != nil {
			out.Tasks = append(out.Tasks, *t)
			continue
		}
		if failures[i] != nil {
			out.Failures = append(out.Failures, failures[i])
		}
	}
	if len(out.Tasks) == 0 {
		c.logger.Error().Str("batch_id", batchID).Int("items", len(items)).Msg("batch launch created no tasks")
		return nil, fmt.Errorf("%w: %w", domain.ErrEmptyBatch, errors.Join(out.Failures...))
	}

	for i := range out.Tasks {
		if err := c.tasks.Submit(ctx, &out.Tasks[i]); err != nil {
			c.logger.Error().Err(err).Str("task_id", out.Tasks[i].ID).Msg("submit batch task")
			out.Failures = append(out.Failures, fmt.Errorf("submit %s: %w", out.Tasks[i].ID, err))
		}
	}
	c.logger.Info().
		Str("batch_id", batchID).
		Int("tasks", len(out.Tasks)).
		Int("failures", len(out.Failures)).
		Msg("batch launched")
	return out, nil
}

// ListByBatch returns every sibling task in creation order.
func (c *Coordinator) ListByBatch(ctx context.Context, batchID string) ([]domain.GenerationTask, error) {
	return c.tasks.List(ctx, domain.TaskFieldBatchID, batchID)
}

// Summarize counts the batch's tasks by status from the current rows. A
// batch with no tasks yields ErrEmptyBatch.
func (c *Coordinator) Summarize(ctx context.Context, batchID string) (domain.BatchSummary, error) {
	tasks, err := c.ListByBatch(ctx, batchID)
	if err != nil {
		return domain.BatchSummary{}, err
	}
	if len(tasks) == 0 {
		return domain.BatchSummary{}, fmt.Errorf("%w: %s", domain.ErrEmptyBatch, batchID)
	}
	return domain.Summarize(tasks), nil
}

// IsBatchTerminal reports whether every sibling is completed or failed.
func (c *Coordinator) IsBatchTerminal(ctx context.Context, batchID string) (bool, error) {
	s, err := c.Summarize(ctx, batchID)
	if err != nil {
		return false, err
	}
	return s.Terminal(), nil
}

// GetBatchSummary lets the coordinator act as a poller.BatchSource.
func (c *Coordinator) GetBatchSummary(ctx context.Context, batchID string) (domain.BatchSummary, error) {
	return c.Summarize(ctx, batchID)
}
