// Package task implements the generation task state machine. It creates task
// rows, moves them through pending, processing, completed and failed, hands
// work to the artifact producers and gates 3D model submission on the two
// multi-view renders.
package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ipstudio/internal/domain"
	"ipstudio/internal/infra"
	"ipstudio/internal/providers"
)

// DefaultJobTimeout bounds a single producer call.
const DefaultJobTimeout = 15 * time.Minute

// Hook observes tasks that reached a terminal status. Hooks run synchronously
// after the transition is stored; they must not block for long.
type Hook interface {
	TaskSettled(ctx context.Context, task domain.GenerationTask)
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, task domain.GenerationTask)

func (f HookFunc) TaskSettled(ctx context.Context, task domain.GenerationTask) { f(ctx, task) }

// Options configures an Orchestrator.
type Options struct {
	Images     providers.ImageProducer
	Models     providers.ModelProducer
	JobTimeout time.Duration
}

// CreateParams describes a new task.
type CreateParams struct {
	TaskType          domain.TaskType
	Prompt            string
	OriginalImageURL  string
	UserID            string
	BatchID           string
	ParentCharacterID string
}

// Result is what a producer hands back for a completed task.
type Result struct {
	ImageURL string
	Data     map[string]any
}

func (r Result) empty() bool {
	return strings.TrimSpace(r.ImageURL) == "" && len(r.Data) == 0
}

// Orchestrator drives task lifecycles on top of a TaskStore.
type Orchestrator struct {
	store      domain.TaskStore
	images     providers.ImageProducer
	models     providers.ModelProducer
	jobTimeout time.Duration
	logger     infra.Logger

	hooksMu sync.RWMutex
	hooks   []Hook

	inflight sync.WaitGroup
}

// New builds an Orchestrator. Producers are required.
func New(store domain.TaskStore, opts Options, logger infra.Logger) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("task: store is required")
	}
	if opts.Images == nil || opts.Models == nil {
		return nil, errors.New("task: image and model producers are required")
	}
	timeout := opts.JobTimeout
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	return &Orchestrator{
		store:      store,
		images:     opts.Images,
		models:     opts.Models,
		jobTimeout: timeout,
		logger:     logger.With().Str("component", "orchestrator").Logger(),
	}, nil
}

// RegisterHook adds h to the hooks run after every terminal transition.
func (o *Orchestrator) RegisterHook(h Hook) {
	o.hooksMu.Lock()
	defer o.hooksMu.Unlock()
	o.hooks = append(o.hooks, h)
}

// Wait blocks until every producer call started so far has settled or ctx
// is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Create inserts a pending task. Nothing is submitted.
func (o *Orchestrator) Create(ctx context.Context, p CreateParams) (*domain.GenerationTask, error) {
	if _, err := domain.ParseTaskType(string(p.TaskType)); err != nil {
		return nil, &domain.CreationError{TaskType: p.TaskType, Err: err}
	}
	prompt := strings.TrimSpace(p.Prompt)
	if prompt == "" {
		return nil, &domain.CreationError{TaskType: p.TaskType, Err: fmt.Errorf("%w: prompt is required", domain.ErrInvalidInput)}
	}
	row := &domain.GenerationTask{
		TaskType:          p.TaskType,
		Status:            domain.TaskStatusPending,
		Prompt:            prompt,
		UserID:            domain.StringPtr(p.UserID),
		OriginalImageURL:  domain.StringPtr(p.OriginalImageURL),
		BatchID:           domain.StringPtr(p.BatchID),
		ParentCharacterID: domain.StringPtr(p.ParentCharacterID),
	}
	created, err := o.store.Insert(ctx, row)
	if err != nil {
		o.logger.Error().Err(err).Str("task_type", string(p.TaskType)).Msg("create task failed")
		return nil, &domain.CreationError{TaskType: p.TaskType, Err: err}
	}
	o.logger.Info().
		Str("task_id", created.ID).
		Str("task_type", string(created.TaskType)).
		Str("batch_id", domain.Deref(created.BatchID)).
		Msg("task created")
	return created, nil
}

// Get reads one task.
func (o *Orchestrator) Get(ctx context.Context, id string) (*domain.GenerationTask, error) {
	return o.store.GetByID(ctx, id)
}

// List returns tasks matching field in creation order.
func (o *Orchestrator) List(ctx context.Context, field domain.TaskField, value string) ([]domain.GenerationTask, error) {
	return o.store.ListByField(ctx, field, value)
}

// Begin moves a pending task to processing. A task that is already
// processing is returned unchanged.
func (o *Orchestrator) Begin(ctx context.Context, id string) (*domain.GenerationTask, error) {
	t, claimed, err := o.claim(ctx, id)
	if err != nil {
		return nil, err
	}
	if !claimed && t.Status != domain.TaskStatusProcessing {
		return nil, &domain.TransitionError{TaskID: id, From: t.Status, To: domain.TaskStatusProcessing}
	}
	return t, nil
}

// Complete moves a processing task to completed and attaches its result.
func (o *Orchestrator) Complete(ctx context.Context, id string, res Result) (*domain.GenerationTask, error) {
	current, err := o.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != domain.TaskStatusProcessing {
		return nil, &domain.TransitionError{TaskID: id, From: current.Status, To: domain.TaskStatusCompleted}
	}
	if res.empty() {
		return nil, fmt.Errorf("%w: completion requires a result", domain.ErrInvalidInput)
	}
	t, err := o.transition(ctx, id, domain.TaskStatusProcessing, domain.TaskPatch{
		Status:         domain.TaskStatusCompleted,
		ResultImageURL: domain.StringPtr(res.ImageURL),
		ResultData:     res.Data,
	})
	if err != nil {
		return nil, err
	}
	o.settled(ctx, *t)
	return t, nil
}

// Fail moves a processing task to failed with msg as its error message.
func (o *Orchestrator) Fail(ctx context.Context, id, msg string) (*domain.GenerationTask, error) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = "generation failed"
	}
	t, err := o.transition(ctx, id, domain.TaskStatusProcessing, domain.TaskPatch{
		Status:       domain.TaskStatusFailed,
		ErrorMessage: &msg,
	})
	if err != nil {
		return nil, err
	}
	o.settled(ctx, *t)
	return t, nil
}

// Reset moves a failed task back to pending and clears its result and error.
// It does not resubmit.
func (o *Orchestrator) Reset(ctx context.Context, id string) (*domain.GenerationTask, error) {
	return o.transition(ctx, id, domain.TaskStatusFailed, domain.TaskPatch{Status: domain.TaskStatusPending})
}

// Retry resets a failed task and submits it again.
func (o *Orchestrator) Retry(ctx context.Context, id string) (*domain.GenerationTask, error) {
	t, err := o.Reset(ctx, id)
	if err != nil {
		return nil, err
	}
	o.logger.Info().Str("task_id", id).Str("task_type", string(t.TaskType)).Msg("task retried")
	if err := o.Submit(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Submit hands a pending task to its producer without waiting for the
// result. 3D model tasks stay pending until both multi-view siblings have
// completed.
func (o *Orchestrator) Submit(ctx context.Context, t *domain.GenerationTask) error {
	if t == nil {
		return domain.ErrInvalidInput
	}
	if t.TaskType == domain.TaskType3DModel {
		return o.SubmitModel(ctx, t.ID)
	}
	return o.SubmitImage(ctx, t)
}

// SubmitImage claims a pending image-style task and sends it to the image
// producer.
func (o *Orchestrator) SubmitImage(ctx context.Context, t *domain.GenerationTask) error {
	if t.TaskType == domain.TaskType3DModel {
		return fmt.Errorf("%w: %s is not an image task", domain.ErrInvalidTaskType, t.TaskType)
	}
	claimed, ok, err := o.claim(ctx, t.ID)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.TransitionError{TaskID: t.ID, From: claimed.Status, To: domain.TaskStatusProcessing}
	}
	job := providers.ImageJob{
		TaskID:         claimed.ID,
		TaskType:       claimed.TaskType,
		Prompt:         claimed.Prompt,
		SourceImageURL: domain.Deref(claimed.OriginalImageURL),
	}
	o.dispatch(ctx, *claimed, func(ctx context.Context) (Result, error) {
		res, err := o.images.SubmitImageJob(ctx, job)
		if err != nil {
			return Result{}, err
		}
		return Result{ImageURL: res.ResultImageURL}, nil
	})
	return nil
}

// dispatch runs job in the background and records its outcome on the task.
// A panic inside job fails the task instead of leaving it processing.
func (o *Orchestrator) dispatch(ctx context.Context, t domain.GenerationTask, job func(context.Context) (Result, error)) {
	base := context.WithoutCancel(ctx)
	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		jobCtx, cancel := context.WithTimeout(base, o.jobTimeout)
		defer cancel()

		res, err := runJob(jobCtx, job)
		if err == nil && res.empty() {
			err = &providers.VendorError{Vendor: string(t.TaskType), Message: "producer returned no result"}
		}
		if err != nil {
			level := o.logger.Warn()
			if !providers.IsVendorFailure(err) {
				level = o.logger.Error()
			}
			level.Err(err).Str("task_id", t.ID).Str("task_type", string(t.TaskType)).Msg("producer failed")
			if _, ferr := o.Fail(base, t.ID, err.Error()); ferr != nil {
				o.logger.Error().Err(ferr).Str("task_id", t.ID).Msg("record failure")
			}
			return
		}
		if _, cerr := o.Complete(base, t.ID, res); cerr != nil {
			o.logger.Error().Err(cerr).Str("task_id", t.ID).Msg("record completion")
		}
	}()
}

func runJob(ctx context.Context, job func(context.Context) (Result, error)) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &providers.SubmissionError{Vendor: "producer", Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return job(ctx)
}

// claim moves a pending task to processing. ok is false when the task was
// not pending; the returned task then reflects its current state.
func (o *Orchestrator) claim(ctx context.Context, id string) (*domain.GenerationTask, bool, error) {
	t, err := o.transition(ctx, id, domain.TaskStatusPending, domain.TaskPatch{Status: domain.TaskStatusProcessing})
	if err == nil {
		return t, true, nil
	}
	var te *domain.TransitionError
	if !errors.As(err, &te) {
		return nil, false, err
	}
	current, gerr := o.store.GetByID(ctx, id)
	if gerr != nil {
		return nil, false, gerr
	}
	return current, false, nil
}

// transition applies patch only if the task is still in from. The store
// compares and swaps on status, so concurrent callers cannot both win.
func (o *Orchestrator) transition(ctx context.Context, id string, from domain.TaskStatus, patch domain.TaskPatch) (*domain.GenerationTask, error) {
	current, err := o.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != from {
		return nil, &domain.TransitionError{TaskID: id, From: current.Status, To: patch.Status}
	}
	patch.ExpectStatus = from
	updated, err := o.store.UpdateByID(ctx, id, patch)
	if errors.Is(err, domain.ErrStatusConflict) {
		latest, gerr := o.store.GetByID(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, &domain.TransitionError{TaskID: id, From: latest.Status, To: patch.Status}
	}
	if err != nil {
		return nil, err
	}
	o.logger.Info().
		Str("task_id", id).
		Str("task_type", string(updated.TaskType)).
		Str("from", string(from)).
		Str("to", string(updated.Status)).
		Msg("task transition")
	return updated, nil
}

func (o *Orchestrator) settled(ctx context.Context, t domain.GenerationTask) {
	o.hooksMu.RLock()
	hooks := append([]Hook(nil), o.hooks...)
	o.hooksMu.RUnlock()
	for _, h := range hooks {
		h.TaskSettled(ctx, t.Clone())
	}
	if t.TaskType.IsMultiView() {
		o.advanceDependents(ctx, t)
	}
}
