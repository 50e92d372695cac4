// Package poller repeatedly reads task or batch state on a fixed interval
// until it turns terminal, attempts run out, or the caller cancels.
//
// Polls never overlap: each fetch returns before the next wait starts.
// Cancellation stops new fetches but does not abort one already in flight.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ipstudio/internal/domain"
	"ipstudio/internal/infra"
)

const (
	// MinInterval is the floor applied to every configured interval so the
	// store and vendors are never polled in a busy loop.
	MinInterval = 3 * time.Second
	// DefaultInterval is used when Options.Interval is zero.
	DefaultInterval = 5 * time.Second
	// DefaultMaxAttempts is used when Options.MaxAttempts is zero.
	DefaultMaxAttempts = 60
)

// ErrPollTimeout matches a TimeoutError.
var ErrPollTimeout = errors.New("poll timeout")

// TimeoutError reports that polling gave up. The polled entity is unaffected
// and may still finish later.
type TimeoutError struct {
	Attempts   int
	LastStatus string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("poll timeout after %d attempts (last status %q)", e.Attempts, e.LastStatus)
}

func (e *TimeoutError) Unwrap() error { return ErrPollTimeout }

// TransportError ends a poll because a read failed. The stored state of the
// polled entity is left untouched.
type TransportError struct {
	Attempt int
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("poll attempt %d: %v", e.Attempt, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Options configures a Poller.
type Options struct {
	Interval    time.Duration
	MaxAttempts int
	// After waits between attempts. Defaults to time.After; tests replace it.
	After func(time.Duration) <-chan time.Time
}

// Poller runs cooperative polling loops.
type Poller struct {
	interval    time.Duration
	maxAttempts int
	after       func(time.Duration) <-chan time.Time
	logger      infra.Logger
}

// New builds a Poller, clamping the interval to MinInterval.
func New(opts Options, logger infra.Logger) *Poller {
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	if interval < MinInterval {
		interval = MinInterval
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	after := opts.After
	if after == nil {
		after = time.After
	}
	return &Poller{
		interval:    interval,
		maxAttempts: attempts,
		after:       after,
		logger:      logger.With().Str("component", "poller").Logger(),
	}
}

// Interval returns the effective wait between attempts.
func (p *Poller) Interval() time.Duration { return p.interval }

// MaxAttempts returns the number of fetches made before giving up.
func (p *Poller) MaxAttempts() int { return p.maxAttempts }

// Check is one poll attempt. It returns the observed value, whether polling
// should stop, and a short status label used in timeout reports.
type Check[T any] func(ctx context.Context) (value T, done bool, status string, err error)

// Until runs check until it reports done. The first attempt happens
// immediately; later ones wait for the poller interval.
func Until[T any](ctx context.Context, p *Poller, check Check[T]) (T, error) {
	var (
		zero   T
		status string
	)
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		value, done, st, err := check(context.WithoutCancel(ctx))
		if err != nil {
			p.logger.Debug().Err(err).Int("attempt", attempt).Msg("poller: read failed")
			return zero, &TransportError{Attempt: attempt, Err: err}
		}
		status = st
		if done {
			return value, nil
		}
		p.logger.Debug().Int("attempt", attempt).Str("status", st).Msg("poller: not terminal yet")
		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-p.after(p.interval):
		}
	}
	return zero, &TimeoutError{Attempts: p.maxAttempts, LastStatus: status}
}

// TaskSource reads a task by id.
type TaskSource interface {
	GetTask(ctx context.Context, id string) (*domain.GenerationTask, error)
}

// TaskSourceFunc adapts a function to TaskSource.
type TaskSourceFunc func(ctx context.Context, id string) (*domain.GenerationTask, error)

func (f TaskSourceFunc) GetTask(ctx context.Context, id string) (*domain.GenerationTask, error) {
	return f(ctx, id)
}

// BatchSource reads a batch summary by batch id.
type BatchSource interface {
	GetBatchSummary(ctx context.Context, batchID string) (domain.BatchSummary, error)
}

// BatchSourceFunc adapts a function to BatchSource.
type BatchSourceFunc func(ctx context.Context, batchID string) (domain.BatchSummary, error)

func (f BatchSourceFunc) GetBatchSummary(ctx context.Context, batchID string) (domain.BatchSummary, error) {
	return f(ctx, batchID)
}

// UntilTerminal polls a task until it is completed or failed. A failed task
// is returned without error; callers inspect its status and error message.
func (p *Poller) UntilTerminal(ctx context.Context, src TaskSource, taskID string) (*domain.GenerationTask, error) {
	return Until(ctx, p, func(ctx context.Context) (*domain.GenerationTask, bool, string, error) {
		task, err := src.GetTask(ctx, taskID)
		if err != nil {
			return nil, false, "", err
		}
		return task, task.Status.Terminal(), string(task.Status), nil
	})
}

// UntilBatchTerminal polls a batch summary until every sibling is terminal.
func (p *Poller) UntilBatchTerminal(ctx context.Context, src BatchSource, batchID string) (domain.BatchSummary, error) {
	return Until(ctx, p, func(ctx context.Context) (domain.BatchSummary, bool, string, error) {
		summary, err := src.GetBatchSummary(ctx, batchID)
		if err != nil {
			return domain.BatchSummary{}, false, "", err
		}
		label := fmt.Sprintf("%d/%d terminal", summary.Completed+summary.Failed, summary.Total)
		return summary, summary.Terminal(), label, nil
	})
}

// WatchTask polls in the background and reports the outcome through done.
// The returned stop function cancels the watch; done is not called after a
// stop that wins the race with the final result.
func (p *Poller) WatchTask(ctx context.Context, src TaskSource, taskID string, done func(*domain.GenerationTask, error)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		task, err := p.UntilTerminal(ctx, src, taskID)
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return
		}
		done(task, err)
	}()
	return cancel
}
