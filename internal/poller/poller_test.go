package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipstudio/internal/domain"
)

type fakeClock struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (c *fakeClock) after(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (c *fakeClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waits)
}

type scriptedSource struct {
	mu       sync.Mutex
	statuses []domain.TaskStatus
	fetches  int
	err      error
}

func (s *scriptedSource) GetTask(ctx context.Context, id string) (*domain.GenerationTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.err != nil {
		return nil, s.err
	}
	idx := s.fetches - 1
	if idx >= len(s.statuses) {
		idx = len(s.statuses) - 1
	}
	return &domain.GenerationTask{ID: id, Status: s.statuses[idx]}, nil
}

func newTestPoller(clock *fakeClock, attempts int) *Poller {
	return New(Options{Interval: MinInterval, MaxAttempts: attempts, After: clock.after}, zerolog.Nop())
}

func TestUntilTerminalResolvesOnCompletion(t *testing.T) {
	clock := &fakeClock{}
	src := &scriptedSource{statuses: []domain.TaskStatus{domain.TaskStatusPending, domain.TaskStatusProcessing, domain.TaskStatusCompleted}}
	p := newTestPoller(clock, 10)

	got, err := p.UntilTerminal(context.Background(), src, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.Equal(t, 3, src.fetches)
	assert.Equal(t, 2, clock.count())
}

func TestUntilTerminalReturnsFailedTaskWithoutError(t *testing.T) {
	clock := &fakeClock{}
	src := &scriptedSource{statuses: []domain.TaskStatus{domain.TaskStatusFailed}}
	p := newTestPoller(clock, 10)

	got, err := p.UntilTerminal(context.Background(), src, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Zero(t, clock.count())
}

func TestUntilTerminalTimesOut(t *testing.T) {
	clock := &fakeClock{}
	src := &scriptedSource{statuses: []domain.TaskStatus{domain.TaskStatusProcessing}}
	p := newTestPoller(clock, 3)

	_, err := p.UntilTerminal(context.Background(), src, "t1")
	require.ErrorIs(t, err, ErrPollTimeout)
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 3, te.Attempts)
	assert.Equal(t, "processing", te.LastStatus)
	assert.Equal(t, 3, src.fetches)
	assert.Equal(t, 2, clock.count())
	assert.NotErrorIs(t, err, domain.ErrProviderFailure)
}

func TestUntilTerminalTransportError(t *testing.T) {
	clock := &fakeClock{}
	boom := errors.New("connection reset")
	src := &scriptedSource{err: boom}
	p := newTestPoller(clock, 5)

	_, err := p.UntilTerminal(context.Background(), src, "t1")
	var tr *TransportError
	require.ErrorAs(t, err, &tr)
	assert.Equal(t, 1, tr.Attempt)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrPollTimeout)
	assert.Equal(t, 1, src.fetches)
}

func TestIntervalFloorAndDefaults(t *testing.T) {
	clock := &fakeClock{}
	p := New(Options{Interval: 10 * time.Millisecond, After: clock.after}, zerolog.Nop())
	assert.Equal(t, MinInterval, p.Interval())
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts())

	src := &scriptedSource{statuses: []domain.TaskStatus{domain.TaskStatusPending, domain.TaskStatusCompleted}}
	_, err := p.UntilTerminal(context.Background(), src, "t1")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{MinInterval}, clock.waits)

	assert.Equal(t, DefaultInterval, New(Options{}, zerolog.Nop()).Interval())
	assert.Equal(t, 7*time.Second, New(Options{Interval: 7 * time.Second}, zerolog.Nop()).Interval())
}

func TestCancelStopsFurtherPolls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	never := func(time.Duration) <-chan time.Time { return make(chan time.Time) }
	p := New(Options{MaxAttempts: 10, After: never}, zerolog.Nop())
	src := &scriptedSource{statuses: []domain.TaskStatus{domain.TaskStatusProcessing}}

	done := make(chan error, 1)
	go func() {
		_, err := p.UntilTerminal(ctx, src, "t1")
		done <- err
	}()
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.fetches == 1
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poll did not stop after cancel")
	}
	assert.Equal(t, 1, src.fetches)
}

func TestCancelDoesNotAbortInFlightFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	clock := &fakeClock{}
	p := newTestPoller(clock, 5)

	var fetchCtxErr error
	src := TaskSourceFunc(func(fctx context.Context, id string) (*domain.GenerationTask, error) {
		cancel()
		fetchCtxErr = fctx.Err()
		return &domain.GenerationTask{ID: id, Status: domain.TaskStatusCompleted}, nil
	})

	got, err := p.UntilTerminal(ctx, src, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.NoError(t, fetchCtxErr)
}

func TestUntilBatchTerminal(t *testing.T) {
	clock := &fakeClock{}
	p := newTestPoller(clock, 10)
	summaries := []domain.BatchSummary{
		{Total: 4, Pending: 2, Processing: 2},
		{Total: 4, Processing: 1, Completed: 2, Failed: 1},
		{Total: 4, Completed: 3, Failed: 1},
	}
	calls := 0
	src := BatchSourceFunc(func(ctx context.Context, batchID string) (domain.BatchSummary, error) {
		s := summaries[calls]
		calls++
		return s, nil
	})

	got, err := p.UntilBatchTerminal(context.Background(), src, "B1")
	require.NoError(t, err)
	assert.Equal(t, summaries[2], got)
	assert.Equal(t, 3, calls)
}

func TestUntilBatchTerminalTimeoutReportsProgress(t *testing.T) {
	clock := &fakeClock{}
	p := newTestPoller(clock, 2)
	src := BatchSourceFunc(func(ctx context.Context, batchID string) (domain.BatchSummary, error) {
		return domain.BatchSummary{Total: 4, Completed: 1, Processing: 3}, nil
	})

	_, err := p.UntilBatchTerminal(context.Background(), src, "B1")
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "1/4 terminal", te.LastStatus)
}

func TestWatchTaskDeliversResult(t *testing.T) {
	clock := &fakeClock{}
	p := newTestPoller(clock, 10)
	src := &scriptedSource{statuses: []domain.TaskStatus{domain.TaskStatusProcessing, domain.TaskStatusCompleted}}

	results := make(chan *domain.GenerationTask, 1)
	stop := p.WatchTask(context.Background(), src, "t1", func(task *domain.GenerationTask, err error) {
		assert.NoError(t, err)
		results <- task
	})
	defer stop()

	select {
	case task := <-results:
		assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	case <-time.After(time.Second):
		t.Fatal("watch did not report")
	}
}

func TestWatchTaskStopSuppressesCallback(t *testing.T) {
	never := func(time.Duration) <-chan time.Time { return make(chan time.Time) }
	p := New(Options{MaxAttempts: 10, After: never}, zerolog.Nop())
	src := &scriptedSource{statuses: []domain.TaskStatus{domain.TaskStatusProcessing}}

	called := make(chan struct{}, 1)
	stop := p.WatchTask(context.Background(), src, "t1", func(*domain.GenerationTask, error) {
		called <- struct{}{}
	})
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.fetches == 1
	}, time.Second, time.Millisecond)
	stop()

	select {
	case <-called:
		t.Fatal("callback ran after stop")
	case <-time.After(50 * time.Millisecond):
	}
}
