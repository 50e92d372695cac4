package task

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipstudio/internal/domain"
)

type viewBatch struct {
	left, back, model *domain.GenerationTask
}

func (f *fixture) newViewBatch(t *testing.T, batchID string) viewBatch {
	t.Helper()
	return viewBatch{
		left:  f.create(t, domain.TaskTypeMultiViewLeft, batchID),
		back:  f.create(t, domain.TaskTypeMultiViewBack, batchID),
		model: f.create(t, domain.TaskType3DModel, batchID),
	}
}

func (f *fixture) finish(t *testing.T, id, url string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.orch.Begin(ctx, id)
	require.NoError(t, err)
	_, err = f.orch.Complete(ctx, id, Result{ImageURL: url})
	require.NoError(t, err)
}

func TestModelWaitsForBothViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.newViewBatch(t, "batch-3d")

	require.NoError(t, f.orch.Submit(ctx, b.model))
	assert.Equal(t, domain.TaskStatusPending, f.get(t, b.model.ID).Status)

	f.finish(t, b.left.ID, "https://x/left.png")
	f.wait(t)
	assert.Equal(t, domain.TaskStatusPending, f.get(t, b.model.ID).Status)
	assert.EqualValues(t, 0, f.models.calls.Load())

	f.finish(t, b.back.ID, "https://x/back.png")
	f.wait(t)

	got := f.get(t, b.model.ID)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.Equal(t, "https://3d.test/"+b.model.ID+".glb", got.ModelURL())
	assert.EqualValues(t, 1, f.models.calls.Load())
	require.Len(t, f.models.views, 1)
	assert.Equal(t, []string{"https://img.test/source.png", "https://x/left.png", "https://x/back.png"}, f.models.views[0])
}

func TestModelSubmittedOnceWhenViewsCompleteTogether(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFixture(t)
		ctx := context.Background()
		b := f.newViewBatch(t, "batch-race")
		_, err := f.orch.Begin(ctx, b.left.ID)
		require.NoError(t, err)
		_, err = f.orch.Begin(ctx, b.back.ID)
		require.NoError(t, err)

		var wg sync.WaitGroup
		start := make(chan struct{})
		for _, id := range []string{b.left.ID, b.back.ID} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				<-start
				_, err := f.orch.Complete(ctx, id, Result{ImageURL: "https://x/" + id + ".png"})
				assert.NoError(t, err)
			}(id)
		}
		close(start)
		wg.Wait()
		f.wait(t)

		require.EqualValues(t, 1, f.models.calls.Load(), "iteration %d", i)
		assert.Equal(t, domain.TaskStatusCompleted, f.get(t, b.model.ID).Status)
	}
}

func TestModelFailsWhenViewFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.newViewBatch(t, "batch-dep")
	require.NoError(t, f.orch.Submit(ctx, b.model))

	f.finish(t, b.back.ID, "https://x/back.png")
	_, err := f.orch.Begin(ctx, b.left.ID)
	require.NoError(t, err)
	_, err = f.orch.Fail(ctx, b.left.ID, "vendor timeout")
	require.NoError(t, err)

	got := f.get(t, b.model.ID)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Equal(t, "dependency failed: multi_view_left", domain.Deref(got.ErrorMessage))
	assert.EqualValues(t, 0, f.models.calls.Load())
}

func TestModelWithoutViewsFails(t *testing.T) {
	f := newFixture(t)
	model := f.create(t, domain.TaskType3DModel, "")
	require.NoError(t, f.orch.Submit(context.Background(), model))

	got := f.get(t, model.ID)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Equal(t, "dependency missing: multi_view_left", domain.Deref(got.ErrorMessage))
}

func TestRetriedModelReappliesGating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.newViewBatch(t, "batch-retry")
	require.NoError(t, f.orch.Submit(ctx, b.model))

	_, err := f.orch.Begin(ctx, b.left.ID)
	require.NoError(t, err)
	_, err = f.orch.Fail(ctx, b.left.ID, "blurry")
	require.NoError(t, err)
	require.Equal(t, domain.TaskStatusFailed, f.get(t, b.model.ID).Status)

	// Left view retried and completed; back view still pending.
	_, err = f.orch.Retry(ctx, b.left.ID)
	require.NoError(t, err)
	f.wait(t)
	require.Equal(t, domain.TaskStatusCompleted, f.get(t, b.left.ID).Status)

	_, err = f.orch.Retry(ctx, b.model.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, f.get(t, b.model.ID).Status)
	assert.EqualValues(t, 0, f.models.calls.Load())

	f.finish(t, b.back.ID, "https://x/back.png")
	f.wait(t)
	assert.Equal(t, domain.TaskStatusCompleted, f.get(t, b.model.ID).Status)
	assert.EqualValues(t, 1, f.models.calls.Load())
}

func TestModelIgnoresViewsOfAnotherUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	left := f.create(t, domain.TaskTypeMultiViewLeft, "batch-shared")
	back := f.create(t, domain.TaskTypeMultiViewBack, "batch-shared")
	f.finish(t, left.ID, "https://x/left.png")
	f.finish(t, back.ID, "https://x/back.png")
	f.wait(t)

	foreign, err := f.orch.Create(ctx, CreateParams{
		TaskType: domain.TaskType3DModel,
		Prompt:   "render 3d",
		UserID:   "user-2",
		BatchID:  "batch-shared",
	})
	require.NoError(t, err)
	require.NoError(t, f.orch.Submit(ctx, foreign))
	f.wait(t)

	got := f.get(t, foreign.ID)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Equal(t, "dependency missing: multi_view_left", domain.Deref(got.ErrorMessage))
	assert.EqualValues(t, 0, f.models.calls.Load())
}
