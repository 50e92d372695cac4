package character

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipstudio/internal/adapter/memstore"
	"ipstudio/internal/domain"
	"ipstudio/internal/providers"
	"ipstudio/internal/task"
)

type noopImages struct{}

func (noopImages) SubmitImageJob(context.Context, providers.ImageJob) (providers.ImageResult, error) {
	return providers.ImageResult{ResultImageURL: "https://img.test/x.png"}, nil
}

type noopModels struct{}

func (noopModels) SubmitModelJob(context.Context, providers.ModelJob) (providers.ModelResult, error) {
	return providers.ModelResult{ModelURL: "https://3d.test/x.glb"}, nil
}

type suite struct {
	orch  *task.Orchestrator
	chars *memstore.CharacterStore
	svc   *Service
}

func newSuite(t *testing.T) *suite {
	t.Helper()
	orch, err := task.New(memstore.NewTaskStore(), task.Options{Images: noopImages{}, Models: noopModels{}}, zerolog.Nop())
	require.NoError(t, err)
	chars := memstore.NewCharacterStore()
	return &suite{orch: orch, chars: chars, svc: NewService(chars, orch, zerolog.Nop())}
}

func (s *suite) task(t *testing.T, p task.CreateParams, final domain.TaskStatus, url string) *domain.GenerationTask {
	t.Helper()
	ctx := context.Background()
	if p.Prompt == "" {
		p.Prompt = "p"
	}
	created, err := s.orch.Create(ctx, p)
	require.NoError(t, err)
	if final == domain.TaskStatusPending {
		return created
	}
	out, err := s.orch.Begin(ctx, created.ID)
	require.NoError(t, err)
	switch final {
	case domain.TaskStatusCompleted:
		out, err = s.orch.Complete(ctx, created.ID, task.Result{ImageURL: url})
	case domain.TaskStatusFailed:
		out, err = s.orch.Fail(ctx, created.ID, "boom")
	}
	require.NoError(t, err)
	return out
}

func TestCreateFromCompletedTask(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	src := s.task(t, task.CreateParams{TaskType: domain.TaskTypeIPGeneration, UserID: "u1"}, domain.TaskStatusCompleted, "https://x/cat.png")

	c, err := s.svc.CreateFromTask(ctx, "u1", src.ID, " Mochi ")
	require.NoError(t, err)
	assert.Equal(t, "Mochi", c.Name)
	assert.Equal(t, "https://x/cat.png", c.MainImageURL)
	assert.Equal(t, src.ID, domain.Deref(c.SourceTaskID))

	view, err := s.svc.Get(ctx, "u1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, view.InitialTaskStatus)
	assert.Nil(t, view.MerchandiseTaskStatus)
}

func TestCreateFromTaskRejections(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	pending := s.task(t, task.CreateParams{TaskType: domain.TaskTypeIPGeneration, UserID: "u1"}, domain.TaskStatusPending, "")
	merch := s.task(t, task.CreateParams{TaskType: domain.TaskTypeMerchKeychain, UserID: "u1"}, domain.TaskStatusCompleted, "https://x/k.png")

	_, err := s.svc.CreateFromTask(ctx, "u1", pending.ID, "A")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = s.svc.CreateFromTask(ctx, "u1", merch.ID, "A")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = s.svc.CreateFromTask(ctx, "u2", pending.ID, "A")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMerchandiseTaskStatusTracksLatestOngoing(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	c, err := s.chars.Create(ctx, &domain.IPCharacter{UserID: "u1", Name: "Mochi", MainImageURL: "https://x/m.png"})
	require.NoError(t, err)

	s.task(t, task.CreateParams{TaskType: domain.TaskTypeMerchKeychain, UserID: "u1", ParentCharacterID: c.ID}, domain.TaskStatusCompleted, "https://x/k.png")
	s.task(t, task.CreateParams{TaskType: domain.TaskTypeMerchHandbag, UserID: "u1", ParentCharacterID: c.ID}, domain.TaskStatusPending, "")
	s.task(t, task.CreateParams{TaskType: domain.TaskTypeMerchPhoneCase, UserID: "u1", ParentCharacterID: c.ID}, domain.TaskStatusProcessing, "")
	s.task(t, task.CreateParams{TaskType: domain.TaskTypeMerchFridgeMagnet, UserID: "u1", ParentCharacterID: c.ID}, domain.TaskStatusFailed, "")

	view, err := s.svc.Get(ctx, "u1", c.ID)
	require.NoError(t, err)
	require.NotNil(t, view.MerchandiseTaskStatus)
	assert.Equal(t, domain.TaskStatusProcessing, *view.MerchandiseTaskStatus)

	tasks, err := s.svc.ListTasks(ctx, "u1", c.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 4)

	_, err = s.svc.Get(ctx, "u2", c.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLegacyInitialStatusByImagePath(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	s.task(t, task.CreateParams{TaskType: domain.TaskTypeIPGeneration, UserID: "u1"}, domain.TaskStatusFailed, "")
	s.task(t, task.CreateParams{TaskType: domain.TaskTypeIPGeneration, UserID: "u1"}, domain.TaskStatusCompleted, "https://cdn-a.test/gen/abc123.png?sig=1")

	matched, err := s.chars.Create(ctx, &domain.IPCharacter{UserID: "u1", Name: "Old", MainImageURL: "https://cdn-b.test/gen/abc123.png?sig=2"})
	require.NoError(t, err)
	view, err := s.svc.Get(ctx, "u1", matched.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, view.InitialTaskStatus)

	unknown, err := s.chars.Create(ctx, &domain.IPCharacter{UserID: "u1", Name: "Legacy", MainImageURL: "https://cdn.test/upload/zzz.png"})
	require.NoError(t, err)
	view, err = s.svc.Get(ctx, "u1", unknown.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, view.InitialTaskStatus)
}

func TestImagePathsMatch(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"https://a.test/x/y.png", "https://b.test/x/y.png?t=1", true},
		{"https://a.test/bucket/users/1/y.png", "https://b.test/y.png", true},
		{"https://a.test/x/y.png", "https://a.test/x/z.png", false},
		{"", "https://a.test/x/y.png", false},
	}
	for _, tc := range cases {
		if got := imagePathsMatch(tc.a, tc.b); got != tc.want {
			t.Errorf("imagePathsMatch(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
