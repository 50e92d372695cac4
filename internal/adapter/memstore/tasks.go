// Package memstore keeps tasks and characters in process memory. It backs
// tests and TASK_STORE=memory; nothing survives a restart.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ipstudio/internal/domain"
)

// TaskStore implements domain.TaskStore.
type TaskStore struct {
	mu    sync.Mutex
	tasks map[string]*domain.GenerationTask
	seq   int64
	order map[string]int64
	now   func() time.Time
}

// NewTaskStore returns an empty store.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[string]*domain.GenerationTask),
		order: make(map[string]int64),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *TaskStore) Insert(ctx context.Context, task *domain.GenerationTask) (*domain.GenerationTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if task == nil {
		return nil, domain.ErrInvalidInput
	}
	row := task.Clone()
	row.ID = uuid.NewString()
	row.Status = domain.TaskStatusPending
	row.ResultImageURL = nil
	row.ResultData = nil
	row.ErrorMessage = nil
	now := s.now()
	row.CreatedAt = now
	row.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.tasks[row.ID] = &row
	s.order[row.ID] = s.seq
	out := row.Clone()
	return &out, nil
}

func (s *TaskStore) UpdateByID(ctx context.Context, id string, patch domain.TaskPatch) (*domain.GenerationTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if patch.ExpectStatus != "" && row.Status != patch.ExpectStatus {
		return nil, domain.ErrStatusConflict
	}
	patch.Apply(row, s.now())
	out := row.Clone()
	return &out, nil
}

func (s *TaskStore) GetByID(ctx context.Context, id string) (*domain.GenerationTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := row.Clone()
	return &out, nil
}

func (s *TaskStore) ListByField(ctx context.Context, field domain.TaskField, value string) ([]domain.GenerationTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !field.Valid() {
		return nil, domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.GenerationTask
	for _, row := range s.tasks {
		var v *string
		switch field {
		case domain.TaskFieldBatchID:
			v = row.BatchID
		case domain.TaskFieldParentCharacterID:
			v = row.ParentCharacterID
		case domain.TaskFieldUserID:
			v = row.UserID
		}
		if v != nil && *v == value {
			out = append(out, row.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.order[out[i].ID] < s.order[out[j].ID]
	})
	return out, nil
}

var _ domain.TaskStore = (*TaskStore)(nil)
