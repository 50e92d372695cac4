// Package character manages IP characters and derives their status from the
// generation tasks attached to them.
package character

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"ipstudio/internal/domain"
	"ipstudio/internal/infra"
)

// Tasks is the read surface of the orchestrator.
type Tasks interface {
	Get(ctx context.Context, id string) (*domain.GenerationTask, error)
	List(ctx context.Context, field domain.TaskField, value string) ([]domain.GenerationTask, error)
}

// Service creates characters and assembles their derived views.
type Service struct {
	chars  domain.CharacterRepository
	tasks  Tasks
	logger infra.Logger
}

// NewService builds a Service.
func NewService(chars domain.CharacterRepository, tasks Tasks, logger infra.Logger) *Service {
	return &Service{chars: chars, tasks: tasks, logger: logger.With().Str("component", "character").Logger()}
}

// CreateFromTask turns the result of a completed ip_generation task owned by
// userID into a character.
func (s *Service) CreateFromTask(ctx context.Context, userID, taskID, name string) (*domain.IPCharacter, error) {
	t, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !t.OwnedBy(userID) {
		return nil, domain.ErrNotFound
	}
	if t.TaskType != domain.TaskTypeIPGeneration {
		return nil, fmt.Errorf("%w: task %s is %s, want %s", domain.ErrInvalidInput, taskID, t.TaskType, domain.TaskTypeIPGeneration)
	}
	if t.Status != domain.TaskStatusCompleted || t.ResultImageURL == nil {
		return nil, fmt.Errorf("%w: task %s has no result yet", domain.ErrInvalidState, taskID)
	}
	c, err := s.chars.Create(ctx, &domain.IPCharacter{
		UserID:       userID,
		Name:         strings.TrimSpace(name),
		MainImageURL: *t.ResultImageURL,
		SourceTaskID: &t.ID,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("character_id", c.ID).Str("task_id", taskID).Msg("character created")
	return c, nil
}

// List returns the user's characters, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]domain.IPCharacter, error) {
	return s.chars.ListByUser(ctx, userID)
}

// Get loads a character owned by userID together with its derived statuses.
func (s *Service) Get(ctx context.Context, userID, id string) (*domain.CharacterView, error) {
	c, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	children, err := s.tasks.List(ctx, domain.TaskFieldParentCharacterID, c.ID)
	if err != nil {
		return nil, err
	}
	initial, err := s.initialStatus(ctx, c)
	if err != nil {
		return nil, err
	}
	return &domain.CharacterView{
		IPCharacter:           *c,
		InitialTaskStatus:     initial,
		MerchandiseTaskStatus: latestOngoing(children),
	}, nil
}

// ListTasks returns every task attached to the character in creation order.
func (s *Service) ListTasks(ctx context.Context, userID, id string) ([]domain.GenerationTask, error) {
	c, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.tasks.List(ctx, domain.TaskFieldParentCharacterID, c.ID)
}

func (s *Service) owned(ctx context.Context, userID, id string) (*domain.IPCharacter, error) {
	c, err := s.chars.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

// initialStatus reports the status of the task that produced the main
// image. Characters without a recorded source task fall back to matching the
// image path against the owner's ip_generation results; a character with no
// match counts as completed.
func (s *Service) initialStatus(ctx context.Context, c *domain.IPCharacter) (domain.TaskStatus, error) {
	if c.SourceTaskID != nil {
		t, err := s.tasks.Get(ctx, *c.SourceTaskID)
		switch {
		case err == nil:
			return t.Status, nil
		case errors.Is(err, domain.ErrNotFound):
			return domain.TaskStatusCompleted, nil
		default:
			return "", err
		}
	}

	history, err := s.tasks.List(ctx, domain.TaskFieldUserID, c.UserID)
	if err != nil {
		return "", err
	}
	for i := len(history) - 1; i >= 0; i-- {
		t := history[i]
		if t.TaskType != domain.TaskTypeIPGeneration || t.ResultImageURL == nil {
			continue
		}
		if imagePathsMatch(c.MainImageURL, *t.ResultImageURL) {
			s.logger.Debug().Str("character_id", c.ID).Str("task_id", t.ID).Msg("initial task matched by image path")
			return t.Status, nil
		}
	}
	return domain.TaskStatusCompleted, nil
}

// latestOngoing returns the status of the most recently created pending or
// processing task, or nil when nothing is in flight.
func latestOngoing(tasks []domain.GenerationTask) *domain.TaskStatus {
	for i := len(tasks) - 1; i >= 0; i-- {
		if tasks[i].Status.Ongoing() {
			st := tasks[i].Status
			return &st
		}
	}
	return nil
}

// imagePathsMatch compares two image URLs by path, ignoring host and query.
// Storage providers sign URLs differently over time, so one path containing
// the other's file name also counts.
func imagePathsMatch(a, b string) bool {
	pa, pb := urlPath(a), urlPath(b)
	if pa == "" || pb == "" {
		return false
	}
	if pa == pb {
		return true
	}
	base := path.Base(pb)
	return base != "/" && base != "." && strings.Contains(pa, base)
}

func urlPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}
