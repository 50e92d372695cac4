package domain

import "context"

// TaskStore persists generation task rows. It is the single source of truth
// for task state; components never share in-memory task objects.
type TaskStore interface {
	// Insert assigns id and timestamps and stores the task as pending.
	Insert(ctx context.Context, task *GenerationTask) (*GenerationTask, error)
	// UpdateByID applies patch and stamps updated_at. With patch.ExpectStatus
	// set it returns ErrStatusConflict when the stored status differs.
	UpdateByID(ctx context.Context, id string, patch TaskPatch) (*GenerationTask, error)
	GetByID(ctx context.Context, id string) (*GenerationTask, error)
	// ListByField returns matching tasks ordered by creation time.
	ListByField(ctx context.Context, field TaskField, value string) ([]GenerationTask, error)
}

// CharacterRepository persists IP characters.
type CharacterRepository interface {
	Create(ctx context.Context, c *IPCharacter) (*IPCharacter, error)
	GetByID(ctx context.Context, id string) (*IPCharacter, error)
	ListByUser(ctx context.Context, userID string) ([]IPCharacter, error)
	SetViewURL(ctx context.Context, id string, side ViewSide, url string) error
	SetModelURL(ctx context.Context, id string, url string) error
	// MergeMerchandiseURL sets one key of merchandise_urls without touching
	// the others.
	MergeMerchandiseURL(ctx context.Context, id, key, url string) error
}
