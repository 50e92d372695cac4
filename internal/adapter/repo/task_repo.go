package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"ipstudio/internal/domain"
	"ipstudio/internal/infra"
	"ipstudio/internal/sqlinline"
)

// pgInvalidTextRepresentation is raised when an id is not a valid uuid.
const pgInvalidTextRepresentation = "22P02"

// TaskRepositoryPG implements domain.TaskStore on PostgreSQL.
type TaskRepositoryPG struct {
	db infra.SQLExecutor
}

// NewTaskRepository creates a task store backed by PostgreSQL.
func NewTaskRepository(db infra.SQLExecutor) *TaskRepositoryPG {
	return &TaskRepositoryPG{db: db}
}

// Insert stores a new pending task.
func (r *TaskRepositoryPG) Insert(ctx context.Context, task *domain.GenerationTask) (*domain.GenerationTask, error) {
	if task == nil {
		return nil, domain.ErrInvalidInput
	}
	row := r.db.QueryRow(ctx, sqlinline.QInsertTask,
		uuid.NewString(),
		domain.Deref(task.UserID),
		string(task.TaskType),
		task.Prompt,
		domain.Deref(task.OriginalImageURL),
		domain.Deref(task.BatchID),
		domain.Deref(task.ParentCharacterID),
	)
	out, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return out, nil
}

// UpdateByID applies patch; with ExpectStatus set the row is only updated
// while its status still matches.
func (r *TaskRepositoryPG) UpdateByID(ctx context.Context, id string, patch domain.TaskPatch) (*domain.GenerationTask, error) {
	var resultData []byte
	if patch.ResultData != nil {
		b, err := json.Marshal(patch.ResultData)
		if err != nil {
			return nil, fmt.Errorf("encode result_data: %w", err)
		}
		resultData = b
	}
	row := r.db.QueryRow(ctx, sqlinline.QUpdateTaskByID,
		id,
		string(patch.Status),
		patch.ResultImageURL,
		resultData,
		patch.ErrorMessage,
		string(patch.ExpectStatus),
	)
	out, err := scanTask(row)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("update task: %w", err)
	}
	// Nothing matched: either the id is unknown or the status moved on.
	if _, gerr := r.GetByID(ctx, id); gerr != nil {
		return nil, gerr
	}
	return nil, domain.ErrStatusConflict
}

// GetByID fetches a task by its identifier.
func (r *TaskRepositoryPG) GetByID(ctx context.Context, id string) (*domain.GenerationTask, error) {
	out, err := scanTask(r.db.QueryRow(ctx, sqlinline.QSelectTaskByID, id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return out, nil
}

// ListByField returns tasks sharing a batch, character or owner.
func (r *TaskRepositoryPG) ListByField(ctx context.Context, field domain.TaskField, value string) ([]domain.GenerationTask, error) {
	var query string
	switch field {
	case domain.TaskFieldBatchID:
		query = sqlinline.QListTasksByBatch
	case domain.TaskFieldParentCharacterID:
		query = sqlinline.QListTasksByParentCharacter
	case domain.TaskFieldUserID:
		query = sqlinline.QListTasksByUser
	default:
		return nil, fmt.Errorf("%w: unknown field %q", domain.ErrInvalidInput, field)
	}
	rows, err := r.db.Query(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("list tasks by %s: %w", field, err)
	}
	defer rows.Close()

	var out []domain.GenerationTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

func scanTask(row pgx.Row) (*domain.GenerationTask, error) {
	var (
		t          domain.GenerationTask
		taskType   string
		status     string
		resultData []byte
	)
	if err := row.Scan(
		&t.ID,
		&t.UserID,
		&taskType,
		&status,
		&t.Prompt,
		&t.OriginalImageURL,
		&t.ResultImageURL,
		&resultData,
		&t.ErrorMessage,
		&t.BatchID,
		&t.ParentCharacterID,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, mapNotFound(err)
	}
	t.TaskType = domain.TaskType(taskType)
	t.Status = domain.TaskStatus(status)
	if len(resultData) > 0 {
		if err := json.Unmarshal(resultData, &t.ResultData); err != nil {
			return nil, fmt.Errorf("decode result_data: %w", err)
		}
	}
	return &t, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextRepresentation {
		return domain.ErrNotFound
	}
	return err
}

var _ domain.TaskStore = (*TaskRepositoryPG)(nil)
