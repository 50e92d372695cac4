package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ipstudio/internal/domain"
)

const taskColumns = `id, user_id, task_type, status, prompt, original_image_url, result_image_url,
	result_data, error_message, batch_id, parent_character_id, created_at, updated_at`

// TaskStore implements domain.TaskStore on SQLite.
type TaskStore struct {
	db *DB
}

func (s *TaskStore) Insert(ctx context.Context, task *domain.GenerationTask) (*domain.GenerationTask, error) {
	if task == nil {
		return nil, domain.ErrInvalidInput
	}
	now := formatTime(s.db.now())
	id := uuid.NewString()
	_, err := s.db.execWithRetry(ctx, `INSERT INTO generation_tasks
		(id, user_id, task_type, status, prompt, original_image_url, batch_id, parent_character_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		nullString(task.UserID),
		string(task.TaskType),
		string(domain.TaskStatusPending),
		task.Prompt,
		nullString(task.OriginalImageURL),
		nullString(task.BatchID),
		nullString(task.ParentCharacterID),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *TaskStore) UpdateByID(ctx context.Context, id string, patch domain.TaskPatch) (*domain.GenerationTask, error) {
	var resultData sql.NullString
	if patch.ResultData != nil {
		raw, err := json.Marshal(patch.ResultData)
		if err != nil {
			return nil, fmt.Errorf("encode result_data: %w", err)
		}
		resultData = sql.NullString{String: string(raw), Valid: true}
	}
	expect := string(patch.ExpectStatus)
	res, err := s.db.execWithRetry(ctx, `UPDATE generation_tasks
		SET status = ?, result_image_url = ?, result_data = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND (? = '' OR status = ?)`,
		string(patch.Status),
		nullString(patch.ResultImageURL),
		resultData,
		nullString(patch.ErrorMessage),
		formatTime(s.db.now()),
		id,
		expect,
		expect,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrStatusConflict
	}
	return s.GetByID(ctx, id)
}

func (s *TaskStore) GetByID(ctx context.Context, id string) (*domain.GenerationTask, error) {
	row := s.db.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM generation_tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return task, err
}

func (s *TaskStore) ListByField(ctx context.Context, field domain.TaskField, value string) ([]domain.GenerationTask, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("%w: list by %q", domain.ErrInvalidInput, field)
	}
	// field is one of a closed set of column names.
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM generation_tasks WHERE `+string(field)+` = ? ORDER BY seq`, value)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.GenerationTask, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.GenerationTask, error) {
	var (
		task                                       domain.GenerationTask
		taskType, status                           string
		userID, original, result, data, errMessage sql.NullString
		batchID, parentID                          sql.NullString
		createdAt, updatedAt                       string
	)
	if err := row.Scan(
		&task.ID,
		&userID,
		&taskType,
		&status,
		&task.Prompt,
		&original,
		&result,
		&data,
		&errMessage,
		&batchID,
		&parentID,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	task.TaskType = domain.TaskType(taskType)
	task.Status = domain.TaskStatus(status)
	task.UserID = stringPtr(userID)
	task.OriginalImageURL = stringPtr(original)
	task.ResultImageURL = stringPtr(result)
	task.ErrorMessage = stringPtr(errMessage)
	task.BatchID = stringPtr(batchID)
	task.ParentCharacterID = stringPtr(parentID)
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &task.ResultData); err != nil {
			return nil, fmt.Errorf("decode result_data: %w", err)
		}
	}
	var err error
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if task.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &task, nil
}
