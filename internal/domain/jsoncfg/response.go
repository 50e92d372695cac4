package jsoncfg

import (
	"time"

	"ipstudio/internal/domain"
)

// TaskResultJSON is the result section of a task. It is null until the task
// completes.
type TaskResultJSON struct {
	ImageURL string         `json:"image_url,omitempty"`
	ModelURL string         `json:"model_url,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// TaskJSON is the wire form of a generation task.
type TaskJSON struct {
	ID                string          `json:"id"`
	TaskType          string          `json:"task_type"`
	Status            string          `json:"status"`
	Prompt            string          `json:"prompt"`
	OriginalImageURL  *string         `json:"original_image_url,omitempty"`
	Result            *TaskResultJSON `json:"result"`
	Error             *string         `json:"error"`
	BatchID           *string         `json:"batch_id,omitempty"`
	ParentCharacterID *string         `json:"parent_character_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewTaskJSON renders t for API responses. The owner is never exposed.
func NewTaskJSON(t domain.GenerationTask) TaskJSON {
	out := TaskJSON{
		ID:                t.ID,
		TaskType:          string(t.TaskType),
		Status:            string(t.Status),
		Prompt:            t.Prompt,
		OriginalImageURL:  t.OriginalImageURL,
		Error:             t.ErrorMessage,
		BatchID:           t.BatchID,
		ParentCharacterID: t.ParentCharacterID,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
	if t.ResultImageURL != nil || len(t.ResultData) > 0 {
		out.Result = &TaskResultJSON{
			ImageURL: domain.Deref(t.ResultImageURL),
			ModelURL: t.ModelURL(),
			Data:     t.ResultData,
		}
	}
	return out
}

// NewTaskListJSON renders a task slice, never returning nil.
func NewTaskListJSON(tasks []domain.GenerationTask) []TaskJSON {
	out := make([]TaskJSON, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, NewTaskJSON(t))
	}
	return out
}

// Task converts the wire form back into a domain task.
func (j TaskJSON) Task() domain.GenerationTask {
	t := domain.GenerationTask{
		ID:                j.ID,
		TaskType:          domain.TaskType(j.TaskType),
		Status:            domain.TaskStatus(j.Status),
		Prompt:            j.Prompt,
		OriginalImageURL:  j.OriginalImageURL,
		ErrorMessage:      j.Error,
		BatchID:           j.BatchID,
		ParentCharacterID: j.ParentCharacterID,
		CreatedAt:         j.CreatedAt,
		UpdatedAt:         j.UpdatedAt,
	}
	if j.Result != nil {
		t.ResultImageURL = domain.StringPtr(j.Result.ImageURL)
		if len(j.Result.Data) > 0 {
			t.ResultData = j.Result.Data
		} else if j.Result.ModelURL != "" {
			t.ResultData = map[string]any{domain.ResultModelURLKey: j.Result.ModelURL}
		}
	}
	return t
}

// CreatedTaskJSON answers POST /v1/tasks.
type CreatedTaskJSON struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// BatchJSON answers GET /v1/batches/{id}.
type BatchJSON struct {
	BatchID string              `json:"batch_id"`
	Tasks   []TaskJSON          `json:"tasks"`
	Summary domain.BatchSummary `json:"summary"`
}

// LaunchJSON answers a merchandise launch.
type LaunchJSON struct {
	BatchID  string     `json:"batch_id"`
	Tasks    []TaskJSON `json:"tasks"`
	Failures []string   `json:"failures,omitempty"`
}

// RetryJSON answers POST /v1/tasks/{id}/retry.
type RetryJSON struct {
	OK   bool     `json:"ok"`
	Task TaskJSON `json:"task"`
}

// ErrorBodyJSON is the payload of every error response.
type ErrorBodyJSON struct {
	Error ErrorJSON `json:"error"`
}

// ErrorJSON describes one API error.
type ErrorJSON struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
