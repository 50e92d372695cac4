package domain

import (
	"strings"
	"time"
)

// TaskType enumerates the categories of externally fulfilled generation work.
type TaskType string

const (
	TaskTypeIPGeneration      TaskType = "ip_generation"
	TaskTypeMultiViewLeft     TaskType = "multi_view_left"
	TaskTypeMultiViewBack     TaskType = "multi_view_back"
	TaskType3DModel           TaskType = "3d_model"
	TaskTypeMerchKeychain     TaskType = "merchandise_keychain"
	TaskTypeMerchFridgeMagnet TaskType = "merchandise_fridge_magnet"
	TaskTypeMerchHandbag      TaskType = "merchandise_handbag"
	TaskTypeMerchPhoneCase    TaskType = "merchandise_phone_case"
	TaskTypeMerchCustom       TaskType = "merchandise_custom"
)

const (
	merchandisePrefix          = "merchandise_"
	customMerchandiseKeyPrefix = "custom_"
)

var taskTypes = map[TaskType]struct{}{
	TaskTypeIPGeneration:      {},
	TaskTypeMultiViewLeft:     {},
	TaskTypeMultiViewBack:     {},
	TaskType3DModel:           {},
	TaskTypeMerchKeychain:     {},
	TaskTypeMerchFridgeMagnet: {},
	TaskTypeMerchHandbag:      {},
	TaskTypeMerchPhoneCase:    {},
	TaskTypeMerchCustom:       {},
}

// MerchandiseKinds lists the fixed merchandise kinds in display order.
var MerchandiseKinds = []string{"keychain", "fridge_magnet", "handbag", "phone_case"}

// ParseTaskType normalizes user input into a known task type. Bare merchandise
// kinds such as "keychain" map onto their "merchandise_" form.
func ParseTaskType(raw string) (TaskType, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return "", ErrInvalidTaskType
	}
	if _, ok := taskTypes[TaskType(v)]; ok {
		return TaskType(v), nil
	}
	if _, ok := taskTypes[TaskType(merchandisePrefix+v)]; ok {
		return TaskType(merchandisePrefix + v), nil
	}
	return "", ErrInvalidTaskType
}

// IsMerchandise reports whether the task produces a merchandise mockup.
func (t TaskType) IsMerchandise() bool {
	return strings.HasPrefix(string(t), merchandisePrefix)
}

// IsMultiView reports whether the task renders one of the character views.
func (t TaskType) IsMultiView() bool {
	return t == TaskTypeMultiViewLeft || t == TaskTypeMultiViewBack
}

// MerchandiseKind returns the kind without the "merchandise_" prefix.
func (t TaskType) MerchandiseKind() string {
	return strings.TrimPrefix(string(t), merchandisePrefix)
}

// TaskStatus enumerates task lifecycle states.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Valid reports whether s is one of the four lifecycle states.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no automatic transition can follow s.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Ongoing reports whether the task is still in flight.
func (s TaskStatus) Ongoing() bool {
	return s == TaskStatusPending || s == TaskStatusProcessing
}

// ResultModelURLKey holds the 3D model location inside ResultData.
const ResultModelURLKey = "model_url"

// GenerationTask is one unit of externally fulfilled generation work.
type GenerationTask struct {
	ID                string         `json:"id"`
	UserID            *string        `json:"user_id,omitempty"`
	TaskType          TaskType       `json:"task_type"`
	Status            TaskStatus     `json:"status"`
	Prompt            string         `json:"prompt"`
	OriginalImageURL  *string        `json:"original_image_url,omitempty"`
	ResultImageURL    *string        `json:"result_image_url,omitempty"`
	ResultData        map[string]any `json:"result_data,omitempty"`
	ErrorMessage      *string        `json:"error_message,omitempty"`
	BatchID           *string        `json:"batch_id,omitempty"`
	ParentCharacterID *string        `json:"parent_character_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// OwnedBy reports whether the task belongs to userID.
func (t GenerationTask) OwnedBy(userID string) bool {
	return t.UserID != nil && *t.UserID == userID
}

// MerchandiseKey returns the key this task writes into IPCharacter.MerchandiseURLs.
// Custom items are keyed by task id so several of them never collide.
func (t GenerationTask) MerchandiseKey() string {
	if t.TaskType == TaskTypeMerchCustom {
		return customMerchandiseKeyPrefix + t.ID
	}
	return t.TaskType.MerchandiseKind()
}

// ModelURL extracts the 3D model location from ResultData.
func (t GenerationTask) ModelURL() string {
	if t.ResultData == nil {
		return ""
	}
	v, _ := t.ResultData[ResultModelURLKey].(string)
	return v
}

// Clone returns a deep copy safe to hand across goroutines.
func (t GenerationTask) Clone() GenerationTask {
	out := t
	out.UserID = cloneString(t.UserID)
	out.OriginalImageURL = cloneString(t.OriginalImageURL)
	out.ResultImageURL = cloneString(t.ResultImageURL)
	out.ErrorMessage = cloneString(t.ErrorMessage)
	out.BatchID = cloneString(t.BatchID)
	out.ParentCharacterID = cloneString(t.ParentCharacterID)
	if t.ResultData != nil {
		out.ResultData = make(map[string]any, len(t.ResultData))
		for k, v := range t.ResultData {
			out.ResultData[k] = v
		}
	}
	return out
}

// TaskField names the columns that support list queries.
type TaskField string

const (
	TaskFieldBatchID           TaskField = "batch_id"
	TaskFieldParentCharacterID TaskField = "parent_character_id"
	TaskFieldUserID            TaskField = "user_id"
)

// Valid reports whether f is a listable column.
func (f TaskField) Valid() bool {
	switch f {
	case TaskFieldBatchID, TaskFieldParentCharacterID, TaskFieldUserID:
		return true
	}
	return false
}

// TaskPatch rewrites a task's status together with its result and error
// columns. Nil pointers clear the column. When ExpectStatus is set the update
// only applies if the stored status still equals it.
type TaskPatch struct {
	ExpectStatus   TaskStatus
	Status         TaskStatus
	ResultImageURL *string
	ResultData     map[string]any
	ErrorMessage   *string
}

// Apply writes the patch onto t. Stores use it so every backend shares the
// same field semantics.
func (p TaskPatch) Apply(t *GenerationTask, now time.Time) {
	t.Status = p.Status
	t.ResultImageURL = cloneString(p.ResultImageURL)
	t.ResultData = nil
	if p.ResultData != nil {
		t.ResultData = make(map[string]any, len(p.ResultData))
		for k, v := range p.ResultData {
			t.ResultData[k] = v
		}
	}
	t.ErrorMessage = cloneString(p.ErrorMessage)
	t.UpdatedAt = now
}

// StringPtr returns a pointer to s, or nil when s is blank.
func StringPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
