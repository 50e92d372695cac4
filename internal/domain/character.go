package domain

import "time"

// ViewSide identifies one of the rendered character views.
type ViewSide string

const (
	ViewSideLeft ViewSide = "left"
	ViewSideBack ViewSide = "back"
)

// IPCharacter is the parent entity whose aggregate state is derived from its
// child generation tasks.
type IPCharacter struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	Name            string            `json:"name"`
	MainImageURL    string            `json:"main_image_url"`
	SourceTaskID    *string           `json:"source_task_id,omitempty"`
	LeftViewURL     *string           `json:"left_view_url,omitempty"`
	BackViewURL     *string           `json:"back_view_url,omitempty"`
	Model3DURL      *string           `json:"model_3d_url,omitempty"`
	MerchandiseURLs map[string]string `json:"merchandise_urls"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// CharacterView decorates a character with statuses derived from its tasks.
type CharacterView struct {
	IPCharacter
	InitialTaskStatus     TaskStatus  `json:"initial_task_status"`
	MerchandiseTaskStatus *TaskStatus `json:"merchandise_task_status"`
}

// BatchSummary is a count-by-status reduction over sibling tasks.
type BatchSummary struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Terminal reports whether every counted task is completed or failed.
// An empty summary is never terminal.
func (s BatchSummary) Terminal() bool {
	return s.Total > 0 && s.Completed+s.Failed == s.Total
}

// Summarize counts tasks by status.
func Summarize(tasks []GenerationTask) BatchSummary {
	var s BatchSummary
	for _, t := range tasks {
		s.Total++
		switch t.Status {
		case TaskStatusPending:
			s.Pending++
		case TaskStatusProcessing:
			s.Processing++
		case TaskStatusCompleted:
			s.Completed++
		case TaskStatusFailed:
			s.Failed++
		}
	}
	return s
}
