package jsoncfg

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"ipstudio/internal/domain"
)

const (
	// MaxPromptLength caps the instruction text forwarded to producers.
	MaxPromptLength = 2000
	// MaxCustomMerchandise caps ad-hoc merchandise items per launch.
	MaxCustomMerchandise = 5
	// MaxCharacterNameLength caps character display names.
	MaxCharacterNameLength = 80
)

// CreateTaskJSON is the body of POST /v1/tasks.
type CreateTaskJSON struct {
	TaskType          string `json:"task_type"`
	Prompt            string `json:"prompt"`
	OriginalImageURL  string `json:"original_image_url"`
	BatchID           string `json:"batch_id"`
	ParentCharacterID string `json:"parent_character_id"`
}

// Normalize trims whitespace from every field.
func (p *CreateTaskJSON) Normalize() {
	if p == nil {
		return
	}
	p.TaskType = strings.ToLower(strings.TrimSpace(p.TaskType))
	p.Prompt = strings.TrimSpace(p.Prompt)
	p.OriginalImageURL = strings.TrimSpace(p.OriginalImageURL)
	p.BatchID = strings.TrimSpace(p.BatchID)
	p.ParentCharacterID = strings.TrimSpace(p.ParentCharacterID)
}

// Validate checks the request before any row is created.
func (p CreateTaskJSON) Validate() error {
	if _, err := domain.ParseTaskType(p.TaskType); err != nil {
		return fmt.Errorf("task_type %q is not supported", p.TaskType)
	}
	if p.Prompt == "" {
		return fmt.Errorf("prompt is required")
	}
	if len(p.Prompt) > MaxPromptLength {
		return fmt.Errorf("prompt must be at most %d characters", MaxPromptLength)
	}
	if p.OriginalImageURL != "" && !validURL(p.OriginalImageURL) {
		return fmt.Errorf("original_image_url must be an absolute http(s) url")
	}
	return nil
}

// CreateCharacterJSON is the body of POST /v1/characters.
type CreateCharacterJSON struct {
	TaskID string `json:"task_id"`
	Name   string `json:"name"`
}

// Normalize trims whitespace from every field.
func (p *CreateCharacterJSON) Normalize() {
	if p == nil {
		return
	}
	p.TaskID = strings.TrimSpace(p.TaskID)
	p.Name = strings.TrimSpace(p.Name)
}

// Validate checks the request before the character is created.
func (p CreateCharacterJSON) Validate() error {
	if p.TaskID == "" {
		return fmt.Errorf("task_id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(p.Name) > MaxCharacterNameLength {
		return fmt.Errorf("name must be at most %d characters", MaxCharacterNameLength)
	}
	return nil
}

// MerchandiseJSON is the body of POST /v1/characters/{id}/merchandise.
type MerchandiseJSON struct {
	Kinds        []string `json:"kinds"`
	Custom       []string `json:"custom"`
	IncludeModel bool     `json:"include_model"`
}

// Normalize lowercases kinds, drops duplicates and blank custom entries.
func (p *MerchandiseJSON) Normalize() {
	if p == nil {
		return
	}
	seen := make(map[string]struct{}, len(p.Kinds))
	kinds := make([]string, 0, len(p.Kinds))
	for _, k := range p.Kinds {
		k = strings.ToLower(strings.TrimSpace(k))
		k = strings.TrimPrefix(k, "merchandise_")
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		kinds = append(kinds, k)
	}
	p.Kinds = kinds
	custom := make([]string, 0, len(p.Custom))
	for _, c := range p.Custom {
		if c = strings.TrimSpace(c); c != "" {
			custom = append(custom, c)
		}
	}
	p.Custom = custom
}

// Validate ensures the launch produces at least one task and only uses known kinds.
func (p MerchandiseJSON) Validate() error {
	for _, k := range p.Kinds {
		t, err := domain.ParseTaskType(k)
		if err != nil || !t.IsMerchandise() || t == domain.TaskTypeMerchCustom {
			return fmt.Errorf("kind %q is not supported", k)
		}
	}
	if len(p.Custom) > MaxCustomMerchandise {
		return fmt.Errorf("at most %d custom items are allowed", MaxCustomMerchandise)
	}
	for _, c := range p.Custom {
		if len(c) > MaxPromptLength {
			return fmt.Errorf("custom description must be at most %d characters", MaxPromptLength)
		}
	}
	if len(p.Kinds) == 0 && len(p.Custom) == 0 && !p.IncludeModel {
		return fmt.Errorf("nothing to generate")
	}
	return nil
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("json marshal: %w", err))
	}
	return b
}
