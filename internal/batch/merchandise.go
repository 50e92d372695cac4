package batch

import (
	"context"
	"fmt"

	"ipstudio/internal/domain"
	"ipstudio/internal/providers"
	"ipstudio/internal/task"
)

// MerchandiseRequest selects what a merchandise launch generates.
type MerchandiseRequest struct {
	Kinds        []string
	Custom       []string
	IncludeModel bool
}

// LaunchMerchandise fans out derived artifacts for a character owned by
// userID. With IncludeModel the batch also carries both multi-view renders
// and the 3D model that waits on them.
func (c *Coordinator) LaunchMerchandise(ctx context.Context, userID, characterID string, req MerchandiseRequest) (*Launched, error) {
	if c.characters == nil {
		return nil, fmt.Errorf("%w: characters are not configured", domain.ErrInvalidState)
	}
	char, err := c.characters.GetByID(ctx, characterID)
	if err != nil {
		return nil, err
	}
	if char.UserID != userID {
		return nil, domain.ErrNotFound
	}

	base := task.CreateParams{
		OriginalImageURL:  char.MainImageURL,
		UserID:            userID,
		ParentCharacterID: char.ID,
	}
	var items []task.CreateParams
	add := func(t domain.TaskType, description string) {
		item := base
		item.TaskType = t
		item.Prompt = providers.BuildTaskPrompt(t, char.Name, description)
		items = append(items, item)
	}

	if req.IncludeModel {
		add(domain.TaskTypeMultiViewLeft, "")
		add(domain.TaskTypeMultiViewBack, "")
		add(domain.TaskType3DModel, "")
	}
	for _, kind := range req.Kinds {
		t, err := domain.ParseTaskType(kind)
		if err != nil || !t.IsMerchandise() || t == domain.TaskTypeMerchCustom {
			return nil, fmt.Errorf("%w: merchandise kind %q", domain.ErrInvalidTaskType, kind)
		}
		add(t, "")
	}
	for _, description := range req.Custom {
		add(domain.TaskTypeMerchCustom, description)
	}
	return c.Launch(ctx, items)
}
