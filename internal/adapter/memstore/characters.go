package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ipstudio/internal/domain"
)

// CharacterStore implements domain.CharacterRepository.
type CharacterStore struct {
	mu    sync.Mutex
	chars map[string]*domain.IPCharacter
}

// NewCharacterStore returns an empty store.
func NewCharacterStore() *CharacterStore {
	return &CharacterStore{chars: make(map[string]*domain.IPCharacter)}
}

func (s *CharacterStore) Create(ctx context.Context, c *domain.IPCharacter) (*domain.IPCharacter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrInvalidInput
	}
	row := cloneCharacter(*c)
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.MerchandiseURLs == nil {
		row.MerchandiseURLs = map[string]string{}
	}
	now := time.Now().UTC()
	row.CreatedAt = now
	row.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chars[row.ID] = &row
	out := cloneCharacter(row)
	return &out, nil
}

func (s *CharacterStore) GetByID(ctx context.Context, id string) (*domain.IPCharacter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.chars[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneCharacter(*row)
	return &out, nil
}

func (s *CharacterStore) ListByUser(ctx context.Context, userID string) ([]domain.IPCharacter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.IPCharacter
	for _, row := range s.chars {
		if row.UserID == userID {
			out = append(out, cloneCharacter(*row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *CharacterStore) SetViewURL(ctx context.Context, id string, side domain.ViewSide, url string) error {
	return s.mutate(ctx, id, func(c *domain.IPCharacter) error {
		switch side {
		case domain.ViewSideLeft:
			c.LeftViewURL = domain.StringPtr(url)
		case domain.ViewSideBack:
			c.BackViewURL = domain.StringPtr(url)
		default:
			return domain.ErrInvalidInput
		}
		return nil
	})
}

func (s *CharacterStore) SetModelURL(ctx context.Context, id string, url string) error {
	return s.mutate(ctx, id, func(c *domain.IPCharacter) error {
		c.Model3DURL = domain.StringPtr(url)
		return nil
	})
}

func (s *CharacterStore) MergeMerchandiseURL(ctx context.Context, id, key, url string) error {
	return s.mutate(ctx, id, func(c *domain.IPCharacter) error {
		if c.MerchandiseURLs == nil {
			c.MerchandiseURLs = map[string]string{}
		}
		c.MerchandiseURLs[key] = url
		return nil
	})
}

func (s *CharacterStore) mutate(ctx context.Context, id string, fn func(*domain.IPCharacter) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.chars[id]
	if !ok {
		return domain.ErrNotFound
	}
	if err := fn(row); err != nil {
		return err
	}
	row.UpdatedAt = time.Now().UTC()
	return nil
}

func cloneCharacter(c domain.IPCharacter) domain.IPCharacter {
	out := c
	out.SourceTaskID = clonePtr(c.SourceTaskID)
	out.LeftViewURL = clonePtr(c.LeftViewURL)
	out.BackViewURL = clonePtr(c.BackViewURL)
	out.Model3DURL = clonePtr(c.Model3DURL)
	out.MerchandiseURLs = make(map[string]string, len(c.MerchandiseURLs))
	for k, v := range c.MerchandiseURLs {
		out.MerchandiseURLs[k] = v
	}
	return out
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

var _ domain.CharacterRepository = (*CharacterStore)(nil)
