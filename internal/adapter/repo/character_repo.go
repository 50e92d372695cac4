package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"ipstudio/internal/domain"
	"ipstudio/internal/infra"
	"ipstudio/internal/sqlinline"
)

// CharacterRepositoryPG implements domain.CharacterRepository.
type CharacterRepositoryPG struct {
	db infra.SQLExecutor
}

// NewCharacterRepository creates a character repository backed by PostgreSQL.
func NewCharacterRepository(db infra.SQLExecutor) *CharacterRepositoryPG {
	return &CharacterRepositoryPG{db: db}
}

func (r *CharacterRepositoryPG) Create(ctx context.Context, c *domain.IPCharacter) (*domain.IPCharacter, error) {
	if c == nil {
		return nil, domain.ErrInvalidInput
	}
	id := c.ID
	if id == "" {
		id = uuid.NewString()
	}
	out, err := scanCharacter(r.db.QueryRow(ctx, sqlinline.QInsertCharacter,
		id, c.UserID, c.Name, c.MainImageURL, domain.Deref(c.SourceTaskID)))
	if err != nil {
		return nil, fmt.Errorf("insert character: %w", err)
	}
	return out, nil
}

func (r *CharacterRepositoryPG) GetByID(ctx context.Context, id string) (*domain.IPCharacter, error) {
	out, err := scanCharacter(r.db.QueryRow(ctx, sqlinline.QSelectCharacterByID, id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get character: %w", err)
	}
	return out, nil
}

func (r *CharacterRepositoryPG) ListByUser(ctx context.Context, userID string) ([]domain.IPCharacter, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListCharactersByUser, userID)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()
	var out []domain.IPCharacter
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *CharacterRepositoryPG) SetViewURL(ctx context.Context, id string, side domain.ViewSide, url string) error {
	switch side {
	case domain.ViewSideLeft:
		return r.exec(ctx, sqlinline.QSetCharacterLeftView, id, url)
	case domain.ViewSideBack:
		return r.exec(ctx, sqlinline.QSetCharacterBackView, id, url)
	}
	return fmt.Errorf("%w: view side %q", domain.ErrInvalidInput, side)
}

func (r *CharacterRepositoryPG) SetModelURL(ctx context.Context, id string, url string) error {
	return r.exec(ctx, sqlinline.QSetCharacterModel, id, url)
}

// MergeMerchandiseURL merges one key in SQL so concurrent rollups for
// different keys never overwrite each other.
func (r *CharacterRepositoryPG) MergeMerchandiseURL(ctx context.Context, id, key, url string) error {
	return r.exec(ctx, sqlinline.QMergeCharacterMerchandise, id, key, url)
}

func (r *CharacterRepositoryPG) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return mapNotFound(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanCharacter(row pgx.Row) (*domain.IPCharacter, error) {
	var (
		c     domain.IPCharacter
		merch []byte
	)
	if err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&c.MainImageURL,
		&c.SourceTaskID,
		&c.LeftViewURL,
		&c.BackViewURL,
		&c.Model3DURL,
		&merch,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, mapNotFound(err)
	}
	c.MerchandiseURLs = map[string]string{}
	if len(merch) > 0 {
		if err := json.Unmarshal(merch, &c.MerchandiseURLs); err != nil {
			return nil, fmt.Errorf("decode merchandise_urls: %w", err)
		}
	}
	return &c, nil
}

var _ domain.CharacterRepository = (*CharacterRepositoryPG)(nil)
