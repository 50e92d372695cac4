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

const characterColumns = `id, user_id, name, main_image_url, source_task_id, left_view_url,
	back_view_url, model_3d_url, merchandise_urls, created_at, updated_at`

// CharacterStore implements domain.CharacterRepository on SQLite.
type CharacterStore struct {
	db *DB
}

func (s *CharacterStore) Create(ctx context.Context, c *domain.IPCharacter) (*domain.IPCharacter, error) {
	if c == nil {
		return nil, domain.ErrInvalidInput
	}
	now := formatTime(s.db.now())
	id := uuid.NewString()
	_, err := s.db.execWithRetry(ctx, `INSERT INTO ip_characters
		(id, user_id, name, main_image_url, source_task_id, merchandise_urls, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, '{}', ?, ?)`,
		id, c.UserID, c.Name, c.MainImageURL, nullString(c.SourceTaskID), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert character: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *CharacterStore) GetByID(ctx context.Context, id string) (*domain.IPCharacter, error) {
	row := s.db.db.QueryRowContext(ctx, `SELECT `+characterColumns+` FROM ip_characters WHERE id = ?`, id)
	c, err := scanCharacter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return c, err
}

func (s *CharacterStore) ListByUser(ctx context.Context, userID string) ([]domain.IPCharacter, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT `+characterColumns+` FROM ip_characters WHERE user_id = ? ORDER BY seq DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	out := make([]domain.IPCharacter, 0)
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	return out, nil
}

func (s *CharacterStore) SetViewURL(ctx context.Context, id string, side domain.ViewSide, url string) error {
	switch side {
	case domain.ViewSideLeft:
		return s.exec(ctx, `UPDATE ip_characters SET left_view_url = ?, updated_at = ? WHERE id = ?`, url, id)
	case domain.ViewSideBack:
		return s.exec(ctx, `UPDATE ip_characters SET back_view_url = ?, updated_at = ? WHERE id = ?`, url, id)
	default:
		return fmt.Errorf("%w: view side %q", domain.ErrInvalidInput, side)
	}
}

func (s *CharacterStore) SetModelURL(ctx context.Context, id string, url string) error {
	return s.exec(ctx, `UPDATE ip_characters SET model_3d_url = ?, updated_at = ? WHERE id = ?`, url, id)
}

// MergeMerchandiseURL uses json_set so concurrent writers of different keys
// never overwrite each other.
func (s *CharacterStore) MergeMerchandiseURL(ctx context.Context, id, key, url string) error {
	return s.exec(ctx, `UPDATE ip_characters
		SET merchandise_urls = json_set(merchandise_urls, '$."' || ? || '"', ?), updated_at = ?
		WHERE id = ?`, key, url, id)
}

// exec runs a single-row update whose last two placeholders are updated_at and id.
func (s *CharacterStore) exec(ctx context.Context, query string, args ...any) error {
	last := len(args) - 1
	full := make([]any, 0, len(args)+1)
	full = append(full, args[:last]...)
	full = append(full, formatTime(s.db.now()), args[last])
	res, err := s.db.execWithRetry(ctx, query, full...)
	if err != nil {
		return fmt.Errorf("update character: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update character: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanCharacter(row rowScanner) (*domain.IPCharacter, error) {
	var (
		c                                 domain.IPCharacter
		sourceTaskID, left, back, model3D sql.NullString
		merchandise, createdAt, updatedAt string
	)
	if err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&c.MainImageURL,
		&sourceTaskID,
		&left,
		&back,
		&model3D,
		&merchandise,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	c.SourceTaskID = stringPtr(sourceTaskID)
	c.LeftViewURL = stringPtr(left)
	c.BackViewURL = stringPtr(back)
	c.Model3DURL = stringPtr(model3D)
	c.MerchandiseURLs = map[string]string{}
	if merchandise != "" {
		if err := json.Unmarshal([]byte(merchandise), &c.MerchandiseURLs); err != nil {
			return nil, fmt.Errorf("decode merchandise_urls: %w", err)
		}
	}
	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
