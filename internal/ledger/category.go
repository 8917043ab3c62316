package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/ecmcloud/ecm/internal/database"
)

const defaultCategoryColor = "#6B7280"

var categoryColumns = []string{"id", "name", "color", "display_order", "is_default", "is_active", "created_at"}

// ListCategories returns active categories in display order.
func (s *Service) ListCategories(ctx context.Context, companyID int64) ([]Category, error) {
	categories := []Category{}
	err := s.view(ctx, companyID, func(st *store) error {
		return st.selectAll(ctx, &categories, st.sb.Select(categoryColumns...).From("cost_categories").
			Where(sq.Eq{"is_active": true}).
			OrderBy("display_order", "id"))
	})
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return categories, nil
}

// CreateCategory records a custom category. Custom categories are never
// defaults.
func (s *Service) CreateCategory(ctx context.Context, companyID int64, c *Category) error {
	return s.update(ctx, companyID, func(st *store) error {
		c.IsDefault = false
		c.CreatedAt = s.now().UTC()
		if c.Color == "" {
			c.Color = defaultCategoryColor
		}
		if c.DisplayOrder == 0 {
			c.DisplayOrder = 999
		}

		id, err := st.insert(ctx, st.sb.Insert("cost_categories").
			Columns("name", "color", "display_order", "is_default", "is_active", "created_at").
			Values(c.Name, c.Color, c.DisplayOrder, c.IsDefault, c.IsActive, c.CreatedAt))
		if err != nil {
			if database.IsUniqueViolation(err) {
				return ErrDuplicateCategory
			}
			return fmt.Errorf("inserting category: %w", err)
		}
		c.ID = id
		return nil
	})
}

// UpdateCategory applies a partial update to a custom category.
func (s *Service) UpdateCategory(ctx context.Context, companyID, id int64, fields CategoryUpdate) (*Category, error) {
	var c *Category
	err := s.update(ctx, companyID, func(st *store) error {
		existing, err := st.category(ctx, id)
		if err != nil {
			return err
		}
		if existing.IsDefault {
			return ErrDefaultCategory
		}

		set := map[string]any{}
		setString(set, "name", fields.Name)
		setString(set, "color", fields.Color)
		setValue(set, "display_order", fields.DisplayOrder)
		setValue(set, "is_active", fields.IsActive)
		if len(set) > 0 {
			if err := st.exec(ctx, st.sb.Update("cost_categories").SetMap(set).Where(sq.Eq{"id": id})); err != nil {
				if database.IsUniqueViolation(err) {
					return ErrDuplicateCategory
				}
				return fmt.Errorf("updating category: %w", err)
			}
		}

		c, err = st.category(ctx, id)
		return err
	})
	return c, err
}

// DeleteCategory removes a custom category.
func (s *Service) DeleteCategory(ctx context.Context, companyID, id int64) error {
	return s.update(ctx, companyID, func(st *store) error {
		existing, err := st.category(ctx, id)
		if err != nil {
			return err
		}
		if existing.IsDefault {
			return ErrDefaultCategory
		}
		if err := st.exec(ctx, st.sb.Delete("cost_categories").Where(sq.Eq{"id": id})); err != nil {
			return fmt.Errorf("deleting category: %w", err)
		}
		return nil
	})
}

func (st *store) category(ctx context.Context, id int64) (*Category, error) {
	var c Category
	if err := st.get(ctx, &c, st.sb.Select(categoryColumns...).From("cost_categories").Where(sq.Eq{"id": id})); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying category: %w", err)
	}
	return &c, nil
}
