package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/ecmcloud/ecm/internal/database"
)

var costColumns = []string{
	"id", "project_id", "date", "vendor", "description", "amount", "tax_type", "tax_amount",
	"total_amount", "category", "payment_status", "payment_date", "created_at", "updated_at",
}

// ListCosts returns costs matching filter, most recent date first.
func (s *Service) ListCosts(ctx context.Context, companyID int64, filter CostFilter) (*CostList, error) {
	filter.normalize()

	var where sq.Sqlizer
	if filter.ProjectID != nil {
		where = sq.Eq{"project_id": *filter.ProjectID}
	}

	result := &CostList{Costs: []Cost{}, Page: filter.Page, Limit: filter.Limit}
	err := s.view(ctx, companyID, func(st *store) error {
		total, err := st.count(ctx, "costs", where)
		if err != nil {
			return err
		}
		result.Total = total

		b := st.sb.Select(costColumns...).From("costs").
			OrderBy("date DESC", "id DESC").
			Limit(uint64(filter.Limit)).
			Offset(filter.offset())
		if where != nil {
			b = b.Where(where)
		}
		if err := st.selectAll(ctx, &result.Costs, b); err != nil {
			return fmt.Errorf("listing costs: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetCost returns a single cost.
func (s *Service) GetCost(ctx context.Context, companyID, id int64) (*Cost, error) {
	var c *Cost
	err := s.view(ctx, companyID, func(st *store) error {
		var err error
		c, err = st.cost(ctx, id)
		return err
	})
	return c, err
}

// CreateCost books a cost against an existing project.
func (s *Service) CreateCost(ctx context.Context, companyID int64, c *Cost) error {
	return s.update(ctx, companyID, func(st *store) error {
		if err := st.requireProject(ctx, c.ProjectID); err != nil {
			return err
		}

		now := s.now().UTC()
		c.CreatedAt = now
		c.UpdatedAt = now
		if c.TaxType == "" {
			c.TaxType = TaxIncluded
		}
		if c.Category == "" {
			c.Category = DefaultCostCategory
		}
		if c.PaymentStatus == "" {
			c.PaymentStatus = PaymentUnpaid
		}

		id, err := st.insert(ctx, st.sb.Insert("costs").
			Columns(
				"project_id", "date", "vendor", "description", "amount", "tax_type", "tax_amount",
				"total_amount", "category", "payment_status", "payment_date", "created_at", "updated_at",
			).
			Values(
				c.ProjectID, c.Date, c.Vendor, c.Description, c.Amount, c.TaxType, c.TaxAmount,
				c.TotalAmount, c.Category, c.PaymentStatus, nullIfEmpty(c.PaymentDate), c.CreatedAt, c.UpdatedAt,
			))
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return ErrProjectNotFound
			}
			return fmt.Errorf("inserting cost: %w", err)
		}
		c.ID = id
		return nil
	})
}

// UpdateCost applies a partial update. Moving a cost requires the target
// project to exist.
func (s *Service) UpdateCost(ctx context.Context, companyID, id int64, fields CostUpdate) (*Cost, error) {
	var c *Cost
	err := s.update(ctx, companyID, func(st *store) error {
		if fields.ProjectID != nil {
			if err := st.requireProject(ctx, *fields.ProjectID); err != nil {
				return err
			}
		}

		set := map[string]any{"updated_at": s.now().UTC()}
		setValue(set, "project_id", fields.ProjectID)
		setString(set, "date", fields.Date)
		setString(set, "vendor", fields.Vendor)
		setString(set, "description", fields.Description)
		setValue(set, "amount", fields.Amount)
		setString(set, "tax_type", fields.TaxType)
		setValue(set, "tax_amount", fields.TaxAmount)
		setValue(set, "total_amount", fields.TotalAmount)
		setString(set, "category", fields.Category)
		setString(set, "payment_status", fields.PaymentStatus)
		setDate(set, "payment_date", fields.PaymentDate)

		if err := st.exec(ctx, st.sb.Update("costs").SetMap(set).Where(sq.Eq{"id": id})); err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return fmt.Errorf("updating cost: %w", err)
		}

		var err error
		c, err = st.cost(ctx, id)
		return err
	})
	return c, err
}

// DeleteCost removes a cost.
func (s *Service) DeleteCost(ctx context.Context, companyID, id int64) error {
	return s.update(ctx, companyID, func(st *store) error {
		if err := st.exec(ctx, st.sb.Delete("costs").Where(sq.Eq{"id": id})); err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return fmt.Errorf("deleting cost: %w", err)
		}
		return nil
	})
}

func (st *store) cost(ctx context.Context, id int64) (*Cost, error) {
	var c Cost
	if err := st.get(ctx, &c, st.sb.Select(costColumns...).From("costs").Where(sq.Eq{"id": id})); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying cost: %w", err)
	}
	return &c, nil
}

func (st *store) requireProject(ctx context.Context, projectID int64) error {
	n, err := st.count(ctx, "projects", sq.Eq{"id": projectID})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProjectNotFound
	}
	return nil
}
