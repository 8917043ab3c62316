package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/ecmcloud/ecm/internal/auth"
	"github.com/ecmcloud/ecm/internal/database"
	"github.com/ecmcloud/ecm/internal/plan"
)

var projectColumns = []string{
	"id", "user_id", "project_code", "period", "is_general_expense", "name", "client_name",
	"estimate_number", "contract_amount", "tax_type", "tax_rate", "status",
	"start_date", "end_date", "invoice_date", "payment_date", "notes", "created_at", "updated_at",
}

// ListProjects returns projects matching filter.
func (s *Service) ListProjects(ctx context.Context, companyID int64, filter ProjectFilter) (*ProjectList, error) {
	filter.normalize()

	var where sq.Sqlizer
	if filter.UserID != nil {
		where = sq.Eq{"user_id": *filter.UserID}
	}

	result := &ProjectList{Projects: []Project{}, Page: filter.Page, Limit: filter.Limit}
	err := s.view(ctx, companyID, func(st *store) error {
		total, err := st.count(ctx, "projects", where)
		if err != nil {
			return err
		}
		result.Total = total

		b := st.sb.Select(projectColumns...).From("projects").
			OrderBy("created_at DESC", "id DESC").
			Limit(uint64(filter.Limit)).
			Offset(filter.offset())
		if where != nil {
			b = b.Where(where)
		}
		if err := st.selectAll(ctx, &result.Projects, b); err != nil {
			return fmt.Errorf("listing projects: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetProject returns a single project.
func (s *Service) GetProject(ctx context.Context, companyID, id int64) (*Project, error) {
	var p *Project
	err := s.view(ctx, companyID, func(st *store) error {
		var err error
		p, err = st.project(ctx, id)
		return err
	})
	return p, err
}

// CreateProject records a new project owned by the calling user. The project
// is stamped with the current fiscal period and counts against the company's
// project quota.
func (s *Service) CreateProject(ctx context.Context, identity *auth.Identity, p *Project) error {
	c, err := s.companies.GetByID(ctx, identity.CompanyID)
	if err != nil {
		return fmt.Errorf("looking up company: %w", err)
	}

	err = s.update(ctx, identity.CompanyID, func(st *store) error {
		count, err := st.count(ctx, "projects", nil)
		if err != nil {
			return err
		}
		if !plan.Allows(c.MaxProjects, count) {
			return ErrQuotaExceeded
		}

		if err := st.checkProjectCode(ctx, identity.UserID, p.ProjectCode, 0); err != nil {
			return err
		}

		fs, err := st.fiscal(ctx)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		period := fs.PeriodAt(now)
		p.UserID = identity.UserID
		p.Period = &period
		p.CreatedAt = now
		p.UpdatedAt = now
		applyProjectDefaults(p)

		id, err := st.insert(ctx, st.sb.Insert("projects").
			Columns(
				"user_id", "project_code", "period", "is_general_expense", "name", "client_name",
				"estimate_number", "contract_amount", "tax_type", "tax_rate", "status",
				"start_date", "end_date", "invoice_date", "payment_date", "notes", "created_at", "updated_at",
			).
			Values(
				p.UserID, p.ProjectCode, p.Period, p.IsGeneralExpense, p.Name, p.ClientName,
				p.EstimateNumber, p.ContractAmount, p.TaxType, p.TaxRate, p.Status,
				nullIfEmpty(p.StartDate), nullIfEmpty(p.EndDate), nullIfEmpty(p.InvoiceDate), nullIfEmpty(p.PaymentDate),
				p.Notes, p.CreatedAt, p.UpdatedAt,
			))
		if err != nil {
			if database.IsUniqueViolationOn(err, "project_code") {
				return ErrDuplicateProjectCode
			}
			return fmt.Errorf("inserting project: %w", err)
		}
		p.ID = id
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("project created",
		zap.Int64("companyId", identity.CompanyID),
		zap.Int64("projectId", p.ID),
		zap.String("projectCode", p.ProjectCode),
	)
	return nil
}

func applyProjectDefaults(p *Project) {
	if p.TaxType == "" {
		p.TaxType = TaxIncluded
	}
	if p.TaxRate == 0 {
		p.TaxRate = 10
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
}

// UpdateProject applies a partial update. Changing the project code keeps it
// unique for the project's owner.
func (s *Service) UpdateProject(ctx context.Context, companyID, id int64, fields ProjectUpdate) (*Project, error) {
	var p *Project
	err := s.update(ctx, companyID, func(st *store) error {
		existing, err := st.project(ctx, id)
		if err != nil {
			return err
		}

		if fields.ProjectCode != nil && *fields.ProjectCode != existing.ProjectCode {
			if err := st.checkProjectCode(ctx, existing.UserID, *fields.ProjectCode, id); err != nil {
				return err
			}
		}

		set := map[string]any{"updated_at": s.now().UTC()}
		setString(set, "project_code", fields.ProjectCode)
		setString(set, "name", fields.Name)
		setValue(set, "is_general_expense", fields.IsGeneralExpense)
		setString(set, "client_name", fields.ClientName)
		setString(set, "estimate_number", fields.EstimateNumber)
		setValue(set, "contract_amount", fields.ContractAmount)
		setString(set, "tax_type", fields.TaxType)
		setValue(set, "tax_rate", fields.TaxRate)
		setString(set, "status", fields.Status)
		setDate(set, "start_date", fields.StartDate)
		setDate(set, "end_date", fields.EndDate)
		setDate(set, "invoice_date", fields.InvoiceDate)
		setDate(set, "payment_date", fields.PaymentDate)
		setString(set, "notes", fields.Notes)

		if err := st.exec(ctx, st.sb.Update("projects").SetMap(set).Where(sq.Eq{"id": id})); err != nil {
			if database.IsUniqueViolationOn(err, "project_code") {
				return ErrDuplicateProjectCode
			}
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return fmt.Errorf("updating project: %w", err)
		}

		p, err = st.project(ctx, id)
		return err
	})
	return p, err
}

// DeleteProject removes a project and its costs.
func (s *Service) DeleteProject(ctx context.Context, companyID, id int64) error {
	return s.update(ctx, companyID, func(st *store) error {
		if err := st.exec(ctx, st.sb.Delete("projects").Where(sq.Eq{"id": id})); err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return fmt.Errorf("deleting project: %w", err)
		}
		return nil
	})
}

func (st *store) project(ctx context.Context, id int64) (*Project, error) {
	var p Project
	if err := st.get(ctx, &p, st.sb.Select(projectColumns...).From("projects").Where(sq.Eq{"id": id})); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying project: %w", err)
	}
	return &p, nil
}

// checkProjectCode fails when userID already has a project with code, other
// than the project being updated.
func (st *store) checkProjectCode(ctx context.Context, userID int64, code string, exceptID int64) error {
	where := sq.And{sq.Eq{"user_id": userID, "project_code": code}}
	if exceptID != 0 {
		where = append(where, sq.NotEq{"id": exceptID})
	}
	n, err := st.count(ctx, "projects", where)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrDuplicateProjectCode
	}
	return nil
}
