package company

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/ecmcloud/ecm/internal/database"
	"github.com/ecmcloud/ecm/internal/plan"
)

// maxCodeAttempts bounds the search for an unused generated code.
const maxCodeAttempts = 10

var companyColumns = []string{
	"id", "company_code", "name", "email", "plan_type",
	"max_users", "max_projects", "storage_limit_mb", "data_retention_days", "storage_used_mb",
	"is_active", "verification_token", "verified_at", "created_at", "last_login_at", "expires_at",
}

// SQLRepository implements Repository on the master registry.
type SQLRepository struct {
	db sqlx.ExtContext
	sb sq.StatementBuilderType
}

// NewRepository creates a new Repository backed by the master registry.
func NewRepository(db *database.DB) Repository {
	return &SQLRepository{db: db.SQL(), sb: db.Builder()}
}

// WithTx returns a Repository that runs every statement inside tx.
func (r *SQLRepository) WithTx(tx *sqlx.Tx) Repository {
	return &SQLRepository{db: tx, sb: r.sb}
}

// Create inserts a new company. When c.CompanyCode is empty a code not yet in
// use is generated.
func (r *SQLRepository) Create(ctx context.Context, c *Company) error {
	generated := c.CompanyCode == ""
	if generated {
		code, err := r.unusedCode(ctx)
		if err != nil {
			return err
		}
		c.CompanyCode = code
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	query, args, err := r.sb.
		Insert("companies").
		Columns(
			"company_code", "name", "email", "plan_type",
			"max_users", "max_projects", "storage_limit_mb", "data_retention_days", "storage_used_mb",
			"is_active", "verification_token", "verified_at", "created_at", "expires_at",
		).
		Values(
			c.CompanyCode, c.Name, c.Email, c.PlanType,
			c.MaxUsers, c.MaxProjects, c.StorageLimitMB, c.DataRetentionDays, c.StorageUsedMB,
			c.IsActive, c.VerificationToken, c.VerifiedAt, c.CreatedAt, c.ExpiresAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("building company insert: %w", err)
	}

	if err := sqlx.GetContext(ctx, r.db, &c.ID, query, args...); err != nil {
		switch {
		case database.IsUniqueViolationOn(err, "company_code"):
			if generated {
				c.CompanyCode = ""
				return ErrCodeCollision
			}
			return ErrDuplicateCode
		case database.IsUniqueViolationOn(err, "name"):
			if generated {
				c.CompanyCode = ""
			}
			return ErrDuplicateName
		}
		return fmt.Errorf("inserting company: %w", err)
	}

	return nil
}

func (r *SQLRepository) unusedCode(ctx context.Context) (string, error) {
	for range maxCodeAttempts {
		code, err := GenerateCode()
		if err != nil {
			return "", err
		}
		_, err = r.GetByCode(ctx, code)
		if errors.Is(err, ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", ErrCodeCollision
}

// GetByID retrieves a single company by id.
func (r *SQLRepository) GetByID(ctx context.Context, id int64) (*Company, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

// GetByCode retrieves a single company by its login code.
func (r *SQLRepository) GetByCode(ctx context.Context, code string) (*Company, error) {
	return r.getOne(ctx, sq.Eq{"company_code": code})
}

// GetByVerificationToken retrieves the company awaiting verification with token.
func (r *SQLRepository) GetByVerificationToken(ctx context.Context, token string) (*Company, error) {
	return r.getOne(ctx, sq.Eq{"verification_token": token})
}

func (r *SQLRepository) getOne(ctx context.Context, where sq.Eq) (*Company, error) {
	query, args, err := r.sb.Select(companyColumns...).From("companies").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building company query: %w", err)
	}

	var c Company
	if err := sqlx.GetContext(ctx, r.db, &c, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying company: %w", err)
	}
	return &c, nil
}

// List retrieves all companies, newest first.
func (r *SQLRepository) List(ctx context.Context) ([]Company, error) {
	query, args, err := r.sb.Select(companyColumns...).From("companies").OrderBy("created_at DESC", "id DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building company list: %w", err)
	}

	companies := []Company{}
	if err := sqlx.SelectContext(ctx, r.db, &companies, query, args...); err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}
	return companies, nil
}

// ToggleActive flips is_active and returns the updated company.
func (r *SQLRepository) ToggleActive(ctx context.Context, id int64) (*Company, error) {
	if err := r.update(ctx, id, map[string]any{"is_active": sq.Expr("NOT is_active")}); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// UpdatePlan changes the plan and its quota fields only.
func (r *SQLRepository) UpdatePlan(ctx context.Context, id int64, planType string, q plan.Quota) (*Company, error) {
	err := r.update(ctx, id, map[string]any{
		"plan_type":           planType,
		"max_users":           q.MaxUsers,
		"max_projects":        q.MaxProjects,
		"storage_limit_mb":    q.StorageLimitMB,
		"data_retention_days": q.DataRetentionDays,
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Activate marks a self-registered company verified and active.
func (r *SQLRepository) Activate(ctx context.Context, id int64, verifiedAt time.Time, expiresAt *time.Time) error {
	return r.update(ctx, id, map[string]any{
		"is_active":          true,
		"verified_at":        verifiedAt,
		"verification_token": nil,
		"expires_at":         expiresAt,
	})
}

// TouchLastLogin records a successful login.
func (r *SQLRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.update(ctx, id, map[string]any{"last_login_at": at})
}

// UpdateStorageUsed records the measured size of the tenant store.
func (r *SQLRepository) UpdateStorageUsed(ctx context.Context, id int64, mb float64) error {
	return r.update(ctx, id, map[string]any{"storage_used_mb": mb})
}

func (r *SQLRepository) update(ctx context.Context, id int64, set map[string]any) error {
	query, args, err := r.sb.Update("companies").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building company update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating company: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the company and its users.
func (r *SQLRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := r.sb.Delete("users").Where(sq.Eq{"company_id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building user delete: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting company users: %w", err)
	}

	query, args, err = r.sb.Delete("companies").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building company delete: %w", err)
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting company: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats counts companies by state and plan.
func (r *SQLRepository) Stats(ctx context.Context) (*Stats, error) {
	query, args, err := r.sb.Select(
		"COUNT(*) AS total",
		"COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0) AS active",
		"COALESCE(SUM(CASE WHEN plan_type <> 'free' THEN 1 ELSE 0 END), 0) AS paid",
		"COALESCE(SUM(CASE WHEN plan_type = 'free' THEN 1 ELSE 0 END), 0) AS free",
	).From("companies").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building company stats: %w", err)
	}

	var s Stats
	if err := sqlx.GetContext(ctx, r.db, &s, query, args...); err != nil {
		return nil, fmt.Errorf("querying company stats: %w", err)
	}
	return &s, nil
}
