package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/ecmcloud/ecm/internal/database"
)

// SQLSuperAdminRepository implements SuperAdminRepository on the master registry.
type SQLSuperAdminRepository struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

// NewSuperAdminRepository creates a new SuperAdminRepository.
func NewSuperAdminRepository(db *database.DB) SuperAdminRepository {
	return &SQLSuperAdminRepository{db: db.SQL(), sb: db.Builder()}
}

// Create inserts a new super-admin record.
func (r *SQLSuperAdminRepository) Create(ctx context.Context, a *SuperAdmin) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query, args, err := r.sb.Insert("super_admins").
		Columns("username", "password_hash", "created_at").
		Values(a.Username, a.PasswordHash, a.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("building super admin insert: %w", err)
	}

	if err := r.db.GetContext(ctx, &a.ID, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateSuperAdmin
		}
		return fmt.Errorf("inserting super admin: %w", err)
	}
	return nil
}

// GetByID retrieves a super-admin by id.
func (r *SQLSuperAdminRepository) GetByID(ctx context.Context, id int64) (*SuperAdmin, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

// GetByUsername retrieves a super-admin by username.
func (r *SQLSuperAdminRepository) GetByUsername(ctx context.Context, username string) (*SuperAdmin, error) {
	return r.getOne(ctx, sq.Eq{"username": username})
}

func (r *SQLSuperAdminRepository) getOne(ctx context.Context, where sq.Eq) (*SuperAdmin, error) {
	query, args, err := r.sb.Select("id", "username", "password_hash", "created_at").
		From("super_admins").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building super admin query: %w", err)
	}

	var a SuperAdmin
	if err := r.db.GetContext(ctx, &a, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSuperAdminNotFound
		}
		return nil, fmt.Errorf("querying super admin: %w", err)
	}
	return &a, nil
}

// CountAll returns the number of super-admins.
func (r *SQLSuperAdminRepository) CountAll(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM super_admins"); err != nil {
		return 0, fmt.Errorf("counting super admins: %w", err)
	}
	return n, nil
}
