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

var userColumns = []string{
	"id", "company_id", "username", "name", "password_hash", "role",
	"staff_code", "permissions", "is_active", "created_at", "last_login_at",
}

// SQLRepository implements UserRepository on the master registry.
type SQLRepository struct {
	db sqlx.ExtContext
	sb sq.StatementBuilderType
}

// NewRepository creates a new UserRepository backed by the master registry.
func NewRepository(db *database.DB) UserRepository {
	return &SQLRepository{db: db.SQL(), sb: db.Builder()}
}

// WithTx returns a UserRepository that runs every statement inside tx.
func (r *SQLRepository) WithTx(tx *sqlx.Tx) UserRepository {
	return &SQLRepository{db: tx, sb: r.sb}
}

// Create inserts a new user record.
func (r *SQLRepository) Create(ctx context.Context, u *User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.Permissions == nil {
		u.Permissions = DefaultPermissions()
	}

	query, args, err := r.sb.
		Insert("users").
		Columns("company_id", "username", "name", "password_hash", "role", "staff_code", "permissions", "is_active", "created_at").
		Values(u.CompanyID, u.Username, u.Name, u.PasswordHash, u.Role, u.StaffCode, u.Permissions, u.IsActive, u.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("building user insert: %w", err)
	}

	if err := sqlx.GetContext(ctx, r.db, &u.ID, query, args...); err != nil {
		return mapUserWriteError(err, "inserting user")
	}
	return nil
}

func mapUserWriteError(err error, op string) error {
	switch {
	case database.IsUniqueViolationOn(err, "staff_code"):
		return ErrDuplicateStaffCode
	case database.IsUniqueViolationOn(err, "username"):
		return ErrDuplicateUsername
	}
	return fmt.Errorf("%s: %w", op, err)
}

// GetByID retrieves a single user by id.
func (r *SQLRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

// GetInCompany retrieves a user only if it belongs to companyID.
func (r *SQLRepository) GetInCompany(ctx context.Context, companyID, id int64) (*User, error) {
	return r.getOne(ctx, sq.Eq{"id": id, "company_id": companyID})
}

// GetByUsername retrieves a user by username within a company.
func (r *SQLRepository) GetByUsername(ctx context.Context, companyID int64, username string) (*User, error) {
	return r.getOne(ctx, sq.Eq{"company_id": companyID, "username": username})
}

func (r *SQLRepository) getOne(ctx context.Context, where sq.Eq) (*User, error) {
	query, args, err := r.sb.Select(userColumns...).From("users").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building user query: %w", err)
	}

	var u User
	if err := sqlx.GetContext(ctx, r.db, &u, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &u, nil
}

// ListByCompany returns the company's users in creation order.
func (r *SQLRepository) ListByCompany(ctx context.Context, companyID int64) ([]User, error) {
	query, args, err := r.sb.Select(userColumns...).From("users").
		Where(sq.Eq{"company_id": companyID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building user list: %w", err)
	}

	users := []User{}
	if err := sqlx.SelectContext(ctx, r.db, &users, query, args...); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// CountByCompany returns how many users the company has.
func (r *SQLRepository) CountByCompany(ctx context.Context, companyID int64) (int, error) {
	return r.count(ctx, sq.Eq{"company_id": companyID})
}

// CountAll returns the total number of tenant users.
func (r *SQLRepository) CountAll(ctx context.Context) (int, error) {
	return r.count(ctx, nil)
}

func (r *SQLRepository) count(ctx context.Context, where sq.Eq) (int, error) {
	b := r.sb.Select("COUNT(*)").From("users")
	if where != nil {
		b = b.Where(where)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building user count: %w", err)
	}

	var n int
	if err := sqlx.GetContext(ctx, r.db, &n, query, args...); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// Update applies the non-nil fields to a user in companyID.
func (r *SQLRepository) Update(ctx context.Context, companyID, id int64, fields UpdateFields) (*User, error) {
	set := map[string]any{}
	if fields.Name != nil {
		set["name"] = *fields.Name
	}
	if fields.Role != nil {
		set["role"] = *fields.Role
	}
	if fields.StaffCode != nil {
		if *fields.StaffCode == "" {
			set["staff_code"] = nil
		} else {
			set["staff_code"] = *fields.StaffCode
		}
	}
	if fields.Permissions != nil {
		set["permissions"] = *fields.Permissions
	}
	if fields.IsActive != nil {
		set["is_active"] = *fields.IsActive
	}

	if len(set) == 0 {
		return r.GetInCompany(ctx, companyID, id)
	}

	query, args, err := r.sb.Update("users").SetMap(set).
		Where(sq.Eq{"id": id, "company_id": companyID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building user update: %w", err)
	}

	if err := r.exec(ctx, query, args); err != nil {
		return nil, mapUserWriteError(err, "updating user")
	}
	return r.GetInCompany(ctx, companyID, id)
}

// UpdatePassword replaces the stored password hash.
func (r *SQLRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	query, args, err := r.sb.Update("users").Set("password_hash", passwordHash).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building password update: %w", err)
	}
	return r.exec(ctx, query, args)
}

// TouchLastLogin records a successful login.
func (r *SQLRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	query, args, err := r.sb.Update("users").Set("last_login_at", at).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building login update: %w", err)
	}
	return r.exec(ctx, query, args)
}

// ActivateCompanyUsers marks every user of the company active.
func (r *SQLRepository) ActivateCompanyUsers(ctx context.Context, companyID int64) error {
	query, args, err := r.sb.Update("users").Set("is_active", true).Where(sq.Eq{"company_id": companyID}).ToSql()
	if err != nil {
		return fmt.Errorf("building user activation: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("activating users: %w", err)
	}
	return nil
}

// Delete removes a user that belongs to companyID.
func (r *SQLRepository) Delete(ctx context.Context, companyID, id int64) error {
	query, args, err := r.sb.Delete("users").Where(sq.Eq{"id": id, "company_id": companyID}).ToSql()
	if err != nil {
		return fmt.Errorf("building user delete: %w", err)
	}
	return r.exec(ctx, query, args)
}

// exec runs a statement that must touch exactly one user.
func (r *SQLRepository) exec(ctx context.Context, query string, args []any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("executing user statement: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
