// Package ledger holds a company's construction ledger: projects, costs,
// vendors, customers, cost categories, settings and the dashboard summary.
// Every operation runs against the caller's own tenant store.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ecmcloud/ecm/internal/company"
	"github.com/ecmcloud/ecm/internal/database"
	"github.com/ecmcloud/ecm/internal/tenant"
)

// ErrNotFound is returned when a ledger record does not exist in the store.
var ErrNotFound = errors.New("record not found")

// ErrProjectNotFound is returned when a cost references a missing project.
var ErrProjectNotFound = errors.New("project not found")

// ErrDuplicateProjectCode is returned when the user already has a project
// with the same code.
var ErrDuplicateProjectCode = errors.New("project code already exists for user")

// ErrDuplicateCategory is returned when a category name is already in use.
var ErrDuplicateCategory = errors.New("category name already exists")

// ErrDefaultCategory is returned when a default category would be edited or
// deleted.
var ErrDefaultCategory = errors.New("default categories cannot be modified")

// ErrQuotaExceeded is returned when the company's plan allows no more projects.
var ErrQuotaExceeded = errors.New("project quota exceeded")

// Service runs ledger operations against tenant stores.
type Service struct {
	tenants   *tenant.Manager
	companies company.Repository
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a new ledger Service.
func NewService(tenants *tenant.Manager, companies company.Repository, logger *zap.Logger) *Service {
	return &Service{
		tenants:   tenants,
		companies: companies,
		logger:    logger,
		now:       time.Now,
	}
}

// store issues ledger statements against one tenant store, either through the
// read pool or inside a write transaction.
type store struct {
	db sqlx.ExtContext
	sb sq.StatementBuilderType
}

func newStore(db sqlx.ExtContext) *store {
	return &store{db: db, sb: database.BuilderFor(database.DialectSQLite)}
}

func (s *Service) view(ctx context.Context, companyID int64, fn func(st *store) error) error {
	h, err := s.tenants.Get(ctx, companyID)
	if err != nil {
		return err
	}
	return h.View(ctx, func(db *sqlx.DB) error {
		return fn(newStore(db))
	})
}

func (s *Service) update(ctx context.Context, companyID int64, fn func(st *store) error) error {
	h, err := s.tenants.Get(ctx, companyID)
	if err != nil {
		return err
	}
	return h.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(newStore(tx))
	})
}

func (st *store) get(ctx context.Context, dest any, b sq.SelectBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}
	return sqlx.GetContext(ctx, st.db, dest, query, args...)
}

func (st *store) selectAll(ctx context.Context, dest any, b sq.SelectBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}
	return sqlx.SelectContext(ctx, st.db, dest, query, args...)
}

func (st *store) count(ctx context.Context, table string, where sq.Sqlizer) (int, error) {
	b := st.sb.Select("COUNT(*)").From(table)
	if where != nil {
		b = b.Where(where)
	}
	var n int
	if err := st.get(ctx, &n, b); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return n, nil
}

func (st *store) insert(ctx context.Context, b sq.InsertBuilder) (int64, error) {
	query, args, err := b.Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, fmt.Errorf("building insert: %w", err)
	}
	var id int64
	if err := sqlx.GetContext(ctx, st.db, &id, query, args...); err != nil {
		return 0, err
	}
	return id, nil
}

// exec runs b and returns ErrNotFound when no row was affected.
func (st *store) exec(ctx context.Context, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("building statement: %w", err)
	}
	result, err := st.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
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

// setString adds column to set when v is non-nil.
func setString(set map[string]any, column string, v *string) {
	if v != nil {
		set[column] = *v
	}
}

// setDate adds a nullable date column; an empty string stores NULL.
func setDate(set map[string]any, column string, v *string) {
	if v == nil {
		return
	}
	if *v == "" {
		set[column] = nil
		return
	}
	set[column] = *v
}

func setValue[T any](set map[string]any, column string, v *T) {
	if v != nil {
		set[column] = *v
	}
}

func nullIfEmpty(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}
