package database

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// pgUniqueConstraints lists the master registry's PostgreSQL unique
// constraints by the column callers ask about. Names must match the
// postgres migrations.
var pgUniqueConstraints = map[string][]string{
	"company_code":       {"companies_company_code_key"},
	"name":               {"companies_name_key"},
	"verification_token": {"companies_verification_token_key"},
	"username":           {"users_company_id_username_key", "super_admins_username_key"},
	"staff_code":         {"idx_users_company_staff_code"},
}

// IsUniqueViolation reports whether err is a unique-constraint failure.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// IsUniqueViolationOn reports whether err is a unique-constraint failure that
// involves column.
func IsUniqueViolationOn(err error, column string) bool {
	if !IsUniqueViolation(err) {
		return false
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		// "UNIQUE constraint failed: users.company_id, users.username"
		msg := sqliteErr.Error()
		if i := strings.Index(msg, ": "); i >= 0 {
			msg = msg[i+2:]
		}
		for _, col := range strings.Split(msg, ", ") {
			if strings.HasSuffix(col, "."+column) {
				return true
			}
		}
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		for _, name := range pgUniqueConstraints[column] {
			if pgErr.ConstraintName == name {
				return true
			}
		}
		return false
	}
	return false
}

// IsForeignKeyViolation reports whether err is a foreign-key failure.
func IsForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	return false
}
