package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ecmcloud/ecm/internal/auth"
	"github.com/ecmcloud/ecm/internal/company"
	"github.com/ecmcloud/ecm/internal/database"
)

const testBcryptCost = 4 // low cost for fast tests

type fixture struct {
	svc       *auth.Service
	users     auth.UserRepository
	admins    auth.SuperAdminRepository
	companies company.Repository
	tokens    *auth.TokenIssuer
}

func setupService(t *testing.T) *fixture {
	t.Helper()

	db := database.OpenTestMaster(t)
	f := &fixture{
		users:     auth.NewRepository(db),
		admins:    auth.NewSuperAdminRepository(db),
		companies: company.NewRepository(db),
		tokens:    auth.NewTokenIssuer(testSecret, time.Hour),
	}
	f.svc = auth.NewService(f.users, f.admins, f.companies, f.tokens, testBcryptCost, zap.NewNop())
	return f
}

func (f *fixture) seedCompany(t *testing.T, name string, active bool) *company.Company {
	t.Helper()
	c := &company.Company{
		Name: name, PlanType: "free", MaxUsers: 3, MaxProjects: 30,
		StorageLimitMB: 50, DataRetentionDays: 365, IsActive: active,
	}
	require.NoError(t, f.companies.Create(context.Background(), c))
	return c
}

func (f *fixture) seedUser(t *testing.T, companyID int64, username, password string) *auth.User {
	t.Helper()
	hash, err := f.svc.HashPassword(password)
	require.NoError(t, err)
	u := &auth.User{
		CompanyID: companyID, Username: username, Name: username,
		PasswordHash: hash, Role: auth.RoleAdmin, IsActive: true,
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

// --- Login Tests ---

func TestLogin_Success(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	c := f.seedCompany(t, "Acme", true)
	u := f.seedUser(t, c.ID, "admin", "admin123")

	res, err := f.svc.Login(ctx, c.CompanyCode, "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)
	assert.Equal(t, c.ID, res.Company.ID)
	assert.NotEmpty(t, res.Token)

	stored, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)

	identity, err := f.svc.ResolveUser(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, identity.UserID)
	assert.Equal(t, c.ID, identity.CompanyID)
	assert.Equal(t, c.CompanyCode, identity.CompanyCode)
	assert.True(t, identity.IsAdmin())
}

func TestLogin_UniformFailures(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	c := f.seedCompany(t, "Acme", true)
	f.seedUser(t, c.ID, "admin", "admin123")

	other := f.seedCompany(t, "Other", true)

	inactive := f.seedCompany(t, "Sleepy", false)
	f.seedUser(t, inactive.ID, "admin", "admin123")

	tests := []struct {
		name, code, username, password string
	}{
		{"wrong password", c.CompanyCode, "admin", "nope"},
		{"unknown user", c.CompanyCode, "ghost", "admin123"},
		{"unknown company", "zzzzzz", "admin", "admin123"},
		{"user in another company", other.CompanyCode, "admin", "admin123"},
		{"inactive company", inactive.CompanyCode, "admin", "admin123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Login(ctx, tt.code, tt.username, tt.password)
			assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		})
	}
}

func TestLogin_InactiveUser(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	c := f.seedCompany(t, "Acme", true)
	u := f.seedUser(t, c.ID, "admin", "admin123")
	inactive := false
	_, err := f.users.Update(ctx, c.ID, u.ID, auth.UpdateFields{IsActive: &inactive})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, c.CompanyCode, "admin", "admin123")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

// --- Resolve Tests ---

func TestResolveUser_RejectsOperatorToken(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	_, err := f.svc.BootstrapSuperAdmin(ctx, "root", "secret-pass")
	require.NoError(t, err)

	res, err := f.svc.LoginOperator(ctx, "root", "secret-pass")
	require.NoError(t, err)

	_, err = f.svc.ResolveUser(ctx, res.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	op, err := f.svc.ResolveOperator(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "root", op.Username)
}

func TestResolveOperator_RejectsUserToken(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	c := f.seedCompany(t, "Acme", true)
	f.seedUser(t, c.ID, "admin", "admin123")

	res, err := f.svc.Login(ctx, c.CompanyCode, "admin", "admin123")
	require.NoError(t, err)

	_, err = f.svc.ResolveOperator(ctx, res.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestResolveUser_CompanyDeactivatedAfterLogin(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	c := f.seedCompany(t, "Acme", true)
	f.seedUser(t, c.ID, "admin", "admin123")

	res, err := f.svc.Login(ctx, c.CompanyCode, "admin", "admin123")
	require.NoError(t, err)

	_, err = f.companies.ToggleActive(ctx, c.ID)
	require.NoError(t, err)

	_, err = f.svc.ResolveUser(ctx, res.Token)
	assert.ErrorIs(t, err, auth.ErrInactive)
}

func TestResolveUser_DeletedUser(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	c := f.seedCompany(t, "Acme", true)
	u := f.seedUser(t, c.ID, "admin", "admin123")

	token, _, err := f.tokens.IssueUser(u.ID)
	require.NoError(t, err)
	require.NoError(t, f.users.Delete(ctx, c.ID, u.ID))

	_, err = f.svc.ResolveUser(ctx, token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

// --- Password Tests ---

func TestChangePassword(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	c := f.seedCompany(t, "Acme", true)
	u := f.seedUser(t, c.ID, "admin", "admin123")

	assert.ErrorIs(t, f.svc.ChangePassword(ctx, u.ID, "wrong", "newpass1"), auth.ErrWrongPassword)
	require.NoError(t, f.svc.ChangePassword(ctx, u.ID, "admin123", "newpass1"))

	_, err := f.svc.Login(ctx, c.CompanyCode, "admin", "admin123")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, c.CompanyCode, "admin", "newpass1")
	assert.NoError(t, err)
}

// --- Bootstrap Tests ---

func TestBootstrapSuperAdmin_GeneratesPasswordOnce(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	password, err := f.svc.BootstrapSuperAdmin(ctx, "root", "")
	require.NoError(t, err)
	assert.NotEmpty(t, password)

	_, err = f.svc.LoginOperator(ctx, "root", password)
	require.NoError(t, err)

	again, err := f.svc.BootstrapSuperAdmin(ctx, "root", "")
	require.NoError(t, err)
	assert.Empty(t, again)

	n, err := f.admins.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLoginOperator_WrongPassword(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	_, err := f.svc.BootstrapSuperAdmin(ctx, "root", "right")
	require.NoError(t, err)

	_, err = f.svc.LoginOperator(ctx, "root", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = f.svc.LoginOperator(ctx, "nobody", "right")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}
