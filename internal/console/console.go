// Package console implements the operator view of the platform: tenant
// lifecycle, tenant backups, per-tenant user lists and system statistics.
package console

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ecmcloud/ecm/internal/auth"
	"github.com/ecmcloud/ecm/internal/company"
	"github.com/ecmcloud/ecm/internal/database"
	"github.com/ecmcloud/ecm/internal/notify"
	"github.com/ecmcloud/ecm/internal/plan"
	"github.com/ecmcloud/ecm/internal/tenant"
)

// Defaults for operator-created tenants.
const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin123"
)

// ErrRegistrationDisabled is returned by Register and Verify when
// self-service registration is off.
var ErrRegistrationDisabled = errors.New("self-service registration is disabled")

// ErrInvalidVerificationToken is returned when no company holds the token.
var ErrInvalidVerificationToken = errors.New("invalid verification token")

const maxCreateAttempts = 5

// Service runs operator actions against the master registry and tenant stores.
type Service struct {
	db        *database.DB
	companies company.Repository
	users     auth.UserRepository
	auth      *auth.Service
	tenants   *tenant.Manager
	plans     *plan.Catalog
	notifier  notify.Notifier
	logger    *zap.Logger
	now       func() time.Time

	registrationEnabled bool
	appURL              string
}

// Options configures optional console behaviour.
type Options struct {
	RegistrationEnabled bool
	AppURL              string
	Notifier            notify.Notifier
}

// NewService creates a console Service.
func NewService(
	db *database.DB,
	companies company.Repository,
	users auth.UserRepository,
	authSvc *auth.Service,
	tenants *tenant.Manager,
	plans *plan.Catalog,
	logger *zap.Logger,
	opts Options,
) *Service {
	n := opts.Notifier
	if n == nil {
		n = notify.NewLogNotifier(logger)
	}
	return &Service{
		db:                  db,
		companies:           companies,
		users:               users,
		auth:                authSvc,
		tenants:             tenants,
		plans:               plans,
		notifier:            n,
		logger:              logger,
		now:                 time.Now,
		registrationEnabled: opts.RegistrationEnabled,
		appURL:              opts.AppURL,
	}
}

// NewTenant holds the input for an operator-created tenant. Empty admin
// credentials fall back to the defaults; an empty CompanyCode is generated.
type NewTenant struct {
	Name          string
	CompanyCode   string
	Email         string
	PlanType      string
	AdminUsername string
	AdminPassword string
}

// CreatedTenant is the result of CreateTenant. AdminPassword is returned once
// so the operator can hand it over.
type CreatedTenant struct {
	Company       *company.Company
	Admin         *auth.User
	AdminPassword string
}

// CreateTenant registers an active company with its admin user and provisions
// its store. If provisioning fails the registry rows are removed again.
func (s *Service) CreateTenant(ctx context.Context, in NewTenant) (*CreatedTenant, error) {
	if in.PlanType == "" {
		in.PlanType = plan.Free
	}
	quota, err := s.plans.Lookup(in.PlanType)
	if err != nil {
		return nil, err
	}
	username := in.AdminUsername
	if username == "" {
		username = DefaultAdminUsername
	}
	password := in.AdminPassword
	if password == "" {
		password = DefaultAdminPassword
	}
	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c := &company.Company{
		CompanyCode:       in.CompanyCode,
		Name:              in.Name,
		Email:             in.Email,
		PlanType:          in.PlanType,
		MaxUsers:          quota.MaxUsers,
		MaxProjects:       quota.MaxProjects,
		StorageLimitMB:    quota.StorageLimitMB,
		DataRetentionDays: quota.DataRetentionDays,
		IsActive:          true,
		VerifiedAt:        &now,
		CreatedAt:         now,
		ExpiresAt:         expiresAt(now, quota.DataRetentionDays),
	}
	admin := &auth.User{
		Username:     username,
		Name:         username,
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
		Permissions:  auth.DefaultPermissions(),
		IsActive:     true,
		CreatedAt:    now,
	}
	if in.AdminUsername == "" {
		admin.Name = in.Name + " 管理者"
	}

	if err := s.insertTenant(ctx, c, admin); err != nil {
		return nil, err
	}

	if err := s.tenants.Provision(ctx, c.ID); err != nil {
		s.logger.Error("tenant provisioning failed, removing registry rows",
			zap.Int64("companyId", c.ID), zap.Error(err))
		if derr := s.deleteRegistryRows(context.WithoutCancel(ctx), c.ID); derr != nil {
			s.logger.Error("failed to remove registry rows", zap.Int64("companyId", c.ID), zap.Error(derr))
		}
		return nil, err
	}

	s.logger.Info("tenant created",
		zap.Int64("companyId", c.ID),
		zap.String("companyCode", c.CompanyCode),
		zap.String("plan", c.PlanType),
	)
	return &CreatedTenant{Company: c, Admin: admin, AdminPassword: password}, nil
}

// insertTenant writes the company and its admin in one master transaction,
// retrying when a generated company code collides.
func (s *Service) insertTenant(ctx context.Context, c *company.Company, admin *auth.User) error {
	for attempt := 1; ; attempt++ {
		err := database.WithTx(ctx, s.db.SQL(), func(tx *sqlx.Tx) error {
			if err := s.companies.WithTx(tx).Create(ctx, c); err != nil {
				return err
			}
			admin.CompanyID = c.ID
			return s.users.WithTx(tx).Create(ctx, admin)
		})
		if errors.Is(err, company.ErrCodeCollision) && attempt < maxCreateAttempts {
			s.logger.Debug("company code collided, retrying", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			c.ID = 0
			admin.ID = 0
		}
		return err
	}
}

func expiresAt(now time.Time, retentionDays int) *time.Time {
	if retentionDays == plan.Unlimited {
		return nil
	}
	t := now.AddDate(0, 0, retentionDays)
	return &t
}

// ToggleActive flips whether a company can sign in.
func (s *Service) ToggleActive(ctx context.Context, id int64) (*company.Company, error) {
	c, err := s.companies.ToggleActive(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("tenant active state changed", zap.Int64("companyId", id), zap.Bool("active", c.IsActive))
	return c, nil
}

// ChangePlan moves a company to planType and applies its quotas.
func (s *Service) ChangePlan(ctx context.Context, id int64, planType string) (*company.Company, error) {
	quota, err := s.plans.Lookup(planType)
	if err != nil {
		return nil, err
	}
	c, err := s.companies.UpdatePlan(ctx, id, planType, quota)
	if err != nil {
		return nil, err
	}
	s.logger.Info("tenant plan changed", zap.Int64("companyId", id), zap.String("plan", planType))
	return c, nil
}

// DeleteTenant removes the company and its users from the registry, then
// drops its store and backups.
func (s *Service) DeleteTenant(ctx context.Context, id int64) (*company.Company, error) {
	c, err := s.companies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.deleteRegistryRows(ctx, id); err != nil {
		return nil, err
	}
	if err := s.tenants.Drop(ctx, id); err != nil {
		return nil, fmt.Errorf("dropping tenant store: %w", err)
	}
	s.logger.Info("tenant deleted", zap.Int64("companyId", id), zap.String("name", c.Name))
	return c, nil
}

func (s *Service) deleteRegistryRows(ctx context.Context, id int64) error {
	return database.WithTx(ctx, s.db.SQL(), func(tx *sqlx.Tx) error {
		return s.companies.WithTx(tx).Delete(ctx, id)
	})
}

// BackupTenant snapshots a company's store.
func (s *Service) BackupTenant(ctx context.Context, id int64) (*tenant.Backup, error) {
	if _, err := s.companies.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.tenants.Backup(ctx, id)
}

// BackupEntry is a tenant backup labelled with its company name.
type BackupEntry struct {
	tenant.Backup
	CompanyName string
}

// ListBackups returns every tenant backup, newest first. Backups of deleted
// companies are kept and labelled as such.
func (s *Service) ListBackups(ctx context.Context) ([]BackupEntry, error) {
	backups, err := s.tenants.ListBackups()
	if err != nil {
		return nil, err
	}
	names, err := s.companyNames(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]BackupEntry, 0, len(backups))
	for _, b := range backups {
		name, ok := names[b.CompanyID]
		if !ok {
			name = fmt.Sprintf("削除済み会社 (ID: %d)", b.CompanyID)
		}
		out = append(out, BackupEntry{Backup: b, CompanyName: name})
	}
	return out, nil
}

// DeleteBackup removes one tenant backup file.
func (s *Service) DeleteBackup(_ context.Context, companyID int64, filename string) error {
	if err := s.tenants.DeleteBackup(companyID, filename); err != nil {
		return err
	}
	s.logger.Info("tenant backup deleted", zap.Int64("companyId", companyID), zap.String("filename", filename))
	return nil
}

func (s *Service) companyNames(ctx context.Context) (map[int64]string, error) {
	companies, err := s.companies.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(companies))
	for _, c := range companies {
		names[c.ID] = c.Name
	}
	return names, nil
}

// TenantSummary is a company with its measured store size and user count.
type TenantSummary struct {
	company.Company
	StoreBytes int64
	UserCount  int
}

// ListTenants returns every company with live usage figures.
func (s *Service) ListTenants(ctx context.Context) ([]TenantSummary, error) {
	companies, err := s.companies.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]TenantSummary, 0, len(companies))
	for _, c := range companies {
		count, err := s.users.CountByCompany(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		size, err := s.tenants.StoreSize(c.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, TenantSummary{Company: c, StoreBytes: size, UserCount: count})
	}
	return out, nil
}

// ListTenantUsers returns the users of one company.
func (s *Service) ListTenantUsers(ctx context.Context, companyID int64) ([]auth.User, error) {
	if _, err := s.companies.GetByID(ctx, companyID); err != nil {
		return nil, err
	}
	return s.users.ListByCompany(ctx, companyID)
}

// LargestStore names the company with the biggest store.
type LargestStore struct {
	CompanyName string
	Bytes       int64
}

// SystemStats aggregates the registry and on-disk usage.
type SystemStats struct {
	Companies     company.Stats
	TotalUsers    int
	StoreBytes    int64
	MasterBytes   int64
	LargestStore  LargestStore
	TenantBackups int
}

// Stats computes system-wide figures for the operator dashboard.
func (s *Service) Stats(ctx context.Context) (*SystemStats, error) {
	cs, err := s.companies.Stats(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.users.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	companies, err := s.companies.List(ctx)
	if err != nil {
		return nil, err
	}

	out := &SystemStats{Companies: *cs, TotalUsers: users}
	for _, c := range companies {
		size, err := s.tenants.StoreSize(c.ID)
		if err != nil {
			return nil, err
		}
		out.StoreBytes += size
		if size > out.LargestStore.Bytes {
			out.LargestStore = LargestStore{CompanyName: c.Name, Bytes: size}
		}
	}

	backups, err := s.tenants.ListBackups()
	if err != nil {
		return nil, err
	}
	out.TenantBackups = len(backups)

	if size, err := s.db.Size(ctx); err == nil {
		out.MasterBytes = size
	}
	return out, nil
}

// ResetPassword sets a new password for any user.
func (s *Service) ResetPassword(ctx context.Context, userID int64, password string) (*auth.User, error) {
	u, err := s.auth.ResetPassword(ctx, userID, password)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user password reset by operator", zap.Int64("userId", userID), zap.Int64("companyId", u.CompanyID))
	return u, nil
}
