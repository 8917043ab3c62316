package console

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ecmcloud/ecm/internal/auth"
	"github.com/ecmcloud/ecm/internal/company"
	"github.com/ecmcloud/ecm/internal/database"
	"github.com/ecmcloud/ecm/internal/notify"
	"github.com/ecmcloud/ecm/internal/plan"
)

// Registration is a self-service signup.
type Registration struct {
	CompanyName   string
	Email         string
	AdminUsername string
	AdminPassword string
}

// Register creates an inactive free-plan company with an inactive admin and
// mails the verification link to the company address.
func (s *Service) Register(ctx context.Context, r Registration) (*company.Company, error) {
	if !s.registrationEnabled {
		return nil, ErrRegistrationDisabled
	}

	quota, err := s.plans.Lookup(plan.Free)
	if err != nil {
		return nil, err
	}
	hash, err := s.auth.HashPassword(r.AdminPassword)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	now := s.now().UTC()
	c := &company.Company{
		Name:              r.CompanyName,
		Email:             r.Email,
		PlanType:          plan.Free,
		MaxUsers:          quota.MaxUsers,
		MaxProjects:       quota.MaxProjects,
		StorageLimitMB:    quota.StorageLimitMB,
		DataRetentionDays: quota.DataRetentionDays,
		VerificationToken: &token,
		CreatedAt:         now,
	}
	admin := &auth.User{
		Username:     r.AdminUsername,
		Name:         r.CompanyName + " 管理者",
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
		Permissions:  auth.DefaultPermissions(),
		CreatedAt:    now,
	}
	if err := s.insertTenant(ctx, c, admin); err != nil {
		return nil, err
	}

	link := s.appURL + "/verify?token=" + url.QueryEscape(token)
	err = s.notifier.Notify(ctx, notify.Message{
		To:      []string{r.Email},
		Subject: "登録確認",
		Body: fmt.Sprintf("以下のURLをクリックして登録を完了してください:\n%s\n\n会社コード: %s",
			link, c.CompanyCode),
	})
	if err != nil {
		s.logger.Warn("failed to send verification mail", zap.Int64("companyId", c.ID), zap.Error(err))
	}

	s.logger.Info("company registered", zap.Int64("companyId", c.ID), zap.String("companyCode", c.CompanyCode))
	return c, nil
}

// Verify activates the company holding token and its users, then provisions
// its store.
func (s *Service) Verify(ctx context.Context, token string) (*company.Company, error) {
	if !s.registrationEnabled {
		return nil, ErrRegistrationDisabled
	}

	c, err := s.companies.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, company.ErrNotFound) {
			return nil, ErrInvalidVerificationToken
		}
		return nil, err
	}

	now := s.now().UTC()
	expires := expiresAt(now, c.DataRetentionDays)
	err = database.WithTx(ctx, s.db.SQL(), func(tx *sqlx.Tx) error {
		if err := s.companies.WithTx(tx).Activate(ctx, c.ID, now, expires); err != nil {
			return err
		}
		return s.users.WithTx(tx).ActivateCompanyUsers(ctx, c.ID)
	})
	if err != nil {
		return nil, err
	}

	if err := s.tenants.Provision(ctx, c.ID); err != nil {
		return nil, err
	}

	c.IsActive = true
	c.VerifiedAt = &now
	c.VerificationToken = nil
	c.ExpiresAt = expires
	s.logger.Info("company verified", zap.Int64("companyId", c.ID))
	return c, nil
}
