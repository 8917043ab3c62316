package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ecmcloud/ecm/internal/plan"
)

// ErrUserQuotaExceeded is returned when a company already has max_users users.
var ErrUserQuotaExceeded = errors.New("user quota exceeded")

// ErrCannotDeleteSelf is returned when an admin tries to delete their own account.
var ErrCannotDeleteSelf = errors.New("cannot delete own account")

// NewMember holds the fields for a user created by a tenant admin.
type NewMember struct {
	Username    string
	Name        string
	Password    string
	Role        string
	StaffCode   *string
	Permissions Permissions
}

// MemberUpdate is a partial update of a tenant user. A non-nil Password
// replaces the stored hash.
type MemberUpdate struct {
	UpdateFields
	Password *string
}

// ListMembers returns the users of a company with their permissions filled
// out to the full default map.
func (s *Service) ListMembers(ctx context.Context, companyID int64) ([]User, error) {
	users, err := s.users.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Permissions = users[i].Permissions.Merge()
	}
	return users, nil
}

// CreateMember adds a user to companyID within the company's max_users quota.
func (s *Service) CreateMember(ctx context.Context, companyID int64, m NewMember) (*User, error) {
	c, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("looking up company: %w", err)
	}
	count, err := s.users.CountByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if !plan.Allows(c.MaxUsers, count) {
		return nil, ErrUserQuotaExceeded
	}

	hash, err := s.HashPassword(m.Password)
	if err != nil {
		return nil, err
	}
	if m.Role == "" {
		m.Role = RoleUser
	}
	if m.StaffCode != nil && *m.StaffCode == "" {
		m.StaffCode = nil
	}

	u := &User{
		CompanyID:    companyID,
		Username:     m.Username,
		Name:         m.Name,
		PasswordHash: hash,
		Role:         m.Role,
		StaffCode:    m.StaffCode,
		Permissions:  m.Permissions.Merge(),
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		zap.Int64("companyId", companyID),
		zap.Int64("userId", u.ID),
		zap.String("username", u.Username),
	)
	return u, nil
}

// UpdateMember applies a partial update to a user of companyID.
func (s *Service) UpdateMember(ctx context.Context, companyID, id int64, m MemberUpdate) (*User, error) {
	if m.Permissions != nil {
		merged := m.Permissions.Merge()
		m.Permissions = &merged
	}
	u, err := s.users.Update(ctx, companyID, id, m.UpdateFields)
	if err != nil {
		return nil, err
	}
	if m.Password != nil {
		if err := s.SetPassword(ctx, u.ID, *m.Password); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// DeleteMember removes a user from the caller's company. Admins cannot remove
// themselves.
func (s *Service) DeleteMember(ctx context.Context, identity *Identity, id int64) error {
	if id == identity.UserID {
		return ErrCannotDeleteSelf
	}
	if err := s.users.Delete(ctx, identity.CompanyID, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.Int64("companyId", identity.CompanyID), zap.Int64("userId", id))
	return nil
}

// ResetPassword sets a new password for any user. Used by operators.
func (s *Service) ResetPassword(ctx context.Context, userID int64, password string) (*User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.SetPassword(ctx, userID, password); err != nil {
		return nil, err
	}
	return u, nil
}
