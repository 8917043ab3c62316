package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecmcloud/ecm/internal/company"
)

// ErrInvalidCredentials is returned for any failed login. It never reveals
// whether the company, the username or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInactive is returned when a token resolves to a disabled user or company.
var ErrInactive = errors.New("account or company is inactive")

// ErrWrongPassword is returned when a password change supplies the wrong
// current password.
var ErrWrongPassword = errors.New("current password is incorrect")

// LoginResult is returned by a successful tenant login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *User
	Company   *company.Company
}

// OperatorLoginResult is returned by a successful super-admin login.
type OperatorLoginResult struct {
	Token      string
	ExpiresAt  time.Time
	SuperAdmin *SuperAdmin
}

// Service provides credential checks, token issuance and session resolution.
type Service struct {
	users      UserRepository
	admins     SuperAdminRepository
	companies  company.Repository
	tokens     *TokenIssuer
	bcryptCost int
	logger     *zap.Logger

	// dummyHash equalizes login timing when the user does not exist.
	dummyHash []byte
}

// NewService creates a new auth Service.
func NewService(
	users UserRepository,
	admins SuperAdminRepository,
	companies company.Repository,
	tokens *TokenIssuer,
	bcryptCost int,
	logger *zap.Logger,
) *Service {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcryptCost)
	return &Service{
		users:      users,
		admins:     admins,
		companies:  companies,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     logger,
		dummyHash:  dummy,
	}
}

// HashPassword returns the bcrypt hash of password.
func (s *Service) HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(b), nil
}

// VerifyPassword reports whether password matches hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Login authenticates a tenant user by company code, username and password.
// The company must be active and the user must be active.
func (s *Service) Login(ctx context.Context, companyCode, username, password string) (*LoginResult, error) {
	c, err := s.companies.GetByCode(ctx, companyCode)
	if err != nil {
		if errors.Is(err, company.ErrNotFound) {
			s.burnCompare(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up company: %w", err)
	}

	u, err := s.users.GetByUsername(ctx, c.ID, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.burnCompare(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !VerifyPassword(u.PasswordHash, password) || !u.IsActive || !c.IsActive {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.IssueUser(u.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		s.logger.Warn("failed to record user login", zap.Int64("userId", u.ID), zap.Error(err))
	}
	if err := s.companies.TouchLastLogin(ctx, c.ID, now); err != nil {
		s.logger.Warn("failed to record company login", zap.Int64("companyId", c.ID), zap.Error(err))
	}
	u.LastLoginAt = &now
	c.LastLoginAt = &now

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: u, Company: c}, nil
}

// LoginOperator authenticates a super-admin.
func (s *Service) LoginOperator(ctx context.Context, username, password string) (*OperatorLoginResult, error) {
	a, err := s.admins.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrSuperAdminNotFound) {
			s.burnCompare(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up super admin: %w", err)
	}

	if !VerifyPassword(a.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.IssueOperator(a.ID)
	if err != nil {
		return nil, err
	}
	return &OperatorLoginResult{Token: token, ExpiresAt: expiresAt, SuperAdmin: a}, nil
}

func (s *Service) burnCompare(password string) {
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}

// ResolveUser turns a bearer token into a tenant Identity. Operator tokens,
// unknown users and inactive users or companies are rejected.
func (s *Service) ResolveUser(ctx context.Context, token string) (*Identity, error) {
	sub, err := s.tokens.Decode(token)
	if err != nil {
		return nil, err
	}
	if sub.Kind != SubjectUser {
		return nil, ErrInvalidToken
	}

	u, err := s.users.GetByID(ctx, sub.ID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("resolving user: %w", err)
	}

	c, err := s.companies.GetByID(ctx, u.CompanyID)
	if err != nil {
		if errors.Is(err, company.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("resolving company: %w", err)
	}

	if !u.IsActive || !c.IsActive {
		return nil, ErrInactive
	}

	return &Identity{
		UserID:      u.ID,
		CompanyID:   c.ID,
		CompanyCode: c.CompanyCode,
		CompanyName: c.Name,
		Username:    u.Username,
		Name:        u.Name,
		Role:        u.Role,
		Permissions: u.Permissions,
	}, nil
}

// ResolveOperator turns a bearer token into an Operator. Tenant tokens are rejected.
func (s *Service) ResolveOperator(ctx context.Context, token string) (*Operator, error) {
	sub, err := s.tokens.Decode(token)
	if err != nil {
		return nil, err
	}
	if sub.Kind != SubjectOperator {
		return nil, ErrInvalidToken
	}

	a, err := s.admins.GetByID(ctx, sub.ID)
	if err != nil {
		if errors.Is(err, ErrSuperAdminNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("resolving super admin: %w", err)
	}

	return &Operator{ID: a.ID, Username: a.Username}, nil
}

// ChangePassword replaces a user's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !VerifyPassword(u.PasswordHash, current) {
		return ErrWrongPassword
	}
	return s.SetPassword(ctx, userID, next)
}

// SetPassword replaces a user's password without checking the current one.
func (s *Service) SetPassword(ctx context.Context, userID int64, password string) error {
	hash, err := s.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return nil
}

// BootstrapSuperAdmin creates the first super-admin if none exist. When
// password is empty a random one is generated and returned so it can be shown
// once. Returns an empty string when super-admins already exist.
func (s *Service) BootstrapSuperAdmin(ctx context.Context, username, password string) (string, error) {
	count, err := s.admins.CountAll(ctx)
	if err != nil {
		return "", fmt.Errorf("counting super admins: %w", err)
	}
	if count > 0 {
		return "", nil
	}

	if password == "" {
		b := make([]byte, 18)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("generating super admin password: %w", err)
		}
		password = base64.RawURLEncoding.EncodeToString(b)
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return "", err
	}

	if err := s.admins.Create(ctx, &SuperAdmin{Username: username, PasswordHash: hash}); err != nil {
		return "", fmt.Errorf("creating super admin: %w", err)
	}

	s.logger.Info("super admin created", zap.String("username", username))
	return password, nil
}
