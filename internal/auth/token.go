package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token is malformed, expired, signed with
// another key, or carries the wrong subject kind.
var ErrInvalidToken = errors.New("invalid or expired token")

// SubjectKind tells tenant-user tokens and operator tokens apart.
type SubjectKind int

const (
	SubjectUser SubjectKind = iota + 1
	SubjectOperator
)

func (k SubjectKind) String() string {
	switch k {
	case SubjectUser:
		return "user"
	case SubjectOperator:
		return "operator"
	}
	return "unknown"
}

// Subject is the decoded principal of a token.
type Subject struct {
	Kind SubjectKind
	ID   int64
}

// Claims is the JWT payload. Exactly one of UserID and SuperAdminID is set.
type Claims struct {
	UserID       *int64 `json:"user_id,omitempty"`
	SuperAdminID *int64 `json:"super_admin_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer with the given secret and lifetime.
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, ttl: ttl, now: time.Now}
}

// RandomSecret returns 32 random bytes for use as a per-process signing key.
func RandomSecret() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating token secret: %w", err)
	}
	return b, nil
}

// IssueUser signs a token for a tenant user.
func (t *TokenIssuer) IssueUser(userID int64) (string, time.Time, error) {
	return t.issue(Claims{UserID: &userID})
}

// IssueOperator signs a token for a super-admin.
func (t *TokenIssuer) IssueOperator(superAdminID int64) (string, time.Time, error) {
	return t.issue(Claims{SuperAdminID: &superAdminID})
}

func (t *TokenIssuer) issue(claims Claims) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Decode verifies raw and returns its subject. Tokens carrying both a user id
// and a super-admin id, or neither, are rejected.
func (t *TokenIssuer) Decode(raw string) (Subject, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return Subject{}, ErrInvalidToken
	}

	switch {
	case claims.UserID != nil && claims.SuperAdminID == nil:
		return Subject{Kind: SubjectUser, ID: *claims.UserID}, nil
	case claims.SuperAdminID != nil && claims.UserID == nil:
		return Subject{Kind: SubjectOperator, ID: *claims.SuperAdminID}, nil
	}
	return Subject{}, ErrInvalidToken
}
