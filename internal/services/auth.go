package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/srbio/internal/auth"
	"github.com/dmitrijs2005/srbio/internal/common"
	"github.com/dmitrijs2005/srbio/internal/models"
	"github.com/dmitrijs2005/srbio/internal/repositories/repomanager"
)

// AuthService handles admin accounts and login.
type AuthService struct {
	repos     repomanager.RepositoryManager
	secret    []byte
	tokenTTL  time.Duration
	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(m repomanager.RepositoryManager, secret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{repos: m, secret: []byte(secret), tokenTTL: tokenTTL}
}

// Login checks the password and returns an access token. Unknown users and
// wrong passwords both yield common.ErrorUnauthorized.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	admin, err := s.repos.Admins(s.repos.DB()).GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// same bcrypt cost as a real check
			_ = auth.CheckPassword(s.fakeHash(), password)
			return "", common.ErrorUnauthorized
		}
		return "", common.ErrorInternal
	}
	if err := auth.CheckPassword(admin.PasswordHash, password); err != nil {
		return "", common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(admin.ID, admin.Username, s.secret, s.tokenTTL)
	if err != nil {
		return "", common.ErrorInternal
	}
	return token, nil
}

func (s *AuthService) fakeHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = auth.HashPassword("not-a-real-password")
	})
	return s.dummyHash
}

// VerifyToken returns the claims of a valid access token.
func (s *AuthService) VerifyToken(token string) (*auth.Claims, error) {
	return auth.ParseToken(token, s.secret)
}

// CreateAdmin adds an account. An existing username yields
// common.ErrConflict.
func (s *AuthService) CreateAdmin(ctx context.Context, username, password string) (*models.Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", common.ErrorInvalidArgument)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("password must have at least %d characters: %w", auth.MinPasswordLength, err)
	}
	return s.repos.Admins(s.repos.DB()).Create(ctx, &models.Admin{Username: username, PasswordHash: hash})
}

// ResetPassword replaces the password of an existing account.
func (s *AuthService) ResetPassword(ctx context.Context, username, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("password must have at least %d characters: %w", auth.MinPasswordLength, err)
	}
	return s.repos.Admins(s.repos.DB()).UpdatePassword(ctx, strings.TrimSpace(username), hash)
}
