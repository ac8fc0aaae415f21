package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/harborchat/harbor/internal/shared"
	"github.com/harborchat/harbor/internal/users"
)

// UserFinder resolves accounts for credential checks.
type UserFinder interface {
	GetByUsername(ctx context.Context, username string) (*users.User, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo UserFinder
}

// NewService constructs a new Service.
func NewService(repo UserFinder) *Service {
	return &Service{repo: repo}
}

// Authenticate validates username/password credentials. Unknown usernames,
// wrong passwords, and inactive accounts all yield the same generic error.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*users.User, error) {
	user, err := s.repo.GetByUsername(ctx, users.NormalizeUsername(username))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.CredentialHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}
