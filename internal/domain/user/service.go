package user

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

const (
	minLoginLen    = 3
	maxLoginLen    = 32
	minPasswordLen = 8
)

type Servicer interface {
	Register(ctx context.Context, login, password string) (int, error)
	Authenticate(ctx context.Context, login, password string) (User, error)
}

type Service struct {
	repo Repository
	log  *slog.Logger
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
	}
}

func (s *Service) Register(ctx context.Context, login, password string) (int, error) {
	if err := validate(login, password); err != nil {
		s.log.Debug("validation failed", "login", login, "error", err)
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("Хэш пароля: %w", err)
	}

	return s.repo.Create(ctx, login, string(hash))
}

func (s *Service) Authenticate(ctx context.Context, login, password string) (User, error) {
	var u User
	u, err := s.repo.FindByLogin(ctx, login)
	if err != nil {
		return u, ErrNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return u, ErrInvalidAuth
	}

	return u, nil
}

func validate(login, password string) error {
	if len(login) < minLoginLen || len(login) > maxLoginLen {
		return fmt.Errorf("login must be %d-%d characters", minLoginLen, maxLoginLen)
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	return nil
}
