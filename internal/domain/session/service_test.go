package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/exp/slog"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, accountID int, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, accountID, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *MockRepository) Validate(ctx context.Context, tokenHash string) (int, error) {
	args := m.Called(ctx, tokenHash)
	return args.Int(0), args.Error(1)
}

func TestService_Create(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	accountID := 42

	mockRepo.On("Create", mock.Anything, accountID, mock.MatchedBy(func(hash string) bool {
		return hash != ""
	}), mock.MatchedBy(func(expiresAt time.Time) bool {
		return expiresAt.After(time.Now())
	})).Return(nil)

	token, err := service.Create(context.Background(), accountID)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
	// 32 случайных байта в base64 — 44 символа
	assert.Len(t, token, 44)

	mockRepo.AssertExpectations(t)
}

func TestService_Create_RepositoryError(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	mockRepo.On("Create", mock.Anything, 42, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
		Return(errors.New("database error"))

	_, err := service.Create(context.Background(), 42)
	assert.Error(t, err)

	mockRepo.AssertExpectations(t)
}

func TestService_Validate(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	// Хэш токена в репозиторий уходит тот же, что при создании
	var storedHash string
	mockRepo.On("Create", mock.Anything, 42, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) {
			storedHash = args.String(2)
		}).Return(nil)

	token, err := service.Create(context.Background(), 42)
	assert.NoError(t, err)

	mockRepo.On("Validate", mock.Anything, storedHash).Return(42, nil)

	accountID, err := service.Validate(context.Background(), token)
	assert.NoError(t, err)
	assert.Equal(t, 42, accountID)

	mockRepo.AssertExpectations(t)
}

func TestService_Validate_InvalidToken(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	mockRepo.On("Validate", mock.Anything, mock.AnythingOfType("string")).
		Return(0, errors.New("session not found"))

	_, err := service.Validate(context.Background(), "bogus-token")
	assert.Error(t, err)

	mockRepo.AssertExpectations(t)
}
