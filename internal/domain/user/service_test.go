package user

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, login, passwordHash string) (int, error) {
	args := m.Called(ctx, login, passwordHash)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) FindByLogin(ctx context.Context, login string) (User, error) {
	args := m.Called(ctx, login)
	return args.Get(0).(User), args.Error(1)
}

func TestService_Register(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	login := "trader"
	password := "verysecret123"

	// Точный хэш предсказать нельзя, проверяем что он непустой
	mockRepo.On("Create", mock.Anything, login, mock.MatchedBy(func(hash string) bool {
		return hash != ""
	})).Return(42, nil)

	accountID, err := service.Register(context.Background(), login, password)
	assert.NoError(t, err)
	assert.Equal(t, 42, accountID)

	mockRepo.AssertExpectations(t)
}

func TestService_Register_Validation(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	tests := []struct {
		name     string
		login    string
		password string
	}{
		{name: "short login", login: "ab", password: "verysecret123"},
		{name: "long login", login: "a-login-that-is-way-too-long-for-an-account", password: "verysecret123"},
		{name: "short password", login: "trader", password: "short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Register(context.Background(), tt.login, tt.password)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	// Репозиторий при невалидном вводе не вызывается
	mockRepo.AssertNotCalled(t, "Create")
}

func TestService_Register_RepositoryError(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	mockRepo.On("Create", mock.Anything, "trader", mock.AnythingOfType("string")).
		Return(0, errors.New("database error"))

	_, err := service.Register(context.Background(), "trader", "verysecret123")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database error")

	mockRepo.AssertExpectations(t)
}

func TestService_Authenticate_Success(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	login := "trader"
	password := "verysecret123"

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	assert.NoError(t, err)

	mockRepo.On("FindByLogin", mock.Anything, login).Return(User{
		ID:       42,
		Login:    login,
		Password: string(hash),
	}, nil)

	u, err := service.Authenticate(context.Background(), login, password)
	assert.NoError(t, err)
	assert.Equal(t, 42, u.ID)

	mockRepo.AssertExpectations(t)
}

func TestService_Authenticate_WrongPassword(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	hash, err := bcrypt.GenerateFromPassword([]byte("verysecret123"), bcrypt.DefaultCost)
	assert.NoError(t, err)

	mockRepo.On("FindByLogin", mock.Anything, "trader").Return(User{
		ID:       42,
		Login:    "trader",
		Password: string(hash),
	}, nil)

	_, err = service.Authenticate(context.Background(), "trader", "wrongpassword")
	assert.ErrorIs(t, err, ErrInvalidAuth)

	mockRepo.AssertExpectations(t)
}

func TestService_Authenticate_NotFound(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	mockRepo.On("FindByLogin", mock.Anything, "ghost").Return(User{}, errors.New("not found"))

	_, err := service.Authenticate(context.Background(), "ghost", "verysecret123")
	assert.ErrorIs(t, err, ErrNotFound)

	mockRepo.AssertExpectations(t)
}
