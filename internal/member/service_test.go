package member

import (
	"context"
	"errors"
	"testing"

	"judoclub/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, name, email, passwordHash, role string) (*Member, error) {
	args := m.Called(ctx, name, email, passwordHash, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Member), args.Error(1)
}

func (m *MockRepository) FindByEmail(ctx context.Context, email string) (*Member, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Member), args.Error(1)
}

func (m *MockRepository) FindByID(ctx context.Context, id int64) (*Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Member), args.Error(1)
}

func (m *MockRepository) FindByIDs(ctx context.Context, ids []int64) ([]Member, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Member), args.Error(1)
}

func (m *MockRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) UpdateRole(ctx context.Context, id int64, role string) (*Member, error) {
	args := m.Called(ctx, id, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Member), args.Error(1)
}

func TestService_Register(t *testing.T) {
	tests := []struct {
		name          string
		req           RegisterRequest
		setupMock     func(*MockRepository)
		expectedRole  string
		expectedError error
	}{
		{
			name: "successful registration",
			req: RegisterRequest{
				Name:     " Aiko Tanaka ",
				Email:    "Aiko@Example.com",
				Password: "password123",
			},
			setupMock: func(m *MockRepository) {
				m.On("EmailExists", mock.Anything, "aiko@example.com").Return(false, nil)
				m.On("Create", mock.Anything, "Aiko Tanaka", "aiko@example.com", mock.Anything, auth.RoleMember).
					Return(&Member{ID: 1, Name: "Aiko Tanaka", Email: "aiko@example.com", Role: auth.RoleMember}, nil)
			},
			expectedRole: auth.RoleMember,
		},
		{
			name: "bootstrap admin",
			req: RegisterRequest{
				Name:     "Sensei",
				Email:    "head@dojo.test",
				Password: "password123",
			},
			setupMock: func(m *MockRepository) {
				m.On("EmailExists", mock.Anything, "head@dojo.test").Return(false, nil)
				m.On("Create", mock.Anything, "Sensei", "head@dojo.test", mock.Anything, auth.RoleAdmin).
					Return(&Member{ID: 2, Name: "Sensei", Email: "head@dojo.test", Role: auth.RoleAdmin}, nil)
			},
			expectedRole: auth.RoleAdmin,
		},
		{
			name: "email already exists",
			req: RegisterRequest{
				Name:     "Aiko Tanaka",
				Email:    "existing@example.com",
				Password: "password123",
			},
			setupMock: func(m *MockRepository) {
				m.On("EmailExists", mock.Anything, "existing@example.com").Return(true, nil)
			},
			expectedError: ErrEmailExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			tt.setupMock(mockRepo)

			service := NewService(mockRepo, "test-secret", "head@dojo.test")
			m, accessToken, refreshToken, err := service.Register(context.Background(), tt.req)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, m)
				assert.Empty(t, accessToken)
				assert.Empty(t, refreshToken)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedRole, m.Role)
				assert.NotEmpty(t, accessToken)
				assert.NotEmpty(t, refreshToken)

				claims, err := auth.ValidateToken(accessToken, "test-secret")
				require.NoError(t, err)
				assert.Equal(t, m.ID, claims.MemberID)
				assert.Equal(t, tt.expectedRole, claims.Role)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestService_Login(t *testing.T) {
	passwordHash, err := auth.HashPassword("password123")
	require.NoError(t, err)

	tests := []struct {
		name          string
		req           LoginRequest
		setupMock     func(*MockRepository)
		expectedError error
	}{
		{
			name: "successful login",
			req:  LoginRequest{Email: "aiko@example.com", Password: "password123"},
			setupMock: func(m *MockRepository) {
				m.On("FindByEmail", mock.Anything, "aiko@example.com").Return(&Member{
					ID: 1, Email: "aiko@example.com", PasswordHash: passwordHash, Role: auth.RoleMember,
				}, nil)
			},
		},
		{
			name: "wrong password",
			req:  LoginRequest{Email: "aiko@example.com", Password: "nope"},
			setupMock: func(m *MockRepository) {
				m.On("FindByEmail", mock.Anything, "aiko@example.com").Return(&Member{
					ID: 1, Email: "aiko@example.com", PasswordHash: passwordHash, Role: auth.RoleMember,
				}, nil)
			},
			expectedError: ErrInvalidCredentials,
		},
		{
			name: "member not found",
			req:  LoginRequest{Email: "notfound@example.com", Password: "password123"},
			setupMock: func(m *MockRepository) {
				m.On("FindByEmail", mock.Anything, "notfound@example.com").Return(nil, ErrMemberNotFound)
			},
			expectedError: ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			tt.setupMock(mockRepo)

			service := NewService(mockRepo, "test-secret", "")
			m, accessToken, refreshToken, err := service.Login(context.Background(), tt.req)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, m)
				assert.Empty(t, accessToken)
				assert.Empty(t, refreshToken)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, m)
				assert.NotEmpty(t, accessToken)
				assert.NotEmpty(t, refreshToken)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestService_RefreshTokenUsesCurrentRole(t *testing.T) {
	mockRepo := new(MockRepository)
	mockRepo.On("FindByID", mock.Anything, int64(1)).Return(&Member{
		ID: 1, Email: "aiko@example.com", Role: auth.RoleCoach,
	}, nil)

	_, refresh, err := auth.GenerateTokens(1, "aiko@example.com", auth.RoleMember, "test-secret", "test-secret")
	require.NoError(t, err)

	service := NewService(mockRepo, "test-secret", "")
	access, m, err := service.RefreshToken(context.Background(), refresh)
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.ID)

	claims, err := auth.ValidateToken(access, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleCoach, claims.Role)
	mockRepo.AssertExpectations(t)
}

func TestService_RefreshTokenInvalid(t *testing.T) {
	service := NewService(new(MockRepository), "test-secret", "")
	_, _, err := service.RefreshToken(context.Background(), "garbage")
	assert.Error(t, err)
}

func TestService_NamesByID(t *testing.T) {
	mockRepo := new(MockRepository)
	mockRepo.On("FindByIDs", mock.Anything, []int64{1, 2}).Return([]Member{
		{ID: 1, Name: "Aiko Tanaka"},
		{ID: 2, Name: "Jigoro Kano"},
	}, nil)

	service := NewService(mockRepo, "test-secret", "")
	names, err := service.NamesByID(context.Background(), []int64{1, 2})

	require.NoError(t, err)
	assert.Equal(t, map[int64]string{1: "Aiko Tanaka", 2: "Jigoro Kano"}, names)
	mockRepo.AssertExpectations(t)
}

func TestService_NamesByIDError(t *testing.T) {
	mockRepo := new(MockRepository)
	mockRepo.On("FindByIDs", mock.Anything, []int64{1}).Return(nil, errors.New("db down"))

	service := NewService(mockRepo, "test-secret", "")
	_, err := service.NamesByID(context.Background(), []int64{1})
	assert.Error(t, err)
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	a, err := repo.Create(ctx, "Aiko", "aiko@example.com", "hash", auth.RoleMember)
	require.NoError(t, err)
	_, err = repo.Create(ctx, "Aiko again", "AIKO@example.com", "hash", auth.RoleMember)
	assert.ErrorIs(t, err, ErrEmailExists)

	b, err := repo.Create(ctx, "Kano", "kano@example.com", "hash", auth.RoleMember)
	require.NoError(t, err)

	found, err := repo.FindByIDs(ctx, []int64{b.ID, a.ID, 99, a.ID})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, a.ID, found[0].ID)

	updated, err := repo.UpdateRole(ctx, b.ID, auth.RoleCoach)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleCoach, updated.Role)

	_, err = repo.FindByID(ctx, 99)
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestSetRole(t *testing.T) {
	mockRepo := new(MockRepository)
	mockRepo.On("UpdateRole", mock.Anything, int64(4), auth.RoleCoach).
		Return(&Member{ID: 4, Role: auth.RoleCoach}, nil)

	service := NewService(mockRepo, "test-secret", "")

	m, err := service.SetRole(context.Background(), 4, auth.RoleCoach)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleCoach, m.Role)

	_, err = service.SetRole(context.Background(), 4, "grandmaster")
	assert.ErrorIs(t, err, ErrInvalidRole)

	mockRepo.AssertNumberOfCalls(t, "UpdateRole", 1)
}
