package handlers

import (
	"context"

	"github.com/jacobwhite/taskdeck/internal/models"
	"github.com/jacobwhite/taskdeck/internal/services"
)

// MockTaskService implements TaskServiceInterface for testing
type MockTaskService struct {
	CreateFunc        func(ctx context.Context, task *models.Task) (*models.Task, error)
	FindOneFunc       func(ctx context.Context, id, userID string) (*models.Task, error)
	FindAllFunc       func(ctx context.Context, filter models.TaskFilter) (*services.TaskListResult, error)
	UpdateFunc        func(ctx context.Context, id, userID string, update models.TaskUpdate) (*models.Task, error)
	RemoveFunc        func(ctx context.Context, id, userID string) (*models.Task, error)
	BatchUpdateFunc   func(ctx context.Context, ids []string, userID string, update models.TaskUpdate) (*models.BatchResult, error)
	GetStatisticsFunc func(ctx context.Context, userID string) (*models.TaskStatistics, error)
}

func (m *MockTaskService) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, task)
	}
	return nil, models.ErrInternalServer
}

func (m *MockTaskService) FindOne(ctx context.Context, id, userID string) (*models.Task, error) {
	if m.FindOneFunc != nil {
		return m.FindOneFunc(ctx, id, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockTaskService) FindAll(ctx context.Context, filter models.TaskFilter) (*services.TaskListResult, error) {
	if m.FindAllFunc != nil {
		return m.FindAllFunc(ctx, filter)
	}
	return &services.TaskListResult{}, nil
}

func (m *MockTaskService) Update(ctx context.Context, id, userID string, update models.TaskUpdate) (*models.Task, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, userID, update)
	}
	return nil, models.ErrNotFound
}

func (m *MockTaskService) Remove(ctx context.Context, id, userID string) (*models.Task, error) {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, id, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockTaskService) BatchUpdate(ctx context.Context, ids []string, userID string, update models.TaskUpdate) (*models.BatchResult, error) {
	if m.BatchUpdateFunc != nil {
		return m.BatchUpdateFunc(ctx, ids, userID, update)
	}
	return nil, models.ErrInternalServer
}

func (m *MockTaskService) GetStatistics(ctx context.Context, userID string) (*models.TaskStatistics, error) {
	if m.GetStatisticsFunc != nil {
		return m.GetStatisticsFunc(ctx, userID)
	}
	return &models.TaskStatistics{}, nil
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc        func(ctx context.Context, email, password, ipAddress, userAgent string) (*services.AuthResponse, error)
	RegisterFunc     func(ctx context.Context, email, password, name string) (*services.AuthResponse, error)
	RefreshTokenFunc func(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
	LogoutFunc       func(ctx context.Context, accessToken string) error
}

func (m *MockAuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*services.AuthResponse, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, ipAddress, userAgent)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthService) Register(ctx context.Context, email, password, name string) (*services.AuthResponse, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, password, name)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) RefreshToken(ctx context.Context, refreshToken string) (*services.AuthResponse, error) {
	if m.RefreshTokenFunc != nil {
		return m.RefreshTokenFunc(ctx, refreshToken)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthService) Logout(ctx context.Context, accessToken string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, accessToken)
	}
	return nil
}

// MockUserService implements UserServiceInterface for testing
type MockUserService struct {
	GetUserByIDFunc func(ctx context.Context, id string) (*models.User, error)
	ListUsersFunc   func(ctx context.Context, limit, offset int) ([]*models.User, error)
	DeleteUserFunc  func(ctx context.Context, id string) error
}

func (m *MockUserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetUserByIDFunc != nil {
		return m.GetUserByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListUsersFunc != nil {
		return m.ListUsersFunc(ctx, limit, offset)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserService) DeleteUser(ctx context.Context, id string) error {
	if m.DeleteUserFunc != nil {
		return m.DeleteUserFunc(ctx, id)
	}
	return models.ErrNotFound
}
