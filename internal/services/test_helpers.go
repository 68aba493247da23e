package services

import (
	"context"
	"sync"
	"time"

	"github.com/jacobwhite/taskdeck/internal/models"
)

// MockTaskRepository implements TaskRepository for testing
type MockTaskRepository struct {
	CreateFunc              func(ctx context.Context, task *models.Task) (*models.Task, error)
	GetByIDFunc             func(ctx context.Context, id, userID string) (*models.Task, error)
	ListFunc                func(ctx context.Context, filter models.TaskFilter) ([]*models.Task, int, error)
	UpdateFunc              func(ctx context.Context, id, userID string, update models.TaskUpdate) (*models.Task, models.TaskStatus, error)
	DeleteFunc              func(ctx context.Context, id, userID string) (*models.Task, error)
	BatchUpdateFunc         func(ctx context.Context, ids []string, userID string, update models.TaskUpdate) ([]*models.Task, error)
	CountByStatusFunc       func(ctx context.Context, userID string) (map[models.TaskStatus]int, error)
	CountByPriorityFunc     func(ctx context.Context, userID string) (map[models.TaskPriority]int, error)
	CountOverdueFunc        func(ctx context.Context, userID string, now time.Time) (int, error)
	CountCompletedSinceFunc func(ctx context.Context, userID string, since time.Time) (int, error)
}

func (m *MockTaskRepository) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, task)
	}
	return nil, models.ErrInternalServer
}

func (m *MockTaskRepository) GetByID(ctx context.Context, id, userID string) (*models.Task, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockTaskRepository) List(ctx context.Context, filter models.TaskFilter) ([]*models.Task, int, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return []*models.Task{}, 0, nil
}

func (m *MockTaskRepository) Update(ctx context.Context, id, userID string, update models.TaskUpdate) (*models.Task, models.TaskStatus, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, userID, update)
	}
	return nil, "", models.ErrNotFound
}

func (m *MockTaskRepository) Delete(ctx context.Context, id, userID string) (*models.Task, error) {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockTaskRepository) BatchUpdate(ctx context.Context, ids []string, userID string, update models.TaskUpdate) ([]*models.Task, error) {
	if m.BatchUpdateFunc != nil {
		return m.BatchUpdateFunc(ctx, ids, userID, update)
	}
	return nil, models.ErrInternalServer
}

func (m *MockTaskRepository) CountByStatus(ctx context.Context, userID string) (map[models.TaskStatus]int, error) {
	if m.CountByStatusFunc != nil {
		return m.CountByStatusFunc(ctx, userID)
	}
	return map[models.TaskStatus]int{}, nil
}

func (m *MockTaskRepository) CountByPriority(ctx context.Context, userID string) (map[models.TaskPriority]int, error) {
	if m.CountByPriorityFunc != nil {
		return m.CountByPriorityFunc(ctx, userID)
	}
	return map[models.TaskPriority]int{}, nil
}

func (m *MockTaskRepository) CountOverdue(ctx context.Context, userID string, now time.Time) (int, error) {
	if m.CountOverdueFunc != nil {
		return m.CountOverdueFunc(ctx, userID, now)
	}
	return 0, nil
}

func (m *MockTaskRepository) CountCompletedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	if m.CountCompletedSinceFunc != nil {
		return m.CountCompletedSinceFunc(ctx, userID, since)
	}
	return 0, nil
}

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc    func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc func(ctx context.Context, email string) (*models.User, error)
	ListFunc       func(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateFunc     func(ctx context.Context, user *models.User) (*models.User, error)
	DeleteFunc     func(ctx context.Context, id string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockLoginGuard implements LoginGuard for testing
type MockLoginGuard struct {
	CheckFunc         func(ctx context.Context, email string) error
	RecordFailureFunc func(ctx context.Context, email string) error
	ClearFunc         func(ctx context.Context, email string) error
}

func (m *MockLoginGuard) Check(ctx context.Context, email string) error {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, email)
	}
	return nil
}

func (m *MockLoginGuard) RecordFailure(ctx context.Context, email string) error {
	if m.RecordFailureFunc != nil {
		return m.RecordFailureFunc(ctx, email)
	}
	return nil
}

func (m *MockLoginGuard) Clear(ctx context.Context, email string) error {
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx, email)
	}
	return nil
}

// MockTokenRevoker implements TokenRevoker for testing
type MockTokenRevoker struct {
	RevokeTokenFunc    func(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevokedFunc func(ctx context.Context, jti string) (bool, error)
}

func (m *MockTokenRevoker) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	if m.RevokeTokenFunc != nil {
		return m.RevokeTokenFunc(ctx, jti, expiresAt)
	}
	return nil
}

func (m *MockTokenRevoker) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if m.IsTokenRevokedFunc != nil {
		return m.IsTokenRevokedFunc(ctx, jti)
	}
	return false, nil
}

// RecordingEnqueuer implements EventEnqueuer for testing, capturing every
// emitted event.
type RecordingEnqueuer struct {
	mu     sync.Mutex
	Events []RecordedEvent
	Err    error
}

type RecordedEvent struct {
	Type    string
	Payload any
}

func (r *RecordingEnqueuer) Enqueue(ctx context.Context, eventType string, payload any) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, RecordedEvent{Type: eventType, Payload: payload})
	return nil
}

func (r *RecordingEnqueuer) Recorded() []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedEvent, len(r.Events))
	copy(out, r.Events)
	return out
}
