package repository

import (
	"context"
	"sync"

	"github.com/akorchak/groundlink/internal/models"
)

// MockUserRepository is a mock implementation of UserRepository for testing.
type MockUserRepository struct {
	GetByIDFunc func(ctx context.Context, id int64) (*models.User, error)

	mu   sync.Mutex
	rows map[int64]*models.User
}

// NewMockUserRepository creates a mock with an in-memory row store.
func NewMockUserRepository() *MockUserRepository {
	m := &MockUserRepository{rows: make(map[int64]*models.User)}

	m.GetByIDFunc = func(_ context.Context, id int64) (*models.User, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		row, ok := m.rows[id]
		if !ok {
			return nil, ErrUserNotFound
		}
		copied := *row
		return &copied, nil
	}
	return m
}

// Add seeds a user row.
func (m *MockUserRepository) Add(user *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *user
	m.rows[user.ID] = &copied
}

// GetByID implements UserRepository.GetByID
func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return m.GetByIDFunc(ctx, id)
}
