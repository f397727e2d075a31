package repository

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/akorchak/groundlink/internal/models"
)

// MockSessionRepository is a mock implementation of SessionRepository for
// testing, backed by an in-memory row store.
type MockSessionRepository struct {
	CreateFunc         func(ctx context.Context, session *models.DroneSession) error
	CloseFunc          func(ctx context.Context, session *models.DroneSession) error
	GetBySessionIDFunc func(ctx context.Context, sessionID uuid.UUID) (*models.DroneSession, error)
	ListByDroneIDFunc  func(ctx context.Context, droneID int64) ([]*models.DroneSession, error)

	mu     sync.Mutex
	nextID atomic.Int64
	rows   map[uuid.UUID]*models.DroneSession
}

// NewMockSessionRepository creates a mock with an in-memory row store.
func NewMockSessionRepository() *MockSessionRepository {
	m := &MockSessionRepository{rows: make(map[uuid.UUID]*models.DroneSession)}

	m.CreateFunc = func(_ context.Context, session *models.DroneSession) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		session.ID = m.nextID.Add(1)
		copied := *session
		m.rows[session.SessionID] = &copied
		return nil
	}
	m.CloseFunc = func(_ context.Context, session *models.DroneSession) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.rows[session.SessionID]; !ok {
			return ErrSessionNotFound
		}
		copied := *session
		m.rows[session.SessionID] = &copied
		return nil
	}
	m.GetBySessionIDFunc = func(_ context.Context, sessionID uuid.UUID) (*models.DroneSession, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		row, ok := m.rows[sessionID]
		if !ok {
			return nil, ErrSessionNotFound
		}
		copied := *row
		return &copied, nil
	}
	m.ListByDroneIDFunc = func(_ context.Context, droneID int64) ([]*models.DroneSession, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		var out []*models.DroneSession
		for _, row := range m.rows {
			if row.DroneID == droneID {
				copied := *row
				out = append(out, &copied)
			}
		}
		return out, nil
	}
	return m
}

// Create implements SessionRepository.Create
func (m *MockSessionRepository) Create(ctx context.Context, session *models.DroneSession) error {
	return m.CreateFunc(ctx, session)
}

// Close implements SessionRepository.Close
func (m *MockSessionRepository) Close(ctx context.Context, session *models.DroneSession) error {
	return m.CloseFunc(ctx, session)
}

// GetBySessionID implements SessionRepository.GetBySessionID
func (m *MockSessionRepository) GetBySessionID(ctx context.Context, sessionID uuid.UUID) (*models.DroneSession, error) {
	return m.GetBySessionIDFunc(ctx, sessionID)
}

// ListByDroneID implements SessionRepository.ListByDroneID
func (m *MockSessionRepository) ListByDroneID(ctx context.Context, droneID int64) ([]*models.DroneSession, error) {
	return m.ListByDroneIDFunc(ctx, droneID)
}

// MockEventRepository is a mock implementation of EventRepository for testing.
type MockEventRepository struct {
	CreateFunc          func(ctx context.Context, event *models.DroneEvent) error
	ListBySessionIDFunc func(ctx context.Context, sessionID uuid.UUID) ([]*models.DroneEvent, error)

	mu     sync.Mutex
	nextID atomic.Int64
	rows   []*models.DroneEvent
}

// NewMockEventRepository creates a mock with an in-memory row store.
func NewMockEventRepository() *MockEventRepository {
	m := &MockEventRepository{}

	m.CreateFunc = func(_ context.Context, event *models.DroneEvent) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		event.ID = m.nextID.Add(1)
		copied := *event
		m.rows = append(m.rows, &copied)
		return nil
	}
	m.ListBySessionIDFunc = func(_ context.Context, sessionID uuid.UUID) ([]*models.DroneEvent, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		var out []*models.DroneEvent
		for _, row := range m.rows {
			if row.SessionID == sessionID {
				copied := *row
				out = append(out, &copied)
			}
		}
		return out, nil
	}
	return m
}

// Create implements EventRepository.Create
func (m *MockEventRepository) Create(ctx context.Context, event *models.DroneEvent) error {
	return m.CreateFunc(ctx, event)
}

// ListBySessionID implements EventRepository.ListBySessionID
func (m *MockEventRepository) ListBySessionID(ctx context.Context, sessionID uuid.UUID) ([]*models.DroneEvent, error) {
	return m.ListBySessionIDFunc(ctx, sessionID)
}

// All returns every stored event in insertion order.
func (m *MockEventRepository) All() []*models.DroneEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.DroneEvent, len(m.rows))
	copy(out, m.rows)
	return out
}
