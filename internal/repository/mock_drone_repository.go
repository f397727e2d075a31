package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akorchak/groundlink/internal/models"
)

// MockDroneRepository is a mock implementation of DroneRepository for testing.
// The default behavior keeps rows in memory so manager tests work unmodified.
type MockDroneRepository struct {
	CreateFunc           func(ctx context.Context, drone *models.Drone) error
	GetByIDFunc          func(ctx context.Context, id int64) (*models.Drone, error)
	GetByUINFunc         func(ctx context.Context, uin string) (*models.Drone, error)
	ListAllFunc          func(ctx context.Context) ([]*models.Drone, error)
	ListByUserIDFunc     func(ctx context.Context, userID int64) ([]*models.Drone, error)
	UpdateStatusFunc     func(ctx context.Context, id int64, status string) error
	UpdateTelemetryFunc  func(ctx context.Context, id int64, lat, lon, alt float64, lastSeen time.Time) error
	MarkStaleOfflineFunc func(ctx context.Context) (int64, error)

	mu     sync.Mutex
	nextID atomic.Int64
	rows   map[int64]*models.Drone
}

// NewMockDroneRepository creates a mock with an in-memory row store.
func NewMockDroneRepository() *MockDroneRepository {
	m := &MockDroneRepository{rows: make(map[int64]*models.Drone)}

	m.CreateFunc = func(_ context.Context, drone *models.Drone) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, row := range m.rows {
			if row.UIN == drone.UIN {
				return ErrDroneExists
			}
		}
		drone.ID = m.nextID.Add(1)
		drone.CreatedAt = time.Now()
		drone.UpdatedAt = drone.CreatedAt
		copied := *drone
		m.rows[drone.ID] = &copied
		return nil
	}
	m.GetByIDFunc = func(_ context.Context, id int64) (*models.Drone, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		row, ok := m.rows[id]
		if !ok {
			return nil, ErrDroneNotFound
		}
		copied := *row
		return &copied, nil
	}
	m.GetByUINFunc = func(_ context.Context, uin string) (*models.Drone, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, row := range m.rows {
			if row.UIN == uin {
				copied := *row
				return &copied, nil
			}
		}
		return nil, ErrDroneNotFound
	}
	m.ListAllFunc = func(_ context.Context) ([]*models.Drone, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		out := make([]*models.Drone, 0, len(m.rows))
		for _, row := range m.rows {
			copied := *row
			out = append(out, &copied)
		}
		return out, nil
	}
	m.ListByUserIDFunc = func(_ context.Context, userID int64) ([]*models.Drone, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		var out []*models.Drone
		for _, row := range m.rows {
			if row.UserID == userID {
				copied := *row
				out = append(out, &copied)
			}
		}
		return out, nil
	}
	m.UpdateStatusFunc = func(_ context.Context, id int64, status string) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		row, ok := m.rows[id]
		if !ok {
			return ErrDroneNotFound
		}
		now := time.Now()
		row.Status = status
		row.LastSeen = &now
		return nil
	}
	m.UpdateTelemetryFunc = func(_ context.Context, id int64, lat, lon, alt float64, lastSeen time.Time) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		row, ok := m.rows[id]
		if !ok {
			return ErrDroneNotFound
		}
		row.Lat, row.Lon, row.Alt = lat, lon, alt
		row.LastSeen = &lastSeen
		return nil
	}
	m.MarkStaleOfflineFunc = func(_ context.Context) (int64, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		var n int64
		for _, row := range m.rows {
			if row.Status == models.DroneStatusConnected || row.Status == models.DroneStatusFlying {
				row.Status = models.DroneStatusOffline
				n++
			}
		}
		return n, nil
	}
	return m
}

// Create implements DroneRepository.Create
func (m *MockDroneRepository) Create(ctx context.Context, drone *models.Drone) error {
	return m.CreateFunc(ctx, drone)
}

// GetByID implements DroneRepository.GetByID
func (m *MockDroneRepository) GetByID(ctx context.Context, id int64) (*models.Drone, error) {
	return m.GetByIDFunc(ctx, id)
}

// GetByUIN implements DroneRepository.GetByUIN
func (m *MockDroneRepository) GetByUIN(ctx context.Context, uin string) (*models.Drone, error) {
	return m.GetByUINFunc(ctx, uin)
}

// ListAll implements DroneRepository.ListAll
func (m *MockDroneRepository) ListAll(ctx context.Context) ([]*models.Drone, error) {
	return m.ListAllFunc(ctx)
}

// ListByUserID implements DroneRepository.ListByUserID
func (m *MockDroneRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Drone, error) {
	return m.ListByUserIDFunc(ctx, userID)
}

// UpdateStatus implements DroneRepository.UpdateStatus
func (m *MockDroneRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	return m.UpdateStatusFunc(ctx, id, status)
}

// UpdateTelemetry implements DroneRepository.UpdateTelemetry
func (m *MockDroneRepository) UpdateTelemetry(ctx context.Context, id int64, lat, lon, alt float64, lastSeen time.Time) error {
	return m.UpdateTelemetryFunc(ctx, id, lat, lon, alt, lastSeen)
}

// MarkStaleOffline implements DroneRepository.MarkStaleOffline
func (m *MockDroneRepository) MarkStaleOffline(ctx context.Context) (int64, error) {
	return m.MarkStaleOfflineFunc(ctx)
}
