// Package repository provides data access for the ground station's
// persistent rows: users, drones, flight sessions and derived events.
package repository

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/akorchak/groundlink/internal/models"
)

var (
	// ErrDroneNotFound is returned when a drone is not found
	ErrDroneNotFound = errors.New("drone not found")

	// ErrDroneExists is returned when registering a drone with an existing UIN
	ErrDroneExists = errors.New("drone uin already registered")

	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")

	// ErrSessionNotFound is returned when a session is not found
	ErrSessionNotFound = errors.New("session not found")
)

// DroneRepository defines the interface for drone row access
type DroneRepository interface {
	// Create stores a new drone and assigns its ID. Returns ErrDroneExists
	// when the UIN is already registered.
	Create(ctx context.Context, drone *models.Drone) error

	// GetByID retrieves a drone by its internal ID
	GetByID(ctx context.Context, id int64) (*models.Drone, error)

	// GetByUIN retrieves a drone by its unique identification number
	GetByUIN(ctx context.Context, uin string) (*models.Drone, error)

	// ListAll retrieves every registered drone
	ListAll(ctx context.Context) ([]*models.Drone, error)

	// ListByUserID retrieves all drones owned by a user
	ListByUserID(ctx context.Context, userID int64) ([]*models.Drone, error)

	// UpdateStatus updates the persisted status and last_seen timestamp
	UpdateStatus(ctx context.Context, id int64, status string) error

	// UpdateTelemetry updates the persisted position and last_seen timestamp
	UpdateTelemetry(ctx context.Context, id int64, lat, lon, alt float64, lastSeen time.Time) error

	// MarkStaleOffline forces drones left connected or flying by a previous
	// process to offline, returning the number of rows changed
	MarkStaleOffline(ctx context.Context) (int64, error)
}

// SessionRepository defines the interface for flight session rows
type SessionRepository interface {
	// Create stores a newly opened session
	Create(ctx context.Context, session *models.DroneSession) error

	// Close writes the end-of-flight fields and final status
	Close(ctx context.Context, session *models.DroneSession) error

	// GetBySessionID retrieves a session by its opaque session UUID
	GetBySessionID(ctx context.Context, sessionID uuid.UUID) (*models.DroneSession, error)

	// ListByDroneID retrieves sessions of one drone, newest first
	ListByDroneID(ctx context.Context, droneID int64) ([]*models.DroneSession, error)
}

// EventRepository defines the interface for derived flight events
type EventRepository interface {
	// Create appends one event row
	Create(ctx context.Context, event *models.DroneEvent) error

	// ListBySessionID retrieves the events of one session in emission order
	ListBySessionID(ctx context.Context, sessionID uuid.UUID) ([]*models.DroneEvent, error)
}

// UserRepository defines the interface for user row access
type UserRepository interface {
	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// IsTransient reports whether a storage error is worth retrying later:
// timeouts, connection failures and resource exhaustion. Everything else is
// treated as permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "08", "53", "57": // connection, resources, operator intervention
			return true
		}
	}
	return false
}
