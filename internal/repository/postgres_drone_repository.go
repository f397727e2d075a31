package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akorchak/groundlink/internal/database"
	"github.com/akorchak/groundlink/internal/models"
)

// PostgresDroneRepository implements DroneRepository using PostgreSQL
type PostgresDroneRepository struct {
	db *database.DB
}

// NewPostgresDroneRepository creates a new PostgreSQL drone repository
func NewPostgresDroneRepository(db *database.DB) *PostgresDroneRepository {
	return &PostgresDroneRepository{db: db}
}

const droneColumns = `id, user_id, name, uin, status, last_seen, lat, lon, alt, created_at, updated_at`

// Create stores a new drone and assigns its ID
func (r *PostgresDroneRepository) Create(ctx context.Context, drone *models.Drone) error {
	query := `
		INSERT INTO drones (user_id, name, uin, status, lat, lon, alt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	now := time.Now()
	if drone.CreatedAt.IsZero() {
		drone.CreatedAt = now
	}
	drone.UpdatedAt = now
	if drone.Status == "" {
		drone.Status = models.DroneStatusOffline
	}

	err := r.db.QueryRowContext(ctx, query,
		drone.UserID, drone.Name, drone.UIN, drone.Status,
		drone.Lat, drone.Lon, drone.Alt,
		drone.CreatedAt, drone.UpdatedAt,
	).Scan(&drone.ID)

	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDroneExists
		}
		return fmt.Errorf("failed to create drone: %w", err)
	}

	return nil
}

// GetByID retrieves a drone by its internal ID
func (r *PostgresDroneRepository) GetByID(ctx context.Context, id int64) (*models.Drone, error) {
	query := `SELECT ` + droneColumns + ` FROM drones WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByUIN retrieves a drone by its unique identification number
func (r *PostgresDroneRepository) GetByUIN(ctx context.Context, uin string) (*models.Drone, error) {
	query := `SELECT ` + droneColumns + ` FROM drones WHERE uin = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, uin))
}

func (r *PostgresDroneRepository) scanOne(row *sql.Row) (*models.Drone, error) {
	var drone models.Drone
	err := row.Scan(
		&drone.ID, &drone.UserID, &drone.Name, &drone.UIN, &drone.Status,
		&drone.LastSeen, &drone.Lat, &drone.Lon, &drone.Alt,
		&drone.CreatedAt, &drone.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDroneNotFound
		}
		return nil, err
	}
	return &drone, nil
}

// ListAll retrieves every registered drone
func (r *PostgresDroneRepository) ListAll(ctx context.Context) ([]*models.Drone, error) {
	query := `SELECT ` + droneColumns + ` FROM drones ORDER BY id`
	return r.list(ctx, query)
}

// ListByUserID retrieves all drones owned by a user
func (r *PostgresDroneRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Drone, error) {
	query := `SELECT ` + droneColumns + ` FROM drones WHERE user_id = $1 ORDER BY id`
	return r.list(ctx, query, userID)
}

func (r *PostgresDroneRepository) list(ctx context.Context, query string, args ...any) ([]*models.Drone, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drones []*models.Drone
	for rows.Next() {
		var drone models.Drone
		err := rows.Scan(
			&drone.ID, &drone.UserID, &drone.Name, &drone.UIN, &drone.Status,
			&drone.LastSeen, &drone.Lat, &drone.Lon, &drone.Alt,
			&drone.CreatedAt, &drone.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		drones = append(drones, &drone)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return drones, nil
}

// UpdateStatus updates the persisted status and last_seen timestamp
func (r *PostgresDroneRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `
		UPDATE drones
		SET status = $1, last_seen = NOW(), updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrDroneNotFound
	}

	return nil
}

// UpdateTelemetry updates the persisted position and last_seen timestamp
func (r *PostgresDroneRepository) UpdateTelemetry(ctx context.Context, id int64, lat, lon, alt float64, lastSeen time.Time) error {
	query := `
		UPDATE drones
		SET lat = $1, lon = $2, alt = $3, last_seen = $4, updated_at = NOW()
		WHERE id = $5
	`

	result, err := r.db.ExecContext(ctx, query, lat, lon, alt, lastSeen, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrDroneNotFound
	}

	return nil
}

// MarkStaleOffline forces drones left connected or flying by a previous
// process to offline. Run before accepting traffic: there are no live links
// after a restart.
func (r *PostgresDroneRepository) MarkStaleOffline(ctx context.Context) (int64, error) {
	query := `
		UPDATE drones
		SET status = $1, updated_at = NOW()
		WHERE status IN ($2, $3)
	`

	result, err := r.db.ExecContext(ctx, query,
		models.DroneStatusOffline, models.DroneStatusConnected, models.DroneStatusFlying)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
