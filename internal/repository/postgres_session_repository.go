package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/akorchak/groundlink/internal/database"
	"github.com/akorchak/groundlink/internal/models"
)

// PostgresSessionRepository implements SessionRepository using PostgreSQL
type PostgresSessionRepository struct {
	db *database.DB
}

// NewPostgresSessionRepository creates a new PostgreSQL session repository
func NewPostgresSessionRepository(db *database.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

const sessionColumns = `id, session_id, user_id, drone_id, mission_id, started_at, ended_at,
		start_battery, end_battery, start_lat, start_lon, end_lat, end_lon,
		total_distance, max_altitude, max_speed, avg_speed, flight_duration, battery_used, status`

// Create stores a newly opened session
func (r *PostgresSessionRepository) Create(ctx context.Context, session *models.DroneSession) error {
	query := `
		INSERT INTO drone_sessions (
			session_id, user_id, drone_id, mission_id, started_at,
			start_battery, start_lat, start_lon, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		session.SessionID, session.UserID, session.DroneID, session.MissionID,
		session.StartedAt, session.StartBattery, session.StartLat, session.StartLon,
		session.Status,
	).Scan(&session.ID)

	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// Close writes the end-of-flight fields and final status
func (r *PostgresSessionRepository) Close(ctx context.Context, session *models.DroneSession) error {
	query := `
		UPDATE drone_sessions
		SET ended_at = $1, end_battery = $2, end_lat = $3, end_lon = $4,
			total_distance = $5, max_altitude = $6, max_speed = $7,
			avg_speed = $8, flight_duration = $9, battery_used = $10, status = $11
		WHERE session_id = $12
	`

	result, err := r.db.ExecContext(ctx, query,
		session.EndedAt, session.EndBattery, session.EndLat, session.EndLon,
		session.TotalDistance, session.MaxAltitude, session.MaxSpeed,
		session.AvgSpeed, session.FlightDuration, session.BatteryUsed, session.Status,
		session.SessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// GetBySessionID retrieves a session by its opaque session UUID
func (r *PostgresSessionRepository) GetBySessionID(ctx context.Context, sessionID uuid.UUID) (*models.DroneSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM drone_sessions WHERE session_id = $1`

	var session models.DroneSession
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&session.ID, &session.SessionID, &session.UserID, &session.DroneID, &session.MissionID,
		&session.StartedAt, &session.EndedAt,
		&session.StartBattery, &session.EndBattery,
		&session.StartLat, &session.StartLon, &session.EndLat, &session.EndLon,
		&session.TotalDistance, &session.MaxAltitude, &session.MaxSpeed,
		&session.AvgSpeed, &session.FlightDuration, &session.BatteryUsed, &session.Status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	return &session, nil
}

// ListByDroneID retrieves sessions of one drone, newest first
func (r *PostgresSessionRepository) ListByDroneID(ctx context.Context, droneID int64) ([]*models.DroneSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM drone_sessions WHERE drone_id = $1 ORDER BY started_at DESC`

	rows, err := r.db.QueryContext(ctx, query, droneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.DroneSession
	for rows.Next() {
		var session models.DroneSession
		err := rows.Scan(
			&session.ID, &session.SessionID, &session.UserID, &session.DroneID, &session.MissionID,
			&session.StartedAt, &session.EndedAt,
			&session.StartBattery, &session.EndBattery,
			&session.StartLat, &session.StartLon, &session.EndLat, &session.EndLon,
			&session.TotalDistance, &session.MaxAltitude, &session.MaxSpeed,
			&session.AvgSpeed, &session.FlightDuration, &session.BatteryUsed, &session.Status,
		)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, &session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}
