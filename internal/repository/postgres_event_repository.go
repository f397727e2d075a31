package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/akorchak/groundlink/internal/database"
	"github.com/akorchak/groundlink/internal/models"
)

// PostgresEventRepository implements EventRepository using PostgreSQL
type PostgresEventRepository struct {
	db *database.DB
}

// NewPostgresEventRepository creates a new PostgreSQL event repository
func NewPostgresEventRepository(db *database.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

// Create appends one event row
func (r *PostgresEventRepository) Create(ctx context.Context, event *models.DroneEvent) error {
	query := `
		INSERT INTO drone_events (
			session_id, user_id, drone_id, mission_id, timestamp, event_type,
			lat, lon, altitude, battery, speed, mode, message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		event.SessionID, event.UserID, event.DroneID, event.MissionID,
		event.Timestamp, event.EventType,
		event.Lat, event.Lon, event.Altitude, event.Battery, event.Speed,
		event.Mode, event.Message,
	).Scan(&event.ID)

	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	return nil
}

// ListBySessionID retrieves the events of one session in emission order
func (r *PostgresEventRepository) ListBySessionID(ctx context.Context, sessionID uuid.UUID) ([]*models.DroneEvent, error) {
	query := `
		SELECT id, session_id, user_id, drone_id, mission_id, timestamp, event_type,
			lat, lon, altitude, battery, speed, mode, message
		FROM drone_events
		WHERE session_id = $1
		ORDER BY timestamp, id
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.DroneEvent
	for rows.Next() {
		var event models.DroneEvent
		err := rows.Scan(
			&event.ID, &event.SessionID, &event.UserID, &event.DroneID, &event.MissionID,
			&event.Timestamp, &event.EventType,
			&event.Lat, &event.Lon, &event.Altitude, &event.Battery, &event.Speed,
			&event.Mode, &event.Message,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
