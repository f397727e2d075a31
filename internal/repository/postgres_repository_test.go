package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/akorchak/groundlink/internal/database"
	"github.com/akorchak/groundlink/internal/models"
)

// setupTestDB starts a throwaway PostgreSQL container and applies the schema.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container-backed repository tests in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_groundlink"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_pass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute)),
	)
	if err != nil {
		t.Fatalf("Failed to start container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	sqlDB, err := sql.Open("pgx", connStr)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	db := &database.DB{DB: sqlDB}

	if err := runTestMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	return db
}

// runTestMigrations applies the schema the repositories depend on.
func runTestMigrations(db *database.DB) error {
	migrations := []string{
		`CREATE TABLE users (
			id BIGSERIAL PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,

		`CREATE TABLE drones (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			name VARCHAR(255) NOT NULL,
			uin VARCHAR(64) NOT NULL UNIQUE,
			status VARCHAR(32) NOT NULL DEFAULT 'offline',
			last_seen TIMESTAMPTZ,
			lat DOUBLE PRECISION NOT NULL DEFAULT 0,
			lon DOUBLE PRECISION NOT NULL DEFAULT 0,
			alt DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,

		`CREATE TABLE drone_sessions (
			id BIGSERIAL PRIMARY KEY,
			session_id UUID NOT NULL UNIQUE,
			user_id BIGINT NOT NULL REFERENCES users(id),
			drone_id BIGINT NOT NULL REFERENCES drones(id),
			mission_id BIGINT,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ,
			start_battery INTEGER NOT NULL DEFAULT 0,
			end_battery INTEGER,
			start_lat DOUBLE PRECISION,
			start_lon DOUBLE PRECISION,
			end_lat DOUBLE PRECISION,
			end_lon DOUBLE PRECISION,
			total_distance DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_altitude DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_speed DOUBLE PRECISION NOT NULL DEFAULT 0,
			avg_speed DOUBLE PRECISION NOT NULL DEFAULT 0,
			flight_duration DOUBLE PRECISION NOT NULL DEFAULT 0,
			battery_used INTEGER NOT NULL DEFAULT 0,
			status VARCHAR(32) NOT NULL DEFAULT 'active'
		);`,

		`CREATE TABLE drone_events (
			id BIGSERIAL PRIMARY KEY,
			session_id UUID NOT NULL REFERENCES drone_sessions(session_id),
			user_id BIGINT NOT NULL REFERENCES users(id),
			drone_id BIGINT NOT NULL REFERENCES drones(id),
			mission_id BIGINT,
			timestamp TIMESTAMPTZ NOT NULL,
			event_type VARCHAR(32) NOT NULL,
			lat DOUBLE PRECISION,
			lon DOUBLE PRECISION,
			altitude DOUBLE PRECISION,
			battery INTEGER,
			speed DOUBLE PRECISION,
			mode VARCHAR(32),
			message TEXT NOT NULL DEFAULT ''
		);`,

		`CREATE INDEX idx_drone_events_session ON drone_events(session_id, timestamp);`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}

func seedUser(t *testing.T, db *database.DB, email string, isAdmin bool) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(
		`INSERT INTO users (email, is_admin) VALUES ($1, $2) RETURNING id`,
		email, isAdmin,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestPostgresRepositories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	droneRepo := NewPostgresDroneRepository(db)
	sessionRepo := NewPostgresSessionRepository(db)
	eventRepo := NewPostgresEventRepository(db)
	userRepo := NewPostgresUserRepository(db)

	ownerID := seedUser(t, db, "pilot@example.com", false)

	t.Run("user get by id", func(t *testing.T) {
		user, err := userRepo.GetByID(ctx, ownerID)
		require.NoError(t, err)
		assert.Equal(t, "pilot@example.com", user.Email)
		assert.False(t, user.IsAdmin)

		_, err = userRepo.GetByID(ctx, 9999)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	var droneID int64
	t.Run("drone create and uniqueness", func(t *testing.T) {
		d := &models.Drone{UserID: ownerID, Name: "alpha", UIN: "UIN-001"}
		require.NoError(t, droneRepo.Create(ctx, d))
		require.NotZero(t, d.ID)
		droneID = d.ID

		dup := &models.Drone{UserID: ownerID, Name: "clone", UIN: "UIN-001"}
		assert.ErrorIs(t, droneRepo.Create(ctx, dup), ErrDroneExists)

		got, err := droneRepo.GetByUIN(ctx, "UIN-001")
		require.NoError(t, err)
		assert.Equal(t, droneID, got.ID)
		assert.Equal(t, models.DroneStatusOffline, got.Status)
	})

	t.Run("drone status and telemetry updates", func(t *testing.T) {
		require.NoError(t, droneRepo.UpdateStatus(ctx, droneID, models.DroneStatusConnected))
		require.NoError(t, droneRepo.UpdateTelemetry(ctx, droneID, 47.39, 8.54, 488, time.Now()))

		got, err := droneRepo.GetByID(ctx, droneID)
		require.NoError(t, err)
		assert.Equal(t, models.DroneStatusConnected, got.Status)
		assert.InDelta(t, 47.39, got.Lat, 1e-9)
		assert.NotNil(t, got.LastSeen)

		assert.ErrorIs(t, droneRepo.UpdateStatus(ctx, 9999, models.DroneStatusOffline), ErrDroneNotFound)
	})

	t.Run("startup recovery marks stale drones offline", func(t *testing.T) {
		n, err := droneRepo.MarkStaleOffline(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := droneRepo.GetByID(ctx, droneID)
		require.NoError(t, err)
		assert.Equal(t, models.DroneStatusOffline, got.Status)
	})

	sessionUUID := uuid.New()
	t.Run("session lifecycle", func(t *testing.T) {
		started := time.Now().UTC().Truncate(time.Millisecond)
		lat, lon := 47.39, 8.54
		s := &models.DroneSession{
			SessionID:    sessionUUID,
			UserID:       ownerID,
			DroneID:      droneID,
			StartedAt:    started,
			StartBattery: 95,
			StartLat:     &lat,
			StartLon:     &lon,
			Status:       models.SessionStatusActive,
		}
		require.NoError(t, sessionRepo.Create(ctx, s))
		require.NotZero(t, s.ID)

		ended := started.Add(5 * time.Minute)
		endBattery := 60
		s.EndedAt = &ended
		s.EndBattery = &endBattery
		s.TotalDistance = 1234.5
		s.MaxAltitude = 80
		s.MaxSpeed = 14.2
		s.AvgSpeed = 8.8
		s.FlightDuration = 300
		s.BatteryUsed = 35
		s.Status = models.SessionStatusCompleted
		require.NoError(t, sessionRepo.Close(ctx, s))

		got, err := sessionRepo.GetBySessionID(ctx, sessionUUID)
		require.NoError(t, err)
		assert.Equal(t, models.SessionStatusCompleted, got.Status)
		assert.Equal(t, 35, got.BatteryUsed)
		require.NotNil(t, got.EndBattery)
		assert.Equal(t, 60, *got.EndBattery)
		assert.InDelta(t, 1234.5, got.TotalDistance, 1e-6)

		sessions, err := sessionRepo.ListByDroneID(ctx, droneID)
		require.NoError(t, err)
		assert.Len(t, sessions, 1)

		missing := &models.DroneSession{SessionID: uuid.New(), Status: models.SessionStatusAborted}
		assert.ErrorIs(t, sessionRepo.Close(ctx, missing), ErrSessionNotFound)
	})

	t.Run("events preserve per-session order", func(t *testing.T) {
		base := time.Now().UTC().Truncate(time.Millisecond)
		for i, eventType := range []string{models.EventSessionStarted, models.EventTakeoff, models.EventLanding} {
			alt := float64(i * 10)
			ev := &models.DroneEvent{
				SessionID: sessionUUID,
				UserID:    ownerID,
				DroneID:   droneID,
				Timestamp: base.Add(time.Duration(i) * time.Second),
				EventType: eventType,
				Altitude:  &alt,
				Message:   eventType,
			}
			require.NoError(t, eventRepo.Create(ctx, ev))
		}

		events, err := eventRepo.ListBySessionID(ctx, sessionUUID)
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, models.EventSessionStarted, events[0].EventType)
		assert.Equal(t, models.EventTakeoff, events[1].EventType)
		assert.Equal(t, models.EventLanding, events[2].EventType)
	})
}
