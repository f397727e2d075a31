package models

import (
	"time"

	"github.com/google/uuid"
)

// Session statuses persisted in the drone_sessions table.
const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusAborted   = "aborted"
)

// DroneSession is one bounded flight interval: from the first heartbeat
// after a successful connect until disconnect or operator termination.
type DroneSession struct {
	ID             int64      `json:"id" db:"id"`
	SessionID      uuid.UUID  `json:"sessionId" db:"session_id"`
	UserID         int64      `json:"userId" db:"user_id"`
	DroneID        int64      `json:"droneId" db:"drone_id"`
	MissionID      *int64     `json:"missionId,omitempty" db:"mission_id"`
	StartedAt      time.Time  `json:"startedAt" db:"started_at"`
	EndedAt        *time.Time `json:"endedAt,omitempty" db:"ended_at"`
	StartBattery   int        `json:"startBattery" db:"start_battery"`
	EndBattery     *int       `json:"endBattery,omitempty" db:"end_battery"`
	StartLat       *float64   `json:"startLat,omitempty" db:"start_lat"`
	StartLon       *float64   `json:"startLon,omitempty" db:"start_lon"`
	EndLat         *float64   `json:"endLat,omitempty" db:"end_lat"`
	EndLon         *float64   `json:"endLon,omitempty" db:"end_lon"`
	TotalDistance  float64    `json:"totalDistance" db:"total_distance"`
	MaxAltitude    float64    `json:"maxAltitude" db:"max_altitude"`
	MaxSpeed       float64    `json:"maxSpeed" db:"max_speed"`
	AvgSpeed       float64    `json:"avgSpeed" db:"avg_speed"`
	FlightDuration float64    `json:"flightDuration" db:"flight_duration"` // seconds
	BatteryUsed    int        `json:"batteryUsed" db:"battery_used"`
	Status         string     `json:"status" db:"status"`
}
