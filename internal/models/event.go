package models

import (
	"time"

	"github.com/google/uuid"
)

// Event kinds persisted in the drone_events table.
const (
	EventSessionStarted = "session_started"
	EventSessionEnded   = "session_ended"
	EventTakeoff        = "takeoff"
	EventLanding        = "landing"
	EventModeChange     = "mode_change"
	EventBatteryLow     = "battery_low"
	EventZoneViolation  = "zone_violation"
)

// DroneEvent is a discrete lifecycle observation derived from the telemetry
// stream, debounced per session and kind.
type DroneEvent struct {
	ID        int64     `json:"id" db:"id"`
	SessionID uuid.UUID `json:"sessionId" db:"session_id"`
	UserID    int64     `json:"userId" db:"user_id"`
	DroneID   int64     `json:"droneId" db:"drone_id"`
	MissionID *int64    `json:"missionId,omitempty" db:"mission_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	EventType string    `json:"eventType" db:"event_type"`
	Lat       *float64  `json:"lat,omitempty" db:"lat"`
	Lon       *float64  `json:"lon,omitempty" db:"lon"`
	Altitude  *float64  `json:"altitude,omitempty" db:"altitude"`
	Battery   *int      `json:"battery,omitempty" db:"battery"`
	Speed     *float64  `json:"speed,omitempty" db:"speed"`
	Mode      *string   `json:"mode,omitempty" db:"mode"`
	Message   string    `json:"message" db:"message"`
}
