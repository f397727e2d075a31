package models

import (
	"time"

	"github.com/akorchak/groundlink/internal/telemetry"
)

// Drone statuses persisted in the drones table.
const (
	DroneStatusOffline    = "offline"
	DroneStatusConnecting = "connecting"
	DroneStatusConnected  = "connected"
	DroneStatusFlying     = "flying"
)

// Drone represents a registered vehicle. UIN is the externally assigned
// unique identification number; ID is the internal registration key.
type Drone struct {
	ID        int64      `json:"id" db:"id"`
	UserID    int64      `json:"userId" db:"user_id"`
	Name      string     `json:"name" db:"name"`
	UIN       string     `json:"uin" db:"uin"`
	Status    string     `json:"status" db:"status"`
	LastSeen  *time.Time `json:"lastSeen,omitempty" db:"last_seen"`
	Lat       float64    `json:"lat" db:"lat"`
	Lon       float64    `json:"lon" db:"lon"`
	Alt       float64    `json:"alt" db:"alt"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
}

// DroneStatusResponse is the drone state exposed on the status endpoints.
type DroneStatusResponse struct {
	ID       int64               `json:"id"`
	Name     string              `json:"name"`
	UIN      string              `json:"uin"`
	Status   string              `json:"status"`
	Snapshot *telemetry.Snapshot `json:"telemetry,omitempty"`
}
