// Package telemetry holds the live per-vehicle telemetry snapshot.
package telemetry

import (
	"sync"
	"time"

	"github.com/akorchak/groundlink/internal/mavlink"
)

// Snapshot is the current state of one vehicle as derived from its MAVLink
// stream. Values are overwritten in place as messages arrive.
type Snapshot struct {
	Armed          bool    `json:"armed"`
	Mode           string  `json:"mode"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	AltMSL         float32 `json:"altMsl"`
	AltRel         float32 `json:"altRel"`
	GroundSpeed    float32 `json:"groundSpeed"`
	AirSpeed       float32 `json:"airSpeed"`
	Heading        int16   `json:"heading"`
	Throttle       uint16  `json:"throttle"`
	BatteryPct     uint8   `json:"batteryPct"`
	Satellites     uint8   `json:"satellites"`
	LastUpdateMs   int64   `json:"lastUpdateMs"`
	VoltageBattery uint16  `json:"voltageBattery"` // mV, from SYS_STATUS
}

// State is a mutex-guarded snapshot with a single writer (the vehicle link's
// receive loop) and many readers. Readers always observe a complete value.
type State struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewState returns a state with an empty snapshot in STABILIZE.
func NewState() *State {
	return &State{snap: Snapshot{Mode: mavlink.ModeName(0)}}
}

// Apply folds a decoded message into the snapshot and reports whether any
// field changed.
func (s *State) Apply(msg mavlink.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.snap
	switch m := msg.(type) {
	case mavlink.Heartbeat:
		s.snap.Armed = m.Armed()
		s.snap.Mode = mavlink.ModeName(m.CustomMode)
	case mavlink.GlobalPositionInt:
		s.snap.Lat = m.Latitude()
		s.snap.Lon = m.Longitude()
		s.snap.AltMSL = m.AltitudeMSL()
		s.snap.AltRel = m.AltitudeRel()
	case mavlink.VfrHud:
		s.snap.GroundSpeed = m.Groundspeed
		s.snap.AirSpeed = m.Airspeed
		s.snap.Heading = m.Heading
		s.snap.Throttle = m.Throttle
	case mavlink.GpsRawInt:
		s.snap.Satellites = m.SatellitesVisible
	case mavlink.BatteryStatus:
		if m.BatteryRemaining >= 0 {
			s.snap.BatteryPct = uint8(m.BatteryRemaining)
		}
	case mavlink.SysStatus:
		s.snap.VoltageBattery = m.VoltageBattery
		if m.BatteryRemaining >= 0 {
			s.snap.BatteryPct = uint8(m.BatteryRemaining)
		}
	default:
		return false
	}
	s.snap.LastUpdateMs = time.Now().UnixMilli()

	before.LastUpdateMs = s.snap.LastUpdateMs
	return before != s.snap
}

// Get returns a copy of the current snapshot.
func (s *State) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}
