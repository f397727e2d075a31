// Package session turns the raw telemetry stream into bounded flight
// sessions and discrete, debounced lifecycle events, writing both through to
// storage without ever blocking the telemetry path.
package session

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/akorchak/groundlink/internal/drone"
	"github.com/akorchak/groundlink/internal/geo"
	"github.com/akorchak/groundlink/internal/link"
	"github.com/akorchak/groundlink/internal/mavlink"
	"github.com/akorchak/groundlink/internal/models"
	"github.com/akorchak/groundlink/internal/repository"
	"github.com/akorchak/groundlink/internal/telemetry"
)

const (
	defaultCooldown = 3 * time.Second

	// glitchSpeedLimit filters GPS jumps from the distance aggregate:
	// consecutive fixes implying more than this speed are ignored.
	glitchSpeedLimit = 100.0 // m/s

	takeoffAltitude = 5.0 // m, relative
	landingAltitude = 2.0 // m, relative
	lowBatteryLevel = 20  // percent

	storageTimeout = 2 * time.Second
)

// Event kind indexes for the per-flight debounce array.
const (
	kindTakeoff = iota
	kindLanding
	kindModeChange
	kindBatteryLow
	kindZoneViolation
	numKinds
)

var kindNames = [numKinds]string{
	kindTakeoff:       models.EventTakeoff,
	kindLanding:       models.EventLanding,
	kindModeChange:    models.EventModeChange,
	kindBatteryLow:    models.EventBatteryLow,
	kindZoneViolation: models.EventZoneViolation,
}

// Notifier receives events as they happen, before and independent of
// persistence, for operator-facing UX. The subscriber hub implements it.
type Notifier interface {
	NotifyEvent(ownerID int64, event *models.DroneEvent)
}

// flight is the engine's state for one active session.
type flight struct {
	session   models.DroneSession
	prior     telemetry.Snapshot
	havePrior bool

	lastFix     time.Time
	lastLat     float64
	lastLon     float64
	haveFix     bool
	speedSum    float64
	speedCount  int64
	armedSeen   bool
	landedClean bool

	lastEmitted [numKinds]time.Time
}

// Engine derives sessions and events from the manager's update streams.
type Engine struct {
	sessionsRepo repository.SessionRepository
	eventsRepo   repository.EventRepository
	notifier     Notifier

	cooldown time.Duration

	mu      sync.Mutex
	flights map[int64]*flight // by drone ID
	pending map[int64]int64   // drones connected but awaiting first heartbeat, value is owner

	healthy   atomic.Bool
	failureMu sync.Mutex
	failures  int

	updates  <-chan drone.TelemetryUpdate
	statuses <-chan drone.LinkStatus
}

// NewEngine creates an engine persisting through the given repositories.
// notifier may be nil.
func NewEngine(sessions repository.SessionRepository, events repository.EventRepository, notifier Notifier) *Engine {
	e := &Engine{
		sessionsRepo: sessions,
		eventsRepo:   events,
		notifier:     notifier,
		cooldown:     defaultCooldown,
		flights:      make(map[int64]*flight),
		pending:      make(map[int64]int64),
	}
	e.healthy.Store(true)
	return e
}

// Attach subscribes the engine to the manager's event bus. Call before Run.
func (e *Engine) Attach(bus *drone.Bus) {
	e.updates = bus.SubscribeTelemetry(256)
	e.statuses = bus.SubscribeStatus(64)
}

// Run consumes updates until the context is cancelled. Per-drone processing
// happens on this single goroutine, so events of one session keep their
// arrival order.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.closeAll()
			return
		case s := <-e.statuses:
			e.handleStatus(s)
		case u := <-e.updates:
			e.handleUpdate(u)
		}
	}
}

// Healthy reports whether the storage writer is still operational. A
// permanent storage failure flips it false.
func (e *Engine) Healthy() bool {
	return e.healthy.Load()
}

// ActiveSession returns the session UUID of a drone's active flight.
func (e *Engine) ActiveSession(droneID int64) (uuid.UUID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.flights[droneID]
	if !ok {
		return uuid.Nil, false
	}
	return f.session.SessionID, true
}

func (e *Engine) handleStatus(s drone.LinkStatus) {
	switch s.Status {
	case link.StatusConnected:
		e.mu.Lock()
		if _, active := e.flights[s.DroneID]; !active {
			e.pending[s.DroneID] = s.UserID
		}
		e.mu.Unlock()
	case link.StatusDisconnected:
		e.mu.Lock()
		delete(e.pending, s.DroneID)
		f := e.flights[s.DroneID]
		delete(e.flights, s.DroneID)
		e.mu.Unlock()
		if f != nil {
			e.closeFlight(f, "")
		}
	}
}

func (e *Engine) handleUpdate(u drone.TelemetryUpdate) {
	e.mu.Lock()
	f, active := e.flights[u.DroneID]
	_, awaiting := e.pending[u.DroneID]
	e.mu.Unlock()

	if !active {
		// A session opens on the first heartbeat after a successful connect.
		if _, isHeartbeat := u.Msg.(mavlink.Heartbeat); awaiting && isHeartbeat {
			e.openFlight(u)
		}
		return
	}

	e.aggregate(f, u.Snapshot)
	e.derive(f, u.Snapshot)
	f.prior = u.Snapshot
	f.havePrior = true
}

func (e *Engine) openFlight(u drone.TelemetryUpdate) {
	now := time.Now().UTC()
	snap := u.Snapshot
	f := &flight{
		session: models.DroneSession{
			SessionID:    uuid.New(),
			UserID:       u.UserID,
			DroneID:      u.DroneID,
			StartedAt:    now,
			StartBattery: int(snap.BatteryPct),
			Status:       models.SessionStatusActive,
		},
		prior:     snap,
		havePrior: true,
	}
	if snap.Lat != 0 || snap.Lon != 0 {
		lat, lon := snap.Lat, snap.Lon
		f.session.StartLat = &lat
		f.session.StartLon = &lon
	}

	e.mu.Lock()
	delete(e.pending, u.DroneID)
	e.flights[u.DroneID] = f
	e.mu.Unlock()

	e.persistSession(f, false)
	e.emitEvent(f, -1, models.EventSessionStarted, snap, "flight session started")
	log.Printf("session %s: started for drone %d", f.session.SessionID, u.DroneID)
}

// closeFlight finalizes the session row. status empty means link disconnect;
// the session completes cleanly only when a landing preceded it.
func (e *Engine) closeFlight(f *flight, status string) {
	now := time.Now().UTC()
	snap := f.prior

	f.session.EndedAt = &now
	end := int(snap.BatteryPct)
	f.session.EndBattery = &end
	if snap.Lat != 0 || snap.Lon != 0 {
		lat, lon := snap.Lat, snap.Lon
		f.session.EndLat = &lat
		f.session.EndLon = &lon
	}
	f.session.FlightDuration = now.Sub(f.session.StartedAt).Seconds()
	if f.speedCount > 0 {
		f.session.AvgSpeed = f.speedSum / float64(f.speedCount)
	}

	used := f.session.StartBattery - end
	if used < 0 {
		log.Printf("session %s: end battery %d above start %d, clamping usage to 0", f.session.SessionID, end, f.session.StartBattery)
		used = 0
	}
	f.session.BatteryUsed = used

	if status == "" {
		if f.landedClean {
			status = models.SessionStatusCompleted
		} else {
			status = models.SessionStatusAborted
		}
	}
	f.session.Status = status

	e.emitEvent(f, -1, models.EventSessionEnded, snap, "flight session ended: "+status)
	e.persistSession(f, true)
	log.Printf("session %s: %s after %.0fs, %.0fm flown", f.session.SessionID, status, f.session.FlightDuration, f.session.TotalDistance)
}

// EndSession terminates a drone's active session on operator request. The
// link stays up; a new session opens on the next heartbeat.
func (e *Engine) EndSession(droneID int64) bool {
	e.mu.Lock()
	f, ok := e.flights[droneID]
	delete(e.flights, droneID)
	if ok {
		// Re-arm so the next heartbeat opens a fresh session.
		e.pending[droneID] = f.session.UserID
	}
	e.mu.Unlock()
	if !ok {
		return false
	}
	e.closeFlight(f, models.SessionStatusCompleted)
	return true
}

// aggregate folds a snapshot into the running flight statistics.
func (e *Engine) aggregate(f *flight, snap telemetry.Snapshot) {
	if alt := float64(snap.AltRel); alt > f.session.MaxAltitude {
		f.session.MaxAltitude = alt
	}
	if spd := float64(snap.GroundSpeed); spd > f.session.MaxSpeed {
		f.session.MaxSpeed = spd
	}
	f.speedSum += float64(snap.GroundSpeed)
	f.speedCount++

	if snap.Lat == 0 && snap.Lon == 0 {
		return
	}
	now := time.UnixMilli(snap.LastUpdateMs)
	if f.haveFix {
		dist := geo.HaversineMeters(f.lastLat, f.lastLon, snap.Lat, snap.Lon)
		dt := now.Sub(f.lastFix).Seconds()
		if dt <= 0 || dist/dt <= glitchSpeedLimit {
			f.session.TotalDistance += dist
		}
	}
	f.lastFix = now
	f.lastLat, f.lastLon = snap.Lat, snap.Lon
	f.haveFix = true
}

// derive evaluates the event rules against the new snapshot.
func (e *Engine) derive(f *flight, snap telemetry.Snapshot) {
	if snap.Armed {
		f.armedSeen = true
	}

	if snap.Armed && float64(snap.AltRel) > takeoffAltitude {
		e.emitEvent(f, kindTakeoff, kindNames[kindTakeoff], snap, "vehicle airborne")
	}

	if f.armedSeen && !snap.Armed && float64(snap.AltRel) < landingAltitude {
		if e.emitEvent(f, kindLanding, kindNames[kindLanding], snap, "vehicle landed") {
			f.landedClean = true
		}
	}

	if f.havePrior && f.prior.Mode != snap.Mode {
		e.emitEvent(f, kindModeChange, kindNames[kindModeChange], snap, "flight mode changed to "+snap.Mode)
	}

	if snap.BatteryPct > 0 && snap.BatteryPct < lowBatteryLevel {
		e.emitEvent(f, kindBatteryLow, kindNames[kindBatteryLow], snap, "battery low")
	}
}

// ReportZoneViolation records a geofence breach reported by an external
// collaborator, subject to the same per-session cooldown as derived events.
func (e *Engine) ReportZoneViolation(droneID int64, lat, lon float64, message string) bool {
	e.mu.Lock()
	f, ok := e.flights[droneID]
	var snap telemetry.Snapshot
	if ok {
		snap = f.prior
	}
	e.mu.Unlock()
	if !ok {
		return false
	}
	snap.Lat, snap.Lon = lat, lon
	if message == "" {
		message = "restricted zone violation"
	}
	return e.emitEvent(f, kindZoneViolation, kindNames[kindZoneViolation], snap, message)
}

// emitEvent persists an event, applying the per-(session, kind) cooldown.
// kind -1 bypasses the cooldown for session boundary events. Instantaneous
// changes are always pushed to the notifier; persistence is what the
// cooldown bounds. Reports whether the event was persisted.
func (e *Engine) emitEvent(f *flight, kind int, eventType string, snap telemetry.Snapshot, message string) bool {
	now := time.Now().UTC()
	event := e.buildEvent(f, eventType, snap, now, message)

	persist := true
	if kind >= 0 {
		e.mu.Lock()
		if now.Sub(f.lastEmitted[kind]) < e.cooldown {
			persist = false
		} else {
			f.lastEmitted[kind] = now
		}
		e.mu.Unlock()
	}

	if e.notifier != nil && (persist || kind == kindModeChange) {
		e.notifier.NotifyEvent(f.session.UserID, event)
	}
	if !persist {
		return false
	}

	e.persistEvent(event)
	return true
}

func (e *Engine) buildEvent(f *flight, eventType string, snap telemetry.Snapshot, ts time.Time, message string) *models.DroneEvent {
	event := &models.DroneEvent{
		SessionID: f.session.SessionID,
		UserID:    f.session.UserID,
		DroneID:   f.session.DroneID,
		MissionID: f.session.MissionID,
		Timestamp: ts,
		EventType: eventType,
		Message:   message,
	}
	if snap.Lat != 0 || snap.Lon != 0 {
		lat, lon := snap.Lat, snap.Lon
		event.Lat = &lat
		event.Lon = &lon
	}
	alt := float64(snap.AltRel)
	battery := int(snap.BatteryPct)
	speed := float64(snap.GroundSpeed)
	mode := snap.Mode
	event.Altitude = &alt
	event.Battery = &battery
	event.Speed = &speed
	event.Mode = &mode
	return event
}

// persistEvent writes one event row. Transient failures drop the event;
// telemetry must never block on storage. A permanent failure stops the
// writer and flips the health check.
func (e *Engine) persistEvent(event *models.DroneEvent) {
	if !e.healthy.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()

	if err := e.eventsRepo.Create(ctx, event); err != nil {
		e.storageFailure(err, "event "+event.EventType)
		return
	}
	e.storageSuccess()
}

func (e *Engine) persistSession(f *flight, closing bool) {
	if !e.healthy.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()

	var err error
	if closing {
		err = e.sessionsRepo.Close(ctx, &f.session)
	} else {
		err = e.sessionsRepo.Create(ctx, &f.session)
	}
	if err != nil {
		e.storageFailure(err, "session "+f.session.SessionID.String())
		return
	}
	e.storageSuccess()
}

func (e *Engine) storageFailure(err error, what string) {
	if repository.IsTransient(err) {
		log.Printf("session engine: dropped %s on transient storage failure: %v", what, err)
		return
	}
	e.failureMu.Lock()
	defer e.failureMu.Unlock()
	e.failures++
	log.Printf("session engine: storage failure writing %s: %v", what, err)
	if e.failures >= 3 {
		log.Printf("session engine: storage considered permanently failed, stopping writer")
		e.healthy.Store(false)
	}
}

func (e *Engine) storageSuccess() {
	e.failureMu.Lock()
	e.failures = 0
	e.failureMu.Unlock()
}

// closeAll aborts every active session, used during shutdown.
func (e *Engine) closeAll() {
	e.mu.Lock()
	flights := make([]*flight, 0, len(e.flights))
	for id, f := range e.flights {
		flights = append(flights, f)
		delete(e.flights, id)
	}
	e.mu.Unlock()

	for _, f := range flights {
		e.closeFlight(f, models.SessionStatusAborted)
	}
}
