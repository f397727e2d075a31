// Package drone keeps the registry of vehicles and their live links,
// routes operator commands to the right vehicle and republishes telemetry
// and lifecycle changes on a typed event bus.
package drone

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/akorchak/groundlink/internal/link"
	"github.com/akorchak/groundlink/internal/mavlink"
	"github.com/akorchak/groundlink/internal/models"
	"github.com/akorchak/groundlink/internal/repository"
	"github.com/akorchak/groundlink/internal/telemetry"
)

var (
	// ErrNotFound is returned when the drone ID is not registered.
	ErrNotFound = errors.New("drone: not registered")

	// ErrUinConflict is returned when registering a UIN that already exists.
	ErrUinConflict = errors.New("drone: uin already registered")

	// ErrUnknownMode is returned for mode names outside the flight mode table.
	ErrUnknownMode = errors.New("drone: unknown flight mode")
)

// droneRowUpdateInterval bounds how often live telemetry is written through
// to the drones table.
const droneRowUpdateInterval = 5 * time.Second

// record is one registered vehicle with its runtime state.
type record struct {
	id       int64
	userID   int64
	name     string
	uin      string
	endpoint link.Endpoint

	lk            *link.Link
	state         *telemetry.State
	status        link.Status
	lastErr       error
	lastRowUpdate time.Time
}

// Manager is the registry of vehicles. It implements link.Sink so links can
// call back without holding a manager reference.
type Manager struct {
	mu      sync.RWMutex
	byID    map[int64]*record
	byOwner map[int64]map[int64]struct{}
	byUIN   map[string]int64

	bus    *Bus
	drones repository.DroneRepository
}

// NewManager creates an empty registry persisting drone rows through repo.
func NewManager(repo repository.DroneRepository, bus *Bus) *Manager {
	return &Manager{
		byID:    make(map[int64]*record),
		byOwner: make(map[int64]map[int64]struct{}),
		byUIN:   make(map[string]int64),
		bus:     bus,
		drones:  repo,
	}
}

// Bus returns the manager's event bus.
func (m *Manager) Bus() *Bus { return m.bus }

// Restore loads previously registered drones into the in-memory registries.
// Endpoints are not persisted, so restored drones need a connect with a
// connection string before they can fly.
func (m *Manager) Restore(ctx context.Context) error {
	drones, err := m.drones.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("drone: restore registry: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range drones {
		rec := &record{
			id:     d.ID,
			userID: d.UserID,
			name:   d.Name,
			uin:    d.UIN,
			state:  telemetry.NewState(),
			status: link.StatusRegistered,
		}
		m.addLocked(rec)
	}
	log.Printf("manager: restored %d registered drones", len(drones))
	return nil
}

func (m *Manager) addLocked(rec *record) {
	m.byID[rec.id] = rec
	m.byUIN[rec.uin] = rec.id
	owned, ok := m.byOwner[rec.userID]
	if !ok {
		owned = make(map[int64]struct{})
		m.byOwner[rec.userID] = owned
	}
	owned[rec.id] = struct{}{}
}

// Register stores a new vehicle and adds it to the registries. The endpoint
// comes from a connection string such as "udp:0.0.0.0:14550".
func (m *Manager) Register(ctx context.Context, userID int64, name, uin, connString string) (*models.Drone, error) {
	endpoint, err := link.ParseConnectionString(connString)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, exists := m.byUIN[uin]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUinConflict, uin)
	}
	m.mu.Unlock()

	d := &models.Drone{
		UserID: userID,
		Name:   name,
		UIN:    uin,
		Status: models.DroneStatusOffline,
	}
	if err := m.drones.Create(ctx, d); err != nil {
		if errors.Is(err, repository.ErrDroneExists) {
			return nil, fmt.Errorf("%w: %s", ErrUinConflict, uin)
		}
		return nil, fmt.Errorf("drone: register: %w", err)
	}

	m.mu.Lock()
	// Re-check under the lock; a concurrent Register may have won the row.
	if _, exists := m.byUIN[uin]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUinConflict, uin)
	}
	m.addLocked(&record{
		id:       d.ID,
		userID:   userID,
		name:     name,
		uin:      uin,
		endpoint: endpoint,
		state:    telemetry.NewState(),
		status:   link.StatusRegistered,
	})
	m.mu.Unlock()

	log.Printf("manager: registered drone %d (uin %s) for user %d at %s", d.ID, uin, userID, endpoint)
	return d, nil
}

// Connect binds the vehicle's endpoint and starts listening for traffic.
// Idempotent while the link is already connecting or connected.
func (m *Manager) Connect(droneID int64) error {
	m.mu.Lock()
	rec, ok := m.byID[droneID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if rec.lk != nil {
		switch rec.lk.Status() {
		case link.StatusConnecting, link.StatusConnected, link.StatusReconnecting:
			m.mu.Unlock()
			return nil
		}
	}
	if rec.endpoint == (link.Endpoint{}) {
		m.mu.Unlock()
		return fmt.Errorf("%w: drone %d has no endpoint configured", link.ErrInvalidConnectionString, droneID)
	}
	// A fresh link per connect: a closed link's watchdog and socket are gone.
	rec.lk = link.New(droneID, rec.endpoint, m)
	rec.state = telemetry.NewState()
	lk := rec.lk
	m.mu.Unlock()

	return lk.Connect()
}

// ConnectWithEndpoint reconfigures the vehicle's endpoint, then connects.
func (m *Manager) ConnectWithEndpoint(droneID int64, connString string) error {
	endpoint, err := link.ParseConnectionString(connString)
	if err != nil {
		return err
	}

	m.mu.Lock()
	rec, ok := m.byID[droneID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	old := rec.lk
	rec.lk = nil
	rec.endpoint = endpoint
	m.mu.Unlock()

	// Closing the old link outside the lock: it calls back into
	// HandleStatus synchronously.
	if old != nil {
		old.Disconnect()
	}

	return m.Connect(droneID)
}

// Disconnect closes the vehicle's link. Idempotent.
func (m *Manager) Disconnect(droneID int64) error {
	m.mu.Lock()
	rec, ok := m.byID[droneID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	lk := rec.lk
	m.mu.Unlock()

	if lk != nil {
		lk.Disconnect()
	}
	return nil
}

// connectedLink resolves the live link of a connected drone.
func (m *Manager) connectedLink(droneID int64) (*link.Link, error) {
	m.mu.RLock()
	rec, ok := m.byID[droneID]
	var lk *link.Link
	if ok {
		lk = rec.lk
	}
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if lk == nil || lk.Status() == link.StatusDisconnected || lk.Status() == link.StatusRegistered {
		return nil, link.ErrNotConnected
	}
	return lk, nil
}

// Arm sends a COMMAND_LONG arming the vehicle.
func (m *Manager) Arm(droneID int64) error {
	return m.armDisarm(droneID, true)
}

// Disarm sends a COMMAND_LONG disarming the vehicle.
func (m *Manager) Disarm(droneID int64) error {
	return m.armDisarm(droneID, false)
}

func (m *Manager) armDisarm(droneID int64, arm bool) error {
	lk, err := m.connectedLink(droneID)
	if err != nil {
		return err
	}
	sys, comp := lk.Target()
	frame, err := lk.Encoder().ArmDisarm(sys, comp, arm)
	if err != nil {
		return err
	}
	return lk.Send(frame)
}

// SetMode switches the vehicle's flight mode by name, case-insensitively.
func (m *Manager) SetMode(droneID int64, mode string) error {
	customMode, ok := mavlink.ModeNumber(mode)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	lk, err := m.connectedLink(droneID)
	if err != nil {
		return err
	}
	sys, _ := lk.Target()
	frame, err := lk.Encoder().SetMode(sys, customMode)
	if err != nil {
		return err
	}
	return lk.Send(frame)
}

// ResolveByOwner returns the single connected drone owned by the user, used
// by the command surface to address "my drone" commands.
func (m *Manager) ResolveByOwner(userID int64) (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id := range m.byOwner[userID] {
		rec := m.byID[id]
		switch rec.status {
		case link.StatusConnecting, link.StatusConnected, link.StatusReconnecting:
			return id, true
		}
	}
	return 0, false
}

// FirstOwned returns any registered drone of the user, preferring a
// connected one, for commands that may target an offline vehicle.
func (m *Manager) FirstOwned(userID int64) (int64, bool) {
	if id, ok := m.ResolveByOwner(userID); ok {
		return id, true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id := range m.byOwner[userID] {
		return id, true
	}
	return 0, false
}

// ResolveUIN maps a vehicle's UIN to its internal drone ID.
func (m *Manager) ResolveUIN(uin string) (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byUIN[uin]
	return id, ok
}

// Owns reports whether the user owns the drone.
func (m *Manager) Owns(userID, droneID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byOwner[userID][droneID]
	return ok
}

// OwnerOf returns the owner of a drone.
func (m *Manager) OwnerOf(droneID int64) (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[droneID]
	if !ok {
		return 0, false
	}
	return rec.userID, true
}

// Status returns the drone's lifecycle state and the latest snapshot.
func (m *Manager) Status(droneID int64) (*models.DroneStatusResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[droneID]
	if !ok {
		return nil, ErrNotFound
	}
	snap := rec.state.Get()
	return &models.DroneStatusResponse{
		ID:       rec.id,
		Name:     rec.name,
		UIN:      rec.uin,
		Status:   rec.status.String(),
		Snapshot: &snap,
	}, nil
}

// SetPeerOverride pins the command destination of a drone, overriding the
// learned peer address. An empty addr reverts to the learned peer.
func (m *Manager) SetPeerOverride(droneID int64, addr string) error {
	m.mu.RLock()
	rec, ok := m.byID[droneID]
	var lk *link.Link
	if ok {
		lk = rec.lk
	}
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if lk == nil {
		return link.ErrNotConnected
	}
	if addr == "" {
		lk.SetPeerOverride(nil)
		return nil
	}
	udpAddr, err := resolvePeer(addr)
	if err != nil {
		return err
	}
	lk.SetPeerOverride(udpAddr)
	return nil
}

// resolvePeer parses a host:port peer override.
func resolvePeer(addr string) (*net.UDPAddr, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("drone: peer override %q: %w", addr, err)
	}
	return udpAddr, nil
}

// SendOperatorMessage publishes an operator notice to the hub, targeted at
// the owner of one drone or broadcast to every authenticated operator.
func (m *Manager) SendOperatorMessage(text string, importance Importance, droneID int64) error {
	msg := OperatorMessage{
		Text:       text,
		Importance: importance,
		SentAt:     time.Now().UTC(),
	}
	if droneID != 0 {
		owner, ok := m.OwnerOf(droneID)
		if !ok {
			return ErrNotFound
		}
		msg.DroneID = droneID
		msg.OwnerID = owner
	} else {
		msg.Broadcast = true
	}
	m.bus.PublishOperator(msg)
	return nil
}

// HandleMessage implements link.Sink. It folds the decoded message into the
// vehicle's snapshot and republishes the update.
func (m *Manager) HandleMessage(droneID int64, msg mavlink.Message) {
	m.mu.Lock()
	rec, ok := m.byID[droneID]
	if !ok {
		m.mu.Unlock()
		return
	}
	state := rec.state
	userID, uin, name := rec.userID, rec.uin, rec.name
	writeRow := time.Since(rec.lastRowUpdate) >= droneRowUpdateInterval
	if writeRow {
		rec.lastRowUpdate = time.Now()
	}
	m.mu.Unlock()

	state.Apply(msg)
	snap := state.Get()

	m.bus.PublishTelemetry(TelemetryUpdate{
		DroneID:  droneID,
		UserID:   userID,
		UIN:      uin,
		Name:     name,
		Msg:      msg,
		Snapshot: snap,
	})

	if writeRow {
		go m.persistTelemetry(droneID, snap)
	}
}

// persistTelemetry writes the latest position through to the drones table.
// Failures are logged and dropped; telemetry must never block on storage.
func (m *Manager) persistTelemetry(droneID int64, snap telemetry.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := m.drones.UpdateTelemetry(ctx, droneID, snap.Lat, snap.Lon, float64(snap.AltMSL), time.UnixMilli(snap.LastUpdateMs))
	if err != nil {
		log.Printf("manager: drone %d telemetry write failed: %v", droneID, err)
	}
}

// HandleStatus implements link.Sink. It records the lifecycle change,
// persists the drone's status and republishes the event.
func (m *Manager) HandleStatus(droneID int64, status link.Status, cause error) {
	m.mu.Lock()
	rec, ok := m.byID[droneID]
	if !ok {
		m.mu.Unlock()
		return
	}
	rec.status = status
	rec.lastErr = cause
	userID := rec.userID
	m.mu.Unlock()

	if cause != nil {
		log.Printf("manager: drone %d -> %s (%v)", droneID, status, cause)
	} else {
		log.Printf("manager: drone %d -> %s", droneID, status)
	}

	go m.persistStatus(droneID, status)

	m.bus.PublishStatus(LinkStatus{
		DroneID: droneID,
		UserID:  userID,
		Status:  status,
		Err:     cause,
	})
}

func (m *Manager) persistStatus(droneID int64, status link.Status) {
	row := models.DroneStatusOffline
	switch status {
	case link.StatusConnecting, link.StatusReconnecting:
		row = models.DroneStatusConnecting
	case link.StatusConnected:
		row = models.DroneStatusConnected
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.drones.UpdateStatus(ctx, droneID, row); err != nil {
		log.Printf("manager: drone %d status write failed: %v", droneID, err)
	}
}

// DisconnectAll closes every live link, used during shutdown.
func (m *Manager) DisconnectAll() {
	m.mu.RLock()
	links := make([]*link.Link, 0, len(m.byID))
	for _, rec := range m.byID {
		if rec.lk != nil {
			links = append(links, rec.lk)
		}
	}
	m.mu.RUnlock()

	for _, lk := range links {
		lk.Disconnect()
	}
}
