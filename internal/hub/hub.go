// Package hub multiplexes telemetry from every vehicle to the authenticated
// operator channels entitled to see it, and feeds channel commands back into
// the drone manager.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/akorchak/groundlink/internal/auth"
	"github.com/akorchak/groundlink/internal/drone"
	"github.com/akorchak/groundlink/internal/link"
	"github.com/akorchak/groundlink/internal/mavlink"
	"github.com/akorchak/groundlink/internal/models"
)

// Commander is the slice of the drone manager the hub drives. Channel
// commands and the HTTP command surface funnel into the same operations.
type Commander interface {
	ResolveByOwner(userID int64) (int64, bool)
	FirstOwned(userID int64) (int64, bool)
	ConnectWithEndpoint(droneID int64, connString string) error
	Disconnect(droneID int64) error
	Arm(droneID int64) error
	Disarm(droneID int64) error
	SetMode(droneID int64, mode string) error
}

// Hub fans out telemetry and routes channel commands.
type Hub struct {
	verifier  auth.Verifier
	commander Commander
	upgrader  websocket.Upgrader

	mu      sync.Mutex
	clients map[*Client]struct{}

	// snapshot is a copy-on-write client list; fan-out iterates it without
	// taking the registry lock.
	snapshot atomic.Value // []*Client

	updates  <-chan drone.TelemetryUpdate
	statuses <-chan drone.LinkStatus
	operator <-chan drone.OperatorMessage
}

// New creates a hub verifying channels through verifier and driving cmd.
func New(verifier auth.Verifier, cmd Commander) *Hub {
	h := &Hub{
		verifier:  verifier,
		commander: cmd,
		clients:   make(map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	h.snapshot.Store([]*Client{})
	return h
}

// Attach subscribes the hub to the manager's event bus. Call before Run.
func (h *Hub) Attach(bus *drone.Bus) {
	h.updates = bus.SubscribeTelemetry(256)
	h.statuses = bus.SubscribeStatus(64)
	h.operator = bus.SubscribeOperator(64)
}

// Run fans bus events out to the subscriber channels until the context is
// cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case u := <-h.updates:
			h.fanOutTelemetry(u)
		case s := <-h.statuses:
			h.fanOutStatus(s)
		case m := <-h.operator:
			h.fanOutOperator(m)
		}
	}
}

// ServeWS upgrades an HTTP request into a subscriber channel.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("hub: upgrade failed: %v", err)
		return
	}

	client := newClient(h, conn)
	h.add(client)

	// A single banner tells the channel what it must do first.
	client.send(TypeStatus, gin.H{"requires_auth": true}, false)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.rebuildSnapshotLocked()
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, present := h.clients[c]
	delete(h.clients, c)
	h.rebuildSnapshotLocked()
	h.mu.Unlock()
	if present {
		c.queue.close()
		c.conn.Close()
	}
}

func (h *Hub) rebuildSnapshotLocked() {
	list := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		list = append(list, c)
	}
	h.snapshot.Store(list)
}

func (h *Hub) clientSnapshot() []*Client {
	return h.snapshot.Load().([]*Client)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.remove(c)
	}
}

// ClientCount returns the number of open channels.
func (h *Hub) ClientCount() int {
	return len(h.clientSnapshot())
}

// shouldDeliver applies the fan-out filter: a channel sees a vehicle's
// traffic when it is authenticated and is either the owner or an admin.
func shouldDeliver(c *Client, ownerID int64) bool {
	p := c.who()
	if p == nil {
		return false
	}
	return p.IsAdmin || p.UserID == ownerID
}

// fanOutTelemetry delivers a full telemetry frame plus the message-specific
// frame to every entitled channel. Telemetry frames are droppable under
// backpressure.
func (h *Hub) fanOutTelemetry(u drone.TelemetryUpdate) {
	telemetryPayload := gin.H{
		"drone_id":  u.DroneID,
		"uin":       u.UIN,
		"name":      u.Name,
		"telemetry": u.Snapshot,
	}
	specificType, specificPayload := specificFrame(u)

	for _, c := range h.clientSnapshot() {
		if !shouldDeliver(c, u.UserID) {
			continue
		}
		c.send(TypeTelemetry, telemetryPayload, true)
		if specificType != "" {
			c.send(specificType, specificPayload, true)
		}
	}
}

// specificFrame maps a decoded message to its dedicated channel frame.
func specificFrame(u drone.TelemetryUpdate) (string, any) {
	switch u.Msg.(type) {
	case mavlink.Heartbeat:
		return TypeHeartbeat, gin.H{
			"drone_id": u.DroneID,
			"armed":    u.Snapshot.Armed,
			"mode":     u.Snapshot.Mode,
		}
	case mavlink.GlobalPositionInt:
		return TypePosition, gin.H{
			"drone_id": u.DroneID,
			"lat":      u.Snapshot.Lat,
			"lon":      u.Snapshot.Lon,
			"alt_msl":  u.Snapshot.AltMSL,
			"alt_rel":  u.Snapshot.AltRel,
		}
	case mavlink.BatteryStatus, mavlink.SysStatus:
		return TypeBattery, gin.H{
			"drone_id": u.DroneID,
			"battery":  u.Snapshot.BatteryPct,
			"voltage":  u.Snapshot.VoltageBattery,
		}
	case mavlink.GpsRawInt:
		return TypeGPS, gin.H{
			"drone_id":   u.DroneID,
			"satellites": u.Snapshot.Satellites,
		}
	}
	return "", nil
}

// fanOutStatus tells entitled channels about link lifecycle changes.
// Lifecycle frames are never dropped.
func (h *Hub) fanOutStatus(s drone.LinkStatus) {
	var frameType string
	switch s.Status {
	case link.StatusConnected:
		frameType = TypeConnected
	case link.StatusDisconnected:
		frameType = TypeDisconnected
	default:
		return
	}

	message := "drone " + s.Status.String()
	if s.Err != nil {
		message += ": " + s.Err.Error()
	}
	payload := gin.H{"drone_id": s.DroneID, "message": message}

	for _, c := range h.clientSnapshot() {
		if shouldDeliver(c, s.UserID) {
			c.send(frameType, payload, false)
		}
	}
}

// fanOutOperator routes an operator message to its audience: every
// authenticated channel for broadcasts, the owner's channels for targeted
// messages. Operator messages are never dropped.
func (h *Hub) fanOutOperator(m drone.OperatorMessage) {
	for _, c := range h.clientSnapshot() {
		p := c.who()
		if p == nil {
			continue
		}
		if !m.Broadcast && p.UserID != m.OwnerID {
			continue
		}
		c.send(TypeMessage, m, false)
	}
}

// NotifyEvent implements session.Notifier: derived flight events reach the
// owner and admins as status frames.
func (h *Hub) NotifyEvent(ownerID int64, event *models.DroneEvent) {
	payload := gin.H{"event": event}
	for _, c := range h.clientSnapshot() {
		if shouldDeliver(c, ownerID) {
			c.send(TypeStatus, payload, false)
		}
	}
}

// handleInbound dispatches one channel frame. Unauthenticated channels only
// get auth handled; everything else answers with an error frame.
func (h *Hub) handleInbound(c *Client, env *Envelope) {
	if env.Type == TypeAuth {
		h.handleAuth(c, env.Data)
		return
	}
	if !c.authenticated() {
		c.sendError("not authenticated")
		return
	}

	switch env.Type {
	case TypePing:
		c.send(TypeStatus, gin.H{"pong": true}, false)
	case TypeConnect:
		h.handleConnect(c, env.Data)
	case TypeDisconnect:
		h.withOwnedDrone(c, func(droneID int64) error {
			return h.commander.Disconnect(droneID)
		}, "drone disconnect requested")
	case TypeArm:
		h.withConnectedDrone(c, h.commander.Arm, "arm command sent")
	case TypeDisarm:
		h.withConnectedDrone(c, h.commander.Disarm, "disarm command sent")
	case TypeSetMode:
		var req SetModeRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			c.sendError("malformed set_mode request")
			return
		}
		h.withConnectedDrone(c, func(droneID int64) error {
			return h.commander.SetMode(droneID, req.Mode)
		}, "mode change sent")
	default:
		c.sendError("unknown message type: " + env.Type)
	}
}

func (h *Hub) handleAuth(c *Client, data json.RawMessage) {
	var req AuthRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendError("malformed auth request")
		return
	}

	principal, err := h.verifier.Verify(req.Bearer)
	if err != nil {
		c.sendError("authentication failed")
		return
	}

	c.setPrincipal(principal)
	c.send(TypeStatus, gin.H{
		"authenticated": true,
		"user_id":       principal.UserID,
		"is_admin":      principal.IsAdmin,
	}, false)
	log.Printf("hub: channel authenticated as user %d (admin=%v)", principal.UserID, principal.IsAdmin)
}

func (h *Hub) handleConnect(c *Client, data json.RawMessage) {
	var req ConnectRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendError("malformed connect request")
		return
	}

	p := c.who()
	droneID, ok := h.commander.FirstOwned(p.UserID)
	if !ok {
		c.sendError("no drone registered")
		return
	}
	if err := h.commander.ConnectWithEndpoint(droneID, req.ConnectionString); err != nil {
		c.sendError(commandErrorText(err))
		return
	}
	c.send(TypeStatus, gin.H{"message": "connecting", "drone_id": droneID}, false)
}

// withConnectedDrone resolves the caller's connected drone and applies op.
func (h *Hub) withConnectedDrone(c *Client, op func(int64) error, okMessage string) {
	p := c.who()
	droneID, ok := h.commander.ResolveByOwner(p.UserID)
	if !ok {
		c.sendError("no connected drone")
		return
	}
	if err := op(droneID); err != nil {
		c.sendError(commandErrorText(err))
		return
	}
	c.send(TypeStatus, gin.H{"message": okMessage, "drone_id": droneID}, false)
}

// withOwnedDrone resolves any owned drone, connected or not.
func (h *Hub) withOwnedDrone(c *Client, op func(int64) error, okMessage string) {
	p := c.who()
	droneID, ok := h.commander.FirstOwned(p.UserID)
	if !ok {
		c.sendError("no drone registered")
		return
	}
	if err := op(droneID); err != nil {
		c.sendError(commandErrorText(err))
		return
	}
	c.send(TypeStatus, gin.H{"message": okMessage, "drone_id": droneID}, false)
}

// commandErrorText maps command failures to the stable texts of the error
// frame vocabulary.
func commandErrorText(err error) string {
	switch {
	case errors.Is(err, link.ErrPeerUnknown):
		return "peer address unknown"
	case errors.Is(err, link.ErrNotConnected):
		return "drone not connected"
	case errors.Is(err, link.ErrInvalidConnectionString):
		return "invalid connection string"
	case errors.Is(err, link.ErrUnsupportedProtocol):
		return "unsupported protocol"
	case errors.Is(err, link.ErrBindFailed):
		return "bind failed"
	case errors.Is(err, drone.ErrUnknownMode):
		return "unknown flight mode"
	case errors.Is(err, drone.ErrNotFound):
		return "drone not found"
	case errors.Is(err, drone.ErrUinConflict):
		return "uin already registered"
	default:
		return "command failed"
	}
}
