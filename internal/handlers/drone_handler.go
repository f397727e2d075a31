// Package handlers implements the synchronous request surface. Every
// handler authenticates the caller, resolves the target vehicle through the
// drone manager and mirrors the behavior of the equivalent channel message.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akorchak/groundlink/internal/drone"
	"github.com/akorchak/groundlink/internal/link"
	"github.com/akorchak/groundlink/internal/middleware"
	"github.com/akorchak/groundlink/internal/models"
)

// DroneCommander is the slice of the drone manager the request surface
// drives. The hub's channel commands funnel into the same operations.
type DroneCommander interface {
	Register(ctx context.Context, userID int64, name, uin, connString string) (*models.Drone, error)
	ResolveByOwner(userID int64) (int64, bool)
	FirstOwned(userID int64) (int64, bool)
	ConnectWithEndpoint(droneID int64, connString string) error
	Disconnect(droneID int64) error
	Arm(droneID int64) error
	Disarm(droneID int64) error
	SetMode(droneID int64, mode string) error
	Status(droneID int64) (*models.DroneStatusResponse, error)
	SendOperatorMessage(text string, importance drone.Importance, droneID int64) error
}

// DroneHandler handles vehicle lifecycle and command requests
type DroneHandler struct {
	commander DroneCommander
}

// NewDroneHandler creates a new drone handler
func NewDroneHandler(commander DroneCommander) *DroneHandler {
	return &DroneHandler{commander: commander}
}

// ConnectRequest is the body of POST /drone/connect
type ConnectRequest struct {
	ConnectionString string `json:"connection_string" binding:"required"`
}

// SetModeRequest is the body of POST /drone/set-mode
type SetModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// RegisterRequest is the body of POST /user/drone/register
type RegisterRequest struct {
	Name             string `json:"name" binding:"required"`
	UIN              string `json:"uin" binding:"required"`
	ConnectionString string `json:"connection_string" binding:"required"`
}

// Connect binds the caller's drone to a new endpoint and starts listening.
// POST /drone/connect
func (h *DroneHandler) Connect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "connection_string is required",
		})
		return
	}

	principal := middleware.MustGetPrincipal(c)
	droneID, ok := h.commander.FirstOwned(principal.UserID)
	if !ok {
		respondNoDrone(c)
		return
	}

	if err := h.commander.ConnectWithEndpoint(droneID, req.ConnectionString); err != nil {
		respondCommandError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "connecting", "drone_id": droneID})
}

// Disconnect closes the caller's drone link.
// POST /drone/disconnect and POST /user/drone/disconnect
func (h *DroneHandler) Disconnect(c *gin.Context) {
	principal := middleware.MustGetPrincipal(c)
	droneID, ok := h.commander.FirstOwned(principal.UserID)
	if !ok {
		respondNoDrone(c)
		return
	}

	if err := h.commander.Disconnect(droneID); err != nil {
		respondCommandError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "disconnected", "drone_id": droneID})
}

// Status returns the caller's drone state and latest telemetry snapshot.
// GET /drone/status
func (h *DroneHandler) Status(c *gin.Context) {
	principal := middleware.MustGetPrincipal(c)
	droneID, ok := h.commander.FirstOwned(principal.UserID)
	if !ok {
		respondNoDrone(c)
		return
	}

	status, err := h.commander.Status(droneID)
	if err != nil {
		respondCommandError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// Arm sends the arming command to the caller's connected drone.
// POST /drone/arm
func (h *DroneHandler) Arm(c *gin.Context) {
	h.vehicleCommand(c, h.commander.Arm, "arm command sent")
}

// Disarm sends the disarming command to the caller's connected drone.
// POST /drone/disarm
func (h *DroneHandler) Disarm(c *gin.Context) {
	h.vehicleCommand(c, h.commander.Disarm, "disarm command sent")
}

// SetMode switches the flight mode of the caller's connected drone.
// POST /drone/set-mode
func (h *DroneHandler) SetMode(c *gin.Context) {
	var req SetModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "mode is required",
		})
		return
	}

	h.vehicleCommand(c, func(droneID int64) error {
		return h.commander.SetMode(droneID, req.Mode)
	}, "mode change sent")
}

// Register stores a new vehicle for the caller.
// POST /user/drone/register
func (h *DroneHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "name, uin and connection_string are required",
		})
		return
	}

	principal := middleware.MustGetPrincipal(c)
	registered, err := h.commander.Register(c.Request.Context(), principal.UserID, req.Name, req.UIN, req.ConnectionString)
	if err != nil {
		respondCommandError(c, err)
		return
	}

	c.JSON(http.StatusCreated, registered)
}

// vehicleCommand resolves the caller's connected drone and applies op.
func (h *DroneHandler) vehicleCommand(c *gin.Context, op func(int64) error, okMessage string) {
	principal := middleware.MustGetPrincipal(c)
	droneID, ok := h.commander.ResolveByOwner(principal.UserID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "drone_not_connected",
			"message": "no connected drone",
		})
		return
	}

	if err := op(droneID); err != nil {
		respondCommandError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": okMessage, "drone_id": droneID})
}

func respondNoDrone(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "drone_not_found",
		"message": "no drone registered",
	})
}

// respondCommandError maps command failures to the stable HTTP error shape:
// 400 for validation failures, 404 for missing drones, 409 for UIN
// conflicts, 500 otherwise.
func respondCommandError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, link.ErrInvalidConnectionString):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_connection_string", "message": "invalid connection string"})
	case errors.Is(err, link.ErrUnsupportedProtocol):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_protocol", "message": "unsupported protocol"})
	case errors.Is(err, drone.ErrUnknownMode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_mode", "message": "unknown flight mode"})
	case errors.Is(err, drone.ErrUinConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "uin_conflict", "message": "uin already registered"})
	case errors.Is(err, drone.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "drone_not_found", "message": "drone not found"})
	case errors.Is(err, link.ErrNotConnected):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "not_connected", "message": "drone not connected"})
	case errors.Is(err, link.ErrPeerUnknown):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "peer_unknown", "message": "peer address unknown"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "command failed"})
	}
}
