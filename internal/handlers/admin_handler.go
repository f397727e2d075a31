package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akorchak/groundlink/internal/drone"
	"github.com/akorchak/groundlink/internal/repository"
)

// AdminHandler handles fleet-wide administrator requests
type AdminHandler struct {
	commander DroneCommander
	droneRepo repository.DroneRepository
	userRepo  repository.UserRepository
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(commander DroneCommander, droneRepo repository.DroneRepository, userRepo repository.UserRepository) *AdminHandler {
	return &AdminHandler{
		commander: commander,
		droneRepo: droneRepo,
		userRepo:  userRepo,
	}
}

// SendMessageRequest is the body of POST /admin/message/send. DroneID zero
// or absent broadcasts to every authenticated operator.
type SendMessageRequest struct {
	Message    string `json:"message" binding:"required"`
	Importance string `json:"importance"`
	DroneID    int64  `json:"drone_id"`
}

// ListDrones returns every registered drone with its owner.
// GET /admin/drones
func (h *AdminHandler) ListDrones(c *gin.Context) {
	drones, err := h.droneRepo.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to retrieve drones",
		})
		return
	}

	type droneRow struct {
		ID         int64   `json:"id"`
		Name       string  `json:"name"`
		UIN        string  `json:"uin"`
		Status     string  `json:"status"`
		OwnerID    int64   `json:"ownerId"`
		OwnerEmail string  `json:"ownerEmail,omitempty"`
		Lat        float64 `json:"lat"`
		Lon        float64 `json:"lon"`
		Alt        float64 `json:"alt"`
	}

	rows := make([]droneRow, 0, len(drones))
	for _, d := range drones {
		row := droneRow{
			ID:      d.ID,
			Name:    d.Name,
			UIN:     d.UIN,
			Status:  d.Status,
			OwnerID: d.UserID,
			Lat:     d.Lat,
			Lon:     d.Lon,
			Alt:     d.Alt,
		}
		if owner, err := h.userRepo.GetByID(c.Request.Context(), d.UserID); err == nil {
			row.OwnerEmail = owner.Email
		}
		rows = append(rows, row)
	}

	c.JSON(http.StatusOK, gin.H{
		"drones": rows,
		"total":  len(rows),
	})
}

// SendMessage routes an operator message to one drone's owner or to every
// authenticated channel. Invalid importance values clamp to normal.
// POST /admin/message/send
func (h *AdminHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "message is required",
		})
		return
	}

	importance := drone.ParseImportance(req.Importance)
	if err := h.commander.SendOperatorMessage(req.Message, importance, req.DroneID); err != nil {
		respondCommandError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "sent",
		"importance": importance,
		"broadcast":  req.DroneID == 0,
	})
}
