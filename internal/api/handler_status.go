package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hydro-monitor-backend/internal/model"
	"hydro-monitor-backend/internal/telemetry"
)

// GetStatus handles GET /api/status.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.telemetry.GetSystemStatus(c.Request.Context()))
}

type statusPatchRequest struct {
	ConnectionStatus *string    `json:"connectionStatus"`
	LastUpdate       *time.Time `json:"lastUpdate"`
	DataPoints       *int64     `json:"dataPoints"`
}

// PatchStatus handles PATCH /api/status with merge semantics: absent fields
// retain their previous value.
func (h *Handler) PatchStatus(c *gin.Context) {
	var req statusPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.ConnectionStatus != nil {
		switch *req.ConnectionStatus {
		case model.StatusConnected, model.StatusError:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "connectionStatus must be 'connected' or 'error'"})
			return
		}
	}

	status := h.telemetry.UpdateSystemStatus(c.Request.Context(), telemetry.StatusPatch{
		ConnectionStatus: req.ConnectionStatus,
		LastUpdate:       req.LastUpdate,
		DataPoints:       req.DataPoints,
	})
	c.JSON(http.StatusOK, status)
}
