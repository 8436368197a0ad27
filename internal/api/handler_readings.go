package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// GetReadings handles GET /api/readings?limit=N.
func (h *Handler) GetReadings(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	res := h.telemetry.GetSensorReadings(c.Request.Context(), limit)
	c.Header(sourceHeader, string(res.Source))
	c.JSON(http.StatusOK, res.Readings)
}

// GetReadingsRange handles GET /api/readings/range?start=...&end=... with
// RFC3339 bounds.
func (h *Handler) GetReadingsRange(c *gin.Context) {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'start' timestamp format. Use RFC3339."})
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'end' timestamp format. Use RFC3339."})
		return
	}
	if end.Before(start) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "'end' must not be before 'start'"})
		return
	}

	res := h.telemetry.GetSensorReadingsByTimeRange(c.Request.Context(), start, end)
	c.Header(sourceHeader, string(res.Source))
	c.JSON(http.StatusOK, res.Readings)
}

type createReadingRequest struct {
	Temperature *float64 `json:"temperature" binding:"required"`
	PH          *float64 `json:"ph" binding:"required"`
	TDSLevel    *float64 `json:"tdsLevel" binding:"required"`
}

// PostReading handles POST /api/readings, the manual insert path.
func (h *Handler) PostReading(c *gin.Context) {
	var req createReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reading := h.telemetry.CreateSensorReading(c.Request.Context(), *req.Temperature, *req.PH, *req.TDSLevel)
	c.JSON(http.StatusCreated, reading)
}
