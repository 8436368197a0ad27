package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const exportLimit = 1000

// ExportCSV handles GET /api/export/csv?limit=N.
func (h *Handler) ExportCSV(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(exportLimit)))
	if err != nil || limit <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	res := h.telemetry.GetSensorReadings(c.Request.Context(), limit)

	c.Header(sourceHeader, string(res.Source))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="sensor_readings.csv"`)

	w := csv.NewWriter(c.Writer)
	w.Write([]string{"id", "timestamp", "temperature", "ph", "tdsLevel"})
	for _, r := range res.Readings {
		w.Write([]string{
			r.ID,
			r.Timestamp.Format(time.RFC3339),
			fmt.Sprintf("%.2f", r.Temperature),
			fmt.Sprintf("%.2f", r.PH),
			fmt.Sprintf("%.2f", r.TDSLevel),
		})
	}
	w.Flush()
}

// ExportJSON handles GET /api/export/json?limit=N.
func (h *Handler) ExportJSON(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(exportLimit)))
	if err != nil || limit <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	res := h.telemetry.GetSensorReadings(c.Request.Context(), limit)
	c.Header(sourceHeader, string(res.Source))
	c.Header("Content-Disposition", `attachment; filename="sensor_readings.json"`)
	c.JSON(http.StatusOK, res.Readings)
}
