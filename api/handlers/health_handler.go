package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/miku1hhhh/sina-dl/internal/app"
	"github.com/miku1hhhh/sina-dl/internal/domain"
)

// Version is reported by the health endpoint
var Version = "1.0.0"

// HealthHandler handles health check requests
type HealthHandler struct {
	manager *app.SessionManager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(manager *app.SessionManager) *HealthHandler {
	return &HealthHandler{manager: manager}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Sessions struct {
		Total       int `json:"total"`
		Scanning    int `json:"scanning"`
		Downloading int `json:"downloading"`
		Packing     int `json:"packing"`
	} `json:"sessions"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: Version,
	}
	for _, s := range h.manager.ListSessions() {
		response.Sessions.Total++
		switch s.State() {
		case domain.StateScanning:
			response.Sessions.Scanning++
		case domain.StateDownloading:
			response.Sessions.Downloading++
		case domain.StatePacking:
			response.Sessions.Packing++
		}
	}
	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if _, err := h.manager.Archives().Stats(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "archive catalog unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
