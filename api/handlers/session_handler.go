package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/miku1hhhh/sina-dl/internal/app"
	"github.com/miku1hhhh/sina-dl/internal/domain"
	"github.com/miku1hhhh/sina-dl/internal/infrastructure"
)

// SessionHandler handles session-related HTTP requests
type SessionHandler struct {
	manager *app.SessionManager
	logger  *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(manager *app.SessionManager, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		logger:  logger,
	}
}

// ScanRequest is the body of POST /api/v1/sessions/:id/scan
type ScanRequest struct {
	Start       *int64 `json:"start" binding:"required"`
	End         *int64 `json:"end" binding:"required"`
	Concurrency int    `json:"concurrency,omitempty"`
	Wait        bool   `json:"wait,omitempty"`
}

// DownloadRequest is the body of POST /api/v1/sessions/:id/download
type DownloadRequest struct {
	Format string `json:"format,omitempty"`
	Wait   bool   `json:"wait,omitempty"`
}

// CreateSession handles POST /api/v1/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	session := h.manager.CreateSession()
	c.JSON(http.StatusCreated, session.Snapshot())
}

// ListSessions handles GET /api/v1/sessions
func (h *SessionHandler) ListSessions(c *gin.Context) {
	sessions := h.manager.ListSessions()
	out := make([]domain.SessionSnapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	c.JSON(http.StatusOK, out)
}

// GetSession handles GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.manager.GetSession(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

// DeleteSession handles DELETE /api/v1/sessions/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if err := h.manager.DeleteSession(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearSession handles POST /api/v1/sessions/:id/clear
func (h *SessionHandler) ClearSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.manager.ClearSession(id); err != nil {
		respondError(c, err)
		return
	}
	h.respondSnapshot(c, id, http.StatusOK)
}

// Scan handles POST /api/v1/sessions/:id/scan
func (h *SessionHandler) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	scan := domain.ScanRequest{
		Range:       domain.Range{Start: *req.Start, End: *req.End},
		Concurrency: req.Concurrency,
	}

	if req.Wait {
		if _, err := h.manager.Scan(c.Request.Context(), id, scan); err != nil {
			respondError(c, err)
			return
		}
		h.respondSnapshot(c, id, http.StatusOK)
		return
	}

	if err := h.manager.StartScan(id, scan); err != nil {
		respondError(c, err)
		return
	}
	h.respondSnapshot(c, id, http.StatusAccepted)
}

// Stop handles POST /api/v1/sessions/:id/stop
func (h *SessionHandler) Stop(c *gin.Context) {
	stopped, err := h.manager.Stop(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": stopped})
}

// Download handles POST /api/v1/sessions/:id/download
func (h *SessionHandler) Download(c *gin.Context) {
	var req DownloadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	id := c.Param("id")
	download := h.manager.NormalizeDownloadRequest(req.Format)

	if req.Wait {
		if _, err := h.manager.Download(c.Request.Context(), id, download); err != nil {
			respondError(c, err)
			return
		}
		h.respondSnapshot(c, id, http.StatusOK)
		return
	}

	if err := h.manager.StartDownload(id, download); err != nil {
		respondError(c, err)
		return
	}
	h.respondSnapshot(c, id, http.StatusAccepted)
}

// Pack handles POST /api/v1/sessions/:id/archive
func (h *SessionHandler) Pack(c *gin.Context) {
	record, err := h.manager.Pack(c.Request.Context(), c.Param("id"))
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("Failed to pack session", zap.String("session_id", c.Param("id")), zap.Error(err))
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// ListSessionArchives handles GET /api/v1/sessions/:id/archives
func (h *SessionHandler) ListSessionArchives(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.manager.GetSession(id); err != nil {
		respondError(c, err)
		return
	}
	records, err := h.manager.Archives().ListBySession(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// ItemPayload handles GET /api/v1/sessions/:id/items/:vid/payload
func (h *SessionHandler) ItemPayload(c *gin.Context) {
	vid, err := strconv.ParseInt(c.Param("vid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vid"})
		return
	}

	item, err := h.manager.ItemPayload(c.Param("id"), vid)
	if err != nil {
		respondError(c, err)
		return
	}

	contentType := infrastructure.DetectContentType(item.ContentType, item.Payload)
	c.Header("Content-Disposition", "inline; filename="+item.Filename)
	c.Data(http.StatusOK, contentType, item.Payload)
}

func (h *SessionHandler) respondSnapshot(c *gin.Context, id string, status int) {
	session, err := h.manager.GetSession(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, session.Snapshot())
}
