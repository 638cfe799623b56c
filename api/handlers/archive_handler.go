package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/miku1hhhh/sina-dl/internal/app"
)

// ArchiveHandler serves the archive catalog
type ArchiveHandler struct {
	archives *app.ArchiveService
	logger   *zap.Logger
}

// NewArchiveHandler creates a new archive handler
func NewArchiveHandler(archives *app.ArchiveService, logger *zap.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		archives: archives,
		logger:   logger,
	}
}

// ListArchives handles GET /api/v1/archives
func (h *ArchiveHandler) ListArchives(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 0 {
		limit = 50
	}

	records, err := h.archives.List(limit)
	if err != nil {
		h.logger.Error("Failed to list archives", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetStats handles GET /api/v1/archives/stats
func (h *ArchiveHandler) GetStats(c *gin.Context) {
	stats, err := h.archives.Stats()
	if err != nil {
		h.logger.Error("Failed to get archive stats", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetArchive handles GET /api/v1/archives/:id
func (h *ArchiveHandler) GetArchive(c *gin.Context) {
	record, err := h.archives.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// DownloadArchive handles GET /api/v1/archives/:id/file
func (h *ArchiveHandler) DownloadArchive(c *gin.Context) {
	record, err := h.archives.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.FileAttachment(record.Path, record.Name)
}

// DeleteArchive handles DELETE /api/v1/archives/:id
func (h *ArchiveHandler) DeleteArchive(c *gin.Context) {
	if err := h.archives.Delete(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
