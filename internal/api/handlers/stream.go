package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"homecam-gateway/internal/models"
	"homecam-gateway/internal/services/publisher/mjpeg"
)

type StreamHandler struct {
	manager  SessionManager
	streamer *mjpeg.Streamer
}

func NewStreamHandler(manager SessionManager, streamer *mjpeg.Streamer) *StreamHandler {
	return &StreamHandler{manager: manager, streamer: streamer}
}

// Stream serves the live MJPEG feed of an open camera. The camera must be
// opened first; streaming does not implicitly open sessions.
func (h *StreamHandler) Stream(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	if _, err := h.manager.Get(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
		return
	}
	if !h.manager.IsActive(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "camera is not open"})
		return
	}

	h.streamer.Stream(c.Writer, c.Request, id, func() *models.Frame {
		return h.manager.GetFrame(id)
	})
}

// Snapshot returns one enriched frame as a plain JPEG.
func (h *StreamHandler) Snapshot(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	if _, err := h.manager.Get(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
		return
	}
	if !h.manager.IsActive(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "camera is not open"})
		return
	}

	frame := h.manager.GetFrame(id)
	if frame == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no frame available"})
		return
	}
	if err := h.streamer.Snapshot(c.Writer, frame); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode snapshot"})
	}
}
