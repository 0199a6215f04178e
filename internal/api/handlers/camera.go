package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"homecam-gateway/internal/models"
	"homecam-gateway/internal/services/camera"
)

// SessionManager is the camera control surface the handlers need.
type SessionManager interface {
	List() []models.CameraResponse
	Get(id int) (models.CameraResponse, error)
	Open(id int) error
	Close(id int) error
	IsActive(id int) bool
	GetFrame(id int) *models.Frame
	CaptureRawFrame(id int) (*models.Frame, error)
}

type CameraHandler struct {
	manager SessionManager
}

func NewCameraHandler(manager SessionManager) *CameraHandler {
	return &CameraHandler{manager: manager}
}

func cameraID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid camera id"})
		return 0, false
	}
	return id, true
}

func (h *CameraHandler) ListCameras(c *gin.Context) {
	cameras := h.manager.List()
	c.JSON(http.StatusOK, gin.H{
		"cameras": cameras,
		"count":   len(cameras),
	})
}

func (h *CameraHandler) GetCamera(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	resp, err := h.manager.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CameraHandler) OpenCamera(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	if err := h.manager.Open(id); err != nil {
		if errors.Is(err, camera.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "camera initialization failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"camera_id": id, "status": "open"})
}

func (h *CameraHandler) CloseCamera(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	if err := h.manager.Close(id); err != nil {
		if errors.Is(err, camera.ErrNotOpen) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "camera is not open"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"camera_id": id, "status": "closed"})
}

func (h *CameraHandler) CameraStatus(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	if _, err := h.manager.Get(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"camera_id": id,
		"is_active": h.manager.IsActive(id),
	})
}
