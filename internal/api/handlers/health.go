package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"homecam-gateway/internal/config"
)

type HealthChecks struct {
	Detection func() bool
	FaceStore func() bool
	Messaging func() bool
}

type HealthHandler struct {
	cfg         *config.Config
	checks      HealthChecks
	activeCount func() int
}

func NewHealthHandler(cfg *config.Config, checks HealthChecks, activeCount func() int) *HealthHandler {
	return &HealthHandler{cfg: cfg, checks: checks, activeCount: activeCount}
}

type HealthResponse struct {
	Status        string          `json:"status"`
	GatewayID     string          `json:"gateway_id"`
	ActiveCameras int             `json:"active_cameras"`
	Services      map[string]bool `json:"services"`
}

type GatewayInfoResponse struct {
	GatewayID    string   `json:"gateway_id"`
	Status       string   `json:"status"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

// HealthCheck reports overall health plus per-collaborator availability.
// Degraded collaborators do not fail the check; the gateway serves plain
// streams without them.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	services := map[string]bool{}
	if h.checks.Detection != nil {
		services["detection"] = h.checks.Detection()
	}
	if h.checks.FaceStore != nil {
		services["face_store"] = h.checks.FaceStore()
	}
	if h.checks.Messaging != nil {
		services["messaging"] = h.checks.Messaging()
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:        "healthy",
		GatewayID:     h.cfg.GatewayID,
		ActiveCameras: h.activeCount(),
		Services:      services,
	})
}

func (h *HealthHandler) GatewayInfo(c *gin.Context) {
	c.JSON(http.StatusOK, GatewayInfoResponse{
		GatewayID: h.cfg.GatewayID,
		Status:    "running",
		Version:   h.cfg.Version,
		Capabilities: []string{
			"camera_discovery",
			"mjpeg_streaming",
			"object_detection",
			"face_identification",
		},
	})
}
