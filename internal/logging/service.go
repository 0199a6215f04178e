package logging

import (
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"homecam-gateway/internal/config"
)

func NewServiceLogger(cfg *config.Config, service string) zerolog.Logger {
	return log.With().Str("gateway_id", cfg.GatewayID).Str("service", service).Logger()
}

func WithCamera(base zerolog.Logger, cameraID int) zerolog.Logger {
	return base.With().Str("camera_id", strconv.Itoa(cameraID)).Logger()
}
