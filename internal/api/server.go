package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"homecam-gateway/internal/api/handlers"
	"homecam-gateway/internal/config"
)

type Server struct {
	config *config.Config
	router *gin.Engine
	server *http.Server
	log    zerolog.Logger

	healthHandler *handlers.HealthHandler
	cameraHandler *handlers.CameraHandler
	streamHandler *handlers.StreamHandler
	facesHandler  *handlers.FacesHandler
}

// Handlers bundles the constructed handler set for the server.
type Handlers struct {
	Health *handlers.HealthHandler
	Camera *handlers.CameraHandler
	Stream *handlers.StreamHandler
	Faces  *handlers.FacesHandler
}

func NewServer(cfg *config.Config, h Handlers, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:        cfg,
		router:        gin.New(),
		log:           logger,
		healthHandler: h.Health,
		cameraHandler: h.Camera,
		streamHandler: h.Stream,
		facesHandler:  h.Faces,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.router,
	}
	return s
}

func (s *Server) Start() error {
	s.log.Info().Int("port", s.config.Port).Msg("Starting gateway API")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.log.Info().Msg("Stopping gateway API")
	return s.server.Shutdown(ctx)
}

// Router exposes the underlying engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
