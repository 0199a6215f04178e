package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"homecam-gateway/internal/api"
	"homecam-gateway/internal/api/handlers"
	"homecam-gateway/internal/config"
	"homecam-gateway/internal/helpers"
	"homecam-gateway/internal/logging"
	"homecam-gateway/internal/models"
	"homecam-gateway/internal/services"
	"homecam-gateway/internal/services/publisher/mjpeg"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configuration
	cfg := config.Load()

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("Invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Optionally tee logs into the embedded Logdy web UI
	if cfg.LogdyEnabled {
		logdyWriter, url, err := logging.StartLogdy(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to start Logdy, console logging only")
		} else {
			console := zerolog.ConsoleWriter{Out: os.Stderr}
			log.Logger = log.Output(io.MultiWriter(console, logdyWriter))
			log.Info().Str("url", url).Msg("Log tee to Logdy enabled")
		}
	}

	log.Info().
		Str("gateway_id", cfg.GatewayID).
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Msg("Starting home camera gateway")

	// Camera config (network cameras + credentials)
	cameraFile, err := config.LoadCameraFile(cfg.CamerasConfigPath, cfg.CredentialsPath)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load camera config, local cameras only")
		cameraFile = &config.CameraFile{}
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 15*time.Second)
	container := services.NewContainer(startupCtx, cfg)
	cancelStartup()

	container.DiscoverCameras(cameraFile)
	container.SubscribeReloadSignals()

	// HTTP surface
	streamer := mjpeg.NewStreamer(cfg.StreamFPS, func(frame *models.Frame) ([]byte, error) {
		return helpers.EncodeJPEG(frame, cfg.JPEGQuality)
	}, logging.NewServiceLogger(cfg, "mjpeg"))

	checks := handlers.HealthChecks{
		Detection: container.Detector.Enabled,
		FaceStore: func() bool { return container.Store != nil },
		Messaging: container.Bus.IsConnected,
	}

	var facesStore handlers.FaceStore
	if container.Store != nil {
		facesStore = container.Store
	}
	server := api.NewServer(cfg, api.Handlers{
		Health: handlers.NewHealthHandler(cfg, checks, container.Manager.ActiveCount),
		Camera: handlers.NewCameraHandler(container.Manager),
		Stream: handlers.NewStreamHandler(container.Manager, streamer),
		Faces: handlers.NewFacesHandler(cfg, facesStore, container.Encoder,
			container.Identifier, container.Manager, logging.NewServiceLogger(cfg, "faces")),
	}, logging.NewServiceLogger(cfg, "api"))

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := container.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Service shutdown failed")
	}

	log.Info().Msg("Gateway shutdown complete")
}
