package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"homecam-gateway/internal/config"
	"homecam-gateway/internal/logging"
	"homecam-gateway/internal/services/camera"
	"homecam-gateway/internal/services/detection"
	"homecam-gateway/internal/services/enrich"
	"homecam-gateway/internal/services/faceid"
	"homecam-gateway/internal/services/messaging"
)

// Container wires the gateway's services together. Optional collaborators
// (face database, detection model, message bus) degrade to nil or disabled
// instead of failing startup; the gateway then serves plain streams.
type Container struct {
	Config     *config.Config
	Store      *faceid.Store
	Identifier *faceid.Identifier
	Encoder    *faceid.EncoderClient
	Detector   *detection.Detector
	Bus        *messaging.Service
	Pipeline   *enrich.Pipeline
	Registry   *camera.Registry
	Manager    *camera.Manager
}

func NewContainer(ctx context.Context, cfg *config.Config) *Container {
	c := &Container{Config: cfg}

	store, err := faceid.NewStore(ctx, cfg.DatabaseURL, logging.NewServiceLogger(cfg, "faceid"))
	if err != nil {
		log.Warn().Err(err).Msg("Face database unavailable, face identification disabled")
	} else {
		c.Store = store
	}

	var gallery faceid.Gallery
	if c.Store != nil {
		gallery = c.Store
	}
	c.Identifier = faceid.NewIdentifier(gallery, cfg.FaceTolerance, logging.NewServiceLogger(cfg, "faceid"))
	if c.Store != nil {
		if err := c.Identifier.Reload(ctx); err != nil {
			log.Warn().Err(err).Msg("Initial gallery load failed")
		}
	}

	c.Encoder = faceid.NewEncoderClient(cfg.FaceEncoderURL, cfg.FaceEncoderTimeout,
		logging.NewServiceLogger(cfg, "encoder"))

	c.Detector = detection.NewDetector(cfg, logging.NewServiceLogger(cfg, "detection"))
	if cfg.DetectionEnabled {
		if err := c.Detector.LoadModel(cfg.ModelDir); err != nil {
			log.Warn().Err(err).Msg("Object detection model unavailable, detection disabled")
		}
	}

	bus, err := messaging.NewService(cfg, logging.NewServiceLogger(cfg, "messaging"))
	if err != nil {
		log.Warn().Err(err).Msg("NATS unavailable, events disabled")
	} else {
		c.Bus = bus
	}

	// Typed nils would defeat the pipeline's interface nil checks, so
	// optional collaborators are only assigned when present.
	var pipelineEncoder enrich.FaceEncoder
	var pipelineIdentifier enrich.FaceIdentifier
	if c.Store != nil {
		pipelineEncoder = c.Encoder
		pipelineIdentifier = c.Identifier
	}
	var publisher enrich.Publisher
	if c.Bus != nil {
		publisher = c.Bus
	}
	c.Pipeline = enrich.NewPipeline(c.Detector, pipelineEncoder, pipelineIdentifier, publisher,
		cfg.FaceEncoderTimeout, logging.NewServiceLogger(cfg, "enrich"))

	return c
}

// DiscoverCameras runs discovery with the given camera config and builds
// the registry and session manager.
func (c *Container) DiscoverCameras(cameraFile *config.CameraFile) {
	discovery := camera.NewDiscovery(c.Config, cameraFile, logging.NewServiceLogger(c.Config, "discovery"))
	c.Registry = camera.NewRegistry(discovery.Discover())
	log.Info().Int("cameras", c.Registry.Len()).Msg("Camera discovery complete")

	var events camera.Events
	if c.Bus != nil {
		events = c.Bus
	}
	c.Manager = camera.NewManager(c.Config, c.Registry, c.Pipeline, events,
		logging.NewServiceLogger(c.Config, "camera"))
}

// SubscribeReloadSignals wires the bus-driven gallery reload.
func (c *Container) SubscribeReloadSignals() {
	if c.Bus == nil || c.Store == nil {
		return
	}
	_, err := c.Bus.SubscribeFacesReload(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Identifier.Reload(ctx); err != nil {
			log.Warn().Err(err).Msg("Gallery reload from bus signal failed")
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to subscribe to gallery reload signals")
	}
}

// Shutdown releases camera sessions and closes all collaborators.
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Manager != nil {
		c.Manager.CloseAll()
	}
	if c.Detector != nil {
		c.Detector.Close()
	}
	if err := c.Bus.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Messaging shutdown failed")
	}
	if c.Store != nil {
		c.Store.Close()
	}
	return nil
}
