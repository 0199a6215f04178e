package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"homecam-gateway/internal/config"
	"homecam-gateway/internal/models"
)

const (
	SubjectCameraOpened = "camera.opened"
	SubjectCameraClosed = "camera.closed"
	SubjectDetections   = "gateway.detections"
	SubjectFacesReload  = "faces.reload"
)

// Service publishes gateway events to NATS. A nil *Service is valid and
// drops everything, so callers never have to branch on whether messaging
// is configured.
type Service struct {
	conn *nats.Conn
	cfg  *config.Config
	log  zerolog.Logger

	// lastDetection throttles detection events per camera.
	mu            sync.Mutex
	lastDetection map[int]time.Time
}

func NewService(cfg *config.Config, logger zerolog.Logger) (*Service, error) {
	opts := []nats.Option{
		nats.Name("homecam-gateway"),
		nats.Timeout(cfg.NatsConnectTimeout),
		nats.ReconnectWait(cfg.NatsReconnectWait),
		nats.MaxReconnects(cfg.NatsMaxReconnects),
	}

	conn, err := nats.Connect(cfg.NatsURL, opts...)
	if err != nil {
		return nil, err
	}

	logger.Info().Str("url", cfg.NatsURL).Msg("NATS connection established")

	return &Service{
		conn:          conn,
		cfg:           cfg,
		log:           logger,
		lastDetection: make(map[int]time.Time),
	}, nil
}

func (s *Service) publish(subject string, data interface{}) {
	if s == nil || s.conn == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		s.log.Error().Err(err).Str("subject", subject).Msg("Failed to marshal event")
		return
	}
	if err := s.conn.Publish(subject, payload); err != nil {
		s.log.Warn().Err(err).Str("subject", subject).Msg("Failed to publish event")
	}
}

func (s *Service) CameraOpened(desc models.CameraDescriptor) {
	s.publish(SubjectCameraOpened, lifecycleEvent(desc, "opened"))
}

func (s *Service) CameraClosed(desc models.CameraDescriptor) {
	s.publish(SubjectCameraClosed, lifecycleEvent(desc, "closed"))
}

// PublishDetections forwards a detection summary, rate-limited per camera
// by the configured cooldown so a person standing in view does not flood
// the bus at frame rate.
func (s *Service) PublishDetections(event models.DetectionEvent) {
	if s == nil || s.conn == nil {
		return
	}
	if !s.allowDetection(event.CameraID, time.Now()) {
		return
	}
	s.publish(SubjectDetections, event)
}

func (s *Service) allowDetection(cameraID int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, seen := s.lastDetection[cameraID]
	if seen && now.Sub(last) < s.cfg.EventsCooldown {
		return false
	}
	s.lastDetection[cameraID] = now
	return true
}

// SubscribeFacesReload invokes the handler whenever another service signals
// that the enrollment database changed.
func (s *Service) SubscribeFacesReload(handler func()) (*nats.Subscription, error) {
	if s == nil || s.conn == nil {
		return nil, nil
	}
	return s.conn.Subscribe(SubjectFacesReload, func(*nats.Msg) {
		handler()
	})
}

func (s *Service) IsConnected() bool {
	return s != nil && s.conn != nil && s.conn.IsConnected()
}

func (s *Service) Shutdown(ctx context.Context) error {
	if s == nil || s.conn == nil {
		return nil
	}
	// Try graceful drain, fall back to immediate close
	if err := s.conn.Drain(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to drain NATS connection gracefully, closing immediately")
		s.conn.Close()
	}
	return nil
}

func lifecycleEvent(desc models.CameraDescriptor, event string) models.CameraEvent {
	return models.CameraEvent{
		CameraID:  desc.ID,
		Name:      desc.Name,
		Type:      desc.Kind.String(),
		Event:     event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
