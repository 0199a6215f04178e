package enrich

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"homecam-gateway/internal/models"
)

// Detector finds objects in a frame.
type Detector interface {
	Detect(frame *models.Frame) ([]models.Detection, error)
	Enabled() bool
}

// FaceEncoder locates faces and produces their encodings.
type FaceEncoder interface {
	DetectAndEncode(ctx context.Context, frame *models.Frame) ([]models.FaceObservation, error)
}

// FaceIdentifier matches one encoding against the enrolled gallery.
type FaceIdentifier interface {
	Identify(encoding []float64) models.FaceMatch
}

// Publisher receives the detection summary of each enriched frame.
// Implementations must be non-blocking.
type Publisher interface {
	PublishDetections(event models.DetectionEvent)
}

// Pipeline annotates frames with object detections and face identities.
// The two stages are isolated: a failure in one never blocks the other, and
// a failure in both returns the input frame untouched. Processing never
// fails the frame.
type Pipeline struct {
	detector   Detector
	encoder    FaceEncoder
	identifier FaceIdentifier
	publisher  Publisher
	timeout    time.Duration
	log        zerolog.Logger
}

func NewPipeline(detector Detector, encoder FaceEncoder, identifier FaceIdentifier, publisher Publisher, timeout time.Duration, logger zerolog.Logger) *Pipeline {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Pipeline{
		detector:   detector,
		encoder:    encoder,
		identifier: identifier,
		publisher:  publisher,
		timeout:    timeout,
		log:        logger,
	}
}

// Process enriches one frame for the given camera. Both stages observe
// the raw frame; annotations are rendered in a single pass afterwards,
// object boxes first and face boxes on top. The input frame is returned
// unchanged when neither stage produced anything to draw, so enrichment
// failures are invisible downstream.
func (p *Pipeline) Process(cameraID int, frame *models.Frame) *models.Frame {
	if frame == nil {
		return nil
	}

	detections := p.runObjectStage(frame)
	faces := p.runFaceStage(frame)

	if p.publisher != nil && (len(detections) > 0 || len(faces) > 0) {
		p.publisher.PublishDetections(buildEvent(cameraID, detections, faces))
	}

	if len(detections) == 0 && len(faces) == 0 {
		return frame
	}

	annotated, err := drawOverlays(frame, detections, faces)
	if err != nil {
		p.log.Warn().Err(err).Msg("Overlay drawing failed")
		return frame
	}
	return annotated
}

func (p *Pipeline) runObjectStage(frame *models.Frame) (detections []models.Detection) {
	if p.detector == nil || !p.detector.Enabled() {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("Object detection stage panicked")
			detections = nil
		}
	}()

	detections, err := p.detector.Detect(frame)
	if err != nil {
		p.log.Warn().Err(err).Msg("Object detection failed")
		return nil
	}
	return detections
}

func (p *Pipeline) runFaceStage(frame *models.Frame) (faces []models.FaceIdentification) {
	if p.encoder == nil || p.identifier == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("Face identification stage panicked")
			faces = nil
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	observations, err := p.encoder.DetectAndEncode(ctx, frame)
	if err != nil {
		p.log.Warn().Err(err).Msg("Face encoding failed")
		return nil
	}

	for _, obs := range observations {
		faces = append(faces, models.FaceIdentification{
			Box:   obs.Box,
			Match: p.identifier.Identify(obs.Encoding),
		})
	}
	return faces
}

func buildEvent(cameraID int, detections []models.Detection, faces []models.FaceIdentification) models.DetectionEvent {
	event := models.DetectionEvent{
		CameraID:   cameraID,
		Detections: detections,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for _, face := range faces {
		event.Faces = append(event.Faces, face.Match)
	}
	return event
}
