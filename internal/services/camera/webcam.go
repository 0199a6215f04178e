package camera

import (
	"fmt"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"homecam-gateway/internal/models"
)

// LocalSource captures from a local webcam or USB camera by device index.
type LocalSource struct {
	deviceIndex int
	cap         *gocv.VideoCapture
	initialized bool
	log         zerolog.Logger
}

func NewLocalSource(deviceIndex int, logger zerolog.Logger) *LocalSource {
	return &LocalSource{
		deviceIndex: deviceIndex,
		log:         logger,
	}
}

// Initialize opens the device. Local devices fail fast: a single attempt,
// no retry.
func (s *LocalSource) Initialize() error {
	s.log.Info().Int("device_index", s.deviceIndex).Msg("Initializing webcam")

	cap, err := gocv.OpenVideoCapture(s.deviceIndex)
	if err != nil {
		return fmt.Errorf("cannot access camera at index %d: %w", s.deviceIndex, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return fmt.Errorf("cannot access camera at index %d", s.deviceIndex)
	}

	s.cap = cap
	s.initialized = true

	s.log.Info().
		Int("device_index", s.deviceIndex).
		Float64("width", cap.Get(gocv.VideoCaptureFrameWidth)).
		Float64("height", cap.Get(gocv.VideoCaptureFrameHeight)).
		Float64("fps", cap.Get(gocv.VideoCaptureFPS)).
		Msg("Webcam initialized")

	return nil
}

func (s *LocalSource) ReadFrame() (*models.Frame, bool) {
	if !s.initialized || s.cap == nil {
		return nil, false
	}

	img := gocv.NewMat()
	defer img.Close()

	if ok := s.cap.Read(&img); !ok || img.Empty() {
		return nil, false
	}

	// Mirror horizontally so a front-facing camera behaves like a mirror.
	flipped := gocv.NewMat()
	defer flipped.Close()
	gocv.Flip(img, &flipped, 1)

	return &models.Frame{
		Data:   flipped.ToBytes(),
		Width:  flipped.Cols(),
		Height: flipped.Rows(),
	}, true
}

func (s *LocalSource) Release() {
	if s.cap != nil {
		s.cap.Close()
		s.cap = nil
		s.initialized = false
		s.log.Debug().Int("device_index", s.deviceIndex).Msg("Webcam released")
	}
}

func (s *LocalSource) Properties() Properties {
	if !s.initialized || s.cap == nil {
		return Properties{}
	}
	return Properties{
		Width:      int(s.cap.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(s.cap.Get(gocv.VideoCaptureFrameHeight)),
		FPS:        s.cap.Get(gocv.VideoCaptureFPS),
		SourceType: "webcam",
	}
}
