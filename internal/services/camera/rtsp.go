package camera

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"homecam-gateway/internal/models"
)

// transport is the raw capture handle behind a NetworkSource. It exists so
// the reconnection state machine can be exercised without a live stream.
type transport interface {
	Open() error
	Read() (*models.Frame, bool)
	Close()
	Properties() (width, height int, fps float64)
}

// NetworkOptions configures connection and failure handling for a network
// stream source.
type NetworkOptions struct {
	// ConnectAttempts and ConnectDelay govern Initialize. Each attempt
	// must not only open the stream but also read one frame before the
	// connection counts as established.
	ConnectAttempts int
	ConnectDelay    time.Duration

	// FailureThreshold is the number of consecutive read failures that
	// triggers a full release/reconnect cycle.
	FailureThreshold int

	// BufferSize is the transport frame buffer; 1 keeps reads near the
	// live edge of the stream.
	BufferSize int
}

func DefaultNetworkOptions() NetworkOptions {
	return NetworkOptions{
		ConnectAttempts:  3,
		ConnectDelay:     2 * time.Second,
		FailureThreshold: 5,
		BufferSize:       1,
	}
}

// NetworkSource captures from an RTSP stream. Read failures are not
// immediately fatal: below the failure threshold the last good frame is
// substituted so viewers see a momentarily stale picture instead of a
// stall; at the threshold the source reconnects autonomously.
type NetworkSource struct {
	url  string
	opts NetworkOptions

	newTransport func() transport
	tr           transport
	initialized  bool

	lastFrame           *models.Frame
	frameCount          int64
	consecutiveFailures int

	log zerolog.Logger
}

func NewNetworkSource(url string, opts NetworkOptions, logger zerolog.Logger) *NetworkSource {
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = 1
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = DefaultNetworkOptions().FailureThreshold
	}
	s := &NetworkSource{
		url:  url,
		opts: opts,
		log:  logger,
	}
	s.newTransport = func() transport {
		return &gocvTransport{url: url, bufferSize: opts.BufferSize}
	}
	return s
}

// Initialize dials the stream, retrying up to the configured attempt count
// with a fixed delay between attempts. A connection only counts once a test
// frame has been read; streams that open but never deliver data are treated
// as failures. After exhausting all attempts no resources are held.
func (s *NetworkSource) Initialize() error {
	addr := redactURL(s.url)

	for attempt := 1; attempt <= s.opts.ConnectAttempts; attempt++ {
		s.log.Info().
			Str("address", addr).
			Int("attempt", attempt).
			Int("max_attempts", s.opts.ConnectAttempts).
			Msg("Connecting to RTSP stream")

		tr := s.newTransport()
		err := tr.Open()
		if err == nil {
			if _, ok := tr.Read(); ok {
				s.tr = tr
				s.initialized = true
				s.consecutiveFailures = 0

				width, height, fps := tr.Properties()
				s.log.Info().
					Str("address", addr).
					Int("width", width).
					Int("height", height).
					Float64("fps", fps).
					Msg("RTSP connection established")
				return nil
			}
			err = fmt.Errorf("stream opened but delivered no frame")
		}
		tr.Close()

		s.log.Warn().Err(err).Int("attempt", attempt).Msg("RTSP connection attempt failed")
		if attempt < s.opts.ConnectAttempts {
			time.Sleep(s.opts.ConnectDelay)
		}
	}

	s.initialized = false
	return fmt.Errorf("failed to connect to %s after %d attempts", addr, s.opts.ConnectAttempts)
}

func (s *NetworkSource) ReadFrame() (*models.Frame, bool) {
	if !s.initialized || s.tr == nil {
		return nil, false
	}

	frame, ok := s.tr.Read()
	if !ok || frame == nil {
		s.consecutiveFailures++

		if s.consecutiveFailures >= s.opts.FailureThreshold {
			s.log.Warn().
				Int("consecutive_failures", s.consecutiveFailures).
				Msg("Read failure threshold reached, reconnecting")

			s.Release()
			if err := s.Initialize(); err != nil {
				s.log.Error().Err(err).Msg("RTSP reconnection failed")
				return nil, false
			}

			s.log.Info().Msg("RTSP reconnection successful")
			return s.tr.Read()
		}

		// Mask the transient failure with a copy of the last good
		// frame; isolated dropped packets stay invisible to viewers.
		if s.lastFrame != nil {
			return s.lastFrame.Clone(), true
		}
		return nil, false
	}

	s.consecutiveFailures = 0
	s.frameCount++
	s.lastFrame = frame.Clone()

	return frame, true
}

func (s *NetworkSource) Release() {
	if s.tr != nil {
		s.tr.Close()
		s.tr = nil
		s.initialized = false
		s.log.Debug().Msg("RTSP connection closed")
	}
}

func (s *NetworkSource) Properties() Properties {
	if !s.initialized || s.tr == nil {
		return Properties{}
	}
	width, height, fps := s.tr.Properties()
	return Properties{
		Width:            width,
		Height:           height,
		FPS:              fps,
		SourceType:       "rtsp",
		Backend:          "ffmpeg",
		FrameCount:       s.frameCount,
		ConnectionErrors: s.consecutiveFailures,
	}
}

// gocvTransport is the production transport backed by OpenCV VideoCapture
// with the FFmpeg backend.
type gocvTransport struct {
	url        string
	bufferSize int
	cap        *gocv.VideoCapture
}

func (t *gocvTransport) Open() error {
	cap, err := gocv.OpenVideoCaptureWithAPI(t.url, gocv.VideoCaptureFFmpeg)
	if err != nil {
		return fmt.Errorf("failed to open RTSP stream: %w", err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return fmt.Errorf("failed to open RTSP stream")
	}

	if t.bufferSize > 0 {
		cap.Set(gocv.VideoCaptureBufferSize, float64(t.bufferSize))
	}

	t.cap = cap
	return nil
}

func (t *gocvTransport) Read() (*models.Frame, bool) {
	if t.cap == nil {
		return nil, false
	}

	img := gocv.NewMat()
	defer img.Close()

	if ok := t.cap.Read(&img); !ok || img.Empty() {
		return nil, false
	}

	return &models.Frame{
		Data:   img.ToBytes(),
		Width:  img.Cols(),
		Height: img.Rows(),
	}, true
}

func (t *gocvTransport) Close() {
	if t.cap != nil {
		t.cap.Close()
		t.cap = nil
	}
}

func (t *gocvTransport) Properties() (int, int, float64) {
	if t.cap == nil {
		return 0, 0, 0
	}
	return int(t.cap.Get(gocv.VideoCaptureFrameWidth)),
		int(t.cap.Get(gocv.VideoCaptureFrameHeight)),
		t.cap.Get(gocv.VideoCaptureFPS)
}

// redactURL hides credentials embedded in an RTSP URL for logging.
func redactURL(url string) string {
	if i := strings.LastIndex(url, "@"); i >= 0 {
		if j := strings.Index(url, "://"); j >= 0 && j+3 < i {
			return url[:j+3] + url[i+1:]
		}
	}
	return url
}
