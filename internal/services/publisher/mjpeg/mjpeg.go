package mjpeg

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"homecam-gateway/internal/models"
)

// FrameFunc pulls the next enriched frame for one camera. A nil result
// means the camera produced nothing this tick; the streamer skips the tick
// and keeps the connection open.
type FrameFunc func() *models.Frame

// EncodeFunc turns a frame into JPEG bytes.
type EncodeFunc func(frame *models.Frame) ([]byte, error)

// Streamer serves pull-based MJPEG: each connected viewer drives its own
// read loop at the configured rate, so frames are only pulled from the
// camera while someone is watching.
type Streamer struct {
	fps    int
	encode EncodeFunc
	log    zerolog.Logger
}

func NewStreamer(fps int, encode EncodeFunc, logger zerolog.Logger) *Streamer {
	if fps <= 0 {
		fps = 30
	}
	return &Streamer{
		fps:    fps,
		encode: encode,
		log:    logger,
	}
}

// Stream writes a multipart/x-mixed-replace MJPEG response until the client
// disconnects or pull reports a persistent failure (nil frames for a full
// second of ticks).
func (s *Streamer) Stream(w http.ResponseWriter, r *http.Request, cameraID int, pull FrameFunc) {
	boundary := "frame"
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	writePart := func(jpeg []byte) bool {
		if _, err := io.WriteString(w, "--"+boundary+"\r\n"); err != nil {
			return false
		}
		if _, err := io.WriteString(w, "Content-Type: image/jpeg\r\n"); err != nil {
			return false
		}
		if _, err := io.WriteString(w, fmt.Sprintf("Content-Length: %d\r\n\r\n", len(jpeg))); err != nil {
			return false
		}
		if _, err := w.Write(jpeg); err != nil {
			return false
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	s.log.Info().Int("camera_id", cameraID).Msg("MJPEG stream started")
	defer s.log.Info().Int("camera_id", cameraID).Msg("MJPEG stream ended")

	interval := time.Second / time.Duration(s.fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	emptyTicks := 0
	maxEmptyTicks := s.fps // a full second without frames ends the stream

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		frame := pull()
		if frame == nil {
			emptyTicks++
			if emptyTicks >= maxEmptyTicks {
				s.log.Warn().Int("camera_id", cameraID).Msg("No frames available, closing stream")
				return
			}
			continue
		}
		emptyTicks = 0

		jpeg, err := s.encode(frame)
		if err != nil {
			s.log.Warn().Err(err).Int("camera_id", cameraID).Msg("Frame encoding failed")
			continue
		}
		if !writePart(jpeg) {
			return
		}
	}
}

// Snapshot writes a single frame as a plain JPEG response.
func (s *Streamer) Snapshot(w http.ResponseWriter, frame *models.Frame) error {
	jpeg, err := s.encode(frame)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(jpeg)))
	w.Header().Set("Cache-Control", "no-cache")
	_, err = w.Write(jpeg)
	return err
}
