package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"homecam-gateway/internal/models"
	"homecam-gateway/internal/services/publisher/mjpeg"
)

func streamRouter(m SessionManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	streamer := mjpeg.NewStreamer(30, func(frame *models.Frame) ([]byte, error) {
		return frame.Data, nil
	}, zerolog.Nop())
	h := NewStreamHandler(m, streamer)
	r := gin.New()
	r.GET("/stream/:id", h.Stream)
	r.GET("/stream/:id/snapshot", h.Snapshot)
	return r
}

func TestStreamUnknownCamera(t *testing.T) {
	r := streamRouter(newFakeManager(1))

	if rec := doRequest(t, r, "GET", "/stream/9"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestStreamCameraNotOpen(t *testing.T) {
	r := streamRouter(newFakeManager(1))

	if rec := doRequest(t, r, "GET", "/stream/1"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSnapshotReturnsJPEG(t *testing.T) {
	m := newFakeManager(1)
	m.active[1] = true
	m.frame = &models.Frame{Data: []byte("snapdata"), Width: 1, Height: 1}
	r := streamRouter(m)

	rec := doRequest(t, r, "GET", "/stream/1/snapshot")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.String() != "snapdata" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestSnapshotNoFrame(t *testing.T) {
	m := newFakeManager(1)
	m.active[1] = true
	r := streamRouter(m)

	if rec := doRequest(t, r, "GET", "/stream/1/snapshot"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
