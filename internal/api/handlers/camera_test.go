package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"homecam-gateway/internal/models"
	"homecam-gateway/internal/services/camera"
)

type fakeManager struct {
	cameras map[int]models.CameraResponse
	active  map[int]bool
	openErr error
	frame   *models.Frame
}

func newFakeManager(ids ...int) *fakeManager {
	m := &fakeManager{
		cameras: make(map[int]models.CameraResponse),
		active:  make(map[int]bool),
	}
	for _, id := range ids {
		m.cameras[id] = models.CameraResponse{ID: id, Name: fmt.Sprintf("Camera %d", id), Type: "local"}
	}
	return m
}

func (m *fakeManager) List() []models.CameraResponse {
	out := make([]models.CameraResponse, 0, len(m.cameras))
	for _, resp := range m.cameras {
		out = append(out, resp)
	}
	return out
}

func (m *fakeManager) Get(id int) (models.CameraResponse, error) {
	resp, ok := m.cameras[id]
	if !ok {
		return models.CameraResponse{}, camera.ErrNotFound
	}
	return resp, nil
}

func (m *fakeManager) Open(id int) error {
	if _, ok := m.cameras[id]; !ok {
		return fmt.Errorf("%w: %d", camera.ErrNotFound, id)
	}
	if m.openErr != nil {
		return m.openErr
	}
	m.active[id] = true
	return nil
}

func (m *fakeManager) Close(id int) error {
	if _, ok := m.cameras[id]; !ok {
		return camera.ErrNotFound
	}
	if !m.active[id] {
		return fmt.Errorf("%w: %d", camera.ErrNotOpen, id)
	}
	delete(m.active, id)
	return nil
}

func (m *fakeManager) IsActive(id int) bool { return m.active[id] }

func (m *fakeManager) GetFrame(int) *models.Frame { return m.frame }

func (m *fakeManager) CaptureRawFrame(id int) (*models.Frame, error) {
	if _, ok := m.cameras[id]; !ok {
		return nil, camera.ErrNotFound
	}
	if m.frame == nil {
		return nil, fmt.Errorf("no frame")
	}
	return m.frame, nil
}

func cameraRouter(m SessionManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewCameraHandler(m)
	r := gin.New()
	r.GET("/api/cameras", h.ListCameras)
	r.GET("/api/cameras/:id", h.GetCamera)
	r.POST("/api/cameras/:id/open", h.OpenCamera)
	r.POST("/api/cameras/:id/close", h.CloseCamera)
	r.GET("/api/cameras/:id/status", h.CameraStatus)
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestListCameras(t *testing.T) {
	r := cameraRouter(newFakeManager(1, 2))

	rec := doRequest(t, r, "GET", "/api/cameras")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 2 {
		t.Errorf("count = %d, want 2", body.Count)
	}
}

func TestOpenCloseLifecycle(t *testing.T) {
	m := newFakeManager(1)
	r := cameraRouter(m)

	if rec := doRequest(t, r, "POST", "/api/cameras/1/open"); rec.Code != http.StatusOK {
		t.Fatalf("open status = %d", rec.Code)
	}
	if !m.active[1] {
		t.Error("camera 1 should be active after open")
	}

	rec := doRequest(t, r, "GET", "/api/cameras/1/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var status struct {
		IsActive bool `json:"is_active"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if !status.IsActive {
		t.Error("status should report active")
	}

	if rec := doRequest(t, r, "POST", "/api/cameras/1/close"); rec.Code != http.StatusOK {
		t.Fatalf("close status = %d", rec.Code)
	}
	if m.active[1] {
		t.Error("camera 1 should be inactive after close")
	}
}

func TestCloseNotOpenCameraReturns400(t *testing.T) {
	r := cameraRouter(newFakeManager(1))

	if rec := doRequest(t, r, "POST", "/api/cameras/1/close"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestOpenUnknownCameraReturns404(t *testing.T) {
	r := cameraRouter(newFakeManager(1))

	if rec := doRequest(t, r, "POST", "/api/cameras/9/open"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestOpenInitializationFailureReturns502(t *testing.T) {
	m := newFakeManager(1)
	m.openErr = fmt.Errorf("device busy")
	r := cameraRouter(m)

	if rec := doRequest(t, r, "POST", "/api/cameras/1/open"); rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestInvalidCameraID(t *testing.T) {
	r := cameraRouter(newFakeManager(1))

	if rec := doRequest(t, r, "GET", "/api/cameras/abc"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
