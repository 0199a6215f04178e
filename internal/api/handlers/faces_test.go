package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"homecam-gateway/internal/config"
	"homecam-gateway/internal/models"
	"homecam-gateway/internal/services/faceid"
)

type fakeStore struct {
	persons map[int64]*faceid.Person
	nextID  int64
	addedTo []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{persons: make(map[int64]*faceid.Person), nextID: 1}
}

func (s *fakeStore) EnrollPerson(_ context.Context, name, notes string, _ []float64, _ string) (int64, error) {
	id := s.nextID
	s.nextID++
	s.persons[id] = &faceid.Person{ID: id, Name: name, Notes: notes, EncodingCount: 1}
	return id, nil
}

func (s *fakeStore) AddEncoding(_ context.Context, personID int64, _ []float64, _ string) error {
	p, ok := s.persons[personID]
	if !ok {
		return fmt.Errorf("person %d not found", personID)
	}
	p.EncodingCount++
	s.addedTo = append(s.addedTo, personID)
	return nil
}

func (s *fakeStore) GetPerson(_ context.Context, id int64) (*faceid.Person, error) {
	p, ok := s.persons[id]
	if !ok {
		return nil, fmt.Errorf("person %d not found", id)
	}
	return p, nil
}

func (s *fakeStore) ListPersons(context.Context) ([]faceid.Person, error) {
	out := []faceid.Person{}
	for _, p := range s.persons {
		out = append(out, *p)
	}
	return out, nil
}

func (s *fakeStore) UpdatePerson(_ context.Context, id int64, name, notes string) error {
	p, ok := s.persons[id]
	if !ok {
		return fmt.Errorf("person %d not found", id)
	}
	p.Name, p.Notes = name, notes
	return nil
}

func (s *fakeStore) DeletePerson(_ context.Context, id int64) error {
	if _, ok := s.persons[id]; !ok {
		return fmt.Errorf("person %d not found", id)
	}
	delete(s.persons, id)
	return nil
}

func (s *fakeStore) Stats(context.Context) (faceid.GalleryStats, error) {
	encodings := 0
	for _, p := range s.persons {
		encodings += p.EncodingCount
	}
	return faceid.GalleryStats{Persons: len(s.persons), Encodings: encodings}, nil
}

type fakeFaceEncoder struct {
	faces int
	err   error
}

func (e *fakeFaceEncoder) DetectAndEncode(context.Context, *models.Frame) ([]models.FaceObservation, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([]models.FaceObservation, e.faces)
	for i := range out {
		out[i] = models.FaceObservation{Encoding: make([]float64, 128)}
	}
	return out, nil
}

type fakeReloader struct {
	reloads int
	count   int
}

func (r *fakeReloader) Reload(context.Context) error {
	r.reloads++
	return nil
}

func (r *fakeReloader) KnownCount() int { return r.count }

type facesFixture struct {
	store    *fakeStore
	encoder  *fakeFaceEncoder
	reloader *fakeReloader
	manager  *fakeManager
	router   *gin.Engine
}

func newFacesFixture() *facesFixture {
	gin.SetMode(gin.TestMode)
	f := &facesFixture{
		store:    newFakeStore(),
		encoder:  &fakeFaceEncoder{faces: 1},
		reloader: &fakeReloader{},
		manager:  newFakeManager(1),
	}
	f.manager.frame = &models.Frame{Data: make([]byte, 12), Width: 2, Height: 2}

	cfg := &config.Config{FaceTolerance: 0.6}
	h := NewFacesHandler(cfg, f.store, f.encoder, f.reloader, f.manager, zerolog.Nop())
	r := gin.New()
	r.GET("/api/faces", h.ListPersons)
	r.GET("/api/faces/stats", h.Stats)
	r.POST("/api/faces/reload", h.ReloadGallery)
	r.POST("/api/faces/enroll/capture", h.EnrollFromCapture)
	r.GET("/api/faces/:person_id", h.GetPerson)
	r.PUT("/api/faces/:person_id", h.UpdatePerson)
	r.DELETE("/api/faces/:person_id", h.DeletePerson)
	f.router = r
	return f
}

func postJSON(t *testing.T, r *gin.Engine, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestEnrollFromCaptureNewPerson(t *testing.T) {
	f := newFacesFixture()

	rec := postJSON(t, f.router, "/api/faces/enroll/capture", gin.H{
		"camera_id": 1,
		"name":      "Alice",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(f.store.persons) != 1 {
		t.Errorf("store has %d persons, want 1", len(f.store.persons))
	}
	if f.reloader.reloads != 1 {
		t.Errorf("gallery reloaded %d times, want 1", f.reloader.reloads)
	}
}

func TestEnrollFromCaptureExistingPerson(t *testing.T) {
	f := newFacesFixture()
	id, _ := f.store.EnrollPerson(context.Background(), "Alice", "", nil, "")

	rec := postJSON(t, f.router, "/api/faces/enroll/capture", gin.H{
		"camera_id": 1,
		"person_id": id,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(f.store.addedTo) != 1 || f.store.addedTo[0] != id {
		t.Errorf("encodings added to %v, want [%d]", f.store.addedTo, id)
	}
}

func TestEnrollRejectsMultipleFaces(t *testing.T) {
	f := newFacesFixture()
	f.encoder.faces = 2

	rec := postJSON(t, f.router, "/api/faces/enroll/capture", gin.H{
		"camera_id": 1,
		"name":      "Alice",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	if len(f.store.persons) != 0 {
		t.Error("nothing should be enrolled when multiple faces are in frame")
	}
}

func TestEnrollRequiresNameOrPersonID(t *testing.T) {
	f := newFacesFixture()

	rec := postJSON(t, f.router, "/api/faces/enroll/capture", gin.H{"camera_id": 1})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPersonCRUD(t *testing.T) {
	f := newFacesFixture()
	id, _ := f.store.EnrollPerson(context.Background(), "Alice", "", nil, "")

	rec := doRequest(t, f.router, "GET", fmt.Sprintf("/api/faces/%d", id))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	body, _ := json.Marshal(gin.H{"name": "Alice B", "notes": "neighbor"})
	req := httptest.NewRequest("PUT", fmt.Sprintf("/api/faces/%d", id), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	put := httptest.NewRecorder()
	f.router.ServeHTTP(put, req)
	if put.Code != http.StatusOK {
		t.Fatalf("put status = %d", put.Code)
	}
	if f.store.persons[id].Name != "Alice B" {
		t.Errorf("name = %q after update", f.store.persons[id].Name)
	}

	if rec := doRequest(t, f.router, "DELETE", fmt.Sprintf("/api/faces/%d", id)); rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if len(f.store.persons) != 0 {
		t.Error("person not removed")
	}
}

func TestFacesUnavailableWithoutStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewFacesHandler(&config.Config{}, nil, nil, nil, newFakeManager(), zerolog.Nop())
	r := gin.New()
	r.GET("/api/faces", h.ListPersons)

	if rec := doRequest(t, r, "GET", "/api/faces"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestStatsIncludesTolerance(t *testing.T) {
	f := newFacesFixture()
	f.store.EnrollPerson(context.Background(), "Alice", "", nil, "")

	rec := doRequest(t, f.router, "GET", "/api/faces/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Persons   int     `json:"persons"`
		Tolerance float64 `json:"tolerance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Persons != 1 {
		t.Errorf("persons = %d, want 1", body.Persons)
	}
	if body.Tolerance != 0.6 {
		t.Errorf("tolerance = %v, want 0.6", body.Tolerance)
	}
}
