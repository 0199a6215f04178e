package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"homecam-gateway/internal/config"
	"homecam-gateway/internal/helpers"
	"homecam-gateway/internal/models"
	"homecam-gateway/internal/services/faceid"
)

// FaceStore is the persistence surface used by the enrollment endpoints.
type FaceStore interface {
	EnrollPerson(ctx context.Context, name, notes string, encoding []float64, photoPath string) (int64, error)
	AddEncoding(ctx context.Context, personID int64, encoding []float64, photoPath string) error
	GetPerson(ctx context.Context, id int64) (*faceid.Person, error)
	ListPersons(ctx context.Context) ([]faceid.Person, error)
	UpdatePerson(ctx context.Context, id int64, name, notes string) error
	DeletePerson(ctx context.Context, id int64) error
	Stats(ctx context.Context) (faceid.GalleryStats, error)
}

// FaceEncoder produces face observations from a frame.
type FaceEncoder interface {
	DetectAndEncode(ctx context.Context, frame *models.Frame) ([]models.FaceObservation, error)
}

// GalleryReloader refreshes the in-memory match gallery.
type GalleryReloader interface {
	Reload(ctx context.Context) error
	KnownCount() int
}

type FacesHandler struct {
	cfg        *config.Config
	store      FaceStore
	encoder    FaceEncoder
	identifier GalleryReloader
	manager    SessionManager
	log        zerolog.Logger
}

func NewFacesHandler(cfg *config.Config, store FaceStore, encoder FaceEncoder, identifier GalleryReloader, manager SessionManager, logger zerolog.Logger) *FacesHandler {
	return &FacesHandler{
		cfg:        cfg,
		store:      store,
		encoder:    encoder,
		identifier: identifier,
		manager:    manager,
		log:        logger,
	}
}

func (h *FacesHandler) storeAvailable(c *gin.Context) bool {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "face database is not available"})
		return false
	}
	return true
}

func personID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("person_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person id"})
		return 0, false
	}
	return id, true
}

func (h *FacesHandler) ListPersons(c *gin.Context) {
	if !h.storeAvailable(c) {
		return
	}
	persons, err := h.store.ListPersons(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list persons"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"persons": persons, "count": len(persons)})
}

func (h *FacesHandler) GetPerson(c *gin.Context) {
	if !h.storeAvailable(c) {
		return
	}
	id, ok := personID(c)
	if !ok {
		return
	}
	person, err := h.store.GetPerson(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	}
	c.JSON(http.StatusOK, person)
}

type updatePersonRequest struct {
	Name  string `json:"name" binding:"required"`
	Notes string `json:"notes"`
}

func (h *FacesHandler) UpdatePerson(c *gin.Context) {
	if !h.storeAvailable(c) {
		return
	}
	id, ok := personID(c)
	if !ok {
		return
	}
	var req updatePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if err := h.store.UpdatePerson(c.Request.Context(), id, req.Name, req.Notes); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	}
	h.reloadGallery(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"person_id": id, "status": "updated"})
}

func (h *FacesHandler) DeletePerson(c *gin.Context) {
	if !h.storeAvailable(c) {
		return
	}
	id, ok := personID(c)
	if !ok {
		return
	}
	if err := h.store.DeletePerson(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	}
	h.reloadGallery(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"person_id": id, "status": "deleted"})
}

type enrollCaptureRequest struct {
	CameraID int    `json:"camera_id" binding:"required"`
	Name     string `json:"name"`
	PersonID int64  `json:"person_id"`
	Notes    string `json:"notes"`
}

// EnrollFromCapture grabs one raw frame from a camera, extracts the single
// face in it and stores the encoding. With a name it creates a new person;
// with a person_id it adds the encoding to an existing one. Enrollment
// requires exactly one face in frame so the identity is unambiguous.
func (h *FacesHandler) EnrollFromCapture(c *gin.Context) {
	if !h.storeAvailable(c) {
		return
	}
	if h.encoder == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "face encoder is not available"})
		return
	}

	var req enrollCaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "camera_id is required"})
		return
	}
	if req.Name == "" && req.PersonID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "either name or person_id is required"})
		return
	}

	frame, err := h.manager.CaptureRawFrame(req.CameraID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to capture frame"})
		return
	}

	ctx := c.Request.Context()
	observations, err := h.encoder.DetectAndEncode(ctx, frame)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "face encoding failed"})
		return
	}
	if len(observations) != 1 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": fmt.Sprintf("expected exactly one face, found %d", len(observations)),
		})
		return
	}

	photoPath := h.savePhoto(frame, req.Name)

	if req.PersonID != 0 {
		if err := h.store.AddEncoding(ctx, req.PersonID, observations[0].Encoding, photoPath); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
			return
		}
		h.reloadGallery(ctx)
		c.JSON(http.StatusOK, gin.H{"person_id": req.PersonID, "status": "encoding added"})
		return
	}

	id, err := h.store.EnrollPerson(ctx, req.Name, req.Notes, observations[0].Encoding, photoPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enrollment failed"})
		return
	}
	h.reloadGallery(ctx)
	c.JSON(http.StatusCreated, gin.H{"person_id": id, "name": req.Name, "status": "enrolled"})
}

func (h *FacesHandler) ReloadGallery(c *gin.Context) {
	if h.identifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "face identification is not available"})
		return
	}
	if err := h.identifier.Reload(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "gallery reload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "reloaded",
		"encodings": h.identifier.KnownCount(),
	})
}

func (h *FacesHandler) Stats(c *gin.Context) {
	if !h.storeAvailable(c) {
		return
	}
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"persons":   stats.Persons,
		"encodings": stats.Encodings,
		"tolerance": h.cfg.FaceTolerance,
	})
}

func (h *FacesHandler) reloadGallery(ctx context.Context) {
	if h.identifier == nil {
		return
	}
	if err := h.identifier.Reload(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Gallery reload after enrollment change failed")
	}
}

// savePhoto keeps the enrollment photo on disk for later re-encoding. A
// save failure is not fatal; the encoding is what matters.
func (h *FacesHandler) savePhoto(frame *models.Frame, name string) string {
	if h.cfg.PhotoDir == "" {
		return ""
	}
	jpeg, err := helpers.EncodeJPEG(frame, h.cfg.JPEGQuality)
	if err != nil {
		return ""
	}
	if err := os.MkdirAll(h.cfg.PhotoDir, 0o755); err != nil {
		return ""
	}
	path := filepath.Join(h.cfg.PhotoDir, fmt.Sprintf("%s_%d.jpg", sanitizeName(name), time.Now().UnixNano()))
	if err := os.WriteFile(path, jpeg, 0o644); err != nil {
		h.log.Warn().Err(err).Msg("Failed to save enrollment photo")
		return ""
	}
	return path
}

func sanitizeName(name string) string {
	if name == "" {
		return "person"
	}
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
