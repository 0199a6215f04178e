package camera

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"homecam-gateway/internal/config"
	"homecam-gateway/internal/logging"
	"homecam-gateway/internal/models"
)

var (
	ErrNotFound = errors.New("camera not found")
	ErrNotOpen  = errors.New("camera not open")
)

// Enricher annotates a frame. Implementations must never fail the frame:
// on any internal error they return the input unchanged.
type Enricher interface {
	Process(cameraID int, frame *models.Frame) *models.Frame
}

// Events receives session lifecycle notifications. Implementations must be
// non-blocking; a nil Events is allowed.
type Events interface {
	CameraOpened(desc models.CameraDescriptor)
	CameraClosed(desc models.CameraDescriptor)
}

// session is one active camera. The guard serializes all access to the
// underlying transport: reads, enrichment of the read result, and the final
// release all happen under it.
type session struct {
	desc   models.CameraDescriptor
	source Source
	guard  sync.Mutex
}

// Manager owns the open-session table. The table lock (mu) is only ever
// held for map bookkeeping, never across transport I/O, so slow cameras do
// not stall each other.
type Manager struct {
	cfg      *config.Config
	registry *Registry
	enricher Enricher
	events   Events
	log      zerolog.Logger

	mu       sync.RWMutex
	sessions map[int]*session
	opening  map[int]*sync.Mutex

	newSource func(desc models.CameraDescriptor) Source
}

func NewManager(cfg *config.Config, registry *Registry, enricher Enricher, events Events, logger zerolog.Logger) *Manager {
	m := &Manager{
		cfg:      cfg,
		registry: registry,
		enricher: enricher,
		events:   events,
		log:      logger,
		sessions: make(map[int]*session),
		opening:  make(map[int]*sync.Mutex),
	}
	m.newSource = m.buildSource
	return m
}

func (m *Manager) buildSource(desc models.CameraDescriptor) Source {
	camLog := logging.WithCamera(m.log, desc.ID)
	switch desc.Kind {
	case models.TransportNetworkStream:
		opts := NetworkOptions{
			ConnectAttempts:  m.cfg.RTSPConnectAttempts,
			ConnectDelay:     m.cfg.RTSPConnectDelay,
			FailureThreshold: m.cfg.ReadFailureThreshold,
			BufferSize:       m.cfg.RTSPBufferSize,
		}
		return NewNetworkSource(desc.URL, opts, camLog)
	default:
		return NewLocalSource(desc.DeviceIndex, camLog)
	}
}

// openLock returns the per-camera mutex that serializes concurrent opens of
// the same camera without blocking opens of other cameras.
func (m *Manager) openLock(id int) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lk, ok := m.opening[id]
	if !ok {
		lk = &sync.Mutex{}
		m.opening[id] = lk
	}
	return lk
}

// Open starts a session for the camera, initializing its transport. It is
// idempotent: opening an already-open camera is a no-op, and concurrent
// opens of the same camera perform exactly one initialization.
func (m *Manager) Open(id int) error {
	desc, ok := m.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	lk := m.openLock(id)
	lk.Lock()
	defer lk.Unlock()

	m.mu.RLock()
	_, active := m.sessions[id]
	m.mu.RUnlock()
	if active {
		return nil
	}

	src := m.newSource(desc)
	if err := src.Initialize(); err != nil {
		m.log.Error().Err(err).Int("camera_id", id).Msg("Camera initialization failed")
		return fmt.Errorf("initialize camera %d: %w", id, err)
	}

	m.mu.Lock()
	m.sessions[id] = &session{desc: desc, source: src}
	m.mu.Unlock()

	m.log.Info().Int("camera_id", id).Str("type", desc.Kind.String()).Msg("Camera opened")
	if m.events != nil {
		m.events.CameraOpened(desc)
	}
	return nil
}

// Close ends the session and releases the transport. The session is removed
// from the table before release, so no new readers can join, and the guard
// is taken so no in-flight read observes a released transport. Closing a
// camera that is not open returns ErrNotOpen.
func (m *Manager) Close(id int) error {
	if _, ok := m.registry.Get(id); !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	m.mu.Lock()
	sess, active := m.sessions[id]
	if active {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !active {
		return fmt.Errorf("%w: %d", ErrNotOpen, id)
	}

	sess.guard.Lock()
	sess.source.Release()
	sess.guard.Unlock()

	m.log.Info().Int("camera_id", id).Msg("Camera closed")
	if m.events != nil {
		m.events.CameraClosed(sess.desc)
	}
	return nil
}

// GetFrame reads one frame from an open camera and runs it through the
// enrichment pipeline. The session guard is held across both the read and
// the enrichment, so concurrent consumers of one camera see serialized,
// fully-annotated frames. Returns nil when the camera is not open or the
// read fails.
func (m *Manager) GetFrame(id int) *models.Frame {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	sess.guard.Lock()
	defer sess.guard.Unlock()

	frame, ok := sess.source.ReadFrame()
	if !ok || frame == nil {
		return nil
	}
	if m.enricher != nil {
		frame = m.enricher.Process(id, frame)
	}
	return frame
}

// CaptureRawFrame returns one unenriched frame. If the camera is open the
// frame comes from the existing session; otherwise a temporary transport is
// opened, read once, and released, leaving no session behind.
func (m *Manager) CaptureRawFrame(id int) (*models.Frame, error) {
	desc, ok := m.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	m.mu.RLock()
	sess, active := m.sessions[id]
	m.mu.RUnlock()

	if active {
		sess.guard.Lock()
		frame, ok := sess.source.ReadFrame()
		sess.guard.Unlock()
		if !ok || frame == nil {
			return nil, fmt.Errorf("read frame from camera %d failed", id)
		}
		return frame, nil
	}

	src := m.newSource(desc)
	if err := src.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize camera %d: %w", id, err)
	}
	defer src.Release()

	frame, ok := src.ReadFrame()
	if !ok || frame == nil {
		return nil, fmt.Errorf("read frame from camera %d failed", id)
	}
	return frame, nil
}

func (m *Manager) IsActive(id int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[id]
	return ok
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns the API projection of every known camera with live state.
func (m *Manager) List() []models.CameraResponse {
	descriptors := m.registry.List()
	out := make([]models.CameraResponse, 0, len(descriptors))
	for _, desc := range descriptors {
		out = append(out, m.response(desc))
	}
	return out
}

// Get returns the API projection of one camera.
func (m *Manager) Get(id int) (models.CameraResponse, error) {
	desc, ok := m.registry.Get(id)
	if !ok {
		return models.CameraResponse{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return m.response(desc), nil
}

func (m *Manager) response(desc models.CameraDescriptor) models.CameraResponse {
	resp := models.CameraResponse{
		ID:         desc.ID,
		Name:       desc.Name,
		Type:       desc.Kind.String(),
		Resolution: desc.Resolution,
		FPS:        desc.FPS,
		IsActive:   m.IsActive(desc.ID),
	}
	if resp.IsActive {
		resp.StreamURL = fmt.Sprintf("/stream/%d", desc.ID)
	}
	return resp
}

// CloseAll releases every open session. Used during shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[int]*session)
	m.mu.Unlock()

	for id, sess := range sessions {
		sess.guard.Lock()
		sess.source.Release()
		sess.guard.Unlock()
		m.log.Info().Int("camera_id", id).Msg("Camera closed")
		if m.events != nil {
			m.events.CameraClosed(sess.desc)
		}
	}
}
