package camera

import "homecam-gateway/internal/models"

// Properties reports what the transport is actually delivering, as opposed
// to the advisory metadata in the descriptor.
type Properties struct {
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	FPS              float64 `json:"fps"`
	SourceType       string  `json:"source_type"`
	Backend          string  `json:"backend,omitempty"`
	FrameCount       int64   `json:"frame_count,omitempty"`
	ConnectionErrors int     `json:"connection_errors,omitempty"`
}

// Source is the uniform capability contract implemented by every camera
// transport. Implementations are not safe for concurrent use; the session
// manager serializes access with a per-session guard.
type Source interface {
	// Initialize opens the transport. After a failed Initialize no
	// resources are held.
	Initialize() error

	// ReadFrame performs one synchronous read. After Release it
	// reports failure.
	ReadFrame() (*models.Frame, bool)

	// Release frees transport resources. Idempotent; safe on an
	// uninitialized source.
	Release()

	// Properties reports live transport properties, zero-valued when
	// the source is not initialized.
	Properties() Properties
}
