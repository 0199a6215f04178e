package models

// TransportKind discriminates how a camera is reached.
type TransportKind string

const (
	TransportLocal         TransportKind = "local"
	TransportNetworkStream TransportKind = "rtsp"
)

// String returns the string representation of TransportKind
func (tk TransportKind) String() string {
	return string(tk)
}

// IsValid checks if the transport kind is valid
func (tk TransportKind) IsValid() bool {
	switch tk {
	case TransportLocal, TransportNetworkStream:
		return true
	default:
		return false
	}
}

// CameraDescriptor is the static metadata for one discoverable camera.
// IDs are assigned sequentially at discovery (1-based) and are stable for
// the process lifetime only; enumeration order may change across restarts.
// Descriptors are immutable after discovery.
type CameraDescriptor struct {
	ID   int           `json:"id"`
	Name string        `json:"name"`
	Kind TransportKind `json:"type"`

	// Local transport
	DeviceIndex int `json:"device_index,omitempty"`

	// Network transport. Credentials never leave the process.
	URL      string `json:"-"`
	Username string `json:"-"`
	Password string `json:"-"`

	// Advisory metadata, not enforced.
	Resolution string `json:"resolution"`
	FPS        string `json:"fps"`
}

// Frame is an in-memory BGR24 raster buffer. Frames are transient and
// caller-owned: produced by a read, consumed by the pipeline, then by the
// transport layer, then discarded.
type Frame struct {
	Data   []byte
	Width  int
	Height int
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return &Frame{
		Data:   data,
		Width:  f.Width,
		Height: f.Height,
	}
}

// CameraResponse is the API projection of a descriptor plus live state.
type CameraResponse struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Resolution string `json:"resolution"`
	FPS        string `json:"fps"`
	IsActive   bool   `json:"is_active"`
	StreamURL  string `json:"stream_url,omitempty"`
}

// CameraEvent is published on the message bus when a session opens or closes.
type CameraEvent struct {
	CameraID  int    `json:"camera_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
}
