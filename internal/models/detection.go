package models

// Detection is one detected object in a single frame. Detections carry no
// identity across frames; they are recomputed per frame.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`

	// Axis-aligned box in pixel coordinates of the frame it was
	// computed from.
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// FaceBox is a detected face location in the face_recognition convention
// (top, right, bottom, left).
type FaceBox struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// FaceObservation pairs a detected face box with its 128-dimensional
// encoding, produced by the encoder collaborator.
type FaceObservation struct {
	Box      FaceBox   `json:"box"`
	Encoding []float64 `json:"encoding"`
}

// FaceMatch is the result of matching one face encoding against the
// gallery. Confidence is a percentage in [0, 100].
type FaceMatch struct {
	PersonID   *int64  `json:"person_id"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	IsKnown    bool    `json:"is_known"`
}

// FaceIdentification combines a face box with its match for overlay drawing
// and event payloads.
type FaceIdentification struct {
	Box   FaceBox   `json:"box"`
	Match FaceMatch `json:"match"`
}

// DetectionEvent summarizes one enriched frame for the message bus.
type DetectionEvent struct {
	CameraID   int         `json:"camera_id"`
	Detections []Detection `json:"detections"`
	Faces      []FaceMatch `json:"faces,omitempty"`
	Timestamp  string      `json:"timestamp"`
}
