package enrich

import (
	"testing"

	"homecam-gateway/internal/models"
)

func blackFrame(w, h int) *models.Frame {
	return &models.Frame{Data: make([]byte, w*h*3), Width: w, Height: h}
}

// pixel returns the BGR triple at (x, y).
func pixel(frame *models.Frame, x, y int) (byte, byte, byte) {
	i := (y*frame.Width + x) * 3
	return frame.Data[i], frame.Data[i+1], frame.Data[i+2]
}

func TestDrawOverlaysAnnotatesCopy(t *testing.T) {
	in := blackFrame(64, 64)
	out, err := drawOverlays(in, []models.Detection{
		{Label: "person", Confidence: 0.9, X: 10, Y: 10, W: 40, H: 40},
	}, nil)
	if err != nil {
		t.Fatalf("drawOverlays: %v", err)
	}

	if out == in {
		t.Fatal("drawOverlays must return a new frame, not mutate the input")
	}
	for _, b := range in.Data {
		if b != 0 {
			t.Fatal("input frame pixels were mutated")
		}
	}

	changed := false
	for i := range out.Data {
		if out.Data[i] != 0 {
			changed = true
			break
		}
	}
	if !changed {
		t.Error("output frame has no drawn pixels")
	}
}

func TestFaceBoxDrawnOverObjectBox(t *testing.T) {
	// An object box fully coinciding with a face box: the face border is
	// drawn second and must win. The known-face green (0,255,0 BGR) is
	// never produced by classColor, so an exact match proves the face
	// layer is on top.
	in := blackFrame(64, 64)
	out, err := drawOverlays(in,
		[]models.Detection{{Label: "person", Confidence: 0.9, X: 10, Y: 10, W: 40, H: 40}},
		[]models.FaceIdentification{{
			Box:   models.FaceBox{Top: 10, Right: 50, Bottom: 50, Left: 10},
			Match: models.FaceMatch{Name: "Alice", Confidence: 80, IsKnown: true},
		}})
	if err != nil {
		t.Fatalf("drawOverlays: %v", err)
	}

	// A point on the shared left border, away from the label strips.
	b, g, r := pixel(out, 10, 35)
	if b != 0 || g != 255 || r != 0 {
		t.Errorf("border pixel = (%d,%d,%d), want face green (0,255,0)", b, g, r)
	}
}
