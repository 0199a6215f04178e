package enrich

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"homecam-gateway/internal/models"
)

var (
	knownFaceColor   = color.RGBA{G: 255, A: 255}
	unknownFaceColor = color.RGBA{R: 255, A: 255}
	labelTextColor   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// drawOverlays renders object and face annotations onto a copy of the
// frame. Object boxes go first, face boxes second, so identity labels stay
// on top where the boxes overlap.
func drawOverlays(frame *models.Frame, detections []models.Detection, faces []models.FaceIdentification) (*models.Frame, error) {
	img, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to build mat from frame: %w", err)
	}
	defer img.Close()

	for _, det := range detections {
		drawLabeledBox(&img,
			image.Rect(det.X, det.Y, det.X+det.W, det.Y+det.H),
			fmt.Sprintf("%s %.0f%%", det.Label, det.Confidence*100),
			classColor(det.Label))
	}

	for _, face := range faces {
		box := image.Rect(face.Box.Left, face.Box.Top, face.Box.Right, face.Box.Bottom)
		if face.Match.IsKnown {
			label := fmt.Sprintf("%s (%.1f%%)", face.Match.Name, face.Match.Confidence)
			drawLabeledBox(&img, box, label, knownFaceColor)
		} else {
			drawLabeledBox(&img, box, "Unknown", unknownFaceColor)
		}
	}

	return &models.Frame{
		Data:   img.ToBytes(),
		Width:  frame.Width,
		Height: frame.Height,
	}, nil
}

// drawLabeledBox draws the box and its label on a filled background strip
// above the box, clamped inside the frame.
func drawLabeledBox(img *gocv.Mat, box image.Rectangle, label string, col color.RGBA) {
	gocv.Rectangle(img, box, col, 2)

	size := gocv.GetTextSize(label, gocv.FontHersheySimplex, 0.5, 1)
	top := box.Min.Y - size.Y - 8
	if top < 0 {
		top = box.Min.Y
	}
	bg := image.Rect(box.Min.X, top, box.Min.X+size.X+8, top+size.Y+8)
	gocv.Rectangle(img, bg, col, -1)
	gocv.PutText(img, label,
		image.Pt(box.Min.X+4, top+size.Y+2),
		gocv.FontHersheySimplex, 0.5, labelTextColor, 1)
}
