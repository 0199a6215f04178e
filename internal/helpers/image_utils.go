package helpers

import (
	"fmt"

	"gocv.io/x/gocv"

	"homecam-gateway/internal/models"
)

// EncodeJPEG converts a BGR24 frame to a JPEG byte slice. The returned slice
// is an independent copy, safe to hold after the call.
func EncodeJPEG(frame *models.Frame, quality int) ([]byte, error) {
	if frame == nil || len(frame.Data) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	if frame.Width*frame.Height*3 != len(frame.Data) {
		return nil, fmt.Errorf("frame dimensions %dx%d do not match data length %d",
			frame.Width, frame.Height, len(frame.Data))
	}

	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create Mat from frame data: %w", err)
	}
	defer mat.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	defer buf.Close()

	b := buf.GetBytes()
	jpegCopy := make([]byte, len(b))
	copy(jpegCopy, b)
	return jpegCopy, nil
}

// DecodeImage decodes an encoded image (JPEG, PNG, ...) into a BGR24 frame.
func DecodeImage(data []byte) (*models.Frame, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	return &models.Frame{
		Data:   mat.ToBytes(),
		Width:  mat.Cols(),
		Height: mat.Rows(),
	}, nil
}

// IsJPEGData checks if the byte slice contains JPEG data by checking magic bytes
func IsJPEGData(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	// JPEG magic bytes: FF D8
	return data[0] == 0xFF && data[1] == 0xD8
}
