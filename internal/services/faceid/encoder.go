package faceid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"homecam-gateway/internal/helpers"
	"homecam-gateway/internal/models"
)

// EncoderClient talks to the face encoder sidecar, which wraps the dlib
// face detection and 128-d encoding models behind a small HTTP API.
type EncoderClient struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

func NewEncoderClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *EncoderClient {
	return &EncoderClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     logger,
	}
}

type encodeResponse struct {
	Faces []struct {
		Box      models.FaceBox `json:"box"`
		Encoding []float64      `json:"encoding"`
	} `json:"faces"`
}

// DetectAndEncode sends the frame as JPEG and returns the locations and
// encodings of all faces the sidecar found. No faces is a valid empty
// result, not an error.
func (c *EncoderClient) DetectAndEncode(ctx context.Context, frame *models.Frame) ([]models.FaceObservation, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("face encoder is not configured")
	}

	jpeg, err := helpers.EncodeJPEG(frame, 90)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/encode", bytes.NewReader(jpeg))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face encoder request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("face encoder returned %d: %s", resp.StatusCode, string(body))
	}

	var decoded encodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode encoder response: %w", err)
	}

	observations := make([]models.FaceObservation, 0, len(decoded.Faces))
	for _, face := range decoded.Faces {
		observations = append(observations, models.FaceObservation{
			Box:      face.Box,
			Encoding: face.Encoding,
		})
	}
	return observations, nil
}

// Healthy reports whether the sidecar answers its health endpoint.
func (c *EncoderClient) Healthy(ctx context.Context) bool {
	if c.baseURL == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
