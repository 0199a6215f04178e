package camera

import (
	"fmt"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"homecam-gateway/internal/config"
	"homecam-gateway/internal/models"
)

// Discovery enumerates available cameras once at startup: local devices are
// probed by index, network cameras come from the merged camera config. The
// result feeds the registry; discovery is not re-run automatically.
type Discovery struct {
	maxLocal int
	cameras  *config.CameraFile
	log      zerolog.Logger

	// probe is swapped out in tests; hardware probing needs a device.
	probe func(index int) (Properties, bool)
}

func NewDiscovery(cfg *config.Config, cameras *config.CameraFile, logger zerolog.Logger) *Discovery {
	return &Discovery{
		maxLocal: cfg.MaxLocalCameras,
		cameras:  cameras,
		log:      logger,
		probe:    probeLocalDevice,
	}
}

// Discover returns descriptors for all reachable cameras, locals first,
// then network sources. IDs are not assigned here; the registry numbers the
// concatenated result sequentially.
func (d *Discovery) Discover() []models.CameraDescriptor {
	d.log.Info().Int("max_local", d.maxLocal).Msg("Scanning for available cameras")

	var found []models.CameraDescriptor

	for index := 0; index < d.maxLocal; index++ {
		props, ok := d.probe(index)
		if !ok {
			continue
		}

		desc := models.CameraDescriptor{
			Name:        localCameraName(index),
			Kind:        models.TransportLocal,
			DeviceIndex: index,
			Resolution:  fmt.Sprintf("%dx%d", props.Width, props.Height),
			FPS:         fpsLabel(props.FPS),
		}
		found = append(found, desc)

		d.log.Info().
			Str("name", desc.Name).
			Str("resolution", desc.Resolution).
			Msg("Found local camera")
	}

	if d.cameras != nil && d.cameras.RTSP.URL != "" {
		name := d.cameras.RTSP.Name
		if name == "" {
			name = "Network Camera"
		}
		desc := models.CameraDescriptor{
			Name:       name,
			Kind:       models.TransportNetworkStream,
			URL:        d.cameras.RTSP.URL,
			Username:   d.cameras.RTSP.Username,
			Password:   d.cameras.RTSP.Password,
			Resolution: "Variable",
			FPS:        "Variable",
		}
		found = append(found, desc)

		d.log.Info().Str("name", name).Msg("Found network camera")
	}

	if len(found) == 0 {
		d.log.Warn().Msg("No cameras found")
	}

	return found
}

// probeLocalDevice verifies a device index actually delivers frames, not
// just that it opens.
func probeLocalDevice(index int) (Properties, bool) {
	cap, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return Properties{}, false
	}
	defer cap.Close()

	if !cap.IsOpened() {
		return Properties{}, false
	}

	img := gocv.NewMat()
	defer img.Close()
	if ok := cap.Read(&img); !ok || img.Empty() {
		return Properties{}, false
	}

	return Properties{
		Width:      int(cap.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(cap.Get(gocv.VideoCaptureFrameHeight)),
		FPS:        cap.Get(gocv.VideoCaptureFPS),
		SourceType: "webcam",
	}, true
}

func localCameraName(index int) string {
	if index == 0 {
		return "Built-in Camera (Default)"
	}
	return fmt.Sprintf("External Camera %d", index)
}

func fpsLabel(fps float64) string {
	if fps <= 0 {
		return "Unknown"
	}
	return fmt.Sprintf("%.0f", fps)
}
