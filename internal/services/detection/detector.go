package detection

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"homecam-gateway/internal/config"
	"homecam-gateway/internal/models"
)

// Detector runs YOLO object detection through the OpenCV DNN module. The
// network handle is not safe for concurrent forward passes, so inference is
// serialized with a mutex.
type Detector struct {
	mu           sync.Mutex
	net          gocv.Net
	outputLayers []string
	classNames   []string

	enabled             bool
	confidenceThreshold float32
	nmsThreshold        float32
	inputSize           int
	classFilter         map[string]bool

	log zerolog.Logger
}

func NewDetector(cfg *config.Config, logger zerolog.Logger) *Detector {
	return &Detector{
		confidenceThreshold: float32(cfg.ConfidenceThreshold),
		nmsThreshold:        float32(cfg.NMSThreshold),
		inputSize:           cfg.DetectionInputSize,
		classFilter:         buildClassFilter(cfg.DetectionClasses),
		log:                 logger,
	}
}

// LoadModel loads YOLO weights, config and class names from the model
// directory. A load failure leaves the detector disabled rather than
// failing the gateway; streams then serve unannotated frames.
func (d *Detector) LoadModel(modelDir string) error {
	weightsPath := filepath.Join(modelDir, "yolov4.weights")
	configPath := filepath.Join(modelDir, "yolov4.cfg")
	namesPath := filepath.Join(modelDir, "coco.names")

	for _, path := range []string{weightsPath, configPath, namesPath} {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("model file missing: %s", path)
		}
	}

	names, err := loadClassNames(namesPath)
	if err != nil {
		return err
	}

	net := gocv.ReadNet(weightsPath, configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network from %s", modelDir)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	var outputs []string
	for _, idx := range net.GetUnconnectedOutLayers() {
		layer := net.GetLayer(idx)
		outputs = append(outputs, layer.GetName())
		layer.Close()
	}
	if len(outputs) == 0 {
		net.Close()
		return fmt.Errorf("network has no output layers")
	}

	d.mu.Lock()
	d.net = net
	d.outputLayers = outputs
	d.classNames = names
	d.enabled = true
	d.mu.Unlock()

	d.log.Info().
		Int("classes", len(names)).
		Int("input_size", d.inputSize).
		Msg("Object detection model loaded")
	return nil
}

func (d *Detector) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

// Detect runs one forward pass and returns the surviving boxes after
// confidence filtering, class filtering and non-maximum suppression.
func (d *Detector) Detect(frame *models.Frame) ([]models.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.enabled {
		return nil, fmt.Errorf("object detection is not available")
	}
	if frame == nil || frame.Width <= 0 || frame.Height <= 0 {
		return nil, fmt.Errorf("invalid frame")
	}

	img, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to build mat from frame: %w", err)
	}
	defer img.Close()

	blob := gocv.BlobFromImage(img, 1.0/255.0,
		image.Pt(d.inputSize, d.inputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	outputs := d.net.ForwardLayers(d.outputLayers)
	defer func() {
		for _, out := range outputs {
			out.Close()
		}
	}()

	return d.parseOutputs(outputs, frame.Width, frame.Height), nil
}

// parseOutputs decodes raw YOLO output rows into pixel-space boxes. Each
// row is [cx, cy, w, h, objectness, class scores...], all normalized.
func (d *Detector) parseOutputs(outputs []gocv.Mat, frameWidth, frameHeight int) []models.Detection {
	var (
		boxes       []image.Rectangle
		confidences []float32
		classIDs    []int
	)

	for _, out := range outputs {
		rows := out.Rows()
		cols := out.Cols()
		for row := 0; row < rows; row++ {
			classID := -1
			var best float32
			for col := 5; col < cols; col++ {
				score := out.GetFloatAt(row, col)
				if score > best {
					best = score
					classID = col - 5
				}
			}
			if classID < 0 || best < d.confidenceThreshold {
				continue
			}
			if !d.classAllowed(classID) {
				continue
			}

			cx := out.GetFloatAt(row, 0) * float32(frameWidth)
			cy := out.GetFloatAt(row, 1) * float32(frameHeight)
			w := out.GetFloatAt(row, 2) * float32(frameWidth)
			h := out.GetFloatAt(row, 3) * float32(frameHeight)

			x := int(cx - w/2)
			y := int(cy - h/2)
			boxes = append(boxes, image.Rect(x, y, x+int(w), y+int(h)))
			confidences = append(confidences, best)
			classIDs = append(classIDs, classID)
		}
	}

	if len(boxes) == 0 {
		return nil
	}

	indices := gocv.NMSBoxes(boxes, confidences, d.confidenceThreshold, d.nmsThreshold)

	detections := make([]models.Detection, 0, len(indices))
	for _, i := range indices {
		box := boxes[i]
		detections = append(detections, models.Detection{
			Label:      d.classNames[classIDs[i]],
			Confidence: float64(confidences[i]),
			X:          box.Min.X,
			Y:          box.Min.Y,
			W:          box.Dx(),
			H:          box.Dy(),
		})
	}
	return detections
}

func (d *Detector) classAllowed(classID int) bool {
	if len(d.classFilter) == 0 {
		return true
	}
	if classID < 0 || classID >= len(d.classNames) {
		return false
	}
	return d.classFilter[d.classNames[classID]]
}

// Close releases the network. The detector is unusable afterwards.
func (d *Detector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enabled {
		d.net.Close()
		d.enabled = false
	}
}

func buildClassFilter(classes []string) map[string]bool {
	if len(classes) == 0 {
		return nil
	}
	filter := make(map[string]bool, len(classes))
	for _, class := range classes {
		class = strings.TrimSpace(strings.ToLower(class))
		if class != "" {
			filter[class] = true
		}
	}
	return filter
}

func loadClassNames(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read class names: %w", err)
	}
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			names = append(names, line)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("class names file %s is empty", path)
	}
	return names, nil
}
