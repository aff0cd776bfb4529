package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"petscan/internal/classify"
	"petscan/internal/logging"

	"gocv.io/x/gocv"
)

// ErrNotInitialized is returned when the network could not be loaded.
var ErrNotInitialized = errors.New("detection network not initialized")

// MinDetectionScore discards raw network detections below this score before
// picking the best label. The acceptance threshold is applied later by the
// pipeline.
const MinDetectionScore = 0.1

// inputSize is the SSD-MobileNet input resolution.
const inputSize = 300

// cocoAnimals maps COCO class ids to recognizer labels.
var cocoAnimals = map[int]string{
	16: "bird",
	17: "cat",
	18: "dog",
	19: "horse",
	20: "sheep",
	21: "cow",
	22: "elephant",
	23: "bear",
	24: "zebra",
	25: "giraffe",
}

// Detector classifies images with an OpenCV DNN. It is safe for concurrent
// use; inference is serialized because gocv.Net is not.
type Detector struct {
	mu         sync.Mutex
	net        gocv.Net
	modelPath  string
	configPath string
	ready      bool
}

// New loads the network from modelPath/configPath.
func New(modelPath, configPath string) (*Detector, error) {
	d := &Detector{
		modelPath:  modelPath,
		configPath: configPath,
	}
	if err := d.initializeNet(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Detector) initializeNet() error {
	if _, err := os.Stat(d.modelPath); err != nil {
		return fmt.Errorf("model file not accessible: %w", err)
	}
	if _, err := os.Stat(d.configPath); err != nil {
		return fmt.Errorf("model config not accessible: %w", err)
	}

	net := gocv.ReadNet(d.modelPath, d.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network from %s", d.modelPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return fmt.Errorf("failed to set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return fmt.Errorf("failed to set target: %w", err)
	}

	d.net = net
	d.ready = true
	logging.Info("Detection network loaded from %s", d.modelPath)
	return nil
}

// Close releases the network.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ready {
		return nil
	}
	d.ready = false
	return d.net.Close()
}

// Classify implements classify.Classifier.
func (d *Detector) Classify(ctx context.Context, img image.Image) (classify.Result, error) {
	if img == nil {
		return classify.Result{}, errors.New("detector: nil image")
	}
	if err := ctx.Err(); err != nil {
		return classify.Result{}, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return classify.Result{}, fmt.Errorf("detector: convert image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return classify.Result{}, errors.New("detector: converted image is empty")
	}

	labels, err := d.detect(mat)
	if err != nil {
		return classify.Result{}, err
	}
	return classify.BestLabel(labels), nil
}

// detect runs one forward pass and returns animal labels above
// MinDetectionScore.
func (d *Detector) detect(mat gocv.Mat) ([]classify.Label, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ready {
		return nil, ErrNotInitialized
	}

	// Mat data is BGR; the TensorFlow model expects RGB.
	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(inputSize, inputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	// SSD output is 1x1xNx7: [batch, class, score, x1, y1, x2, y2]
	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	detections := make([]detection, 0, rows.Rows())
	for i := 0; i < rows.Rows(); i++ {
		detections = append(detections, detection{
			classID: int(rows.GetFloatAt(i, 1)),
			score:   float64(rows.GetFloatAt(i, 2)),
		})
	}
	return animalLabels(detections), nil
}

type detection struct {
	classID int
	score   float64
}

// animalLabels keeps animal detections above MinDetectionScore.
func animalLabels(detections []detection) []classify.Label {
	var labels []classify.Label
	for _, det := range detections {
		if det.score < MinDetectionScore {
			continue
		}
		name, ok := cocoAnimals[det.classID]
		if !ok {
			continue
		}
		labels = append(labels, classify.Label{Identifier: name, Confidence: det.score})
	}
	return labels
}
