package detector

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"argus-worker-go/internal/config"
	"argus-worker-go/internal/models"
)

// HOG's hit metric has no calibrated probability; boxes it returns get a
// flat confidence comfortably above the default activation threshold.
const hogConfidence = 0.5

// HOGDetector is the in-process person detector built on OpenCV's HOG
// descriptor with the default people SVM. No external service required,
// which makes it the default backend.
type HOGDetector struct {
	cfg *config.Config

	mu  sync.Mutex // HOGDescriptor is not safe for concurrent use
	hog gocv.HOGDescriptor
}

// NewHOGDetector creates the HOG person detector
func NewHOGDetector(cfg *config.Config) *HOGDetector {
	hog := gocv.NewHOGDescriptor()
	hog.SetSVMDetector(gocv.HOGDefaultPeopleDetector())
	return &HOGDetector{cfg: cfg, hog: hog}
}

// Name returns the backend name
func (d *HOGDetector) Name() string { return "hog" }

// Close releases the descriptor
func (d *HOGDetector) Close() error {
	return d.hog.Close()
}

// Detect runs HOG multi-scale person detection on the frame
func (d *HOGDetector) Detect(ctx context.Context, frame *models.Frame) ([]models.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDecodeFailed, err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, models.ErrDecodeFailed
	}

	d.mu.Lock()
	rects := d.hog.DetectMultiScale(mat)
	d.mu.Unlock()

	if len(rects) == 0 {
		return nil, nil
	}

	fw, fh := float64(frame.Width), float64(frame.Height)
	detections := make([]models.Detection, 0, len(rects))
	for _, r := range rects {
		detections = append(detections, models.Detection{
			Label:      "person",
			Confidence: hogConfidence,
			BBox: models.Rect{
				X: float64(r.Min.X) / fw,
				Y: float64(r.Min.Y) / fh,
				W: float64(r.Dx()) / fw,
				H: float64(r.Dy()) / fh,
			},
		})
	}
	return detections, nil
}
