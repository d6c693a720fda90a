package detector

import (
	"context"
	"fmt"

	"argus-worker-go/internal/config"
	"argus-worker-go/internal/models"
)

// Detector is the semantic detection capability. Implementations classify
// objects in a frame and return labelled boxes in normalized coordinates.
type Detector interface {
	// Detect runs one detection pass. Implementations honor the context
	// deadline and return an empty slice, not an error, for a clean frame
	// with nothing in it.
	Detect(ctx context.Context, frame *models.Frame) ([]models.Detection, error)
	Name() string
	Close() error
}

// New builds the configured detector backend
func New(cfg *config.Config) (Detector, error) {
	switch cfg.DetectorBackend {
	case "hog":
		return NewHOGDetector(cfg), nil
	case "grpc":
		return NewGRPCDetector(cfg), nil
	case "none":
		return nopDetector{}, nil
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.DetectorBackend)
	}
}

// nopDetector keeps the pipeline runnable with tier-1 motion only
type nopDetector struct{}

func (nopDetector) Detect(context.Context, *models.Frame) ([]models.Detection, error) {
	return nil, nil
}
func (nopDetector) Name() string { return "none" }
func (nopDetector) Close() error { return nil }
