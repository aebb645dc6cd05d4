package detection

import (
	"context"
	"image"
)

// DefaultClass is the single class of the pneumonia detector.
const DefaultClass = "pneumonia"

// Finding is one detected region in source image pixels.
type Finding struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	XMin       float64 `json:"xmin"`
	YMin       float64 `json:"ymin"`
	XMax       float64 `json:"xmax"`
	YMax       float64 `json:"ymax"`
}

// Width returns the horizontal extent of the finding.
func (f Finding) Width() float64 { return f.XMax - f.XMin }

// Height returns the vertical extent of the finding.
func (f Finding) Height() float64 { return f.YMax - f.YMin }

// Rect returns the finding as an integer rectangle, rounding outward.
func (f Finding) Rect() image.Rectangle {
	return image.Rect(int(f.XMin), int(f.YMin), int(f.XMax+0.999), int(f.YMax+0.999))
}

// Detector locates findings in an image.
type Detector interface {
	// Detect returns findings whose confidence is at least threshold.
	Detect(ctx context.Context, img image.Image, threshold float64) ([]Finding, error)

	// Classes returns the class names indexed by class id.
	Classes() []string

	Close() error
}
