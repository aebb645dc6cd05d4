package report

import (
	"encoding/csv"
	"fmt"
	"image"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/xray-cdss/internal/detection"
	"github.com/ironsheep/xray-cdss/internal/imaging"
)

const (
	// DefaultThreshold is the confidence threshold used when none is given.
	DefaultThreshold = 0.25

	// MinThreshold and MaxThreshold bound the accepted threshold.
	MinThreshold = 0.10
	MaxThreshold = 1.0

	// CSVFilename is the suggested download name for WriteCSV output.
	CSVFilename = "pneumonia_report.csv"
)

// Finding is one detected region.
type Finding = detection.Finding

// CSVHeader is the first row written by WriteCSV.
var CSVHeader = []string{"Class", "Confidence", "xmin", "ymin", "xmax", "ymax"}

// Report holds the findings for one image.
type Report struct {
	ID        uuid.UUID `json:"id"`
	Threshold float64   `json:"threshold"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Findings  []Finding `json:"findings"`
	CreatedAt time.Time `json:"created_at"`
}

// Positive reports whether anything was detected.
func (r *Report) Positive() bool {
	return len(r.Findings) > 0
}

// Summary returns the one-line headline for the report.
func (r *Report) Summary() string {
	if !r.Positive() {
		return "No pneumonia detected at this threshold."
	}
	return fmt.Sprintf("Findings: %d opacity regions detected.", len(r.Findings))
}

// Caption labels the overlay image with the threshold as a whole percentage.
func (r *Report) Caption() string {
	return fmt.Sprintf("Detections at %.0f%% Confidence", r.Threshold*100)
}

// WriteCSV writes the findings as CSV, one row per finding.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, f := range r.Findings {
		row := []string{
			f.Class,
			formatFloat(f.Confidence),
			formatFloat(f.XMin),
			formatFloat(f.YMin),
			formatFloat(f.XMax),
			formatFloat(f.YMax),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Annotations converts the findings for imaging.Overlay.
func (r *Report) Annotations() []imaging.Annotation {
	anns := make([]imaging.Annotation, len(r.Findings))
	for i, f := range r.Findings {
		anns[i] = imaging.Annotation{
			Rect:  f.Rect(),
			Label: fmt.Sprintf("%s %.2f", f.Class, f.Confidence),
			Score: f.Confidence,
		}
	}
	return anns
}

// Overlay draws the findings onto a copy of img.
func (r *Report) Overlay(img image.Image, style imaging.OverlayStyle) (*image.NRGBA, error) {
	return imaging.Overlay(img, r.Annotations(), style)
}

// FindingCrop returns a zoomed crop around finding i with pad pixels of
// context.
func (r *Report) FindingCrop(img image.Image, i, pad int, scale float64) (image.Image, error) {
	if i < 0 || i >= len(r.Findings) {
		return nil, fmt.Errorf("finding %d out of range (report has %d)", i, len(r.Findings))
	}
	rect := r.Findings[i].Rect().Add(img.Bounds().Min)
	return imaging.CropPadded(img, rect, pad, scale)
}

// ValidateThreshold checks that t lies in [MinThreshold, MaxThreshold].
func ValidateThreshold(t float64) error {
	if math.IsNaN(t) || t < MinThreshold || t > MaxThreshold {
		return fmt.Errorf("threshold %v out of range [%.2f, %.2f]", t, MinThreshold, MaxThreshold)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
