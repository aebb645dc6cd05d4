package detection

import (
	"fmt"
	"math"
	"sort"
)

// AnchorCount returns the number of prediction columns a YOLOv8 head emits
// for a square input of the given size (strides 8, 16 and 32).
func AnchorCount(inputSize int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		side := inputSize / stride
		n += side * side
	}
	return n
}

// decodeParams describes how raw output maps back onto the source image.
type decodeParams struct {
	Classes   []string
	Anchors   int
	Threshold float64

	// Gain is model pixels per source pixel; PadX and PadY are the
	// letterbox offsets in model pixels.
	Gain       float64
	PadX, PadY float64

	// Width and Height of the source image, used for clamping.
	Width, Height int
}

// decodeOutput turns a [1, 4+C, A] tensor into findings above threshold.
func decodeOutput(data []float32, p decodeParams) ([]Finding, error) {
	rows := 4 + len(p.Classes)
	if len(data) != rows*p.Anchors {
		return nil, fmt.Errorf("unexpected output length: got %d, want %d", len(data), rows*p.Anchors)
	}

	findings := make([]Finding, 0, 16)
	for i := 0; i < p.Anchors; i++ {
		best, bestScore := -1, float32(0)
		for c := range p.Classes {
			if s := data[(4+c)*p.Anchors+i]; s > bestScore {
				best, bestScore = c, s
			}
		}
		if best < 0 || float64(bestScore) < p.Threshold {
			continue
		}

		cx := (float64(data[i]) - p.PadX) / p.Gain
		cy := (float64(data[p.Anchors+i]) - p.PadY) / p.Gain
		w := float64(data[2*p.Anchors+i]) / p.Gain
		h := float64(data[3*p.Anchors+i]) / p.Gain

		findings = append(findings, Finding{
			Class:      p.Classes[best],
			Confidence: float64(bestScore),
			XMin:       clamp(cx-w/2, 0, float64(p.Width)),
			YMin:       clamp(cy-h/2, 0, float64(p.Height)),
			XMax:       clamp(cx+w/2, 0, float64(p.Width)),
			YMax:       clamp(cy+h/2, 0, float64(p.Height)),
		})
	}

	return findings, nil
}

// nonMaxSuppression keeps the highest-confidence finding among each group of
// same-class findings overlapping by more than iouThreshold. The result is
// sorted by descending confidence.
func nonMaxSuppression(findings []Finding, iouThreshold float64) []Finding {
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]Finding, 0, len(sorted))
	for _, f := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.Class == f.Class && iou(k, f) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, f)
		}
	}
	return kept
}

// iou computes intersection over union of two findings.
func iou(a, b Finding) float64 {
	ix := math.Min(a.XMax, b.XMax) - math.Max(a.XMin, b.XMin)
	iy := math.Min(a.YMax, b.YMax) - math.Max(a.YMin, b.YMin)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := a.Width()*a.Height() + b.Width()*b.Height() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
