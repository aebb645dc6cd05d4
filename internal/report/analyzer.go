package report

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/xray-cdss/internal/detection"
)

// Analyzer runs a detector over an image and builds a Report.
type Analyzer struct {
	detector detection.Detector
	log      *slog.Logger
	now      func() time.Time
}

// NewAnalyzer returns an analyzer backed by d.
func NewAnalyzer(d detection.Detector, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		detector: d,
		log:      logger.With("module", "report"),
		now:      time.Now,
	}
}

// Analyze detects findings in img at threshold.
func (a *Analyzer) Analyze(ctx context.Context, img image.Image, threshold float64) (*Report, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("no image")
	}

	start := time.Now()
	findings, err := a.detector.Detect(ctx, img, threshold)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}
	if findings == nil {
		findings = []Finding{}
	}

	b := img.Bounds()
	r := &Report{
		ID:        uuid.New(),
		Threshold: threshold,
		Width:     b.Dx(),
		Height:    b.Dy(),
		Findings:  findings,
		CreatedAt: a.now().UTC(),
	}

	a.log.Info("analysis complete",
		"report_id", r.ID,
		"findings", len(findings),
		"threshold", threshold,
		"duration", time.Since(start))
	return r, nil
}
