package dataset

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/xray-cdss/internal/imaging"
	"github.com/ironsheep/xray-cdss/internal/radiograph"
)

// Decoder turns a source radiograph file into raw pixels.
type Decoder interface {
	Decode(path string) (*radiograph.Image, error)
}

// TextScanner looks for burned-in text on a normalized image and returns the
// words it recognised.
type TextScanner interface {
	ScanText(img image.Image) ([]string, error)
}

// ConvertConfig controls where the converter reads and writes.
type ConvertConfig struct {
	// SourceDir holds one source file per patient, named <patientId><SourceExt>.
	SourceDir string
	SourceExt string

	ImageDir string
	LabelDir string

	// Workers is the number of patients processed at once. Values below 2
	// process patients sequentially.
	Workers int
}

// ConvertStats summarises one converter run.
type ConvertStats struct {
	Patients int `json:"patients"`
	Found    int `json:"found"`
	Missing  int `json:"missing"`
	Labels   int `json:"labels"`
	Boxes    int `json:"boxes"`

	Failed      []string `json:"failed,omitempty"`
	TextFlagged []string `json:"text_flagged,omitempty"`

	mu sync.Mutex
}

func (s *ConvertStats) add(fn func(s *ConvertStats)) {
	s.mu.Lock()
	fn(s)
	s.mu.Unlock()
}

// Converter writes normalized images and label files for annotated patients.
type Converter struct {
	cfg     ConvertConfig
	decoder Decoder
	scanner TextScanner
	log     *slog.Logger
}

// ConverterOption customises a Converter.
type ConverterOption func(*Converter)

// WithTextScanner enables burned-in text screening of every written image.
func WithTextScanner(s TextScanner) ConverterOption {
	return func(c *Converter) { c.scanner = s }
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) ConverterOption {
	return func(c *Converter) { c.log = l }
}

// NewConverter returns a converter reading sources with decoder.
func NewConverter(cfg ConvertConfig, decoder Decoder, opts ...ConverterOption) *Converter {
	if cfg.SourceExt == "" {
		cfg.SourceExt = ".dcm"
	}
	c := &Converter{
		cfg:     cfg,
		decoder: decoder,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("module", "converter")
	return c
}

// Run converts every patient group.
//
// Per-patient failures never abort the run; they are logged and listed in
// ConvertStats.Failed. The returned error is non-nil only when the output
// directories cannot be created or ctx is cancelled.
func (c *Converter) Run(ctx context.Context, groups []PatientGroup) (*ConvertStats, error) {
	for _, dir := range []string{c.cfg.ImageDir, c.cfg.LabelDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	stats := &ConvertStats{Patients: len(groups)}
	c.log.Info("processing patients", "patients", len(groups), "workers", max(c.cfg.Workers, 1))

	var err error
	if c.cfg.Workers < 2 {
		err = c.runSequential(ctx, groups, stats)
	} else {
		err = c.runParallel(ctx, groups, stats)
	}

	sort.Strings(stats.Failed)
	sort.Strings(stats.TextFlagged)

	if err != nil {
		return stats, err
	}

	if stats.Found == 0 {
		c.log.Warn("preprocessing completed but found 0 matching files",
			"patients", stats.Patients, "source_dir", c.cfg.SourceDir)
	} else {
		c.log.Info("preprocessing complete",
			"patients", stats.Patients,
			"processed", stats.Found,
			"labels", stats.Labels,
			"failed", len(stats.Failed))
	}
	return stats, nil
}

func (c *Converter) runSequential(ctx context.Context, groups []PatientGroup, stats *ConvertStats) error {
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.convertPatient(g, stats)
	}
	return nil
}

func (c *Converter) runParallel(ctx context.Context, groups []PatientGroup, stats *ConvertStats) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.cfg.Workers)

	for _, g := range groups {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			c.convertPatient(g, stats)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// convertPatient handles one patient. Errors are recorded, not returned.
func (c *Converter) convertPatient(g PatientGroup, stats *ConvertStats) {
	src := filepath.Join(c.cfg.SourceDir, g.PatientID+c.cfg.SourceExt)
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			stats.add(func(s *ConvertStats) { s.Missing++ })
			return
		}
		c.fail(g.PatientID, err, stats)
		return
	}

	img, err := c.decoder.Decode(src)
	if err != nil {
		c.fail(g.PatientID, err, stats)
		return
	}
	stats.add(func(s *ConvertStats) { s.Found++ })

	gray := radiograph.Normalize(img)
	if err := imaging.SavePNG(filepath.Join(c.cfg.ImageDir, g.PatientID+".png"), gray); err != nil {
		c.fail(g.PatientID, err, stats)
		return
	}

	if g.Positive() {
		n, err := c.writeLabels(g, img.Width, img.Height)
		if err != nil {
			c.fail(g.PatientID, err, stats)
			return
		}
		stats.add(func(s *ConvertStats) {
			s.Labels++
			s.Boxes += n
		})
	}

	if c.scanner != nil {
		c.screen(g.PatientID, gray, stats)
	}
}

// writeLabels writes one line per box using the decoded image size.
func (c *Converter) writeLabels(g PatientGroup, width, height int) (int, error) {
	labels := make([]NormalizedLabel, 0, len(g.Boxes))
	for _, box := range g.Boxes {
		labels = append(labels, NewNormalizedLabel(box, width, height))
	}

	path := filepath.Join(c.cfg.LabelDir, g.PatientID+".txt")
	if err := os.WriteFile(path, []byte(FormatLabels(labels)), 0o644); err != nil {
		return 0, fmt.Errorf("failed to write labels: %w", err)
	}
	return len(labels), nil
}

func (c *Converter) screen(patientID string, img image.Image, stats *ConvertStats) {
	words, err := c.scanner.ScanText(img)
	if err != nil {
		c.log.Warn("text screening failed", "patient_id", patientID, "error", err)
		return
	}
	if len(words) == 0 {
		return
	}
	c.log.Warn("burned-in text found", "patient_id", patientID, "words", words)
	stats.add(func(s *ConvertStats) { s.TextFlagged = append(s.TextFlagged, patientID) })
}

func (c *Converter) fail(patientID string, err error, stats *ConvertStats) {
	c.log.Error("error processing patient", "patient_id", patientID, "error", err)
	stats.add(func(s *ConvertStats) { s.Failed = append(s.Failed, patientID) })
}
