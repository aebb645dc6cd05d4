package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// DefaultInputSize is the square input edge of the exported detector.
	DefaultInputSize = 640

	// DefaultIoUThreshold is the overlap above which same-class boxes are
	// suppressed. It matches the Ultralytics predict default.
	DefaultIoUThreshold = 0.7

	// letterboxFill is the gray used to pad the resized image.
	letterboxFill = 114

	inputName  = "images"
	outputName = "output0"
)

var (
	envMu   sync.Mutex
	envRefs int
)

// ONNXConfig configures an ONNXDetector.
type ONNXConfig struct {
	// ModelPath is the exported .onnx file.
	ModelPath string

	// LibraryPath is the onnxruntime shared library. Empty uses the
	// platform default.
	LibraryPath string

	InputSize    int
	Classes      []string
	IoUThreshold float64

	// Threads for intra-op parallelism; 0 uses runtime.NumCPU().
	Threads int
}

func (c *ONNXConfig) withDefaults() {
	if c.InputSize <= 0 {
		c.InputSize = DefaultInputSize
	}
	if len(c.Classes) == 0 {
		c.Classes = []string{DefaultClass}
	}
	if c.IoUThreshold <= 0 {
		c.IoUThreshold = DefaultIoUThreshold
	}
	if c.Threads <= 0 {
		c.Threads = runtime.NumCPU()
	}
}

// ONNXDetector runs a YOLOv8-style detector through ONNX Runtime.
// A single session is shared, so Detect calls are serialised.
type ONNXDetector struct {
	cfg     ONNXConfig
	log     *slog.Logger
	anchors int

	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	closed  bool
}

// NewONNXDetector initialises the runtime environment and loads the model.
func NewONNXDetector(cfg ONNXConfig, logger *slog.Logger) (*ONNXDetector, error) {
	cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ModelPath == "" {
		return nil, ErrModelNotFound
	}

	if err := acquireEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	d := &ONNXDetector{
		cfg:     cfg,
		log:     logger.With("module", "detection"),
		anchors: AnchorCount(cfg.InputSize),
	}
	if err := d.initSession(); err != nil {
		releaseEnvironment()
		return nil, err
	}

	d.log.Info("detector loaded",
		"model", cfg.ModelPath,
		"input_size", cfg.InputSize,
		"classes", len(cfg.Classes))
	return d, nil
}

func (d *ONNXDetector) initSession() error {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(d.cfg.Threads); err != nil {
		return fmt.Errorf("failed to set thread count: %w", err)
	}

	size := int64(d.cfg.InputSize)
	inputShape := ort.NewShape(1, 3, size, size)
	outputShape := ort.NewShape(1, int64(4+len(d.cfg.Classes)), int64(d.anchors))

	d.input, err = ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}

	d.output, err = ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		d.input.Destroy()
		return fmt.Errorf("failed to create output tensor: %w", err)
	}

	d.session, err = ort.NewAdvancedSession(
		d.cfg.ModelPath,
		[]string{inputName},
		[]string{outputName},
		[]ort.ArbitraryTensor{d.input},
		[]ort.ArbitraryTensor{d.output},
		options,
	)
	if err != nil {
		d.input.Destroy()
		d.output.Destroy()
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Detect implements Detector.
func (d *ONNXDetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("empty image")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errors.New("detector is closed")
	}

	lb := fillInput(d.input.GetData(), img, d.cfg.InputSize)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}

	raw, err := decodeOutput(d.output.GetData(), decodeParams{
		Classes:   d.cfg.Classes,
		Anchors:   d.anchors,
		Threshold: threshold,
		Gain:      lb.Gain,
		PadX:      float64(lb.PadX),
		PadY:      float64(lb.PadY),
		Width:     b.Dx(),
		Height:    b.Dy(),
	})
	if err != nil {
		return nil, err
	}

	findings := nonMaxSuppression(raw, d.cfg.IoUThreshold)
	d.log.Debug("inference complete",
		"candidates", len(raw),
		"findings", len(findings),
		"threshold", threshold)
	return findings, nil
}

// Classes implements Detector.
func (d *ONNXDetector) Classes() []string {
	return append([]string(nil), d.cfg.Classes...)
}

// Close releases the session and its tensors.
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	if d.session != nil {
		errs = append(errs, d.session.Destroy())
	}
	if d.input != nil {
		errs = append(errs, d.input.Destroy())
	}
	if d.output != nil {
		errs = append(errs, d.output.Destroy())
	}
	releaseEnvironment()
	return errors.Join(errs...)
}

// letterbox records how an image was fitted into the square model input.
type letterbox struct {
	// Gain is model pixels per source pixel.
	Gain float64

	// PadX and PadY are the left and top padding in model pixels.
	PadX, PadY int
}

// newLetterbox fits a w x h image into size x size, keeping the aspect
// ratio and centring it the way Ultralytics' LetterBox does.
func newLetterbox(w, h, size int) (letterbox, int, int) {
	gain := math.Min(float64(size)/float64(w), float64(size)/float64(h))
	nw := max(1, min(size, int(math.Round(float64(w)*gain))))
	nh := max(1, min(size, int(math.Round(float64(h)*gain))))
	return letterbox{
		Gain: gain,
		PadX: int(math.Round(float64(size-nw)/2 - 0.1)),
		PadY: int(math.Round(float64(size-nh)/2 - 0.1)),
	}, nw, nh
}

// fillInput letterboxes img into size x size and writes it into buf as CHW
// float32 scaled to [0, 1].
func fillInput(buf []float32, img image.Image, size int) letterbox {
	b := img.Bounds()
	lb, nw, nh := newLetterbox(b.Dx(), b.Dy(), size)

	canvas := imaging.New(size, size, color.NRGBA{R: letterboxFill, G: letterboxFill, B: letterboxFill, A: 255})
	resized := imaging.Resize(img, nw, nh, imaging.Linear)
	canvas = imaging.Paste(canvas, resized, image.Pt(lb.PadX, lb.PadY))

	plane := size * size
	for y := 0; y < size; y++ {
		row := canvas.Pix[y*canvas.Stride:]
		for x := 0; x < size; x++ {
			i := y*size + x
			px := row[x*4 : x*4+3]
			buf[i] = float32(px[0]) / 255.0
			buf[plane+i] = float32(px[1]) / 255.0
			buf[2*plane+i] = float32(px[2]) / 255.0
		}
	}
	return lb
}

func acquireEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize onnxruntime: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() {
	envMu.Lock()
	defer envMu.Unlock()
	envRefs--
	if envRefs == 0 {
		_ = ort.DestroyEnvironment()
	}
}
