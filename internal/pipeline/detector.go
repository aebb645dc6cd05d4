package pipeline

import (
	"context"
	"log/slog"

	"github.com/ironsheep/xray-cdss/internal/config"
	"github.com/ironsheep/xray-cdss/internal/detection"
)

// OpenDetector resolves the model through the configured loader and starts
// an ONNX Runtime session for it.
func OpenDetector(ctx context.Context, m config.ModelSettings, logger *slog.Logger) (detection.Detector, error) {
	loader := detection.NewLoader(detection.LoaderConfig{
		Path:     m.Path,
		URL:      m.URL,
		CacheDir: m.CacheDir,
		SHA256:   m.SHA256,
	}, logger)

	path, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	return detection.NewONNXDetector(detection.ONNXConfig{
		ModelPath:    path,
		LibraryPath:  m.LibraryPath,
		InputSize:    m.InputSize,
		Classes:      m.Classes,
		IoUThreshold: m.IoUThreshold,
	}, logger)
}
