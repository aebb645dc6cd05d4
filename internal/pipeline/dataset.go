package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/ironsheep/xray-cdss/internal/config"
	"github.com/ironsheep/xray-cdss/internal/dataset"
	"github.com/ironsheep/xray-cdss/internal/ocr"
	"github.com/ironsheep/xray-cdss/internal/radiograph"
)

// Convert reads the annotation CSV and writes normalized images and label
// files for every patient whose source radiograph exists.
func Convert(ctx context.Context, ds config.DatasetSettings, logger *slog.Logger) (*dataset.ConvertStats, error) {
	groups, err := dataset.LoadPatientGroups(ds.Annotations, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded annotations", "path", ds.Annotations, "patients", len(groups))

	opts := []dataset.ConverterOption{dataset.WithLogger(logger)}
	if ds.ScreenText {
		opts = append(opts, dataset.WithTextScanner(ocr.NewScreener(ds.OCRLanguage)))
	}

	conv := dataset.NewConverter(dataset.ConvertConfig{
		SourceDir: ds.SourceDir,
		SourceExt: ds.SourceExt,
		ImageDir:  ds.ImageDir,
		LabelDir:  ds.LabelDir,
		Workers:   ds.Workers,
	}, radiograph.NewDICOMDecoder(), opts...)

	return conv.Run(ctx, groups)
}

// SplitResult reports what Split did.
type SplitResult struct {
	Positives int                 `json:"positives"`
	Negatives int                 `json:"negatives"`
	Stats     *dataset.SplitStats `json:"stats"`

	// DataYAML is the descriptor path, empty when none was written.
	DataYAML string `json:"data_yaml,omitempty"`
}

// Split samples patients from the annotation CSV, moves their files into
// train/val partitions and writes the dataset descriptor.
func Split(ds config.DatasetSettings, ss config.SplitSettings, classes []string, logger *slog.Logger) (*SplitResult, error) {
	groups, err := dataset.LoadPatientGroups(ds.Annotations, logger)
	if err != nil {
		return nil, err
	}

	splitter, err := dataset.NewSplitter(dataset.SplitConfig{
		PositiveCount: ss.PositiveCount,
		NegativeCount: ss.NegativeCount,
		ValFraction:   ss.ValFraction,
		Seed:          ss.Seed,
	}, ds.ImageDir, ds.LabelDir, logger)
	if err != nil {
		return nil, err
	}

	plan := splitter.Plan(groups)
	stats, err := splitter.Apply(plan)
	if err != nil {
		return nil, err
	}

	res := &SplitResult{Positives: plan.Positives, Negatives: plan.Negatives, Stats: stats}
	if ss.DataYAML == "" {
		return res, nil
	}

	root := filepath.Dir(filepath.Clean(ds.ImageDir))
	desc, err := dataset.NewDataYAML(root, ds.ImageDir, classes)
	if err != nil {
		return nil, err
	}
	if err := dataset.WriteDataYAML(ss.DataYAML, desc); err != nil {
		return nil, fmt.Errorf("split done but descriptor not written: %w", err)
	}
	res.DataYAML = ss.DataYAML
	logger.Info("wrote dataset descriptor", "path", ss.DataYAML)
	return res, nil
}
