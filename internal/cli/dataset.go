package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ironsheep/xray-cdss/internal/dataset"
	"github.com/ironsheep/xray-cdss/internal/pipeline"
)

func addDatasetFlags(fs *pflag.FlagSet) {
	fs.String("annotations", "Train_Labels.csv", "annotation CSV (patientId, x, y, width, height, Target)")
	fs.String("image-dir", "dataset/images/", "directory for normalized PNG images")
	fs.String("label-dir", "dataset/labels/", "directory for label files")
	bindFlag(fs, "annotations", "dataset.annotations")
	bindFlag(fs, "image-dir", "dataset.imagedir")
	bindFlag(fs, "label-dir", "dataset.labeldir")
}

func (a *app) convertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert annotated DICOM radiographs to PNG images and YOLO labels",
		Long: `Reads the annotation CSV, decodes <source-dir>/<patientId>.dcm for every
patient, and writes a normalized 8-bit PNG plus, for positive patients, one
label line per bounding box. Patients without a source file are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := pipeline.Convert(cmd.Context(), a.settings.Dataset, a.log)
			if err != nil {
				return annotationsHint(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Patients:  %d\n", stats.Patients)
			fmt.Fprintf(out, "Converted: %d\n", stats.Found)
			fmt.Fprintf(out, "Labels:    %d (%d boxes)\n", stats.Labels, stats.Boxes)
			if len(stats.Failed) > 0 {
				fmt.Fprintf(out, "Failed:    %d\n", len(stats.Failed))
			}
			if len(stats.TextFlagged) > 0 {
				fmt.Fprintf(out, "Burned-in text flagged: %v\n", stats.TextFlagged)
			}
			return nil
		},
	}

	fs := cmd.Flags()
	addDatasetFlags(fs)
	fs.String("source-dir", "src/Train_Images/", "directory of <patientId>.dcm files")
	fs.String("source-ext", ".dcm", "source file extension")
	fs.IntP("workers", "j", 1, "patients converted concurrently")
	fs.Bool("screen-text", false, "flag images with burned-in text (requires Tesseract)")
	fs.String("ocr-lang", "eng", "Tesseract language for text screening")
	bindFlag(fs, "source-dir", "dataset.sourcedir")
	bindFlag(fs, "source-ext", "dataset.sourceext")
	bindFlag(fs, "workers", "dataset.workers")
	bindFlag(fs, "screen-text", "dataset.screentext")
	bindFlag(fs, "ocr-lang", "dataset.ocrlanguage")
	return cmd
}

func (a *app) splitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Sample positives and negatives and move them into train/val folders",
		Long: `Shuffles the positive and negative patients independently, keeps up to
--positive and --negative of each, shuffles the combined sample and moves the
first (1 - val-fraction) share into train/ and the rest into val/. A data.yaml
descriptor for the trainer is written afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := pipeline.Split(a.settings.Dataset, a.settings.Split, a.settings.Model.Classes, a.log)
			if err != nil {
				return annotationsHint(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Sampled:  %d positive, %d negative\n", res.Positives, res.Negatives)
			fmt.Fprintf(out, "Train:    %d\n", res.Stats.Train)
			fmt.Fprintf(out, "Val:      %d\n", res.Stats.Val)
			fmt.Fprintf(out, "Moved:    %d images, %d labels\n", res.Stats.ImagesMoved, res.Stats.LabelsMoved)
			if res.DataYAML != "" {
				fmt.Fprintf(out, "Dataset:  %s\n", res.DataYAML)
			}
			return nil
		},
	}

	fs := cmd.Flags()
	addDatasetFlags(fs)
	fs.Int("positive", 500, "maximum positive patients")
	fs.Int("negative", 500, "maximum negative patients")
	fs.Float64("val-fraction", 0.2, "fraction of the sample used for validation")
	fs.Int64("seed", 0, "random seed; 0 draws a fresh seed")
	fs.String("data-yaml", "dataset/data.yaml", "dataset descriptor path; empty skips it")
	bindFlag(fs, "positive", "split.positivecount")
	bindFlag(fs, "negative", "split.negativecount")
	bindFlag(fs, "val-fraction", "split.valfraction")
	bindFlag(fs, "seed", "split.seed")
	bindFlag(fs, "data-yaml", "split.datayaml")
	return cmd
}

// annotationsHint adds a pointer for the most common setup mistake.
func annotationsHint(err error) error {
	if errors.Is(err, dataset.ErrAnnotationsNotFound) {
		return fmt.Errorf("%w\nmake sure the annotation CSV exists or pass --annotations", err)
	}
	return err
}
