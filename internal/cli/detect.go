package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ironsheep/xray-cdss/internal/detection"
	"github.com/ironsheep/xray-cdss/internal/imaging"
	"github.com/ironsheep/xray-cdss/internal/pipeline"
	"github.com/ironsheep/xray-cdss/internal/report"
)

func addModelFlags(fs *pflag.FlagSet) {
	fs.StringP("model", "m", "best.onnx", "path to the exported ONNX detector")
	fs.String("model-url", "", "download the model from this URL instead of using --model")
	fs.String("model-sha256", "", "expected SHA-256 of the downloaded model")
	fs.String("ort-lib", "", "path to the onnxruntime shared library")
	fs.Float64("conf", report.DefaultThreshold, "confidence threshold (0.10 to 1.0)")
	bindFlag(fs, "model", "model.path")
	bindFlag(fs, "model-url", "model.url")
	bindFlag(fs, "model-sha256", "model.sha256")
	bindFlag(fs, "ort-lib", "model.librarypath")
	bindFlag(fs, "conf", "model.threshold")
}

// modelHint adds a pointer when the detector cannot be found.
func modelHint(err error) error {
	if errors.Is(err, detection.ErrModelNotFound) {
		return fmt.Errorf("%w\nset --model, --model-url or model.path in config.yaml", err)
	}
	return err
}

func (a *app) predictCommand() *cobra.Command {
	var overlayPath, csvPath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "predict IMAGE",
		Short: "Detect pneumonia opacity regions in a chest X-ray",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold := a.settings.Model.Threshold
			if err := report.ValidateThreshold(threshold); err != nil {
				return err
			}

			img, err := imaging.NewImageCache().Load(args[0])
			if err != nil {
				return err
			}

			det, err := pipeline.OpenDetector(cmd.Context(), a.settings.Model, a.log)
			if err != nil {
				return modelHint(err)
			}
			defer det.Close()

			r, err := report.NewAnalyzer(det, a.log).Analyze(cmd.Context(), img, threshold)
			if err != nil {
				return err
			}

			if overlayPath != "" {
				overlay, err := r.Overlay(img, imaging.DefaultOverlayStyle())
				if err != nil {
					return err
				}
				if err := imaging.SavePNG(overlayPath, overlay); err != nil {
					return err
				}
			}
			if csvPath != "" {
				if err := writeCSVFile(csvPath, r); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}
			printReport(out, r)
			return nil
		},
	}

	fs := cmd.Flags()
	addModelFlags(fs)
	fs.StringVar(&overlayPath, "overlay", "", "write the annotated image to this PNG path")
	fs.StringVar(&csvPath, "csv", "", "write the findings CSV to this path")
	fs.BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func writeCSVFile(path string, r *report.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := r.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printReport(w io.Writer, r *report.Report) {
	fmt.Fprintln(w, r.Caption())
	fmt.Fprintln(w, r.Summary())
	if !r.Positive() {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLASS\tCONFIDENCE\tXMIN\tYMIN\tXMAX\tYMAX")
	for _, f := range r.Findings {
		fmt.Fprintf(tw, "%s\t%.3f\t%.1f\t%.1f\t%.1f\t%.1f\n", f.Class, f.Confidence, f.XMin, f.YMin, f.XMax, f.YMax)
	}
	tw.Flush()
}
