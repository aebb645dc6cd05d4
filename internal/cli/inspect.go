package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ironsheep/xray-cdss/internal/imaging"
	"github.com/ironsheep/xray-cdss/internal/pipeline"
)

func (a *app) inspectCommand() *cobra.Command {
	var overlayPath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect IMAGE LABEL",
		Short: "Map a YOLO label file back to pixel boxes on its image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache := imaging.NewImageCache()
			li, err := pipeline.InspectLabels(cache, args[0], args[1])
			if err != nil {
				return err
			}

			if overlayPath != "" {
				img, err := li.Overlay(cache)
				if err != nil {
					return err
				}
				if err := imaging.SavePNG(overlayPath, img); err != nil {
					return err
				}
				a.log.Info("wrote overlay", "path", overlayPath)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(li)
			}

			fmt.Fprintf(out, "%s (%dx%d): %d boxes\n", li.ImagePath, li.Width, li.Height, len(li.Labels))
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tX\tY\tWIDTH\tHEIGHT\tOK")
			for i, l := range li.Labels {
				fmt.Fprintf(tw, "%d\t%.1f\t%.1f\t%.1f\t%.1f\t%t\n", i+1, l.Box.X, l.Box.Y, l.Box.Width, l.Box.Height, l.InRange)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&overlayPath, "overlay", "", "write the image with label boxes to this PNG path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the inspection as JSON")
	return cmd
}
