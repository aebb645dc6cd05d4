package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ironsheep/xray-cdss/internal/httpapi"
	"github.com/ironsheep/xray-cdss/internal/pipeline"
	"github.com/ironsheep/xray-cdss/internal/report"
	"github.com/ironsheep/xray-cdss/internal/server"
)

func (a *app) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdin/stdout",
		Long: `Speaks MCP (JSON-RPC 2.0, one message per line) on stdin/stdout and exposes
the dataset and detection tools. The detector is loaded on first use, so the
dataset tools work without a model. Configure it in your MCP client.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.info.Version != "" {
				server.Version = a.info.Version
			}
			srv := server.New(a.settings, a.log,
				server.WithIO(cmd.InOrStdin(), cmd.OutOrStdout()))
			defer srv.Close()

			a.log.Debug("starting MCP server", "version", server.Version)
			return srv.Run(cmd.Context())
		},
	}
	addModelFlags(cmd.Flags())
	return cmd
}

func (a *app) serveHTTPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-http",
		Short: "Run the detection HTTP API",
		Long: `Serves POST /v1/detect plus report, CSV and overlay downloads for recent
results, a health probe and Prometheus metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := report.ValidateThreshold(a.settings.Model.Threshold); err != nil {
				return err
			}

			det, err := pipeline.OpenDetector(cmd.Context(), a.settings.Model, a.log)
			if err != nil {
				return modelHint(err)
			}
			defer det.Close()

			h := a.settings.HTTP
			srv, err := httpapi.New(report.NewAnalyzer(det, a.log), httpapi.Options{
				ReportTTL:        h.ReportTTL,
				MaxUploadBytes:   h.MaxUploadBytes,
				DefaultThreshold: a.settings.Model.Threshold,
			}, a.log)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(cmd.Context(), h.Listen)
		},
	}

	fs := cmd.Flags()
	addModelFlags(fs)
	fs.StringP("listen", "l", ":8080", "listen address")
	fs.Duration("report-ttl", 30*time.Minute, "how long reports stay retrievable")
	bindFlag(fs, "listen", "http.listen")
	bindFlag(fs, "report-ttl", "http.reportttl")
	return cmd
}
