package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ironsheep/xray-cdss/internal/config"
)

// BuildInfo is stamped in by the linker.
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// viperKeyAnnotation marks a flag with the config key it overrides.
const viperKeyAnnotation = "viper-key"

// app carries state shared by all commands of one invocation.
type app struct {
	info     BuildInfo
	v        *viper.Viper
	cfgFile  string
	settings *config.Settings
	log      *slog.Logger
	stderr   io.Writer
}

// NewRootCommand builds the command tree. Logs are written to stderr so
// stdout stays usable for results and MCP traffic.
func NewRootCommand(info BuildInfo, stderr io.Writer) *cobra.Command {
	a := &app{info: info, v: config.New(), stderr: stderr}

	root := &cobra.Command{
		Use:   "xray-cdss",
		Short: "Pneumonia detection decision support and dataset tooling for chest X-rays",
		Long: `xray-cdss prepares annotated DICOM chest radiographs for detector
training and runs a trained detector to report pneumonia opacity regions.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file (default searches ./config.yaml, ~/.config/xray-cdss, /etc/xray-cdss)")
	pf.BoolP("debug", "d", false, "enable debug logging")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	bindFlag(pf, "debug", "debug")
	bindFlag(pf, "log-level", "log.level")
	bindFlag(pf, "log-format", "log.format")

	root.AddCommand(
		a.convertCommand(),
		a.splitCommand(),
		a.predictCommand(),
		a.serveCommand(),
		a.serveHTTPCommand(),
		a.inspectCommand(),
		a.versionCommand(),
	)
	return root
}

// setup binds the running command's flags, loads settings and builds the
// logger.
func (a *app) setup(cmd *cobra.Command) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys, ok := f.Annotations[viperKeyAnnotation]
		if !ok || bindErr != nil {
			return
		}
		bindErr = a.v.BindPFlag(keys[0], f)
	})
	if bindErr != nil {
		return fmt.Errorf("error binding flags: %w", bindErr)
	}

	settings, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.settings = settings
	a.log = config.NewLogger(settings, a.stderr)

	if used := a.v.ConfigFileUsed(); used != "" {
		a.log.Debug("loaded config", "path", used)
	}
	return nil
}

// bindFlag records that flag name overrides config key.
func bindFlag(fs *pflag.FlagSet, name, key string) {
	_ = fs.SetAnnotation(name, viperKeyAnnotation, []string{key})
}
