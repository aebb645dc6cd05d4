package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ironsheep/xray-cdss/internal/dataset"
	"github.com/ironsheep/xray-cdss/internal/report"
)

// EnvPrefix prefixes every environment override, e.g. XRAY_CDSS_MODEL_PATH.
const EnvPrefix = "XRAY_CDSS"

// Settings is the full application configuration.
type Settings struct {
	Debug bool `mapstructure:"debug"`

	Log     LogSettings     `mapstructure:"log"`
	Dataset DatasetSettings `mapstructure:"dataset"`
	Split   SplitSettings   `mapstructure:"split"`
	Model   ModelSettings   `mapstructure:"model"`
	HTTP    HTTPSettings    `mapstructure:"http"`
}

// LogSettings selects log verbosity and format.
type LogSettings struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text or json
}

// DatasetSettings drives the converter.
type DatasetSettings struct {
	Annotations string `mapstructure:"annotations"` // annotation CSV
	SourceDir   string `mapstructure:"sourcedir"`   // DICOM directory
	SourceExt   string `mapstructure:"sourceext"`
	ImageDir    string `mapstructure:"imagedir"`
	LabelDir    string `mapstructure:"labeldir"`
	Workers     int    `mapstructure:"workers"`

	ScreenText  bool   `mapstructure:"screentext"` // OCR burned-in text check
	OCRLanguage string `mapstructure:"ocrlanguage"`
}

// SplitSettings drives the sampler/splitter.
type SplitSettings struct {
	PositiveCount int     `mapstructure:"positivecount"`
	NegativeCount int     `mapstructure:"negativecount"`
	ValFraction   float64 `mapstructure:"valfraction"`
	Seed          int64   `mapstructure:"seed"` // 0 seeds from the clock
	DataYAML      string  `mapstructure:"datayaml"`
}

// ModelSettings configures the detector and how it is obtained.
type ModelSettings struct {
	Path     string `mapstructure:"path"`
	URL      string `mapstructure:"url"`
	CacheDir string `mapstructure:"cachedir"`
	SHA256   string `mapstructure:"sha256"`

	LibraryPath  string   `mapstructure:"librarypath"` // onnxruntime shared library
	InputSize    int      `mapstructure:"inputsize"`
	Classes      []string `mapstructure:"classes"`
	IoUThreshold float64  `mapstructure:"iouthreshold"`
	Threshold    float64  `mapstructure:"threshold"`
}

// HTTPSettings configures the HTTP API.
type HTTPSettings struct {
	Listen         string        `mapstructure:"listen"`
	ReportTTL      time.Duration `mapstructure:"reportttl"`
	MaxUploadBytes int64         `mapstructure:"maxuploadbytes"`
}

// New returns a viper instance with defaults, config search paths and
// environment overrides registered. Call Load to read it.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range DefaultConfigPaths() {
		v.AddConfigPath(p)
	}
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// DefaultConfigPaths lists the directories searched for config.yaml.
func DefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "xray-cdss"))
	}
	return append(paths, "/etc/xray-cdss")
}

// Load reads the config file (if any) and unmarshals v into Settings.
// An explicit file that does not exist is an error; a missing file in the
// search paths is not.
func Load(v *viper.Viper, file string) (*Settings, error) {
	if file != "" {
		v.SetConfigFile(file)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

// Validate checks value ranges that would otherwise fail late.
func (s *Settings) Validate() error {
	var errs []error
	if s.Dataset.Workers < 0 {
		errs = append(errs, fmt.Errorf("dataset.workers must be >= 0, got %d", s.Dataset.Workers))
	}
	split := dataset.SplitConfig{
		PositiveCount: s.Split.PositiveCount,
		NegativeCount: s.Split.NegativeCount,
		ValFraction:   s.Split.ValFraction,
	}
	if err := split.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("split: %w", err))
	}
	if err := report.ValidateThreshold(s.Model.Threshold); err != nil {
		errs = append(errs, fmt.Errorf("model: %w", err))
	}
	if s.Model.IoUThreshold < 0 || s.Model.IoUThreshold > 1 {
		errs = append(errs, fmt.Errorf("model.iouthreshold must be in [0, 1], got %v", s.Model.IoUThreshold))
	}
	if s.Model.InputSize%32 != 0 {
		errs = append(errs, fmt.Errorf("model.inputsize must be a multiple of 32, got %d", s.Model.InputSize))
	}
	switch strings.ToLower(s.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", s.Log.Format))
	}
	return errors.Join(errs...)
}
