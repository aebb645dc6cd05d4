package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DataYAML is the dataset descriptor consumed by the detector's trainer.
type DataYAML struct {
	Path  string         `yaml:"path"`
	Train string         `yaml:"train"`
	Val   string         `yaml:"val"`
	Names map[int]string `yaml:"names"`
}

// NewDataYAML describes a dataset rooted at root whose images live under
// imageDir. Paths inside the descriptor are relative to root.
func NewDataYAML(root, imageDir string, classes []string) (*DataYAML, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dataset root: %w", err)
	}
	absImages, err := filepath.Abs(imageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve image directory: %w", err)
	}
	rel, err := filepath.Rel(absRoot, absImages)
	if err != nil {
		return nil, fmt.Errorf("image directory is not under dataset root: %w", err)
	}

	names := make(map[int]string, len(classes))
	for i, c := range classes {
		names[i] = c
	}

	return &DataYAML{
		Path:  absRoot,
		Train: filepath.ToSlash(filepath.Join(rel, PartitionTrain)),
		Val:   filepath.ToSlash(filepath.Join(rel, PartitionVal)),
		Names: names,
	}, nil
}

// WriteDataYAML writes d to path.
func WriteDataYAML(path string, d *DataYAML) error {
	out, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode dataset descriptor: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write dataset descriptor: %w", err)
	}
	return nil
}

// ReadDataYAML loads a descriptor written by WriteDataYAML.
func ReadDataYAML(path string) (*DataYAML, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset descriptor: %w", err)
	}
	var d DataYAML
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to decode dataset descriptor: %w", err)
	}
	return &d, nil
}
