package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
)

// Partition names used for subdirectories.
const (
	PartitionTrain = "train"
	PartitionVal   = "val"
)

// SplitConfig controls sampling and partitioning.
type SplitConfig struct {
	PositiveCount int
	NegativeCount int
	ValFraction   float64

	// Seed makes sampling reproducible. Zero draws a fresh random seed.
	Seed int64
}

// Validate checks the configured counts and fraction.
func (c SplitConfig) Validate() error {
	if c.PositiveCount < 0 || c.NegativeCount < 0 {
		return fmt.Errorf("sample counts must not be negative (positive=%d, negative=%d)", c.PositiveCount, c.NegativeCount)
	}
	// A fraction of 1 would leave the training partition empty.
	if c.ValFraction < 0 || c.ValFraction >= 1 {
		return fmt.Errorf("valfraction must be in [0, 1), got %v", c.ValFraction)
	}
	return nil
}

// Split is a partition of sampled patient ids.
type Split struct {
	Train []string `json:"train"`
	Val   []string `json:"val"`

	Positives int `json:"positives"`
	Negatives int `json:"negatives"`
}

// Len returns the number of sampled ids.
func (s Split) Len() int {
	return len(s.Train) + len(s.Val)
}

// SplitStats reports what Apply moved.
type SplitStats struct {
	Train       int `json:"train"`
	Val         int `json:"val"`
	ImagesMoved int `json:"images_moved"`
	LabelsMoved int `json:"labels_moved"`
}

// Splitter samples patients and moves their files into train/val folders.
type Splitter struct {
	cfg      SplitConfig
	imageDir string
	labelDir string
	rng      *rand.Rand
	log      *slog.Logger
}

// NewSplitter returns a splitter operating on the flat image and label
// directories written by the converter. logger may be nil.
func NewSplitter(cfg SplitConfig, imageDir, labelDir string, logger *slog.Logger) (*Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	seed := uint64(cfg.Seed)
	if cfg.Seed == 0 {
		seed = rand.Uint64()
	}

	return &Splitter{
		cfg:      cfg,
		imageDir: imageDir,
		labelDir: labelDir,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		log:      logger.With("module", "splitter"),
	}, nil
}

// Plan draws the sample and partitions it.
//
// Positive and negative ids are shuffled independently and truncated to
// their caps; fewer available ids than requested is not an error. The
// combined sample is shuffled again and cut at floor(n*(1-ValFraction)).
func (s *Splitter) Plan(groups []PatientGroup) Split {
	var positives, negatives []string
	seen := make(map[string]bool, len(groups))
	for _, g := range groups {
		if seen[g.PatientID] {
			continue
		}
		seen[g.PatientID] = true
		if g.Positive() {
			positives = append(positives, g.PatientID)
		} else {
			negatives = append(negatives, g.PatientID)
		}
	}
	s.log.Info("found cases", "positive", len(positives), "negative", len(negatives))

	s.shuffle(positives)
	s.shuffle(negatives)
	positives = positives[:min(len(positives), s.cfg.PositiveCount)]
	negatives = negatives[:min(len(negatives), s.cfg.NegativeCount)]
	s.log.Info("using samples", "positive", len(positives), "negative", len(negatives))

	sample := make([]string, 0, len(positives)+len(negatives))
	sample = append(sample, positives...)
	sample = append(sample, negatives...)
	s.shuffle(sample)

	cut := int(float64(len(sample)) * (1 - s.cfg.ValFraction))
	split := Split{
		Train:     sample[:cut],
		Val:       sample[cut:],
		Positives: len(positives),
		Negatives: len(negatives),
	}
	s.log.Info("split planned", "total", split.Len(), "train", len(split.Train), "val", len(split.Val))
	return split
}

func (s *Splitter) shuffle(ids []string) {
	s.rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
}

// Apply moves each sampled patient's image and, when present, label file
// into the partition subdirectories. Missing files are skipped; files of
// unsampled patients stay where they are.
func (s *Splitter) Apply(split Split) (*SplitStats, error) {
	for _, part := range []string{PartitionTrain, PartitionVal} {
		for _, dir := range []string{s.imageDir, s.labelDir} {
			if err := os.MkdirAll(filepath.Join(dir, part), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create partition directory: %w", err)
			}
		}
	}

	stats := &SplitStats{Train: len(split.Train), Val: len(split.Val)}
	for _, p := range []struct {
		name string
		ids  []string
	}{
		{PartitionTrain, split.Train},
		{PartitionVal, split.Val},
	} {
		for _, id := range p.ids {
			moved, err := moveIfExists(s.imageDir, p.name, id+".png")
			if err != nil {
				return stats, err
			}
			if moved {
				stats.ImagesMoved++
			}

			moved, err = moveIfExists(s.labelDir, p.name, id+".txt")
			if err != nil {
				return stats, err
			}
			if moved {
				stats.LabelsMoved++
			}
		}
		s.log.Debug("moved partition", "partition", p.name, "ids", len(p.ids))
	}

	s.log.Info("dataset split complete",
		"train", stats.Train, "val", stats.Val,
		"images_moved", stats.ImagesMoved, "labels_moved", stats.LabelsMoved)
	return stats, nil
}

// moveIfExists renames dir/name to dir/part/name.
func moveIfExists(dir, part, name string) (bool, error) {
	src := filepath.Join(dir, name)
	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := os.Rename(src, filepath.Join(dir, part, name)); err != nil {
		return false, fmt.Errorf("failed to move %s: %w", name, err)
	}
	return true, nil
}
