package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrAnnotationsNotFound is returned when the annotation table does not exist.
var ErrAnnotationsNotFound = errors.New("annotation table not found")

// Column names of the annotation table.
const (
	ColPatientID = "patientId"
	ColTarget    = "Target"
	ColX         = "x"
	ColY         = "y"
	ColWidth     = "width"
	ColHeight    = "height"
)

// PixelBox is an axis-aligned box in source pixel coordinates.
// (X, Y) is the top-left corner.
type PixelBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// AnnotationRecord is one row of the annotation table. Box is nil when any of
// the four box columns is empty, which is the norm for Target=0 rows.
type AnnotationRecord struct {
	PatientID string
	Target    int
	Box       *PixelBox
}

// PatientGroup gathers every row that shares a patient id.
type PatientGroup struct {
	PatientID string
	Target    int
	Boxes     []PixelBox
}

// Positive reports whether the patient has at least one annotated finding.
func (g PatientGroup) Positive() bool {
	return g.Target == 1
}

// ReadAnnotations loads the annotation table at path.
//
// Columns are located by header name, so extra columns and any column order
// are accepted. Box values that are empty or "nan" leave Box nil.
func ReadAnnotations(path string) ([]AnnotationRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			abs, _ := filepath.Abs(path)
			return nil, fmt.Errorf("%w: %s", ErrAnnotationsNotFound, abs)
		}
		return nil, fmt.Errorf("failed to open annotations: %w", err)
	}
	defer f.Close()

	return ParseAnnotations(f)
}

// ParseAnnotations reads an annotation table from r.
func ParseAnnotations(r io.Reader) ([]AnnotationRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read annotation header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, required := range []string{ColPatientID, ColTarget} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("annotation table is missing column %q", required)
		}
	}

	var records []AnnotationRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read annotations line %d: %w", line, err)
		}

		rec, err := parseRecord(row, cols)
		if err != nil {
			return nil, fmt.Errorf("annotations line %d: %w", line, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

func parseRecord(row []string, cols map[string]int) (AnnotationRecord, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rec := AnnotationRecord{PatientID: field(ColPatientID)}
	if rec.PatientID == "" {
		return rec, errors.New("empty patientId")
	}

	target, err := strconv.ParseFloat(field(ColTarget), 64)
	if err != nil {
		return rec, fmt.Errorf("invalid Target %q", field(ColTarget))
	}
	switch target {
	case 0, 1:
		rec.Target = int(target)
	default:
		return rec, fmt.Errorf("Target must be 0 or 1, got %v", target)
	}

	var vals [4]float64
	for i, name := range []string{ColX, ColY, ColWidth, ColHeight} {
		v, ok := parseOptional(field(name))
		if !ok {
			return rec, nil
		}
		vals[i] = v
	}
	rec.Box = &PixelBox{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}
	return rec, nil
}

// parseOptional treats empty cells and NaN as absent.
func parseOptional(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// GroupByPatient collects records per patient id, sorted by id.
//
// Every row of a patient must carry the same Target. Patients whose rows
// disagree are left out of the groups and returned, sorted, as conflicts.
// Rows without a box contribute nothing to Boxes.
func GroupByPatient(records []AnnotationRecord) (groups []PatientGroup, conflicts []string) {
	index := make(map[string]int)
	conflicting := make(map[string]bool)

	for _, rec := range records {
		i, ok := index[rec.PatientID]
		if !ok {
			i = len(groups)
			index[rec.PatientID] = i
			groups = append(groups, PatientGroup{PatientID: rec.PatientID, Target: rec.Target})
		}
		g := &groups[i]
		if g.Target != rec.Target {
			conflicting[rec.PatientID] = true
			continue
		}
		if rec.Box != nil {
			g.Boxes = append(g.Boxes, *rec.Box)
		}
	}

	kept := groups[:0]
	for _, g := range groups {
		if conflicting[g.PatientID] {
			conflicts = append(conflicts, g.PatientID)
			continue
		}
		kept = append(kept, g)
	}

	sort.Slice(kept, func(a, b int) bool {
		return kept[a].PatientID < kept[b].PatientID
	})
	sort.Strings(conflicts)
	return kept, conflicts
}

// LoadPatientGroups reads and groups the annotation table in one step.
// Patients with conflicting Target values are logged and skipped.
func LoadPatientGroups(path string, logger *slog.Logger) ([]PatientGroup, error) {
	if logger == nil {
		logger = slog.Default()
	}
	records, err := ReadAnnotations(path)
	if err != nil {
		return nil, err
	}
	groups, conflicts := GroupByPatient(records)
	for _, id := range conflicts {
		logger.Warn("skipping patient with conflicting Target values", "patient_id", id)
	}
	return groups, nil
}
