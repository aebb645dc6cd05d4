package dataset

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LabelClassID is the only class the detector is trained on.
const LabelClassID = 0

// NormalizedLabel is a box expressed as fractions of the image size.
type NormalizedLabel struct {
	ClassID int     `json:"class_id"`
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// NewNormalizedLabel converts a pixel box on an imgW x imgH image.
func NewNormalizedLabel(box PixelBox, imgW, imgH int) NormalizedLabel {
	dw := 1.0 / float64(imgW)
	dh := 1.0 / float64(imgH)
	return NormalizedLabel{
		ClassID: LabelClassID,
		CenterX: (box.X + box.Width/2.0) * dw,
		CenterY: (box.Y + box.Height/2.0) * dh,
		Width:   box.Width * dw,
		Height:  box.Height * dh,
	}
}

// String formats the label as a label-file line without the trailing newline.
func (l NormalizedLabel) String() string {
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f", l.ClassID, l.CenterX, l.CenterY, l.Width, l.Height)
}

// PixelBox maps the label back onto an imgW x imgH image.
func (l NormalizedLabel) PixelBox(imgW, imgH int) PixelBox {
	w := l.Width * float64(imgW)
	h := l.Height * float64(imgH)
	return PixelBox{
		X:      l.CenterX*float64(imgW) - w/2,
		Y:      l.CenterY*float64(imgH) - h/2,
		Width:  w,
		Height: h,
	}
}

// InUnitRange reports whether all four coordinates lie in [0, 1].
func (l NormalizedLabel) InUnitRange() bool {
	for _, v := range []float64{l.CenterX, l.CenterY, l.Width, l.Height} {
		if v < 0 || v > 1 {
			return false
		}
	}
	return true
}

// ParseLabelLine parses one "class cx cy w h" line.
func ParseLabelLine(line string) (NormalizedLabel, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return NormalizedLabel{}, fmt.Errorf("label line has %d fields, want 5", len(fields))
	}

	classID, err := strconv.Atoi(fields[0])
	if err != nil {
		return NormalizedLabel{}, fmt.Errorf("invalid class id %q", fields[0])
	}

	var vals [4]float64
	for i, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return NormalizedLabel{}, fmt.Errorf("invalid coordinate %q", f)
		}
		vals[i] = v
	}

	return NormalizedLabel{
		ClassID: classID,
		CenterX: vals[0],
		CenterY: vals[1],
		Width:   vals[2],
		Height:  vals[3],
	}, nil
}

// FormatLabels renders labels as label-file content, one line each.
func FormatLabels(labels []NormalizedLabel) string {
	var sb strings.Builder
	for _, l := range labels {
		sb.WriteString(l.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ReadLabelFile parses every non-blank line of a label file.
func ReadLabelFile(path string) ([]NormalizedLabel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open label file: %w", err)
	}
	defer f.Close()

	var labels []NormalizedLabel
	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		l, err := ParseLabelLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		labels = append(labels, l)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read label file: %w", err)
	}
	return labels, nil
}
