package report

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/xray-cdss/internal/imaging"
)

type fakeDetector struct {
	findings []Finding
	err      error
	gotConf  float64
}

func (f *fakeDetector) Detect(_ context.Context, _ image.Image, threshold float64) ([]Finding, error) {
	f.gotConf = threshold
	return f.findings, f.err
}

func (f *fakeDetector) Classes() []string { return []string{"pneumonia"} }
func (f *fakeDetector) Close() error      { return nil }

func grayImage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 40
	}
	return img
}

func TestSummary(t *testing.T) {
	r := &Report{}
	assert.Equal(t, "No pneumonia detected at this threshold.", r.Summary())
	assert.False(t, r.Positive())

	r.Findings = []Finding{{}, {}}
	assert.Equal(t, "Findings: 2 opacity regions detected.", r.Summary())
	assert.True(t, r.Positive())
}

func TestCaption(t *testing.T) {
	tests := []struct {
		threshold float64
		want      string
	}{
		{0.25, "Detections at 25% Confidence"},
		{0.10, "Detections at 10% Confidence"},
		{1.0, "Detections at 100% Confidence"},
		{0.333, "Detections at 33% Confidence"},
	}
	for _, tt := range tests {
		r := &Report{Threshold: tt.threshold}
		assert.Equal(t, tt.want, r.Caption())
	}
}

func TestWriteCSV(t *testing.T) {
	r := &Report{Findings: []Finding{
		{Class: "pneumonia", Confidence: 0.875, XMin: 10, YMin: 20.5, XMax: 110, YMax: 220.25},
	}}

	var buf bytes.Buffer
	require.NoError(t, r.WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Class,Confidence,xmin,ymin,xmax,ymax", lines[0])
	assert.Equal(t, "pneumonia,0.875,10,20.5,110,220.25", lines[1])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&Report{}).WriteCSV(&buf))
	assert.Equal(t, "Class,Confidence,xmin,ymin,xmax,ymax\n", buf.String())
}

func TestValidateThreshold(t *testing.T) {
	assert.NoError(t, ValidateThreshold(0.10))
	assert.NoError(t, ValidateThreshold(DefaultThreshold))
	assert.NoError(t, ValidateThreshold(1.0))
	assert.Error(t, ValidateThreshold(0.05))
	assert.Error(t, ValidateThreshold(1.01))
}

func TestOverlay_DrawsFindings(t *testing.T) {
	img := grayImage(100, 100)
	r := &Report{Findings: []Finding{
		{Class: "pneumonia", Confidence: 0.9, XMin: 20, YMin: 30, XMax: 80, YMax: 90},
	}}

	out, err := r.Overlay(img, imaging.DefaultOverlayStyle())
	require.NoError(t, err)

	edge := color.NRGBAModel.Convert(out.At(20, 60)).(color.NRGBA)
	assert.NotEqual(t, edge.R, edge.B, "outline pixel should be colored")

	inside := color.NRGBAModel.Convert(out.At(50, 60)).(color.NRGBA)
	assert.Equal(t, uint8(40), inside.R)
	assert.Equal(t, uint8(40), inside.B)
}

func TestFindingCrop(t *testing.T) {
	img := grayImage(100, 100)
	r := &Report{Findings: []Finding{
		{XMin: 20, YMin: 20, XMax: 40, YMax: 50},
	}}

	crop, err := r.FindingCrop(img, 0, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, 30, crop.Bounds().Dx())
	assert.Equal(t, 40, crop.Bounds().Dy())

	_, err = r.FindingCrop(img, 1, 5, 1)
	assert.Error(t, err)
}

func TestAnalyze(t *testing.T) {
	det := &fakeDetector{findings: []Finding{
		{Class: "pneumonia", Confidence: 0.6, XMin: 1, YMin: 2, XMax: 3, YMax: 4},
	}}
	a := NewAnalyzer(det, nil)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }

	r, err := a.Analyze(context.Background(), grayImage(64, 48), 0.4)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.InDelta(t, 0.4, det.gotConf, 1e-9)
	assert.Equal(t, 64, r.Width)
	assert.Equal(t, 48, r.Height)
	assert.Equal(t, fixed, r.CreatedAt)
	assert.Len(t, r.Findings, 1)
}

func TestAnalyze_NoFindings(t *testing.T) {
	r, err := NewAnalyzer(&fakeDetector{}, nil).Analyze(context.Background(), grayImage(8, 8), DefaultThreshold)
	require.NoError(t, err)
	assert.NotNil(t, r.Findings)
	assert.Empty(t, r.Findings)
	assert.Equal(t, "No pneumonia detected at this threshold.", r.Summary())
}

func TestAnalyze_Errors(t *testing.T) {
	a := NewAnalyzer(&fakeDetector{err: errors.New("boom")}, nil)

	_, err := a.Analyze(context.Background(), grayImage(8, 8), 0.5)
	assert.ErrorContains(t, err, "boom")

	_, err = a.Analyze(context.Background(), grayImage(8, 8), 2)
	assert.Error(t, err)

	_, err = a.Analyze(context.Background(), nil, 0.5)
	assert.Error(t, err)
}
