package dataset

import (
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type convertFixture struct {
	root    string
	cfg     ConvertConfig
	decoder *fakeDecoder
}

func newConvertFixture(t *testing.T) *convertFixture {
	t.Helper()
	root := t.TempDir()
	return &convertFixture{
		root: root,
		cfg: ConvertConfig{
			SourceDir: filepath.Join(root, "src"),
			ImageDir:  filepath.Join(root, "dataset", "images"),
			LabelDir:  filepath.Join(root, "dataset", "labels"),
		},
		decoder: newFakeDecoder(),
	}
}

func (f *convertFixture) converter(opts ...ConverterOption) *Converter {
	opts = append([]ConverterOption{WithLogger(discardLogger())}, opts...)
	return NewConverter(f.cfg, f.decoder, opts...)
}

func TestConverter_WritesImagesAndLabels(t *testing.T) {
	f := newConvertFixture(t)
	touch(t, f.cfg.SourceDir, "pos", "neg")
	f.decoder.images["pos"] = gradient(200, 100)
	f.decoder.images["neg"] = gradient(50, 50)

	groups := []PatientGroup{
		{PatientID: "neg", Target: 0},
		{PatientID: "pos", Target: 1, Boxes: []PixelBox{
			{X: 10, Y: 10, Width: 50, Height: 20},
			{X: 100, Y: 40, Width: 80, Height: 60},
		}},
	}

	stats, err := f.converter().Run(context.Background(), groups)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Patients)
	assert.Equal(t, 2, stats.Found)
	assert.Equal(t, 1, stats.Labels)
	assert.Equal(t, 2, stats.Boxes)
	assert.Empty(t, stats.Failed)

	assert.True(t, fileExists(filepath.Join(f.cfg.ImageDir, "pos.png")))
	assert.True(t, fileExists(filepath.Join(f.cfg.ImageDir, "neg.png")))
	assert.False(t, fileExists(filepath.Join(f.cfg.LabelDir, "neg.txt")), "negative patients get no label file")

	labels, err := ReadLabelFile(filepath.Join(f.cfg.LabelDir, "pos.txt"))
	require.NoError(t, err)
	require.Len(t, labels, 2)
	for _, l := range labels {
		assert.Equal(t, 0, l.ClassID)
		assert.True(t, l.InUnitRange(), "label %v", l)
	}
	// Fractions are relative to the decoded 200x100 image.
	assert.InDelta(t, 35.0/200, labels[0].CenterX, 1e-6)
	assert.InDelta(t, 20.0/100, labels[0].CenterY, 1e-6)
}

func TestConverter_ImageIsNormalized(t *testing.T) {
	f := newConvertFixture(t)
	touch(t, f.cfg.SourceDir, "p")
	f.decoder.images["p"] = gradient(16, 16)

	_, err := f.converter().Run(context.Background(), []PatientGroup{{PatientID: "p"}})
	require.NoError(t, err)

	file, err := os.Open(filepath.Join(f.cfg.ImageDir, "p.png"))
	require.NoError(t, err)
	defer file.Close()
	img, err := png.Decode(file)
	require.NoError(t, err)

	assert.Equal(t, 16, img.Bounds().Dx())
	r, _, _, _ := img.At(15, 15).RGBA()
	assert.Equal(t, uint32(255), r>>8, "brightest pixel maps to 255")
	r, _, _, _ = img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0), r>>8)
}

func TestConverter_MissingSourceIsSilentlySkipped(t *testing.T) {
	f := newConvertFixture(t)
	touch(t, f.cfg.SourceDir, "present")
	f.decoder.images["present"] = gradient(10, 10)

	stats, err := f.converter().Run(context.Background(), []PatientGroup{
		{PatientID: "absent", Target: 1, Boxes: []PixelBox{{X: 1, Y: 1, Width: 2, Height: 2}}},
		{PatientID: "present", Target: 0},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Found)
	assert.Equal(t, 1, stats.Missing)
	assert.Empty(t, stats.Failed)
	assert.Equal(t, 1, f.decoder.calls, "absent sources are never decoded")
	assert.False(t, fileExists(filepath.Join(f.cfg.LabelDir, "absent.txt")))
}

func TestConverter_DecodeFailureContinues(t *testing.T) {
	f := newConvertFixture(t)
	touch(t, f.cfg.SourceDir, "bad", "good")
	f.decoder.fail["bad"] = true
	f.decoder.images["good"] = gradient(10, 10)

	stats, err := f.converter().Run(context.Background(), []PatientGroup{
		{PatientID: "bad", Target: 1, Boxes: []PixelBox{{X: 1, Y: 1, Width: 2, Height: 2}}},
		{PatientID: "good", Target: 0},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"bad"}, stats.Failed)
	assert.Equal(t, 1, stats.Found)
	assert.True(t, fileExists(filepath.Join(f.cfg.ImageDir, "good.png")))
	assert.False(t, fileExists(filepath.Join(f.cfg.ImageDir, "bad.png")))
}

func TestConverter_ZeroFound(t *testing.T) {
	f := newConvertFixture(t)

	stats, err := f.converter().Run(context.Background(), []PatientGroup{{PatientID: "a"}, {PatientID: "b"}})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Patients)
	assert.Equal(t, 0, stats.Found)
	assert.Equal(t, 2, stats.Missing)
}

func TestConverter_PositiveWithoutBoxesWritesEmptyLabelFile(t *testing.T) {
	f := newConvertFixture(t)
	touch(t, f.cfg.SourceDir, "p")
	f.decoder.images["p"] = gradient(10, 10)

	stats, err := f.converter().Run(context.Background(), []PatientGroup{{PatientID: "p", Target: 1}})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Labels)

	data, err := os.ReadFile(filepath.Join(f.cfg.LabelDir, "p.txt"))
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestConverter_Parallel(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newConvertFixture(t)
	f.cfg.Workers = 4

	var groups []PatientGroup
	for i := 0; i < 24; i++ {
		id := "patient-" + string(rune('a'+i))
		groups = append(groups, PatientGroup{PatientID: id, Target: i % 2, Boxes: boxesFor(i)})
		if i%6 == 5 {
			continue // leave a few sources missing
		}
		touch(t, f.cfg.SourceDir, id)
		f.decoder.images[id] = gradient(32, 32)
	}
	f.decoder.fail["patient-c"] = true

	stats, err := f.converter().Run(context.Background(), groups)
	require.NoError(t, err)

	assert.Equal(t, 24, stats.Patients)
	assert.Equal(t, 4, stats.Missing)
	assert.Equal(t, []string{"patient-c"}, stats.Failed)
	assert.Equal(t, 19, stats.Found)

	entries, err := os.ReadDir(f.cfg.ImageDir)
	require.NoError(t, err)
	assert.Len(t, entries, 19)
}

func boxesFor(i int) []PixelBox {
	if i%2 == 0 {
		return nil
	}
	return []PixelBox{{X: 1, Y: 1, Width: 4, Height: 4}}
}

func TestConverter_CancelledContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	for _, workers := range []int{1, 4} {
		f := newConvertFixture(t)
		f.cfg.Workers = workers
		touch(t, f.cfg.SourceDir, "a")
		f.decoder.images["a"] = gradient(4, 4)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.converter().Run(ctx, []PatientGroup{{PatientID: "a"}})
		assert.True(t, errors.Is(err, context.Canceled), "workers=%d: got %v", workers, err)
	}
}

func TestConverter_TextScreening(t *testing.T) {
	f := newConvertFixture(t)
	touch(t, f.cfg.SourceDir, "clean", "marked")
	f.decoder.images["clean"] = gradient(10, 10)
	f.decoder.images["marked"] = gradient(12, 12)

	scanner := &fakeScanner{words: map[int][]string{12: {"PORTABLE"}}}
	stats, err := f.converter(WithTextScanner(scanner)).Run(context.Background(), []PatientGroup{
		{PatientID: "clean"}, {PatientID: "marked"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"marked"}, stats.TextFlagged)
	assert.Empty(t, stats.Failed)
}

func TestConverter_TextScreeningErrorIsNotFatal(t *testing.T) {
	f := newConvertFixture(t)
	touch(t, f.cfg.SourceDir, "p")
	f.decoder.images["p"] = gradient(10, 10)

	scanner := &fakeScanner{err: errors.New("tesseract unavailable")}
	stats, err := f.converter(WithTextScanner(scanner)).Run(context.Background(), []PatientGroup{{PatientID: "p"}})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Found)
	assert.Empty(t, stats.Failed)
	assert.Empty(t, stats.TextFlagged)
}
