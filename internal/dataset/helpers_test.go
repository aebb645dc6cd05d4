package dataset

import (
	"errors"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ironsheep/xray-cdss/internal/radiograph"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDecoder serves images keyed by patient id (the source file's base name).
type fakeDecoder struct {
	mu     sync.Mutex
	images map[string]*radiograph.Image
	fail   map[string]bool
	calls  int
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{
		images: make(map[string]*radiograph.Image),
		fail:   make(map[string]bool),
	}
}

func (d *fakeDecoder) Decode(path string) (*radiograph.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++

	id := filepath.Base(path)
	id = id[:len(id)-len(filepath.Ext(id))]
	if d.fail[id] {
		return nil, errors.New("corrupt pixel data")
	}
	img, ok := d.images[id]
	if !ok {
		return nil, errors.New("unknown patient")
	}
	return img, nil
}

// gradient returns a width x height MONOCHROME2 image with a 12-bit ramp.
func gradient(width, height int) *radiograph.Image {
	m := radiograph.New(width, height, radiograph.Monochrome2)
	for i := range m.Pixels {
		m.Pixels[i] = uint16(i * 4095 / (len(m.Pixels) - 1))
	}
	return m
}

// touch creates empty source files so the converter finds them.
func touch(t *testing.T, dir string, ids ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, id := range ids {
		require.NoError(t, os.WriteFile(filepath.Join(dir, id+".dcm"), nil, 0o644))
	}
}

type fakeScanner struct {
	words map[int][]string // keyed by image width
	err   error
}

func (s *fakeScanner) ScanText(img image.Image) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.words[img.Bounds().Dx()], nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
