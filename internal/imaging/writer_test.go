package imaging

import (
	"encoding/base64"
	"image"
	"path/filepath"
	"testing"
)

func TestSavePNG_RoundTrip(t *testing.T) {
	src := createQuadrantImage(64, 32)
	path := filepath.Join(t.TempDir(), "out.png")

	if err := SavePNG(path, src); err != nil {
		t.Fatalf("SavePNG failed: %v", err)
	}

	loaded, err := NewImageCache().Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Bounds() != image.Rect(0, 0, 64, 32) {
		t.Fatalf("bounds: got %v", loaded.Bounds())
	}
	for _, p := range []image.Point{{0, 0}, {40, 0}, {0, 20}, {63, 31}} {
		if got, want := gray8(loaded, p.X, p.Y), src.GrayAt(p.X, p.Y).Y; got != want {
			t.Errorf("pixel %v: got %d, want %d", p, got, want)
		}
	}
}

func TestSavePNG_BadDirectory(t *testing.T) {
	if err := SavePNG("/nonexistent/dir/out.png", createQuadrantImage(4, 4)); err == nil {
		t.Error("SavePNG should fail when the directory does not exist")
	}
}

func TestEncodeBase64PNG(t *testing.T) {
	enc, err := EncodeBase64PNG(createQuadrantImage(12, 6))
	if err != nil {
		t.Fatalf("EncodeBase64PNG failed: %v", err)
	}
	if enc.Width != 12 || enc.Height != 6 {
		t.Errorf("dimensions: got %dx%d, want 12x6", enc.Width, enc.Height)
	}
	if enc.MimeType != "image/png" {
		t.Errorf("MimeType: got %s", enc.MimeType)
	}
	if _, err := base64.StdEncoding.DecodeString(enc.ImageBase64); err != nil {
		t.Errorf("failed to decode base64: %v", err)
	}
}
