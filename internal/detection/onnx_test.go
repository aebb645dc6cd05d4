package detection

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillInput_CHWLayout(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.NRGBA{R: 255, G: 0, B: 51, A: 255})
		}
	}

	buf := make([]float32, 3*4*4)
	lb := fillInput(buf, img, 4)
	assert.Equal(t, letterbox{Gain: 0.5}, lb)

	for i := 0; i < 16; i++ {
		assert.InDelta(t, 1.0, buf[i], 1e-6)
		assert.InDelta(t, 0.0, buf[16+i], 1e-6)
		assert.InDelta(t, 0.2, buf[32+i], 1e-6)
	}
}

func TestFillInput_LetterboxPadding(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}

	buf := make([]float32, 3*4*4)
	lb := fillInput(buf, img, 4)
	assert.Equal(t, letterbox{Gain: 0.5, PadX: 0, PadY: 1}, lb)

	gray := float64(letterboxFill) / 255
	for y := 0; y < 4; y++ {
		want := 1.0
		if y == 0 || y == 3 {
			want = gray
		}
		for x := 0; x < 4; x++ {
			for c := 0; c < 3; c++ {
				assert.InDelta(t, want, buf[c*16+y*4+x], 1e-6, "c=%d x=%d y=%d", c, x, y)
			}
		}
	}
}

func TestNewLetterbox(t *testing.T) {
	tests := []struct {
		name  string
		w, h  int
		want  letterbox
		wantW int
		wantH int
	}{
		{"square", 1024, 1024, letterbox{Gain: 0.625}, 640, 640},
		{"portrait", 500, 1000, letterbox{Gain: 0.64, PadX: 160}, 320, 640},
		{"landscape", 1280, 640, letterbox{Gain: 0.5, PadY: 160}, 640, 320},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lb, nw, nh := newLetterbox(tt.w, tt.h, 640)
			assert.InDelta(t, tt.want.Gain, lb.Gain, 1e-9)
			assert.Equal(t, tt.want.PadX, lb.PadX)
			assert.Equal(t, tt.want.PadY, lb.PadY)
			assert.Equal(t, tt.wantW, nw)
			assert.Equal(t, tt.wantH, nh)
		})
	}
}

func TestONNXConfig_Defaults(t *testing.T) {
	var cfg ONNXConfig
	cfg.withDefaults()

	assert.Equal(t, DefaultInputSize, cfg.InputSize)
	assert.Equal(t, []string{DefaultClass}, cfg.Classes)
	assert.InDelta(t, DefaultIoUThreshold, cfg.IoUThreshold, 1e-9)
	assert.Positive(t, cfg.Threads)
}

func TestNewONNXDetector_NoModel(t *testing.T) {
	_, err := NewONNXDetector(ONNXConfig{}, nil)
	require.ErrorIs(t, err, ErrModelNotFound)
}
