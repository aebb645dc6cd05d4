package radiograph

import (
	"fmt"
	"image"
	"image/color"
)

// Photometric interpretations recognised by Normalize.
const (
	Monochrome1 = "MONOCHROME1"
	Monochrome2 = "MONOCHROME2"
)

// Image is a decoded radiograph: one sample per pixel, row-major.
type Image struct {
	Width       int
	Height      int
	Pixels      []uint16
	Photometric string
}

// New returns a zeroed image of the given size.
func New(width, height int, photometric string) *Image {
	return &Image{
		Width:       width,
		Height:      height,
		Pixels:      make([]uint16, width*height),
		Photometric: photometric,
	}
}

// FromImage copies the luminance of img into a new Image.
//
// 16-bit grayscale images keep their stored values. Any other color model is
// converted through color.Gray16Model, which widens 8-bit samples by 257; the
// widening is harmless because Normalize is scale invariant.
func FromImage(img image.Image, photometric string) *Image {
	b := img.Bounds()
	out := New(b.Dx(), b.Dy(), photometric)

	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				out.Pixels[y*out.Width+x] = src.Gray16At(b.Min.X+x, b.Min.Y+y).Y
			}
		}
	default:
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				out.Pixels[y*out.Width+x] = g.Y
			}
		}
	}
	return out
}

// At returns the sample at (x, y).
func (m *Image) At(x, y int) uint16 {
	return m.Pixels[y*m.Width+x]
}

// Set stores v at (x, y).
func (m *Image) Set(x, y int, v uint16) {
	m.Pixels[y*m.Width+x] = v
}

// Max returns the largest sample, or 0 for an empty image.
func (m *Image) Max() uint16 {
	var hi uint16
	for _, v := range m.Pixels {
		if v > hi {
			hi = v
		}
	}
	return hi
}

// Validate reports whether the pixel buffer matches the declared dimensions.
func (m *Image) Validate() error {
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", m.Width, m.Height)
	}
	if len(m.Pixels) != m.Width*m.Height {
		return fmt.Errorf("pixel buffer holds %d samples, want %d", len(m.Pixels), m.Width*m.Height)
	}
	return nil
}

// Inverted reports whether the image uses MONOCHROME1 polarity.
func (m *Image) Inverted() bool {
	return m.Photometric == Monochrome1
}

// Normalize maps the image onto an 8-bit grayscale raster.
//
// MONOCHROME1 samples are first replaced by max-value. The result is then
// scaled by 255/max (truncating), where max is taken after inversion. When
// max is 0 the samples are cast directly.
func Normalize(m *Image) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, m.Width, m.Height))

	samples := m.Pixels
	if m.Inverted() {
		hi := m.Max()
		samples = make([]uint16, len(m.Pixels))
		for i, v := range m.Pixels {
			samples[i] = hi - v
		}
	}

	var hi uint16
	for _, v := range samples {
		if v > hi {
			hi = v
		}
	}

	if hi == 0 {
		for i, v := range samples {
			out.Pix[i] = uint8(v)
		}
		return out
	}

	// v/max first so that v == max lands on exactly 255.
	for i, v := range samples {
		out.Pix[i] = uint8(float64(v) / float64(hi) * 255)
	}
	return out
}
