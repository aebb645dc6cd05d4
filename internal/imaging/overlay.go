package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Annotation is one box to draw on an overlay.
type Annotation struct {
	Rect  image.Rectangle
	Label string

	// Score in [0,1] selects the outline color along the style's ramp.
	Score float64
}

// OverlayStyle controls how annotations are drawn.
type OverlayStyle struct {
	// Thickness of the outline in pixels.
	Thickness int

	// LowColor and HighColor are "#RRGGBB" endpoints of the score ramp.
	LowColor  string
	HighColor string

	ShowLabels bool
}

// DefaultOverlayStyle draws 3px outlines from amber to red with labels.
func DefaultOverlayStyle() OverlayStyle {
	return OverlayStyle{
		Thickness:  3,
		LowColor:   "#ffc107",
		HighColor:  "#e53935",
		ShowLabels: true,
	}
}

// RampColor returns the outline color for score under style.
func (s OverlayStyle) RampColor(score float64) (color.Color, error) {
	low, err := colorful.Hex(s.LowColor)
	if err != nil {
		return nil, fmt.Errorf("invalid low color %q: %w", s.LowColor, err)
	}
	high, err := colorful.Hex(s.HighColor)
	if err != nil {
		return nil, fmt.Errorf("invalid high color %q: %w", s.HighColor, err)
	}
	t := math.Max(0, math.Min(1, score))
	return low.BlendLab(high, t).Clamped(), nil
}

// Overlay returns a copy of img with every annotation outlined.
// The source image is not modified.
func Overlay(img image.Image, anns []Annotation, style OverlayStyle) (*image.NRGBA, error) {
	if style.Thickness < 1 {
		style.Thickness = 1
	}

	dst := imaging.Clone(img)
	bounds := dst.Bounds()

	for _, a := range anns {
		c, err := style.RampColor(a.Score)
		if err != nil {
			return nil, err
		}
		r := a.Rect.Sub(img.Bounds().Min).Intersect(bounds)
		if r.Empty() {
			continue
		}
		drawOutline(dst, r, style.Thickness, c)
		if style.ShowLabels && a.Label != "" {
			drawLabel(dst, r, a.Label, c)
		}
	}
	return dst, nil
}

func drawOutline(dst draw.Image, r image.Rectangle, thickness int, c color.Color) {
	src := image.NewUniform(c)
	t := min(thickness, r.Dx()/2+1, r.Dy()/2+1)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t), // top
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y), // bottom
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y), // left
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y), // right
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Src)
	}
}

// drawLabel writes text on a filled tab anchored to the top-left corner of r.
func drawLabel(dst draw.Image, r image.Rectangle, text string, bg color.Color) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil() + 4
	height := face.Metrics().Height.Ceil() + 2

	tab := image.Rect(r.Min.X, r.Min.Y-height, r.Min.X+width, r.Min.Y)
	if tab.Min.Y < dst.Bounds().Min.Y {
		tab = tab.Add(image.Pt(0, height))
	}
	tab = tab.Intersect(dst.Bounds())
	if tab.Empty() {
		return
	}
	draw.Draw(dst, tab, image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(tab.Min.X+2, tab.Min.Y+face.Metrics().Ascent.Ceil()+1),
	}
	d.DrawString(text)
}
