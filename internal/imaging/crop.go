package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Crop extracts region from img and optionally rescales it.
//
// The region must lie inside the image and have a positive area. A scale of
// 1 (or any non-positive value) keeps the native resolution.
func Crop(img image.Image, region image.Rectangle, scale float64) (image.Image, error) {
	bounds := img.Bounds()
	if !region.In(bounds) {
		return nil, fmt.Errorf("crop region %v outside image bounds %v", region, bounds)
	}
	if region.Empty() {
		return nil, fmt.Errorf("invalid crop region %v: must have positive width and height", region)
	}

	var cropped image.Image = imaging.Crop(img, region)
	if scale != 1.0 && scale > 0 {
		w := int(float64(region.Dx()) * scale)
		h := int(float64(region.Dy()) * scale)
		if w < 1 || h < 1 {
			return nil, fmt.Errorf("scale %v collapses %v to nothing", scale, region)
		}
		cropped = imaging.Resize(cropped, w, h, imaging.Lanczos)
	}
	return cropped, nil
}

// CropPadded crops region grown by pad pixels on every side, clipped to the
// image. It is used to show a finding with some surrounding context.
func CropPadded(img image.Image, region image.Rectangle, pad int, scale float64) (image.Image, error) {
	grown := image.Rect(region.Min.X-pad, region.Min.Y-pad, region.Max.X+pad, region.Max.Y+pad)
	return Crop(img, grown.Intersect(img.Bounds()), scale)
}
