package pipeline

import (
	"fmt"
	"image"
	"math"

	"github.com/ironsheep/xray-cdss/internal/dataset"
	"github.com/ironsheep/xray-cdss/internal/imaging"
)

// InspectedLabel is one label line mapped back onto its image.
type InspectedLabel struct {
	Label   dataset.NormalizedLabel `json:"label"`
	Box     dataset.PixelBox        `json:"box"`
	InRange bool                    `json:"in_range"`
}

// LabelInspection describes a label file against the image it annotates.
type LabelInspection struct {
	ImagePath string           `json:"image_path"`
	LabelPath string           `json:"label_path"`
	Width     int              `json:"width"`
	Height    int              `json:"height"`
	Labels    []InspectedLabel `json:"labels"`
}

// InspectLabels reads a label file and converts every line back to pixel
// coordinates using the image's dimensions.
func InspectLabels(cache *imaging.ImageCache, imagePath, labelPath string) (*LabelInspection, error) {
	w, h, err := imaging.GetDimensions(cache, imagePath)
	if err != nil {
		return nil, err
	}
	labels, err := dataset.ReadLabelFile(labelPath)
	if err != nil {
		return nil, err
	}

	out := &LabelInspection{
		ImagePath: imagePath,
		LabelPath: labelPath,
		Width:     w,
		Height:    h,
		Labels:    make([]InspectedLabel, len(labels)),
	}
	for i, l := range labels {
		out.Labels[i] = InspectedLabel{
			Label:   l,
			Box:     l.PixelBox(w, h),
			InRange: l.InUnitRange(),
		}
	}
	return out, nil
}

// Overlay draws the inspected boxes onto the image they came from.
func (li *LabelInspection) Overlay(cache *imaging.ImageCache) (*image.NRGBA, error) {
	img, err := cache.Load(li.ImagePath)
	if err != nil {
		return nil, err
	}
	anns := make([]imaging.Annotation, len(li.Labels))
	for i, l := range li.Labels {
		b := l.Box
		anns[i] = imaging.Annotation{
			Rect: image.Rect(
				int(math.Floor(b.X)), int(math.Floor(b.Y)),
				int(math.Ceil(b.X+b.Width)), int(math.Ceil(b.Y+b.Height)),
			).Add(img.Bounds().Min),
			Label: fmt.Sprintf("#%d", i+1),
			Score: 1,
		}
	}
	return imaging.Overlay(img, anns, imaging.DefaultOverlayStyle())
}
