// Package imaging provides the raster operations shared by the dataset tools
// and the detection report: loading and caching images, writing PNG files,
// cropping regions around findings and drawing detection overlays.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with the origin at the top-left corner.
// Regions use image.Rectangle semantics: Min is inclusive, Max is exclusive.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The remaining functions are
// stateless and never mutate their input images.
//
// # Overlays
//
// Overlay draws one outlined box per annotation. The outline color is taken
// from a ramp between two colors by the annotation's score, so weak findings
// and strong findings are visually distinct. Labels are rendered with the
// 7x13 basic bitmap face above the box, or inside it when the box touches the
// top edge.
package imaging
