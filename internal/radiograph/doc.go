// Package radiograph decodes radiographic source files into raw pixel
// matrices and normalizes them into 8-bit grayscale images.
//
// # Pixel Model
//
// An Image holds one sample per pixel in row-major order together with the
// photometric interpretation recorded by the acquisition device. Samples are
// kept at their stored bit depth (commonly 12 or 16 bits) until Normalize
// maps them onto the 0-255 range.
//
// # Polarity
//
// Under MONOCHROME1 higher stored values render darker. Normalize inverts
// such images (max - value) before scaling so that dense tissue is always
// rendered bright, matching MONOCHROME2 sources.
//
// # Scaling
//
// Normalization is a single linear scale by 255/max with truncation toward
// zero. An image whose maximum sample is 0 is cast directly and stays black.
package radiograph
