package radiograph

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// ErrNoPixelData is returned when a DICOM file carries no decodable frame.
var ErrNoPixelData = errors.New("no pixel data")

// DICOMDecoder reads the first frame of a DICOM file.
type DICOMDecoder struct{}

// NewDICOMDecoder returns a decoder for DICOM Part 10 files.
func NewDICOMDecoder() *DICOMDecoder {
	return &DICOMDecoder{}
}

// Decode parses path and returns its first frame together with the
// PhotometricInterpretation value. A missing PhotometricInterpretation
// element leaves Image.Photometric empty, which Normalize treats as
// non-inverted.
func (d *DICOMDecoder) Decode(path string) (*Image, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DICOM: %w", err)
	}

	pixEl, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPixelData, err)
	}
	info, ok := pixEl.Value.GetValue().(dicom.PixelDataInfo)
	if !ok || len(info.Frames) == 0 {
		return nil, ErrNoPixelData
	}

	var img *Image
	first := info.Frames[0]
	if first.IsEncapsulated() {
		frameImg, err := first.GetImage()
		if err != nil {
			return nil, fmt.Errorf("failed to decode frame: %w", err)
		}
		img = FromImage(frameImg, photometric(ds))
	} else {
		nf, err := first.GetNativeFrame()
		if err != nil {
			return nil, fmt.Errorf("failed to decode frame: %w", err)
		}
		signed := intElement(ds, tag.PixelRepresentation) == 1
		img, err = fromNativeFrame(nf, photometric(ds), signed, intElement(ds, tag.BitsStored))
		if err != nil {
			return nil, fmt.Errorf("failed to decode frame: %w", err)
		}
	}

	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

func photometric(ds dicom.Dataset) string {
	el, err := ds.FindElementByTag(tag.PhotometricInterpretation)
	if err != nil {
		return ""
	}
	vals, ok := el.Value.GetValue().([]string)
	if !ok || len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

// fromNativeFrame copies the first sample of every pixel. Signed samples
// are sign-extended from bitsStored and, when any is negative, shifted so
// the smallest value becomes 0; ordering is preserved and unsigned data
// passes through unchanged.
func fromNativeFrame(nf *frame.NativeFrame, photometric string, signed bool, bitsStored int) (*Image, error) {
	if len(nf.Data) != nf.Rows*nf.Cols {
		return nil, fmt.Errorf("frame holds %d pixels, want %dx%d", len(nf.Data), nf.Cols, nf.Rows)
	}

	bits := nf.BitsPerSample
	if bitsStored > 0 && bitsStored < bits {
		bits = bitsStored
	}

	samples := make([]int, len(nf.Data))
	lo := 0
	for i, px := range nf.Data {
		if len(px) == 0 {
			return nil, fmt.Errorf("pixel %d has no samples", i)
		}
		v := px[0]
		if signed {
			v = signExtend(v, bits)
		}
		samples[i] = v
		lo = min(lo, v)
	}

	out := New(nf.Cols, nf.Rows, photometric)
	for i, v := range samples {
		v -= lo
		if v > math.MaxUint16 {
			return nil, fmt.Errorf("sample %d does not fit in 16 bits", v)
		}
		out.Pixels[i] = uint16(v)
	}
	return out, nil
}

func signExtend(v, bits int) int {
	if bits <= 0 || bits >= 64 {
		return v
	}
	v &= 1<<bits - 1
	if v&(1<<(bits-1)) != 0 {
		v -= 1 << bits
	}
	return v
}

func intElement(ds dicom.Dataset, t tag.Tag) int {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return 0
	}
	vals, ok := el.Value.GetValue().([]int)
	if !ok || len(vals) == 0 {
		return 0
	}
	return vals[0]
}
