package ocr

import (
	"fmt"
	"image"
	"strings"
	"unicode"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/xray-cdss/internal/imaging"
)

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// Word is one recognised word with its location and OCR confidence.
type Word struct {
	Text string `json:"text"`

	// Confidence is the OCR confidence score (0.0 to 1.0).
	Confidence float64 `json:"confidence"`

	Bounds Bounds `json:"bounds"`
}

// ScreenResult lists the words that passed the screener's filters.
type ScreenResult struct {
	Words []Word `json:"words"`
}

// Found reports whether any text survived filtering.
func (r *ScreenResult) Found() bool {
	return len(r.Words) > 0
}

// Texts returns the recognised words in reading order.
func (r *ScreenResult) Texts() []string {
	out := make([]string, len(r.Words))
	for i, w := range r.Words {
		out[i] = w.Text
	}
	return out
}

// Screener detects burned-in text.
type Screener struct {
	// Language is the Tesseract language code, e.g. "eng".
	Language string

	// MinConfidence is the lowest accepted word confidence (0.0 to 1.0).
	MinConfidence float64

	// MinLength is the minimum count of letters or digits in a word.
	MinLength int
}

// NewScreener returns a screener with conservative defaults: English,
// confidence 0.75, at least three alphanumeric characters.
func NewScreener(language string) *Screener {
	if language == "" {
		language = "eng"
	}
	return &Screener{
		Language:      language,
		MinConfidence: 0.75,
		MinLength:     3,
	}
}

// Scan runs word-level OCR over img.
func (s *Screener) Scan(img image.Image) (*ScreenResult, error) {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(s.Language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	words := make([]Word, 0, len(boxes))
	for _, box := range boxes {
		words = append(words, Word{
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
			Bounds: Bounds{
				X1: box.Box.Min.X,
				Y1: box.Box.Min.Y,
				X2: box.Box.Max.X,
				Y2: box.Box.Max.Y,
			},
		})
	}

	return &ScreenResult{Words: s.filter(words)}, nil
}

// ScanText adapts Scan to the converter's text scanner contract.
func (s *Screener) ScanText(img image.Image) ([]string, error) {
	res, err := s.Scan(img)
	if err != nil {
		return nil, err
	}
	return res.Texts(), nil
}

func (s *Screener) filter(words []Word) []Word {
	kept := words[:0]
	for _, w := range words {
		w.Text = strings.TrimSpace(w.Text)
		if w.Confidence < s.MinConfidence {
			continue
		}
		if alnumCount(w.Text) < s.MinLength {
			continue
		}
		kept = append(kept, w)
	}
	return kept
}

func alnumCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
