// Package ocr screens radiographs for burned-in text using Tesseract.
//
// Exported radiographs sometimes carry text rendered into the pixel data:
// laterality markers, "PORTABLE" stamps, and occasionally patient names or
// accession numbers. None of that belongs in a training set. The Screener
// runs word-level OCR over an image and reports the words it is reasonably
// sure about, so the dataset converter can flag those patients for review.
//
// # Prerequisites
//
// Tesseract must be installed on the system, together with the language data
// for the configured language:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// # Filtering
//
// Radiographs are noisy and Tesseract happily reports "words" made of rib
// edges. Words are therefore kept only when their confidence reaches
// MinConfidence and they contain at least MinLength letters or digits.
//
// # Error Handling
//
// Scan returns an error when Tesseract cannot be initialised or the image
// cannot be processed. The converter treats such errors as warnings.
package ocr
