// Package datestamp recovers the printed date stamp from the corner of a
// scanned photo using Tesseract OCR.
package datestamp

import (
	"errors"
	"image"
	"os"
	"time"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// ErrNoDate is returned when no plausible date stamp can be read.
var ErrNoDate = errors.New("no date stamp detected")

// Extract OCRs the corners of the photo at path and parses any printed date
// stamp found there. Stamps sit in a corner, so only corner crops are fed to
// Tesseract; each corner is tried bottom-first since that is where the stamp
// almost always is.
func Extract(path string) (time.Time, string, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return time.Time{}, "", err
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	// corner crop large enough to cover oversized stamps
	cw := w * 2 / 5
	ch := h / 4

	corners := []image.Rectangle{
		image.Rect(w-cw, h-ch, w, h), // bottom right
		image.Rect(0, h-ch, cw, h),   // bottom left
		image.Rect(w-cw, 0, w, ch),   // top right
		image.Rect(0, 0, cw, ch),     // top left
	}
	for _, rect := range corners {
		crop := imaging.Crop(img, rect)
		crop = imaging.Grayscale(crop)
		crop = imaging.AdjustContrast(crop, 25)
		if crop.Bounds().Dy() < 200 {
			crop = imaging.Resize(crop, 0, 300, imaging.Lanczos)
		}
		text, err := ocrCorner(crop)
		if err != nil {
			continue
		}
		if t, raw, ok := ParseStamp(text); ok {
			return t, raw, nil
		}
	}
	return time.Time{}, "", ErrNoDate
}

// ocrCorner runs a digit-whitelisted Tesseract pass over one corner crop.
func ocrCorner(img image.Image) (string, error) {
	tmp, err := os.CreateTemp("", "datestamp-*.png")
	if err != nil {
		return "", err
	}
	name := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(name)
	if err := imaging.Save(img, name); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()
	_ = client.SetLanguage("eng")
	_ = client.SetWhitelist("0123456789'./:- ")
	_ = client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT)
	client.SetImage(name)
	return client.Text()
}
