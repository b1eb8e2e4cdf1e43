package magick

import (
	"fmt"

	"github.com/disintegration/imaging"
)

// ImageInfo holds the decoded dimensions of an image file.
type ImageInfo struct {
	Width  int
	Height int
}

// Probe decodes the image header-deep to confirm the file is a readable image
// and returns its dimensions. Used as a preflight before handing the file to
// convert, so unreadable uploads fail with a clear error instead of a convert
// stderr dump.
func Probe(path string) (ImageInfo, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("open image: %w", err)
	}
	b := img.Bounds()
	return ImageInfo{Width: b.Dx(), Height: b.Dy()}, nil
}

// Thumbnail writes a height-bound thumbnail of src to dst. Aspect ratio is
// preserved; images already smaller than height are copied as-is.
func Thumbnail(src, dst string, height int) error {
	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	if img.Bounds().Dy() > height {
		img = imaging.Resize(img, 0, height, imaging.Lanczos)
	}
	if err := imaging.Save(img, dst); err != nil {
		return fmt.Errorf("save thumbnail: %w", err)
	}
	return nil
}
