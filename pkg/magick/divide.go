package magick

import (
	"fmt"
	"os"
	"path/filepath"
)

// Options control the convert invocations. Zero value fields fall back to the
// defaults below via withDefaults.
type Options struct {
	Threshold       int     // -threshold percentage for black/white separation
	Connectivity    int     // -connected-components connectivity (4 or 8)
	Deskew          int     // -deskew percentage
	Fuzz            int     // -fuzz percentage for -trim
	MinAreaFraction float64 // drop components smaller than this fraction of the largest
}

// DefaultOptions are the values the tool was tuned with on consumer flatbed
// scans of color prints on a white background.
func DefaultOptions() Options {
	return Options{
		Threshold:       90,
		Connectivity:    4,
		Deskew:          40,
		Fuzz:            10,
		MinAreaFraction: 0.1,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Threshold <= 0 {
		o.Threshold = d.Threshold
	}
	if o.Connectivity <= 0 {
		o.Connectivity = d.Connectivity
	}
	if o.Deskew <= 0 {
		o.Deskew = d.Deskew
	}
	if o.Fuzz <= 0 {
		o.Fuzz = d.Fuzz
	}
	if o.MinAreaFraction <= 0 {
		o.MinAreaFraction = d.MinAreaFraction
	}
	return o
}

// Extracted describes one photo written by Divide.
type Extracted struct {
	Index  int
	Region Region
	Path   string
}

// DetectRegions finds the photo regions in the scan. It thresholds the image
// and asks convert for a verbose connected-components listing, keeping the
// black components and discarding specks.
func DetectRegions(input string, opts Options) ([]Component, error) {
	opts = opts.withDefaults()
	tmp, err := os.CreateTemp("", "scansplit-cc-*.png")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpName)

	out, err := runConvert([]string{
		input,
		"-threshold", fmt.Sprintf("%d%%", opts.Threshold),
		"-define", "connected-components:verbose=true",
		"-connected-components", fmt.Sprintf("%d", opts.Connectivity),
		tmpName,
	})
	if err != nil {
		return nil, err
	}
	comps := parseComponents(out)
	logV("found %d total connected components", len(comps))
	return filterSpecks(comps, opts.MinAreaFraction), nil
}

// CropRegion cuts the specified region out of the input scan.
func CropRegion(input string, region Region, output string) error {
	_, err := runConvert([]string{input, "-crop", region.String(), "+repage", output})
	return err
}

// Straighten deskews a cropped photo and trims the leftover background border.
func Straighten(input, output string, opts Options) error {
	opts = opts.withDefaults()
	_, err := runConvert([]string{
		input,
		"-deskew", fmt.Sprintf("%d%%", opts.Deskew),
		"-fuzz", fmt.Sprintf("%d%%", opts.Fuzz),
		"-trim", "+repage",
		output,
	})
	return err
}

// Divide splits the input scan into its constituent photos and writes them to
// outputDir as {index}_{basename}, index starting at 0 in convert's listing
// order. Returns ErrNoPhotos when nothing photo-sized is found.
func Divide(input, outputDir string, opts Options) ([]Extracted, error) {
	opts = opts.withDefaults()
	regions, err := DetectRegions(input, opts)
	if err != nil {
		return nil, err
	}
	if len(regions) == 0 {
		return nil, ErrNoPhotos
	}
	return ExtractRegions(input, outputDir, regions, opts)
}

// ExtractRegions crops each detected region out of the scan and straightens it
// into outputDir/{index}_{basename}. Split out of Divide so callers can report
// the detection count before the (slow) per-photo convert passes run.
func ExtractRegions(input, outputDir string, regions []Component, opts Options) ([]Extracted, error) {
	opts = opts.withDefaults()
	tmp, err := os.CreateTemp("", "scansplit-crop-*.png")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpName)

	baseName := filepath.Base(input)
	var out []Extracted
	for i, comp := range regions {
		if err := CropRegion(input, comp.Region, tmpName); err != nil {
			return out, fmt.Errorf("crop photo %d: %w", i, err)
		}
		outputPath := filepath.Join(outputDir, fmt.Sprintf("%d_%s", i, baseName))
		if err := Straighten(tmpName, outputPath, opts); err != nil {
			return out, fmt.Errorf("straighten photo %d: %w", i, err)
		}
		out = append(out, Extracted{Index: i, Region: comp.Region, Path: outputPath})
	}
	return out, nil
}
