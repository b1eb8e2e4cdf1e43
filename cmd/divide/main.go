// Command divide splits a scanned batch of photos into individual images.
//
// Scanning prints in batches on a flatbed scanner is much faster than one at a
// time; this tool extracts, deskews and crops the individual photos from such
// a scan using ImageMagick convert. Scans must have a white background.
//
// Usage:
//
//	divide image.png output_dir
//	Found 3 images.
//	Wrote image 0 to output_dir/0_image.png.
//	Wrote image 1 to output_dir/1_image.png.
//	Wrote image 2 to output_dir/2_image.png.
//
// If output_dir is not provided, the constituent images are written to the
// same directory as the input image.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"scansplit/pkg/magick"
)

func main() {
	logLevel := flag.String("log", "warning", "Log level: warning, info")
	threshold := flag.Int("threshold", 0, "Black/white threshold percentage (default 90)")
	connectivity := flag.Int("connectivity", 0, "Connected-components connectivity, 4 or 8 (default 4)")
	deskew := flag.Int("deskew", 0, "Deskew percentage (default 40)")
	fuzz := flag.Int("fuzz", 0, "Trim fuzz percentage (default 10)")
	minAreaFraction := flag.Float64("min-area-fraction", 0, "Drop photos smaller than this fraction of the largest (default 0.1)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <input_image_path> [output_dir]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 || len(args) > 2 {
		flag.Usage()
		os.Exit(2)
	}
	input := args[0]
	outputDir := filepath.Dir(input)
	if len(args) == 2 {
		outputDir = args[1]
	}

	magick.Verbose = *logLevel == "info"

	if err := magick.LookPathConvert(); err != nil {
		log.Fatalf("Did not find `convert` tool in the path. Please install ImageMagick.")
	}
	if _, err := os.Stat(input); err != nil {
		log.Fatalf("cannot read input image: %v", err)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Fatalf("cannot create output directory: %v", err)
	}

	opts := magick.Options{
		Threshold:       *threshold,
		Connectivity:    *connectivity,
		Deskew:          *deskew,
		Fuzz:            *fuzz,
		MinAreaFraction: *minAreaFraction,
	}
	regions, err := magick.DetectRegions(input, opts)
	if err != nil {
		log.Fatalf("detecting photos failed: %v", err)
	}
	fmt.Printf("Found %d images.\n", len(regions))
	if len(regions) == 0 {
		os.Exit(1)
	}
	photos, err := magick.ExtractRegions(input, outputDir, regions, opts)
	for _, p := range photos {
		fmt.Printf("Wrote image %d to %s.\n", p.Index, p.Path)
	}
	if err != nil {
		log.Fatalf("extracting photos failed: %v", err)
	}
}
