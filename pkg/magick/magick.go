// Package magick divides a scanned batch of photos into individual images.
//
// Photographs are typically digitized by placing several prints together on a
// flatbed scanner. The resulting scan needs further processing to extract,
// deskew and crop the individual photos. This package delegates all of that to
// ImageMagick `convert` run as a subprocess: threshold + connected-components
// to find the photo regions on the white scanner background, then per-region
// crop and deskew/trim passes. Scans are required to have a white background.
package magick

import (
	"bytes"
	"fmt"
	"log"
	"os/exec"
	"strings"
)

// convertBin is the ImageMagick binary name. Overridable for tests.
var convertBin = "convert"

// LookPathConvert verifies the convert binary is installed.
func LookPathConvert() error {
	if _, err := exec.LookPath(convertBin); err != nil {
		return ErrConvertNotFound
	}
	return nil
}

// runConvert runs convert with the given arguments and returns its stdout.
// A non-zero exit is surfaced as an error carrying the stderr text.
func runConvert(args []string) (string, error) {
	logV("run: %s %s", convertBin, strings.Join(args, " "))
	cmd := exec.Command(convertBin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	out := strings.TrimSpace(stdout.String())
	errText := strings.TrimSpace(stderr.String())
	if errText != "" {
		logV("stderr: %s", errText)
	}
	if err != nil {
		if errText != "" {
			return out, fmt.Errorf("convert failed: %w: %s", err, errText)
		}
		return out, fmt.Errorf("convert failed: %w", err)
	}
	return out, nil
}

// Verbose enables command echo logging for all convert invocations.
var Verbose bool

func logV(format string, args ...any) {
	if Verbose {
		log.Printf(format, args...)
	}
}
