package magick

import "errors"

// ErrNoPhotos is returned when no photo-sized components survive filtering.
var ErrNoPhotos = errors.New("no photos detected in scan")

// ErrConvertNotFound is returned when the ImageMagick convert binary is not on PATH.
var ErrConvertNotFound = errors.New("imagemagick convert not found in PATH")
