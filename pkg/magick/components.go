package magick

import (
	"fmt"
	"strconv"
	"strings"
)

// Region is a rectangular area of the scan in ImageMagick WxH+X+Y geometry.
type Region struct {
	Width  int
	Height int
	X      int
	Y      int
}

// String renders the region back into convert's WxH+X+Y geometry syntax.
func (r Region) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Area returns the bounding-box area in pixels.
func (r Region) Area() int64 {
	return int64(r.Width) * int64(r.Height)
}

// ParseRegion parses convert's WxH+X+Y geometry (e.g. "1024x768+120+40").
func ParseRegion(s string) (Region, error) {
	var reg Region
	xi := strings.IndexByte(s, 'x')
	p1 := strings.IndexByte(s, '+')
	if xi <= 0 || p1 <= xi {
		return reg, fmt.Errorf("invalid geometry %q", s)
	}
	p2 := strings.IndexByte(s[p1+1:], '+')
	if p2 < 0 {
		return reg, fmt.Errorf("invalid geometry %q", s)
	}
	p2 += p1 + 1
	var err error
	if reg.Width, err = strconv.Atoi(s[:xi]); err != nil {
		return reg, fmt.Errorf("invalid geometry %q: %v", s, err)
	}
	if reg.Height, err = strconv.Atoi(s[xi+1 : p1]); err != nil {
		return reg, fmt.Errorf("invalid geometry %q: %v", s, err)
	}
	if reg.X, err = strconv.Atoi(s[p1+1 : p2]); err != nil {
		return reg, fmt.Errorf("invalid geometry %q: %v", s, err)
	}
	if reg.Y, err = strconv.Atoi(s[p2+1:]); err != nil {
		return reg, fmt.Errorf("invalid geometry %q: %v", s, err)
	}
	return reg, nil
}

// Component is one connected component parsed from convert's
// `-define connected-components:verbose=true` object listing.
type Component struct {
	Region    Region
	Area      int64  // pixel count reported by convert, not the bbox area
	MeanColor string // e.g. srgb(0,0,0) or srgba(0,0,0,1)
}

// isPhotoColor reports whether a component's mean color marks it as a photo
// blob. After thresholding a white-background scan the photos come out black;
// the background component stays white and is discarded.
func isPhotoColor(meanColor string) bool {
	return meanColor == "srgb(0,0,0)" || strings.HasPrefix(meanColor, "srgba(0,0,0")
}

// parseComponents parses the verbose connected-components listing. Lines look
// like:
//
//	Objects (id: bounding-box centroid area mean-color):
//	  0: 2480x3507+0+0 1240.3,1753.2 8532175 srgb(255,255,255)
//	  1: 1032x788+210+144 725.9,537.4 812301 srgb(0,0,0)
//
// Only black components are kept. Malformed lines are skipped.
func parseComponents(out string) []Component {
	var comps []Component
	lines := strings.Split(out, "\n")
	if len(lines) > 0 {
		lines = lines[1:] // header line
	}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) != 5 {
			continue
		}
		if !isPhotoColor(fields[4]) {
			continue
		}
		region, err := ParseRegion(fields[1])
		if err != nil {
			continue
		}
		area, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil {
			continue
		}
		comps = append(comps, Component{Region: region, Area: area, MeanColor: fields[4]})
	}
	return comps
}

// filterSpecks drops components whose area is below minFraction of the largest
// component's area. Dust and stray marks on the scanner glass threshold into
// small black blobs; real photos are all of comparable size.
func filterSpecks(comps []Component, minFraction float64) []Component {
	var maxArea int64 = 1
	for _, c := range comps {
		if c.Area > maxArea {
			maxArea = c.Area
		}
	}
	var out []Component
	for _, c := range comps {
		if float64(c.Area) >= minFraction*float64(maxArea) {
			out = append(out, c)
		}
	}
	return out
}
