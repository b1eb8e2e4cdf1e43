package magick

import (
	"image/color"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/disintegration/imaging"
)

// fakeConvert installs a shell stub in place of the real convert binary. It
// replays a canned connected-components listing and copies input to output
// for the crop/deskew invocations, so Divide's orchestration and file naming
// can be tested without ImageMagick installed.
func fakeConvert(t *testing.T, listing string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a unix shell")
	}
	dir := t.TempDir()
	stub := filepath.Join(dir, "convert")
	script := `#!/bin/sh
in="$1"
for a in "$@"; do out="$a"; done
case "$*" in
*"-connected-components"*)
	cp "$in" "$out"
	cat "$LISTING_FILE"
	;;
*)
	cp "$in" "$out"
	;;
esac
`
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	listingFile := filepath.Join(dir, "listing.txt")
	if err := os.WriteFile(listingFile, []byte(listing), 0o644); err != nil {
		t.Fatalf("write listing: %v", err)
	}
	t.Setenv("LISTING_FILE", listingFile)
	prev := convertBin
	convertBin = stub
	t.Cleanup(func() { convertBin = prev })
}

func writeScanFixture(t *testing.T, dir, name string) string {
	t.Helper()
	img := imaging.New(200, 100, color.NRGBA{255, 255, 255, 255})
	path := filepath.Join(dir, name)
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestDivideWritesIndexedOutputs(t *testing.T) {
	listing := "Objects (id: bounding-box centroid area mean-color):\n" +
		"  0: 200x100+0+0 100.0,50.0 17000 srgb(255,255,255)\n" +
		"  1: 80x60+10+20 50.0,50.0 4800 srgb(0,0,0)\n" +
		"  2: 60x40+110+30 140.0,50.0 2400 srgba(0,0,0,1)\n" +
		"  3: 5x5+1+1 3.0,3.0 20 srgb(0,0,0)\n"
	fakeConvert(t, listing)

	inDir := t.TempDir()
	outDir := t.TempDir()
	input := writeScanFixture(t, inDir, "scan.png")

	photos, err := Divide(input, outDir, Options{})
	if err != nil {
		t.Fatalf("divide failed: %v", err)
	}
	if len(photos) != 2 {
		t.Fatalf("expected 2 photos (speck filtered) got %d", len(photos))
	}
	for i, p := range photos {
		if p.Index != i {
			t.Errorf("photo %d has index %d", i, p.Index)
		}
		want := filepath.Join(outDir, map[int]string{0: "0_scan.png", 1: "1_scan.png"}[i])
		if p.Path != want {
			t.Errorf("photo %d path %s want %s", i, p.Path, want)
		}
		if _, err := os.Stat(p.Path); err != nil {
			t.Errorf("output missing: %v", err)
		}
	}
	if photos[0].Region.String() != "80x60+10+20" {
		t.Errorf("unexpected region %s", photos[0].Region)
	}
}

func TestDivideNoPhotos(t *testing.T) {
	listing := "Objects (id: bounding-box centroid area mean-color):\n" +
		"  0: 200x100+0+0 100.0,50.0 20000 srgb(255,255,255)\n"
	fakeConvert(t, listing)

	dir := t.TempDir()
	input := writeScanFixture(t, dir, "blank.png")
	_, err := Divide(input, t.TempDir(), Options{})
	if err != ErrNoPhotos {
		t.Fatalf("expected ErrNoPhotos got %v", err)
	}
}

func TestDetectRegionsHonorsMinAreaFraction(t *testing.T) {
	listing := "Objects (id: bounding-box centroid area mean-color):\n" +
		"  1: 80x60+10+20 50.0,50.0 4800 srgb(0,0,0)\n" +
		"  2: 30x20+110+30 120.0,40.0 600 srgb(0,0,0)\n"
	fakeConvert(t, listing)

	dir := t.TempDir()
	input := writeScanFixture(t, dir, "scan.png")

	// 600/4800 = 0.125: kept at the default 0.1, dropped at 0.2
	comps, err := DetectRegions(input, Options{})
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if len(comps) != 2 {
		t.Fatalf("default fraction: expected 2 got %d", len(comps))
	}
	comps, err = DetectRegions(input, Options{MinAreaFraction: 0.2})
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if len(comps) != 1 {
		t.Fatalf("fraction 0.2: expected 1 got %d", len(comps))
	}
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	input := writeScanFixture(t, dir, "scan.png")
	info, err := Probe(input)
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if info.Width != 200 || info.Height != 100 {
		t.Fatalf("unexpected dims %+v", info)
	}
	if _, err := Probe(filepath.Join(dir, "missing.png")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestThumbnail(t *testing.T) {
	dir := t.TempDir()
	img := imaging.New(400, 300, color.NRGBA{128, 128, 128, 255})
	src := filepath.Join(dir, "photo.png")
	if err := imaging.Save(img, src); err != nil {
		t.Fatalf("save: %v", err)
	}
	dst := filepath.Join(dir, "thumb.png")
	if err := Thumbnail(src, dst, 120); err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	out, err := imaging.Open(dst)
	if err != nil {
		t.Fatalf("open thumb: %v", err)
	}
	if out.Bounds().Dy() != 120 {
		t.Fatalf("thumb height %d want 120", out.Bounds().Dy())
	}
}
