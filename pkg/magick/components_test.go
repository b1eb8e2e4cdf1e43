package magick

import "testing"

const sampleListing = `Objects (id: bounding-box centroid area mean-color):
  0: 2480x3507+0+0 1240.3,1753.2 8532175 srgb(255,255,255)
  1: 1032x788+210+144 725.9,537.4 812301 srgb(0,0,0)
  2: 990x760+1400+180 1895.1,560.2 751204 srgba(0,0,0,1)
  3: 12x9+40+3310 46.1,3314.0 97 srgb(0,0,0)
  4: 1010x770+220+2400 724.8,2784.9 776512 srgb(0,0,0)
`

func TestParseRegion(t *testing.T) {
	r, err := ParseRegion("1032x788+210+144")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if r.Width != 1032 || r.Height != 788 || r.X != 210 || r.Y != 144 {
		t.Fatalf("unexpected region %+v", r)
	}
	if r.String() != "1032x788+210+144" {
		t.Fatalf("round trip got %s", r.String())
	}
	if r.Area() != 1032*788 {
		t.Fatalf("area got %d", r.Area())
	}
}

func TestParseRegionInvalid(t *testing.T) {
	for _, s := range []string{"", "1032x788", "x788+210+144", "1032x788+210", "axb+c+d"} {
		if _, err := ParseRegion(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestParseComponentsKeepsBlackOnly(t *testing.T) {
	comps := parseComponents(sampleListing)
	// the white background component must be dropped
	if len(comps) != 4 {
		t.Fatalf("expected 4 black components got %d", len(comps))
	}
	if comps[0].Region.String() != "1032x788+210+144" {
		t.Fatalf("unexpected first region %s", comps[0].Region)
	}
	if comps[1].MeanColor != "srgba(0,0,0,1)" {
		t.Fatalf("srgba component lost: %+v", comps[1])
	}
}

func TestParseComponentsSkipsMalformedLines(t *testing.T) {
	listing := "Objects (id: bounding-box centroid area mean-color):\n" +
		"  garbage line\n" +
		"  1: notageometry 1.0,1.0 100 srgb(0,0,0)\n" +
		"  2: 10x10+0+0 5.0,5.0 notanumber srgb(0,0,0)\n" +
		"  3: 10x10+0+0 5.0,5.0 100 srgb(0,0,0)\n"
	comps := parseComponents(listing)
	if len(comps) != 1 {
		t.Fatalf("expected 1 component got %d", len(comps))
	}
}

func TestFilterSpecks(t *testing.T) {
	comps := parseComponents(sampleListing)
	kept := filterSpecks(comps, 0.1)
	if len(kept) != 3 {
		t.Fatalf("expected 3 photos after speck filter got %d", len(kept))
	}
	for _, c := range kept {
		if c.Area < 1000 {
			t.Fatalf("speck survived: %+v", c)
		}
	}
}

func TestFilterSpecksEmpty(t *testing.T) {
	if got := filterSpecks(nil, 0.1); got != nil {
		t.Fatalf("expected nil got %v", got)
	}
}
