package vision

import (
	"image"
	"math"
	"testing"
)

func TestWindowSumsMatchBruteForce(t *testing.T) {
	frame := flatFrame(40, 30)
	embed(frame, gradientPattern(), image.Pt(7, 5))
	fp := newFramePlane(frame)

	cases := []struct{ x, y, w, h int }{
		{0, 0, 5, 5},
		{7, 5, 16, 16},
		{0, 10, 40, 3},
		{33, 22, 7, 8},
	}
	for _, c := range cases {
		var wantSum, wantSum2 float64
		for y := c.y; y < c.y+c.h; y++ {
			for x := c.x; x < c.x+c.w; x++ {
				g := fp.gray[y*fp.w+x]
				wantSum += g
				wantSum2 += g * g
			}
		}
		sum, sum2 := fp.windowSums(c.x, c.y, c.w, c.h)
		if math.Abs(sum-wantSum) > 1e-6 || math.Abs(sum2-wantSum2) > 1e-3 {
			t.Fatalf("window %+v sums = (%f,%f), want (%f,%f)", c, sum, sum2, wantSum, wantSum2)
		}
	}
}

func TestMatchNCCSkipsFlatTemplate(t *testing.T) {
	frame := flatFrame(40, 30)
	embed(frame, gradientPattern(), image.Pt(7, 5))
	fp := newFramePlane(frame)
	tp := newTemplatePlane(flatFrame(8, 8), 0)
	if r := matchNCC(fp, tp, MatchOptions{Threshold: 0.5}); r.Found {
		t.Fatalf("flat template reported a match: %+v", r)
	}
}

func TestMatchNCCTemplateLargerThanFrame(t *testing.T) {
	fp := newFramePlane(flatFrame(8, 8))
	tp := newTemplatePlane(gradientPattern(), 0)
	if r := matchNCC(fp, tp, MatchOptions{Threshold: 0.5}); r.Found {
		t.Fatalf("oversized template reported a match: %+v", r)
	}
}

func TestBorderCropShrinksTemplate(t *testing.T) {
	tp := newTemplatePlane(gradientPattern(), 3)
	if tp == nil {
		t.Fatalf("3px crop of a 16x16 pattern should survive")
	}
	if tp.w != 10 || tp.h != 10 {
		t.Fatalf("cropped plane is %dx%d, want 10x10", tp.w, tp.h)
	}
	if newTemplatePlane(gradientPattern(), 7) != nil {
		t.Fatalf("7px crop leaves 2x2, should be rejected")
	}
}

func TestScaleFactors(t *testing.T) {
	got := scaleFactors(ScaleOptions{MinScale: 0.5, MaxScale: 1.5, ScaleStep: 0.25})
	want := []float64{0.5, 0.75, 1.0, 1.25, 1.5}
	if len(got) != len(want) {
		t.Fatalf("factors = %v, want %v", got, want)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("factor %d = %f, want %f", i, got[i], want[i])
		}
	}
	if scaleFactors(ScaleOptions{}) != nil {
		t.Fatalf("zero options should produce no factors")
	}
	huge := scaleFactors(ScaleOptions{MinScale: 0.001, MaxScale: 1000, ScaleStep: 0.001})
	if len(huge) > maxScaleSteps {
		t.Fatalf("%d factors generated, cap is %d", len(huge), maxScaleSteps)
	}
}

func TestRescaleDimensions(t *testing.T) {
	base := newTemplatePlane(gradientPattern(), 0)
	double := base.rescale(2.0)
	if double == nil || double.w != 32 || double.h != 32 {
		t.Fatalf("2x rescale of 16x16 = %+v", double)
	}
	if base.rescale(0.1) != nil {
		t.Fatalf("0.1x rescale leaves 1x1, should be rejected")
	}
}

func TestMatchScalesFindsUnitScaleEmbed(t *testing.T) {
	pattern := gradientPattern()
	frame := flatFrame(120, 90)
	embed(frame, pattern, image.Pt(30, 20))
	fp := newFramePlane(frame)

	tpl := mustTemplate(t, "classic_fish", KindBite, pattern, 0.8)
	tpl.MultiScale = true
	best := matchScales(fp, tpl,
		MatchOptions{Threshold: 0.8, Stride: 1},
		ScaleOptions{MinScale: 0.5, MaxScale: 2.0, ScaleStep: 0.25})
	if !best.Found {
		t.Fatalf("embedded pattern not found in scale sweep")
	}
	if best.X != 30 || best.Y != 20 {
		t.Fatalf("best at (%d,%d), want (30,20)", best.X, best.Y)
	}
	if math.Abs(best.Scale-1.0) > 1e-9 {
		t.Fatalf("best scale = %f, want 1.0", best.Scale)
	}
	if best.Score < 0.99 {
		t.Fatalf("exact embed scored %f", best.Score)
	}
}

func TestPlaneAtCachesScaledTemplates(t *testing.T) {
	tpl := mustTemplate(t, "classic_fish", KindBite, gradientPattern(), 0.8)
	a := tpl.planeAt(1.5)
	b := tpl.planeAt(1.5)
	if a == nil || a != b {
		t.Fatalf("scaled plane not cached")
	}
	if tpl.planeAt(1.0) != tpl.base {
		t.Fatalf("unit scale must return the base plane")
	}
}
