package vision

import (
	"image"
	"image/color"
	"testing"
	"time"
)

// gradientPattern yields a high-variance 16x16 test pattern. R=G=B keeps
// the grayscale conversion exact.
func gradientPattern() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			v := uint8((x*13 + y*29) % 251)
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

// checkerPattern is deliberately uncorrelated with gradientPattern.
func checkerPattern() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			v := uint8(30)
			if (x/2+y/2)%2 == 0 {
				v = 220
			}
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

// flatFrame returns a uniform frame; embed stamps a pattern into it.
func flatFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 200, 200, 200, 255
	}
	return img
}

func embed(dst *image.RGBA, src *image.RGBA, at image.Point) {
	b := src.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(at.X+x, at.Y+y, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
}

func mustTemplate(t *testing.T, name string, kind Kind, img image.Image, threshold float64) *Template {
	t.Helper()
	tpl, err := NewTemplate(name, kind, img, threshold, 0)
	if err != nil {
		t.Fatalf("NewTemplate(%s): %v", name, err)
	}
	return tpl
}

func TestClassifyFindsEmbeddedPattern(t *testing.T) {
	pattern := gradientPattern()
	frame := flatFrame(120, 90)
	embed(frame, pattern, image.Pt(24, 16))

	lib := NewLibrary(mustTemplate(t, "bite_exclamation", KindBite, pattern, 0.8))
	d := NewDetector(lib, MatchOptions{Threshold: 0.8, Stride: 1}, ScaleOptions{}, nil)

	results := d.Classify(frame, time.Now(), KindBite)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.Bounds.Min != image.Pt(24, 16) {
		t.Fatalf("match at %v, want (24,16)", r.Bounds.Min)
	}
	if r.Confidence < 0.99 {
		t.Fatalf("exact embed scored %.3f, want ~1.0", r.Confidence)
	}
	if r.Template != "bite_exclamation" || r.Kind != KindBite {
		t.Fatalf("result identity = %s/%v", r.Template, r.Kind)
	}
}

func TestClassifyNeverReturnsBelowThreshold(t *testing.T) {
	// The frame holds a checker pattern; the gradient template must not
	// correlate with it above any sane threshold.
	frame := flatFrame(120, 90)
	embed(frame, checkerPattern(), image.Pt(24, 16))

	lib := NewLibrary(mustTemplate(t, "bite_exclamation", KindBite, gradientPattern(), 0.8))
	d := NewDetector(lib, MatchOptions{Threshold: 0.8, Stride: 1}, ScaleOptions{}, nil)

	if results := d.Classify(frame, time.Now(), KindBite); len(results) != 0 {
		t.Fatalf("got %d results above threshold from an uncorrelated frame: %+v", len(results), results)
	}
}

func TestClassifyEmptyOnFlatFrame(t *testing.T) {
	lib := NewLibrary(mustTemplate(t, "bite_exclamation", KindBite, gradientPattern(), 0.8))
	d := NewDetector(lib, MatchOptions{Threshold: 0.8, Stride: 1}, ScaleOptions{}, nil)
	if results := d.Classify(flatFrame(80, 60), time.Now(), KindBite); len(results) != 0 {
		t.Fatalf("flat frame produced results: %+v", results)
	}
}

func TestClassifyTieBreaksByDeclarationOrder(t *testing.T) {
	pattern := gradientPattern()
	frame := flatFrame(120, 90)
	embed(frame, pattern, image.Pt(10, 10))

	// Identical patterns score identically; declaration order must decide.
	lib := NewLibrary(
		mustTemplate(t, "bite_first", KindBite, pattern, 0.8),
		mustTemplate(t, "bite_second", KindBite, pattern, 0.8),
	)
	d := NewDetector(lib, MatchOptions{Threshold: 0.8, Stride: 1}, ScaleOptions{}, nil)
	results := d.Classify(frame, time.Now(), KindBite)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Template != "bite_first" || results[1].Template != "bite_second" {
		t.Fatalf("tie order = %s, %s", results[0].Template, results[1].Template)
	}
}

func TestClassifyFiltersByKind(t *testing.T) {
	pattern := gradientPattern()
	frame := flatFrame(120, 90)
	embed(frame, pattern, image.Pt(10, 10))

	lib := NewLibrary(
		mustTemplate(t, "bite_cue", KindBite, pattern, 0.8),
		mustTemplate(t, "carp_item", KindFish, pattern, 0.8),
	)
	d := NewDetector(lib, MatchOptions{Threshold: 0.8, Stride: 1}, ScaleOptions{}, nil)

	results := d.Classify(frame, time.Now(), KindFish)
	if len(results) != 1 || results[0].Template != "carp_item" {
		t.Fatalf("kind filter leaked: %+v", results)
	}
}

func TestStrideWithRefineFindsOddOffset(t *testing.T) {
	pattern := gradientPattern()
	frame := flatFrame(120, 90)
	embed(frame, pattern, image.Pt(25, 17))

	lib := NewLibrary(mustTemplate(t, "bite_cue", KindBite, pattern, 0.8))
	d := NewDetector(lib, MatchOptions{Threshold: 0.8, Stride: 2, Refine: true}, ScaleOptions{}, nil)
	results := d.Classify(frame, time.Now(), KindBite)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Bounds.Min != image.Pt(25, 17) {
		t.Fatalf("refined match at %v, want (25,17)", results[0].Bounds.Min)
	}
}

func TestClassifyRespectsFrameOffset(t *testing.T) {
	// Pooled frames keep their capture rectangle; results must be reported
	// in those frame coordinates.
	pattern := gradientPattern()
	frame := flatFrame(120, 90)
	embed(frame, pattern, image.Pt(24, 16))
	shifted := &image.RGBA{
		Pix:    frame.Pix,
		Stride: frame.Stride,
		Rect:   frame.Rect.Add(image.Pt(700, 300)),
	}

	lib := NewLibrary(mustTemplate(t, "bite_cue", KindBite, pattern, 0.8))
	d := NewDetector(lib, MatchOptions{Threshold: 0.8, Stride: 1}, ScaleOptions{}, nil)
	results := d.Classify(shifted, time.Now(), KindBite)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Bounds.Min != image.Pt(724, 316) {
		t.Fatalf("offset match at %v, want (724,316)", results[0].Bounds.Min)
	}
}

func TestResultCenter(t *testing.T) {
	r := Result{Bounds: image.Rect(10, 20, 30, 60)}
	if c := r.Center(); c != image.Pt(20, 40) {
		t.Fatalf("center = %v, want (20,40)", c)
	}
}

// tintedPattern shifts the gradient's red and blue channels by a constant
// while keeping the green base. The luma stays close to the neutral
// gradient, so NCC alone cannot separate the two.
func tintedPattern(dr, db int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			v := 100 + (x*13+y*29)%80
			img.Set(x, y, color.RGBA{uint8(v + dr), uint8(v), uint8(v + db), 255})
		}
	}
	return img
}

func TestClassifyDisambiguatesFishByColor(t *testing.T) {
	neutral := tintedPattern(0, 0)
	ruby := tintedPattern(34, -100)
	frame := flatFrame(120, 90)
	embed(frame, ruby, image.Pt(40, 30))

	// Grayscale correlation cannot tell these apart; the color pass must
	// keep the template whose hue matches the frame region.
	lib := NewLibrary(
		mustTemplate(t, "gray_item", KindFish, neutral, 0.8),
		mustTemplate(t, "ruby_item", KindFish, ruby, 0.8),
	)
	d := NewDetector(lib, MatchOptions{Threshold: 0.8, Stride: 1}, ScaleOptions{}, nil)

	results := d.Classify(frame, time.Now(), KindFish)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 after color disambiguation: %+v", len(results), results)
	}
	if results[0].Template != "ruby_item" {
		t.Fatalf("color pass kept %s, want ruby_item", results[0].Template)
	}
}

func TestClassifyColorPassLeavesDistinctFishAlone(t *testing.T) {
	frame := flatFrame(200, 90)
	embed(frame, gradientPattern(), image.Pt(10, 10))
	embed(frame, checkerPattern(), image.Pt(100, 10))

	// Non-overlapping fish matches are not confusable; both must survive.
	lib := NewLibrary(
		mustTemplate(t, "carp_item", KindFish, gradientPattern(), 0.8),
		mustTemplate(t, "bass_item", KindFish, checkerPattern(), 0.8),
	)
	d := NewDetector(lib, MatchOptions{Threshold: 0.8, Stride: 1}, ScaleOptions{}, nil)
	results := d.Classify(frame, time.Now(), KindFish)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2: %+v", len(results), results)
	}
}

func TestClassifyPerTemplateThresholdOverride(t *testing.T) {
	pattern := gradientPattern()
	frame := flatFrame(120, 90)
	embed(frame, pattern, image.Pt(24, 16))

	// Template threshold above a perfect score can never match.
	strict := mustTemplate(t, "bite_strict", KindBite, pattern, 1.01)
	lib := NewLibrary(strict)
	d := NewDetector(lib, MatchOptions{Threshold: 0.5, Stride: 1}, ScaleOptions{}, nil)
	if results := d.Classify(frame, time.Now(), KindBite); len(results) != 0 {
		t.Fatalf("template override ignored: %+v", results)
	}
}
