package capture

import (
	"errors"
	"image"
	"testing"
)

func TestErrorTaxonomy(t *testing.T) {
	inner := errors.New("handle invalid")
	err := &Error{Reason: ReasonWindowGone, Err: inner}
	if !errors.Is(err, inner) {
		t.Fatalf("wrapped error not unwrappable")
	}
	var ce *Error
	if !errors.As(error(err), &ce) || ce.Reason != ReasonWindowGone {
		t.Fatalf("errors.As lost the reason")
	}
	if (&Error{Reason: ReasonEmptyRect}).Error() != "capture: empty rect" {
		t.Fatalf("bare error text = %q", (&Error{Reason: ReasonEmptyRect}).Error())
	}
}

func TestReasonStrings(t *testing.T) {
	cases := map[Reason]string{
		ReasonEmptyRect:  "empty rect",
		ReasonWindowGone: "window gone",
		ReasonOSFailure:  "os failure",
		Reason(99):       "unknown",
	}
	for r, want := range cases {
		if r.String() != want {
			t.Fatalf("Reason(%d) = %q, want %q", r, r.String(), want)
		}
	}
}

func TestScreenSourceRejectsEmptyRect(t *testing.T) {
	s := NewScreenSource(0)
	_, err := s.Capture(image.Rect(10, 10, 10, 50))
	var ce *Error
	if !errors.As(err, &ce) || ce.Reason != ReasonEmptyRect {
		t.Fatalf("empty rect error = %v", err)
	}
}

func TestFramePoolRoundTrip(t *testing.T) {
	rect := image.Rect(0, 0, 64, 48)
	a := AcquireFrame(rect)
	if a.Rect != rect || a.Stride != 64*4 || len(a.Pix) != 64*48*4 {
		t.Fatalf("acquired frame geometry: rect=%v stride=%d len=%d", a.Rect, a.Stride, len(a.Pix))
	}
	RecycleFrame(a)
	b := AcquireFrame(image.Rect(0, 0, 32, 32))
	if len(b.Pix) != 32*32*4 || b.Stride != 32*4 {
		t.Fatalf("recycled frame geometry: stride=%d len=%d", b.Stride, len(b.Pix))
	}
}

func TestCopyIntoPreservesPixelsAndBounds(t *testing.T) {
	src := image.NewRGBA(image.Rect(700, 300, 764, 348))
	for i := range src.Pix {
		src.Pix[i] = byte(i % 251)
	}
	dst := CopyInto(src)
	if dst.Rect != src.Rect {
		t.Fatalf("bounds = %v, want %v", dst.Rect, src.Rect)
	}
	for i := range src.Pix {
		if dst.Pix[i] != src.Pix[i] {
			t.Fatalf("pixel %d = %d, want %d", i, dst.Pix[i], src.Pix[i])
		}
	}
	RecycleFrame(dst)
}

func TestAcquireFrameEmptyRect(t *testing.T) {
	img := AcquireFrame(image.Rectangle{})
	if img == nil || img.Pix != nil {
		t.Fatalf("empty rect frame = %+v", img)
	}
	RecycleFrame(img) // must not poison the pool
}
