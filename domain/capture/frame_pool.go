package capture

import (
	"image"
	"sync"
)

// Reusable frame pool for ROI crops. Sessions capture the same-sized
// minigame and inventory rectangles every tick; recycling the backing
// slices avoids retaining one large allocation per tick per window.

var framePool sync.Pool // stores *image.RGBA

// AcquireFrame returns an RGBA image sized to rect whose Pix slice may be
// recycled from an earlier frame. Stride is always width*4.
func AcquireFrame(rect image.Rectangle) *image.RGBA {
	w, h := rect.Dx(), rect.Dy()
	if w <= 0 || h <= 0 {
		return &image.RGBA{Rect: rect}
	}
	need := w * h * 4
	var img *image.RGBA
	if v := framePool.Get(); v != nil {
		img = v.(*image.RGBA)
	}
	if img == nil || cap(img.Pix) < need {
		return &image.RGBA{Pix: make([]byte, need), Stride: w * 4, Rect: rect}
	}
	img.Pix = img.Pix[:need]
	img.Stride = w * 4
	img.Rect = rect
	return img
}

// RecycleFrame returns a frame to the pool. The caller must not touch the
// frame afterwards.
func RecycleFrame(img *image.RGBA) {
	if img == nil || img.Pix == nil {
		return
	}
	framePool.Put(img)
}

// CopyInto copies src into a pooled frame with the same bounds.
func CopyInto(src *image.RGBA) *image.RGBA {
	if src == nil {
		return nil
	}
	dst := AcquireFrame(src.Rect)
	if dst.Stride == src.Stride {
		copy(dst.Pix, src.Pix)
		return dst
	}
	w := src.Rect.Dx() * 4
	for y := 0; y < src.Rect.Dy(); y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+w], src.Pix[y*src.Stride:y*src.Stride+w])
	}
	return dst
}
