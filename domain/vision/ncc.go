package vision

import (
	"image"
	"math"
)

// Masked normalized cross-correlation over grayscale planes. The frame is
// converted once per classification pass into a framePlane whose integral
// images give O(1) window mean/variance; each template carries its own
// precomputed plane, so matching N templates against one frame shares all
// per-frame work.

// MatchOptions tunes a single NCC scan.
type MatchOptions struct {
	Threshold      float64 // minimum score for Found (a template may override)
	Stride         int     // coarse scan stride; 1 disables the refine pass
	Refine         bool    // refine around the coarse best when Stride > 1
	ReturnBestEven bool    // report best coordinates even when below threshold
}

type matchResult struct {
	X, Y  int
	Score float64
	Found bool
}

// framePlane holds per-frame grayscale values plus summed-area tables of the
// values and their squares.
type framePlane struct {
	gray       []float64
	integral   []float64
	integralSq []float64
	w, h       int
}

// newFramePlane converts an RGBA frame into its grayscale plane. Pixels are
// read straight from Pix; alpha is ignored (captures are opaque).
func newFramePlane(frame *image.RGBA) *framePlane {
	if frame == nil {
		return nil
	}
	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil
	}
	p := &framePlane{
		gray:       make([]float64, w*h),
		integral:   make([]float64, w*h),
		integralSq: make([]float64, w*h),
		w:          w,
		h:          h,
	}
	for y := 0; y < h; y++ {
		row := frame.Pix[y*frame.Stride : y*frame.Stride+w*4]
		var rowSum, rowSum2 float64
		for x := 0; x < w; x++ {
			i := x * 4
			g := 0.2126*float64(row[i]) + 0.7152*float64(row[i+1]) + 0.0722*float64(row[i+2])
			off := y*p.w + x
			p.gray[off] = g
			rowSum += g
			rowSum2 += g * g
			if y == 0 {
				p.integral[off] = rowSum
				p.integralSq[off] = rowSum2
			} else {
				p.integral[off] = p.integral[off-p.w] + rowSum
				p.integralSq[off] = p.integralSq[off-p.w] + rowSum2
			}
		}
	}
	return p
}

// windowSums returns the sum and squared sum over the w x h window whose
// top-left corner is (x, y).
func (p *framePlane) windowSums(x, y, w, h int) (sum, sum2 float64) {
	x1, y1 := x+w-1, y+h-1
	at := func(tab []float64, cx, cy int) float64 {
		if cx < 0 || cy < 0 {
			return 0
		}
		return tab[cy*p.w+cx]
	}
	sum = at(p.integral, x1, y1) - at(p.integral, x-1, y1) -
		at(p.integral, x1, y-1) + at(p.integral, x-1, y-1)
	sum2 = at(p.integralSq, x1, y1) - at(p.integralSq, x-1, y1) -
		at(p.integralSq, x1, y-1) + at(p.integralSq, x-1, y-1)
	return sum, sum2
}

// templatePlane caches a template's grayscale pixels and summary statistics.
type templatePlane struct {
	gray []float32
	w, h int
	mean float64
	std  float64
}

// newTemplatePlane grays a template image, trimming borderCrop pixels from
// every edge. Returns nil if the cropped pattern is under 4x4.
func newTemplatePlane(img image.Image, borderCrop int) *templatePlane {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	b = image.Rect(b.Min.X+borderCrop, b.Min.Y+borderCrop, b.Max.X-borderCrop, b.Max.Y-borderCrop)
	w, h := b.Dx(), b.Dy()
	if w < 4 || h < 4 {
		return nil
	}
	gray := make([]float32, w*h)
	var sum, sum2 float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			v := 0.2126*float64(r>>8) + 0.7152*float64(g>>8) + 0.0722*float64(bb>>8)
			gray[y*w+x] = float32(v)
			sum += v
			sum2 += v * v
		}
	}
	return finishPlane(gray, w, h, sum, sum2)
}

func finishPlane(gray []float32, w, h int, sum, sum2 float64) *templatePlane {
	n := float64(w * h)
	mean := sum / n
	variance := (sum2 - sum*sum/n) / n
	std := 0.0
	if variance > 0 {
		std = math.Sqrt(variance)
	}
	return &templatePlane{gray: gray, w: w, h: h, mean: mean, std: std}
}

// rescale produces a bilinearly resampled copy of the plane. Returns nil
// when the result would be smaller than 4x4.
func (t *templatePlane) rescale(factor float64) *templatePlane {
	if t == nil || factor <= 0 {
		return nil
	}
	w := int(float64(t.w) * factor)
	h := int(float64(t.h) * factor)
	if w < 4 || h < 4 {
		return nil
	}
	gray := make([]float32, w*h)
	fx := float64(t.w) / float64(w)
	fy := float64(t.h) / float64(h)
	var sum, sum2 float64
	for y := 0; y < h; y++ {
		sy := clampf((float64(y)+0.5)*fy-0.5, 0, float64(t.h-1))
		y0 := int(sy)
		y1 := min(y0+1, t.h-1)
		dy := sy - float64(y0)
		for x := 0; x < w; x++ {
			sx := clampf((float64(x)+0.5)*fx-0.5, 0, float64(t.w-1))
			x0 := int(sx)
			x1 := min(x0+1, t.w-1)
			dx := sx - float64(x0)
			top := float64(t.gray[y0*t.w+x0])*(1-dx) + float64(t.gray[y0*t.w+x1])*dx
			bottom := float64(t.gray[y1*t.w+x0])*(1-dx) + float64(t.gray[y1*t.w+x1])*dx
			v := top*(1-dy) + bottom*dy
			gray[y*w+x] = float32(v)
			sum += v
			sum2 += v * v
		}
	}
	return finishPlane(gray, w, h, sum, sum2)
}

// matchNCC scans the frame plane for the template plane and returns the best
// scoring window. Scores are normalized cross-correlation in [-1, 1]; flat
// windows (zero variance) are skipped.
func matchNCC(fp *framePlane, tp *templatePlane, opts MatchOptions) matchResult {
	res := matchResult{Score: -1}
	if fp == nil || tp == nil || fp.w < tp.w || fp.h < tp.h {
		return res
	}
	if tp.std <= 1e-9 {
		// A flat template matches nothing meaningfully.
		return res
	}
	stride := opts.Stride
	if stride <= 0 {
		stride = 1
	}
	bestX, bestY, bestScore := 0, 0, -1.0
	score := func(x, y int) (float64, bool) {
		n := float64(tp.w * tp.h)
		sumF, sumF2 := fp.windowSums(x, y, tp.w, tp.h)
		meanF := sumF / n
		varF := (sumF2 - sumF*sumF/n) / n
		if varF <= 1e-9 {
			return 0, false
		}
		var sumFT float64
		for ty := 0; ty < tp.h; ty++ {
			frow := fp.gray[(y+ty)*fp.w+x:]
			trow := tp.gray[ty*tp.w:]
			for tx := 0; tx < tp.w; tx++ {
				sumFT += frow[tx] * float64(trow[tx])
			}
		}
		numer := sumFT - n*meanF*tp.mean
		denom := n * math.Sqrt(varF) * tp.std
		if denom <= 0 {
			return 0, false
		}
		return numer / denom, true
	}
	for y := 0; y <= fp.h-tp.h; y += stride {
		for x := 0; x <= fp.w-tp.w; x += stride {
			if s, ok := score(x, y); ok && s > bestScore {
				bestScore, bestX, bestY = s, x, y
			}
		}
	}
	if opts.Refine && stride > 1 && bestScore > -1 {
		for y := max(0, bestY-stride); y <= min(fp.h-tp.h, bestY+stride); y++ {
			for x := max(0, bestX-stride); x <= min(fp.w-tp.w, bestX+stride); x++ {
				if s, ok := score(x, y); ok && s > bestScore {
					bestScore, bestX, bestY = s, x, y
				}
			}
		}
	}
	res.Score = bestScore
	res.Found = bestScore >= opts.Threshold
	if res.Found || opts.ReturnBestEven {
		res.X, res.Y = bestX, bestY
	}
	return res
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
