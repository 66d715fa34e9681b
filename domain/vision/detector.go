package vision

import (
	"image"
	"log/slog"
	"math"
	"sort"
	"time"
)

// Result is one classified signal from a captured frame. Bounds is the
// matched pattern rectangle in frame coordinates at the matched scale.
type Result struct {
	Template   string
	Kind       Kind
	Confidence float64
	Bounds     image.Rectangle
	At         time.Time

	index int // library declaration order, for tie-breaking
}

// Center returns the middle of the match rectangle.
func (r Result) Center() image.Point {
	return r.Bounds.Min.Add(r.Bounds.Max.Sub(r.Bounds.Min).Div(2))
}

// Detector classifies frames against a template library. It is stateless
// beyond its configuration and safe for concurrent use by many sessions.
type Detector struct {
	lib    *Library
	opts   MatchOptions
	scales ScaleOptions
	logger *slog.Logger
}

// NewDetector wires a detector over the shared template library.
func NewDetector(lib *Library, opts MatchOptions, scales ScaleOptions, logger *slog.Logger) *Detector {
	if opts.Stride <= 0 {
		opts.Stride = 1
	}
	return &Detector{lib: lib, opts: opts, scales: scales, logger: logger}
}

// Classify matches every library template of the requested kinds against
// the frame and returns all matches at or above their template's threshold,
// ordered by confidence descending. Exact confidence ties keep library
// declaration order. An empty result means "nothing detected yet", not an
// error.
func (d *Detector) Classify(frame *image.RGBA, at time.Time, kinds ...Kind) []Result {
	fp := newFramePlane(frame)
	if fp == nil {
		return nil
	}
	var out []Result
	for _, t := range d.lib.OfKind(kinds...) {
		opts := d.opts
		if t.Threshold > 0 {
			opts.Threshold = t.Threshold
		}
		var (
			m     matchResult
			scale = 1.0
		)
		if t.MultiScale {
			sr := matchScales(fp, t, opts, d.scales)
			m, scale = sr.matchResult, sr.Scale
		} else {
			m = matchNCC(fp, t.base, opts)
		}
		if !m.Found {
			continue
		}
		w, h := t.Size()
		w = int(float64(w) * scale)
		h = int(float64(h) * scale)
		res := Result{
			Template:   t.Name,
			Kind:       t.Kind,
			Confidence: m.Score,
			Bounds:     image.Rect(m.X, m.Y, m.X+w, m.Y+h).Add(frame.Bounds().Min),
			At:         at,
			index:      t.index,
		}
		out = append(out, res)
		if d.logger != nil {
			d.logger.Debug("template matched",
				"template", t.Name, "kind", t.Kind.String(),
				"confidence", m.Score, "x", res.Bounds.Min.X, "y", res.Bounds.Min.Y)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].index < out[j].index
	})
	return d.resolveFishColor(frame, out)
}

// colorTieMargin is how close two grayscale confidences must be before the
// matches count as confusable and color decides between them.
const colorTieMargin = 0.05

// resolveFishColor disambiguates fish sprites that are identical in
// grayscale but differ in hue (NCC alone cannot tell them apart, and the
// disposal rules key on the template name). When several fish results
// overlap with near-equal confidence, the template whose mean color is
// closest to the frame region wins; the others are dropped.
func (d *Detector) resolveFishColor(frame *image.RGBA, results []Result) []Result {
	if len(results) == 0 {
		return results
	}
	out := make([]Result, 0, len(results))
	claimed := make([]bool, len(results))
	for i := range results {
		if claimed[i] {
			continue
		}
		if results[i].Kind != KindFish {
			out = append(out, results[i])
			continue
		}
		best := i
		bestDist := d.colorDistance(frame, results[i])
		for j := i + 1; j < len(results); j++ {
			if claimed[j] || results[j].Kind != KindFish {
				continue
			}
			if !results[j].Bounds.Overlaps(results[i].Bounds) {
				continue
			}
			if results[i].Confidence-results[j].Confidence > colorTieMargin {
				continue
			}
			claimed[j] = true
			if dist := d.colorDistance(frame, results[j]); dist < bestDist {
				bestDist, best = dist, j
			}
		}
		winner := results[best]
		if best != i && d.logger != nil {
			d.logger.Debug("confusable fish resolved by color",
				"template", winner.Template, "over", results[i].Template)
		}
		out = append(out, winner)
	}
	return out
}

func (d *Detector) colorDistance(frame *image.RGBA, r Result) float64 {
	t := d.lib.byName(r.Template)
	if t == nil {
		return math.MaxFloat64
	}
	c := regionMeanColor(frame, r.Bounds)
	dr := c[0] - t.meanColor[0]
	dg := c[1] - t.meanColor[1]
	db := c[2] - t.meanColor[2]
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// regionMeanColor averages the frame's RGB over bounds (frame coordinates).
func regionMeanColor(frame *image.RGBA, bounds image.Rectangle) [3]float64 {
	rel := bounds.Sub(frame.Bounds().Min).Intersect(
		image.Rect(0, 0, frame.Bounds().Dx(), frame.Bounds().Dy()))
	if rel.Empty() {
		return [3]float64{}
	}
	var sum [3]float64
	for y := rel.Min.Y; y < rel.Max.Y; y++ {
		row := frame.Pix[y*frame.Stride:]
		for x := rel.Min.X; x < rel.Max.X; x++ {
			i := x * 4
			sum[0] += float64(row[i])
			sum[1] += float64(row[i+1])
			sum[2] += float64(row[i+2])
		}
	}
	n := float64(rel.Dx() * rel.Dy())
	return [3]float64{sum[0] / n, sum[1] / n, sum[2] / n}
}
