package input

import (
	"image"
	"math/rand"
	"time"
)

// Humanizer perturbs click coordinates and stretches inter-action delays so
// the injected input does not form a machine-regular pattern. Bounds come
// from configuration; the randomness source is injectable so tests can pin
// the output.

// JitterParams bounds the perturbation.
type JitterParams struct {
	// MaxOffsetPx is the largest absolute pixel offset applied per axis.
	MaxOffsetPx int
	// MinDelay and MaxDelay bound the randomized inter-action pause.
	MinDelay time.Duration
	MaxDelay time.Duration
}

// Humanizer applies bounded random jitter. The zero value (nil receiver
// included) performs no perturbation: exact points, minimum delays.
type Humanizer struct {
	params JitterParams
	rng    *rand.Rand
	// Sleep is swapped for a recorder in tests.
	Sleep func(time.Duration)
}

// NewHumanizer seeds a humanizer. A fixed seed makes the sequence
// reproducible.
func NewHumanizer(params JitterParams, seed int64) *Humanizer {
	return &Humanizer{
		params: params,
		rng:    rand.New(rand.NewSource(seed)),
		Sleep:  time.Sleep,
	}
}

// Point returns pt perturbed by at most MaxOffsetPx on each axis.
func (h *Humanizer) Point(pt image.Point) image.Point {
	if h == nil || h.params.MaxOffsetPx <= 0 {
		return pt
	}
	span := 2*h.params.MaxOffsetPx + 1
	return image.Point{
		X: pt.X + h.rng.Intn(span) - h.params.MaxOffsetPx,
		Y: pt.Y + h.rng.Intn(span) - h.params.MaxOffsetPx,
	}
}

// Pause sleeps for a duration drawn from [MinDelay, MaxDelay].
func (h *Humanizer) Pause() {
	if h == nil {
		return
	}
	h.Sleep(h.delay())
}

func (h *Humanizer) delay() time.Duration {
	d := h.params.MinDelay
	if spread := h.params.MaxDelay - h.params.MinDelay; spread > 0 {
		d += time.Duration(h.rng.Int63n(int64(spread) + 1))
	}
	return d
}
