package vision

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// ScaleOptions configures the multi-scale sweep used for templates whose
// on-screen size varies with the game window (Template.MultiScale).
type ScaleOptions struct {
	MinScale    float64
	MaxScale    float64
	ScaleStep   float64
	StopOnScore float64 // early stop once a scale scores this high; 0 disables
}

type scaleResult struct {
	matchResult
	Scale float64
}

// matchScales evaluates the template at every configured scale in parallel
// and returns the best match. Template planes for each factor are cached on
// the template, so repeated sweeps pay the rescale cost once.
func matchScales(fp *framePlane, t *Template, mOpts MatchOptions, sOpts ScaleOptions) scaleResult {
	factors := scaleFactors(sOpts)
	if len(factors) == 0 {
		factors = []float64{1.0}
	}

	var stopped atomic.Bool
	results := make(chan scaleResult, len(factors))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup
	for _, f := range factors {
		wg.Add(1)
		sem <- struct{}{}
		go func(factor float64) {
			defer wg.Done()
			defer func() { <-sem }()
			if stopped.Load() {
				return
			}
			plane := t.planeAt(factor)
			if plane == nil || plane.w > fp.w || plane.h > fp.h {
				return
			}
			r := matchNCC(fp, plane, mOpts)
			if sOpts.StopOnScore > 0 && r.Score >= sOpts.StopOnScore {
				stopped.Store(true)
			}
			results <- scaleResult{matchResult: r, Scale: factor}
		}(f)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	best := scaleResult{matchResult: matchResult{Score: -1}, Scale: 1.0}
	for r := range results {
		if r.Score > best.Score {
			best = r
		}
	}
	return best
}

const maxScaleSteps = 200

func scaleFactors(opts ScaleOptions) []float64 {
	if opts.MinScale <= 0 || opts.MaxScale < opts.MinScale || opts.ScaleStep <= 0 {
		return nil
	}
	var out []float64
	for f := opts.MinScale; f <= opts.MaxScale+1e-9 && len(out) < maxScaleSteps; f += opts.ScaleStep {
		out = append(out, f)
	}
	return out
}
