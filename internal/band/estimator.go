// Package band estimates confidence bands around a sample's aggregate
// smoothed curve by exact multinomial resampling of its replicate wells.
package band

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"

	"gogrowth/domain/curve"
	"gogrowth/internal/errors"
	"gogrowth/internal/smoothing"
	"gogrowth/ports"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/semaphore"
)

// Mode selects how the band envelope is built.
type Mode string

const (
	// ModePointwise takes weighted 2.5/97.5 percentiles at each grid point.
	ModePointwise Mode = "pointwise"
	// ModeSimultaneous builds a single global envelope main ± c from the
	// weighted 95th percentile of per-resample max deviations.
	ModeSimultaneous Mode = "simultaneous"
)

// Default caps for the resampling scheme. Exact enumeration of compositions
// grows as C(2m-1, m); six wells mean 462 refinements, which is the most the
// interactive path should pay.
const (
	DefaultExactLimit        = 6
	DefaultMonteCarloSamples = 200
	DefaultConcurrency       = 4
)

// Options configures a band estimate.
type Options struct {
	Refine smoothing.RefineOptions
	Mode   Mode
	// ExactLimit is the largest well count enumerated exactly; above it the
	// estimator switches to Monte-Carlo resampling.
	ExactLimit int
	// MonteCarloSamples is the number of resample vectors drawn past the
	// exact limit.
	MonteCarloSamples int
	// Concurrency bounds how many composition refinements run at once.
	Concurrency int64
	// RNG supplies the deterministic stream for Monte-Carlo resampling.
	// Required only when the well count exceeds ExactLimit.
	RNG  ports.RNGPort
	Seed int64
}

func (o *Options) applyDefaults() {
	if o.Mode == "" {
		o.Mode = ModePointwise
	}
	if o.ExactLimit <= 0 {
		o.ExactLimit = DefaultExactLimit
	}
	if o.MonteCarloSamples <= 0 {
		o.MonteCarloSamples = DefaultMonteCarloSamples
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
}

// BandPoint is one grid point of a confidence band.
type BandPoint struct {
	X    float64 `json:"x"`
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Band is a drawable confidence band around the aggregate smoothed curve.
type Band struct {
	Mode   Mode        `json:"mode"`
	Points []BandPoint `json:"points"`
	// Fallback names the rung of the fallback ladder that produced the
	// band; empty for the resampling path.
	Fallback string `json:"fallback,omitempty"`
}

// Estimate builds a confidence band for one sample's wells. It returns
// (nil, nil) when fewer than two wells exist — "no band available" is a
// normal condition, not a fault. With two or more wells the fallback ladder
// always yields a drawable band; the only hard failures are an invalid
// configuration, a main-curve refinement error, or a cancelled context.
func Estimate(ctx context.Context, wells []curve.WellCurve, opts Options) (*Band, error) {
	if err := opts.Refine.Validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()

	m := len(wells)
	if m < 2 {
		return nil, nil
	}

	grid := unionGrid(wells)
	if len(grid) == 0 {
		return nil, nil
	}

	mainPred, err := refineOnGrid(concatWells(wells), grid, opts.Refine)
	if err != nil {
		return nil, errors.Wrap(err, "band: main curve refinement failed")
	}

	comps := compositionsFor(m, opts)
	predictions, weights, err := resamplePredictions(ctx, wells, grid, comps, opts)
	if err != nil {
		return nil, err
	}

	if band := envelope(grid, mainPred, predictions, weights, opts.Mode); band != nil {
		return band, nil
	}
	// Rung one: per-well curves directly, mean ± SD across wells.
	if band := perWellFallback(wells, grid, opts.Refine, opts.Mode); band != nil {
		return band, nil
	}
	// Rung two: zero-width band on the main curve, always drawable.
	pts := make([]BandPoint, len(grid))
	for i, x := range grid {
		pts[i] = BandPoint{X: x, Low: mainPred[i], High: mainPred[i]}
	}
	return &Band{Mode: opts.Mode, Points: pts, Fallback: "main-curve"}, nil
}

func compositionsFor(m int, opts Options) []composition {
	if m <= opts.ExactLimit {
		return enumerateCompositions(m)
	}
	var rng *rand.Rand
	if opts.RNG != nil {
		rng = opts.RNG.SeededStream("band-resample", opts.Seed)
	} else {
		rng = rand.New(rand.NewSource(opts.Seed))
	}
	return sampleCompositions(m, opts.MonteCarloSamples, rng)
}

// resamplePredictions refines each composition's synthetic point set and
// evaluates it on the grid. Compositions are independent, so they run
// concurrently under a weighted semaphore; failed refinements are skipped.
// Cancellation mid fan-out is an error: a band built from a partial set of
// compositions would carry silently skewed weights.
func resamplePredictions(ctx context.Context, wells []curve.WellCurve, grid []float64, comps []composition, opts Options) ([][]float64, []float64, error) {
	sem := semaphore.NewWeighted(opts.Concurrency)
	results := make([][]float64, len(comps))

	var wg sync.WaitGroup
	var acquireErr error
	for i, comp := range comps {
		if err := sem.Acquire(ctx, 1); err != nil {
			acquireErr = err
			break
		}
		wg.Add(1)
		go func(i int, comp composition) {
			defer wg.Done()
			defer sem.Release(1)
			synthetic := syntheticPoints(wells, comp.counts)
			pred, err := refineOnGrid(synthetic, grid, opts.Refine)
			if err != nil {
				return
			}
			results[i] = pred
		}(i, comp)
	}
	wg.Wait()

	if acquireErr != nil {
		return nil, nil, acquireErr
	}

	predictions := make([][]float64, 0, len(comps))
	weights := make([]float64, 0, len(comps))
	for i, pred := range results {
		if pred == nil || comps[i].weight <= 0 {
			continue
		}
		predictions = append(predictions, pred)
		weights = append(weights, comps[i].weight)
	}
	return predictions, weights, nil
}

// envelope builds the band from resample predictions, or nil when none
// survived.
func envelope(grid []float64, mainPred []float64, predictions [][]float64, weights []float64, mode Mode) *Band {
	if len(predictions) == 0 {
		return nil
	}
	pts := make([]BandPoint, len(grid))

	switch mode {
	case ModeSimultaneous:
		deviations := make([]float64, len(predictions))
		for k, pred := range predictions {
			maxDev := 0.0
			for i := range grid {
				if d := math.Abs(pred[i] - mainPred[i]); d > maxDev {
					maxDev = d
				}
			}
			deviations[k] = maxDev
		}
		c := weightedPercentile(deviations, weights, 95)
		for i, x := range grid {
			pts[i] = BandPoint{X: x, Low: mainPred[i] - c, High: mainPred[i] + c}
		}
	default:
		vals := make([]float64, len(predictions))
		for i, x := range grid {
			for k, pred := range predictions {
				vals[k] = pred[i]
			}
			pts[i] = BandPoint{
				X:    x,
				Low:  weightedPercentile(vals, weights, 2.5),
				High: weightedPercentile(vals, weights, 97.5),
			}
		}
	}
	return &Band{Mode: mode, Points: pts}
}

// perWellFallback computes each well's own refined curve on the grid and
// takes mean ± sample SD across wells per grid point.
func perWellFallback(wells []curve.WellCurve, grid []float64, refOpts smoothing.RefineOptions, mode Mode) *Band {
	preds := make([][]float64, 0, len(wells))
	for _, w := range wells {
		pred, err := refineOnGrid(w.Points, grid, refOpts)
		if err != nil {
			continue
		}
		preds = append(preds, pred)
	}
	if len(preds) == 0 {
		return nil
	}

	pts := make([]BandPoint, len(grid))
	vals := make([]float64, len(preds))
	for i, x := range grid {
		for k, pred := range preds {
			vals[k] = pred[i]
		}
		mean, err := stats.Mean(vals)
		if err != nil {
			return nil
		}
		sd := 0.0
		if len(vals) >= 2 {
			if s, err := stats.StandardDeviationSample(vals); err == nil {
				sd = s
			}
		}
		pts[i] = BandPoint{X: x, Low: mean - sd, High: mean + sd}
	}
	return &Band{Mode: mode, Points: pts, Fallback: "per-well-sd"}
}

// refineOnGrid refines a raw point set and evaluates the result on the
// common grid by clamped piecewise-linear interpolation.
func refineOnGrid(points []curve.Point, grid []float64, opts smoothing.RefineOptions) ([]float64, error) {
	res, err := smoothing.Refine(points, opts)
	if err != nil {
		return nil, err
	}
	return interpolate(res.Points, grid), nil
}

// interpolate evaluates a curve at the grid abscissae, clamping at both
// ends.
func interpolate(pts []curve.Point, grid []float64) []float64 {
	out := make([]float64, len(grid))
	for i, x := range grid {
		out[i] = interpAt(pts, x)
	}
	return out
}

func interpAt(pts []curve.Point, x float64) float64 {
	n := len(pts)
	if x <= pts[0].X {
		return pts[0].Y
	}
	if x >= pts[n-1].X {
		return pts[n-1].Y
	}
	idx := sort.Search(n, func(i int) bool { return pts[i].X >= x })
	a, b := pts[idx-1], pts[idx]
	if b.X == a.X {
		return a.Y
	}
	frac := (x - a.X) / (b.X - a.X)
	return a.Y + frac*(b.Y-a.Y)
}

// weightedPercentile sorts values ascending and walks the cumulative weight
// until it reaches p/100 of the total. It snaps to that rank's value rather
// than interpolating between ranks.
func weightedPercentile(values, weights []float64, p float64) float64 {
	type pair struct{ v, w float64 }
	pairs := make([]pair, len(values))
	total := 0.0
	for i := range values {
		pairs[i] = pair{values[i], weights[i]}
		total += weights[i]
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].v < pairs[j].v })

	target := p / 100 * total
	cum := 0.0
	for _, pr := range pairs {
		cum += pr.w
		if cum >= target {
			return pr.v
		}
	}
	return pairs[len(pairs)-1].v
}

// unionGrid is the sorted union of all wells' time points.
func unionGrid(wells []curve.WellCurve) []float64 {
	seen := make(map[float64]struct{})
	var grid []float64
	for _, w := range wells {
		for _, p := range w.Points {
			if !p.Finite() {
				continue
			}
			if _, ok := seen[p.X]; !ok {
				seen[p.X] = struct{}{}
				grid = append(grid, p.X)
			}
		}
	}
	sort.Float64s(grid)
	return grid
}

// concatWells flattens all wells' raw points into one series sorted by time.
func concatWells(wells []curve.WellCurve) []curve.Point {
	var all []curve.Point
	for _, w := range wells {
		all = append(all, w.Points...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].X < all[j].X })
	return all
}

// syntheticPoints repeats well i's full point list counts[i] times, sorted
// by time, mirroring a with-replacement resample of whole wells.
func syntheticPoints(wells []curve.WellCurve, counts []int) []curve.Point {
	var all []curve.Point
	for i, c := range counts {
		for r := 0; r < c; r++ {
			all = append(all, wells[i].Points...)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].X < all[j].X })
	return all
}
