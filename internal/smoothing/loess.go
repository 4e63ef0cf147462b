// Package smoothing implements the robust local-regression (LOESS) smoother
// and the outer refinement loop applied to growth curves before phase
// detection and parameter extraction.
package smoothing

import (
	"math"
	"sort"

	"gogrowth/domain/curve"
	"gogrowth/internal/errors"

	"github.com/montanaflynn/stats"
)

// Options configures one LOESS fit.
type Options struct {
	// Span is the local window: a fraction of the point count when in (0,1),
	// an absolute window length in points when >= 1.
	Span float64
	// Degree of the local polynomial, 1 (line) or 2 (parabola).
	Degree int
	// RobustIterations is the number of bisquare reweighting passes after
	// the initial fit. Must be at least 1.
	RobustIterations int
}

// Validate rejects configurations before any computation starts, naming the
// parameter at fault.
func (o Options) Validate() error {
	if o.Span <= 0 {
		return errors.InvalidInput("span", "must be > 0")
	}
	if o.Degree != 1 && o.Degree != 2 {
		return errors.InvalidInput("degree", "must be 1 or 2")
	}
	if o.RobustIterations < 1 {
		return errors.InvalidInput("robustIterations", "must be >= 1")
	}
	return nil
}

// Diagnostics describes how a fit went.
type Diagnostics struct {
	Window           int     `json:"window"`
	RobustIterations int     `json:"robustIterations"`
	ResidualScale    float64 `json:"residualScale"` // median absolute residual of the last pass
	MeanFallbacks    int     `json:"meanFallbacks"` // abscissae served by the degree-0 fallback
}

// Result is a smoothed curve on the same x-grid as its input.
type Result struct {
	Points      []curve.Point
	Diagnostics Diagnostics
}

// Smooth fits a robust local polynomial regression through points, which must
// be sorted ascending by X. The output preserves the count and order of the
// input; robust reweighting may drive a point's influence to zero but never
// removes it from the series.
func Smooth(points []curve.Point, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	n := len(points)
	if n == 0 {
		return nil, errors.InsufficientData("no points to smooth")
	}

	window := windowSize(opts.Span, opts.Degree, n)

	// Robust weights start uniform; each iteration refits with the combined
	// tricube x robust weight.
	robust := make([]float64, n)
	for i := range robust {
		robust[i] = 1
	}

	var fitted []float64
	diag := Diagnostics{Window: window, RobustIterations: opts.RobustIterations}

	for iter := 0; iter <= opts.RobustIterations; iter++ {
		fitted = fitPass(points, window, opts.Degree, robust, &diag)
		if iter == opts.RobustIterations {
			break
		}

		residuals := make([]float64, n)
		for i := range points {
			residuals[i] = math.Abs(points[i].Y - fitted[i])
		}
		scale, err := stats.Median(residuals)
		if err != nil || scale == 0 {
			// Perfect fit: further reweighting cannot change anything.
			diag.ResidualScale = 0
			break
		}
		diag.ResidualScale = scale
		for i, r := range residuals {
			robust[i] = bisquare(r / (6 * scale))
		}
	}

	out := make([]curve.Point, n)
	for i, p := range points {
		out[i] = curve.Point{X: p.X, Y: fitted[i]}
	}
	return &Result{Points: out, Diagnostics: diag}, nil
}

// windowSize resolves the span into a window length in points, clamped to
// [degree+1, n].
func windowSize(span float64, degree, n int) int {
	var w int
	if span < 1 {
		w = int(math.Round(span * float64(n)))
	} else {
		w = int(math.Round(span))
	}
	if w < degree+1 {
		w = degree + 1
	}
	if w > n {
		w = n
	}
	return w
}

// fitPass evaluates the weighted local polynomial at every input abscissa.
func fitPass(points []curve.Point, window, degree int, robust []float64, diag *Diagnostics) []float64 {
	n := len(points)
	fitted := make([]float64, n)
	lo := 0

	for i, p := range points {
		lo = slideWindow(points, i, window, lo)
		hi := lo + window

		maxDist := math.Max(math.Abs(points[hi-1].X-p.X), math.Abs(points[lo].X-p.X))

		weights := make([]float64, window)
		for j := lo; j < hi; j++ {
			w := robust[j]
			if maxDist > 0 {
				w *= tricube(math.Abs(points[j].X-p.X) / maxDist)
			}
			weights[j-lo] = w
		}

		y, ok := weightedPolyFit(points[lo:hi], weights, degree, p.X)
		if !ok {
			y = windowMean(points[lo:hi])
			diag.MeanFallbacks++
		}
		fitted[i] = y
	}
	return fitted
}

// slideWindow advances the k-nearest window for abscissa i, starting the
// search from the previous window's left edge. Points are sorted by X, so
// the nearest window only ever moves right.
func slideWindow(points []curve.Point, i, window, lo int) int {
	n := len(points)
	x := points[i].X
	for lo+window < n {
		// Shift right while the point just past the window is closer than
		// the current left edge.
		if math.Abs(points[lo+window].X-x) < math.Abs(points[lo].X-x) {
			lo++
		} else {
			break
		}
	}
	if lo > i {
		lo = i
	}
	if lo+window > n {
		lo = n - window
	}
	return lo
}

// weightedPolyFit solves the weighted least-squares polynomial of the given
// degree, centered at x0 for conditioning, and evaluates it at x0. It reports
// false when the window is degenerate (all-identical x, or the effective
// weighted support is smaller than degree+1).
func weightedPolyFit(pts []curve.Point, weights []float64, degree int, x0 float64) (float64, bool) {
	support := 0
	for _, w := range weights {
		if w > 0 {
			support++
		}
	}
	if support < degree+1 {
		return 0, false
	}

	dim := degree + 1
	var a [3][3]float64
	var b [3]float64
	for i, p := range pts {
		w := weights[i]
		if w == 0 {
			continue
		}
		dx := p.X - x0
		pow := [3]float64{1, dx, dx * dx}
		for r := 0; r < dim; r++ {
			for c := 0; c < dim; c++ {
				a[r][c] += w * pow[r] * pow[c]
			}
			b[r] += w * pow[r] * p.Y
		}
	}

	beta, ok := solveSymmetric(a, b, dim)
	if !ok {
		return 0, false
	}
	// Evaluated at dx = 0, only the constant term survives.
	return beta[0], true
}

// solveSymmetric solves the dim x dim normal equations with partial
// pivoting. A near-singular system (e.g. identical x in the window) reports
// false so the caller can fall back to the window mean.
func solveSymmetric(a [3][3]float64, b [3]float64, dim int) ([3]float64, bool) {
	const tiny = 1e-12
	for col := 0; col < dim; col++ {
		pivot := col
		for r := col + 1; r < dim; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < tiny {
			return b, false
		}
		if pivot != col {
			a[pivot], a[col] = a[col], a[pivot]
			b[pivot], b[col] = b[col], b[pivot]
		}
		for r := col + 1; r < dim; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c < dim; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}
	var beta [3]float64
	for r := dim - 1; r >= 0; r-- {
		sum := b[r]
		for c := r + 1; c < dim; c++ {
			sum -= a[r][c] * beta[c]
		}
		beta[r] = sum / a[r][r]
	}
	return beta, true
}

// windowMean is the degree-0 fallback: the unweighted mean of the window.
func windowMean(pts []curve.Point) float64 {
	sum := 0.0
	for _, p := range pts {
		sum += p.Y
	}
	return sum / float64(len(pts))
}

// tricube is the LOESS distance kernel (1-u^3)^3 on [0,1).
func tricube(u float64) float64 {
	if u >= 1 {
		return 0
	}
	v := 1 - u*u*u
	return v * v * v
}

// bisquare is the robustness weight (1-u^2)^2 on [0,1).
func bisquare(u float64) float64 {
	if u >= 1 {
		return 0
	}
	v := 1 - u*u
	return v * v
}

// DropNonFinite filters out points with NaN or infinite coordinates and
// returns the remainder sorted ascending by X.
func DropNonFinite(points []curve.Point) []curve.Point {
	out := make([]curve.Point, 0, len(points))
	for _, p := range points {
		if p.Finite() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].X < out[j].X })
	return out
}
