package smoothing

import (
	"math"

	"gogrowth/domain/curve"
	"gogrowth/internal/errors"
)

// RefineOptions bounds the iterative refinement loop.
type RefineOptions struct {
	Smoothing Options
	// MaxPasses is the pass budget. Must be at least 1.
	MaxPasses int
	// ConvergenceTol is the maximum pointwise |ΔY| between consecutive
	// passes below which the loop stops early.
	ConvergenceTol float64
}

// Validate rejects invalid refinement configurations.
func (o RefineOptions) Validate() error {
	if err := o.Smoothing.Validate(); err != nil {
		return err
	}
	if o.MaxPasses < 1 {
		return errors.InvalidInput("maxPasses", "must be >= 1")
	}
	if o.ConvergenceTol < 0 {
		return errors.InvalidInput("convergenceTol", "must be >= 0")
	}
	return nil
}

// RefineResult is the outcome of the refinement loop. Converged=false is
// not an error: the last pass's curve is still usable and callers may warn
// instead of failing.
type RefineResult struct {
	Points      []curve.Point
	Diagnostics Diagnostics
	Passes      int
	Converged   bool
}

// Refine repeatedly re-smooths a curve until consecutive passes agree within
// ConvergenceTol everywhere or the pass budget runs out. Each pass smooths
// the previous pass's output, not the raw input. Non-finite input points are
// dropped before the first fit.
func Refine(points []curve.Point, opts RefineOptions) (*RefineResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	current := DropNonFinite(points)
	if len(current) == 0 {
		return nil, errors.InsufficientData("no finite points to refine")
	}

	res := &RefineResult{}
	for pass := 1; pass <= opts.MaxPasses; pass++ {
		smoothed, err := Smooth(current, opts.Smoothing)
		if err != nil {
			return nil, err
		}
		res.Passes = pass
		res.Diagnostics = smoothed.Diagnostics

		if pass > 1 && maxAbsDelta(current, smoothed.Points) <= opts.ConvergenceTol {
			res.Points = smoothed.Points
			res.Converged = true
			return res, nil
		}
		current = smoothed.Points
	}
	res.Points = current
	return res, nil
}

// maxAbsDelta is the largest pointwise |ΔY| between two curves on the same
// grid.
func maxAbsDelta(a, b []curve.Point) float64 {
	maxD := 0.0
	for i := range a {
		if d := math.Abs(a[i].Y - b[i].Y); d > maxD {
			maxD = d
		}
	}
	return maxD
}
