// Package logphase finds the exponential-growth window of a smoothed growth
// curve by sliding a linear regression over ln(OD) versus time.
package logphase

import (
	"math"

	"gogrowth/domain/curve"
	"gogrowth/internal/errors"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// logFloor substitutes for values at or below zero before the ln transform.
const logFloor = 1e-12

// tailLen is how many trailing valid points feed the plateau estimate.
const tailLen = 5

// Options tunes the detector. Zero values are not valid; use DefaultOptions
// as the starting point.
type Options struct {
	// WindowSize is the number of consecutive points per regression window.
	WindowSize int
	// R2Min is the minimum R² for a window to count as log-linear.
	R2Min float64
	// ODMin discards points below this OD before any window is formed.
	ODMin float64
	// FracKMax rejects windows whose values lie within this fraction of the
	// plateau estimate, where slopes flatten.
	FracKMax float64
	// MuRelMin and MuRelMax bound the accepted slope ratio µ/µmax.
	MuRelMin float64
	MuRelMax float64
}

// DefaultOptions returns the tuning the reference tool ships with.
func DefaultOptions() Options {
	return Options{
		WindowSize: 5,
		R2Min:      0.98,
		ODMin:      0.01,
		FracKMax:   0.4,
		MuRelMin:   0.8,
		MuRelMax:   1.05,
	}
}

// Validate rejects unusable tunings, naming the parameter at fault.
func (o Options) Validate() error {
	if o.WindowSize < 2 {
		return errors.InvalidInput("windowSize", "must be >= 2")
	}
	if o.R2Min <= 0 || o.R2Min >= 1 {
		return errors.InvalidInput("r2Min", "must be in (0,1)")
	}
	if o.ODMin < 0 {
		return errors.InvalidInput("odMin", "must be >= 0")
	}
	if o.FracKMax <= 0 || o.FracKMax >= 1 {
		return errors.InvalidInput("fracKMax", "must be in (0,1)")
	}
	if o.MuRelMin <= 0 || o.MuRelMax < o.MuRelMin {
		return errors.InvalidInput("muRel", "need 0 < muRelMin <= muRelMax")
	}
	return nil
}

// Detection is the detector's verdict. Nil StartTime/EndTime mean "phase
// not detected", which callers must treat as a normal outcome.
type Detection struct {
	Indices   []int    `json:"indices"`
	StartTime *float64 `json:"startTime,omitempty"`
	EndTime   *float64 `json:"endTime,omitempty"`
	MuMax     *float64 `json:"muMax,omitempty"`
	MuMean    *float64 `json:"muMean,omitempty"`
	KEst      *float64 `json:"kEst,omitempty"`
}

// Detected reports whether a log phase was found.
func (d Detection) Detected() bool {
	return d.StartTime != nil && d.EndTime != nil
}

type window struct {
	startIdx int
	endIdx   int
	slope    float64
	r2       float64
}

// Detect scans a smoothed curve for its log phase. The scan is purely a
// function of the inputs: calling it twice with the same curve and options
// yields the same range.
func Detect(points []curve.Point, opts Options) (Detection, error) {
	if err := opts.Validate(); err != nil {
		return Detection{}, err
	}

	n := len(points)
	if n == 0 {
		return Detection{}, nil
	}

	// Points below ODMin bias the slope estimate and are left out entirely.
	valid := make([]int, 0, n)
	for i, p := range points {
		if p.Y >= opts.ODMin {
			valid = append(valid, i)
		}
	}
	if len(valid) < opts.WindowSize+1 {
		return Detection{}, nil
	}

	kEst, ok := plateauEstimate(points, valid)
	if !ok {
		return Detection{}, nil
	}

	good := scanWindows(points, valid, kEst, opts)
	if len(good) == 0 {
		return Detection{KEst: curve.Float(kEst)}, nil
	}

	muMax := good[0].slope
	for _, w := range good[1:] {
		if w.slope > muMax {
			muMax = w.slope
		}
	}

	accepted := make([]window, 0, len(good))
	for _, w := range good {
		if w.slope >= opts.MuRelMin*muMax && w.slope <= opts.MuRelMax*muMax {
			accepted = append(accepted, w)
		}
	}
	if len(accepted) == 0 {
		// At minimum the steepest window itself is the phase.
		best := good[0]
		for _, w := range good[1:] {
			if w.slope > best.slope {
				best = w
			}
		}
		accepted = []window{best}
	}

	indices := longestRun(n, accepted)
	if len(indices) == 0 {
		return Detection{MuMax: curve.Float(muMax), KEst: curve.Float(kEst)}, nil
	}

	// Mean slope over the windows that overlap the selected run.
	var runMus []float64
	first, last := indices[0], indices[len(indices)-1]
	for _, w := range accepted {
		if w.endIdx >= first && w.startIdx <= last {
			runMus = append(runMus, w.slope)
		}
	}
	muMean := muMax
	if len(runMus) > 0 {
		muMean = stat.Mean(runMus, nil)
	}

	return Detection{
		Indices:   indices,
		StartTime: curve.Float(points[first].X),
		EndTime:   curve.Float(points[last].X),
		MuMax:     curve.Float(muMax),
		MuMean:    curve.Float(muMean),
		KEst:      curve.Float(kEst),
	}, nil
}

// plateauEstimate is the median of the last few valid values, a robust stand
// in for the carrying capacity before parameters are extracted.
func plateauEstimate(points []curve.Point, valid []int) (float64, bool) {
	tail := valid
	if len(tail) > tailLen {
		tail = tail[len(tail)-tailLen:]
	}
	vals := make([]float64, len(tail))
	for i, idx := range tail {
		vals[i] = points[idx].Y
	}
	k, err := stats.Median(vals)
	if err != nil || k <= 0 {
		return 0, false
	}
	return k, true
}

// scanWindows slides a WindowSize window over the remaining points and keeps
// those whose ln-regression is steep enough and clean enough.
func scanWindows(points []curve.Point, valid []int, kEst float64, opts Options) []window {
	var good []window
	ts := make([]float64, opts.WindowSize)
	us := make([]float64, opts.WindowSize)

	for k := 0; k+opts.WindowSize <= len(valid); k++ {
		idxs := valid[k : k+opts.WindowSize]

		nearPlateau := false
		for i, idx := range idxs {
			y := points[idx].Y
			if y/kEst >= opts.FracKMax {
				nearPlateau = true
				break
			}
			if y <= 0 {
				y = logFloor
			}
			ts[i] = points[idx].X
			us[i] = math.Log(y)
		}
		if nearPlateau {
			continue
		}

		alpha, beta := stat.LinearRegression(ts, us, nil, false)
		if math.IsNaN(beta) || beta <= 0 {
			continue
		}
		r2 := stat.RSquared(ts, us, nil, alpha, beta)
		if math.IsNaN(r2) || r2 < opts.R2Min {
			continue
		}
		good = append(good, window{startIdx: idxs[0], endIdx: idxs[opts.WindowSize-1], slope: beta, r2: r2})
	}
	return good
}

// longestRun merges the accepted windows into contiguous index runs and
// returns the longest one.
func longestRun(n int, accepted []window) []int {
	isLog := make([]bool, n)
	for _, w := range accepted {
		for i := w.startIdx; i <= w.endIdx; i++ {
			isLog[i] = true
		}
	}

	var best, cur []int
	for i, flag := range isLog {
		if flag {
			cur = append(cur, i)
			continue
		}
		if len(cur) > len(best) {
			best = cur
		}
		cur = nil
	}
	if len(cur) > len(best) {
		best = cur
	}
	return best
}
