// Package params converts smoothed, phase-annotated growth curves into
// scalar biological parameters and combines them across replicates.
package params

import (
	"math"

	"gogrowth/domain/curve"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// LambdaMethod documents the lag-time definition this package uses: the time
// at which the log-phase regression line, extrapolated backward, equals the
// natural log of the curve's initial OD. The same definition applies at well
// and sample level.
const LambdaMethod = "logfit-initial-od-intercept"

// logFloor guards the ln transform against non-positive OD values.
const logFloor = 1e-12

// tailFrac sizes the high-time window for the plateau estimate; at least
// tailMin points are always used.
const (
	tailFrac = 0.2
	tailMin  = 3
)

// LogPhase is the time window the extractor regresses over.
type LogPhase struct {
	Start float64
	End   float64
}

// Extract derives all growth parameters from one smoothed curve. A nil
// logPhase leaves muMax, td and lambda undefined. Undefined parameters come
// back as nil pointers, never NaN.
func Extract(points []curve.Point, logPhase *LogPhase, thresholds []float64) curve.Parameters {
	var out curve.Parameters
	if len(points) == 0 {
		return out
	}

	if logPhase != nil {
		out.MuMax, out.Lambda = logFitParams(points, *logPhase)
	}
	if out.MuMax != nil && *out.MuMax > 0 {
		out.TD = curve.Float(math.Ln2 / *out.MuMax)
	}

	out.KHat = plateau(points)
	out.ODMax = curve.Float(maxY(points))
	out.TInflection, out.SlopeAtInflection = inflection(points)
	if out.KHat != nil {
		out.TMid = firstCrossing(points, *out.KHat/2)
	}
	out.AUC = curve.Float(trapezoid(points))

	if len(thresholds) > 0 {
		mono := monotonize(points)
		out.Detection = make(map[string]*float64, len(thresholds))
		for _, th := range thresholds {
			out.Detection[curve.ThresholdKey(th)] = firstCrossing(mono, th)
		}
	}
	return out
}

// logFitParams regresses ln(OD) against time inside the log-phase window and
// derives muMax and the lag time lambda from the fit line.
func logFitParams(points []curve.Point, phase LogPhase) (muMax, lambda *float64) {
	var ts, us []float64
	for _, p := range points {
		if p.X < phase.Start || p.X > phase.End {
			continue
		}
		y := p.Y
		if y <= 0 {
			y = logFloor
		}
		ts = append(ts, p.X)
		us = append(us, math.Log(y))
	}
	if len(ts) < 2 {
		return nil, nil
	}

	alpha, beta := stat.LinearRegression(ts, us, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) || math.IsInf(beta, 0) {
		return nil, nil
	}
	muMax = curve.Float(beta)

	// Lambda: where the fit line reaches the starting OD level.
	if beta > 0 {
		y0 := points[0].Y
		if y0 <= 0 {
			y0 = logFloor
		}
		l := (math.Log(y0) - alpha) / beta
		if !math.IsNaN(l) && !math.IsInf(l, 0) {
			lambda = curve.Float(l)
		}
	}
	return muMax, lambda
}

// plateau estimates the carrying capacity as the median of the high-time
// tail of the curve.
func plateau(points []curve.Point) *float64 {
	n := len(points)
	tail := int(math.Round(tailFrac * float64(n)))
	if tail < tailMin {
		tail = tailMin
	}
	if tail > n {
		tail = n
	}
	vals := make([]float64, tail)
	for i := 0; i < tail; i++ {
		vals[i] = points[n-tail+i].Y
	}
	med, err := stats.Median(vals)
	if err != nil {
		return nil
	}
	return curve.Float(med)
}

func maxY(points []curve.Point) float64 {
	m := points[0].Y
	for _, p := range points[1:] {
		if p.Y > m {
			m = p.Y
		}
	}
	return m
}

// inflection locates the steepest adjacent-point slope. The reported time is
// the midpoint of the steepest segment.
func inflection(points []curve.Point) (t, slope *float64) {
	bestSlope := math.Inf(-1)
	bestT := 0.0
	found := false
	for i := 0; i+1 < len(points); i++ {
		dx := points[i+1].X - points[i].X
		if dx <= 0 {
			continue
		}
		s := (points[i+1].Y - points[i].Y) / dx
		if math.Abs(s) > math.Abs(bestSlope) || !found {
			bestSlope = s
			bestT = (points[i].X + points[i+1].X) / 2
			found = true
		}
	}
	if !found {
		return nil, nil
	}
	return curve.Float(bestT), curve.Float(bestSlope)
}

// firstCrossing finds the first time the curve reaches level, interpolating
// linearly between the bracketing points. Nil when the level is never
// reached.
func firstCrossing(points []curve.Point, level float64) *float64 {
	if len(points) == 0 {
		return nil
	}
	if points[0].Y >= level {
		return curve.Float(points[0].X)
	}
	for i := 0; i+1 < len(points); i++ {
		a, b := points[i], points[i+1]
		if a.Y < level && b.Y >= level {
			if b.Y == a.Y {
				return curve.Float(b.X)
			}
			frac := (level - a.Y) / (b.Y - a.Y)
			return curve.Float(a.X + frac*(b.X-a.X))
		}
	}
	return nil
}

// monotonize applies a running maximum so detection times are not confused
// by small dips after a threshold is first reached.
func monotonize(points []curve.Point) []curve.Point {
	out := make([]curve.Point, len(points))
	running := math.Inf(-1)
	for i, p := range points {
		if p.Y > running {
			running = p.Y
		}
		out[i] = curve.Point{X: p.X, Y: running}
	}
	return out
}

// trapezoid integrates the curve over its full time domain.
func trapezoid(points []curve.Point) float64 {
	sum := 0.0
	for i := 0; i+1 < len(points); i++ {
		dx := points[i+1].X - points[i].X
		sum += dx * (points[i].Y + points[i+1].Y) / 2
	}
	return sum
}
