package params

import (
	"math"

	"gogrowth/domain/curve"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// ciLevel is the two-sided confidence level used for replicate spreads,
// matching the band estimator's 2.5/97.5 percentile envelope.
const ciLevel = 0.95

// Aggregate combines per-well parameter values into per-sample spreads. For
// each parameter it collects the finite values across wells and reports the
// replicate mean, the sample standard deviation (n-1 divisor, undefined
// below two values), and a normal-approximation confidence interval
// mean ± z·SD/√n with z = Φ⁻¹(0.975). Parameters with no finite well value
// get no entry; the mean alone survives for a single value.
func Aggregate(wellResults []curve.WellParameterResult) map[string]curve.ParameterSpread {
	values := make(map[string][]float64)

	collect := func(name string, v *float64) {
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			return
		}
		values[name] = append(values[name], *v)
	}

	for _, wr := range wellResults {
		collect("muMax", wr.MuMax)
		collect("td", wr.TD)
		collect("lambda", wr.Lambda)
		collect("kHat", wr.KHat)
		collect("odMax", wr.ODMax)
		collect("tInflection", wr.TInflection)
		collect("tMid", wr.TMid)
		collect("slopeAtInflection", wr.SlopeAtInflection)
		collect("auc", wr.AUC)
		for key, t := range wr.Detection {
			collect("detection_"+key, t)
		}
	}

	z := distuv.UnitNormal.Quantile(0.5 + ciLevel/2)
	spreads := make(map[string]curve.ParameterSpread, len(values))
	for name, vals := range values {
		spreads[name] = spreadOf(vals, z)
	}
	return spreads
}

func spreadOf(vals []float64, z float64) curve.ParameterSpread {
	var spread curve.ParameterSpread
	mean, err := stats.Mean(vals)
	if err != nil {
		return spread
	}
	spread.Mean = curve.Float(mean)
	if len(vals) < 2 {
		return spread
	}
	sd, err := stats.StandardDeviationSample(vals)
	if err != nil {
		return spread
	}
	spread.SD = curve.Float(sd)
	half := z * sd / math.Sqrt(float64(len(vals)))
	spread.CILow = curve.Float(mean - half)
	spread.CIHigh = curve.Float(mean + half)
	return spread
}
