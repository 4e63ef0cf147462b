package curve

import (
	"math"
	"sort"
	"time"
)

// Point is one optical-density measurement at a time offset in minutes.
type Point struct {
	X float64 `json:"x"` // time since inoculation, minutes
	Y float64 `json:"y"` // blank-corrected OD600
}

// Finite reports whether both coordinates are finite numbers.
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// WellCurve is the measured time series of one physical well.
type WellCurve struct {
	Well      string  `json:"well"`
	Replicate int     `json:"replicate"` // 1-based within its sample
	Points    []Point `json:"points"`
}

// CurveState is one entry in a sample's smoothing history.
type CurveState struct {
	Label       string             `json:"label"`
	Points      []Point            `json:"points"`
	Diagnostics map[string]float64 `json:"diagnostics,omitempty"`
}

// SampleCurve groups the replicate wells of one logical sample together with
// its smoothing history. History entry 0 is always the raw curve aggregated
// from the wells; later entries are outputs of successive smoothing passes.
type SampleCurve struct {
	Sample  string      `json:"sample"`
	Color   string      `json:"color"`
	Wells   []WellCurve `json:"wells"`
	History *History    `json:"history"`
}

// LogPhaseSelection marks the exponential-growth interval of one sample.
// Manual selections are never overwritten by auto-detection unless forced.
type LogPhaseSelection struct {
	Sample    string    `json:"sample"`
	Start     float64   `json:"start"` // minutes, Start < End
	End       float64   `json:"end"`
	CreatedAt time.Time `json:"createdAt"`
	Manual    bool      `json:"manual"`
}

// ParameterSpread summarizes one parameter across the replicates of a
// sample: the replicate mean plus dispersion. Nil fields are undefined
// (e.g. SD with one well; the mean survives with a single value).
type ParameterSpread struct {
	Mean   *float64 `json:"mean,omitempty"`
	SD     *float64 `json:"sd,omitempty"`
	CILow  *float64 `json:"ciLow,omitempty"`
	CIHigh *float64 `json:"ciHigh,omitempty"`
}

// Parameters holds the scalar growth parameters derived from one smoothed
// curve. Nil means the parameter is undefined for that curve (flat curve,
// missing log phase, threshold never crossed); NaN never appears here.
type Parameters struct {
	MuMax             *float64            `json:"muMax,omitempty"`             // 1/min
	TD                *float64            `json:"td,omitempty"`                // doubling time, min
	Lambda            *float64            `json:"lambda,omitempty"`            // lag time, min
	KHat              *float64            `json:"kHat,omitempty"`              // carrying capacity, OD
	ODMax             *float64            `json:"odMax,omitempty"`             // curve maximum, OD
	TInflection       *float64            `json:"tInflection,omitempty"`       // min
	TMid              *float64            `json:"tMid,omitempty"`              // first crossing of KHat/2, min
	SlopeAtInflection *float64            `json:"slopeAtInflection,omitempty"` // OD/min
	AUC               *float64            `json:"auc,omitempty"`               // OD*min
	Detection         map[string]*float64 `json:"detection,omitempty"`         // threshold key -> first crossing time
}

// ParameterResult is the per-sample parameter record, computed from the
// sample-aggregated smoothed curve with cross-replicate spreads attached.
type ParameterResult struct {
	Sample     string `json:"sample"`
	Replicates int    `json:"replicates"`
	Parameters
	LambdaMethod string                     `json:"lambdaMethod,omitempty"`
	Stats        map[string]ParameterSpread `json:"stats,omitempty"`
}

// WellParameterResult carries the same parameter shape for one well, so
// callers can plot replicate scatter and feed the aggregator.
type WellParameterResult struct {
	Sample    string `json:"sample"`
	Well      string `json:"well"`
	Replicate int    `json:"replicate"`
	Parameters
}

// DatasetRow is one blank-corrected measurement as delivered by the upstream
// blank-correction stage. This package never performs blank subtraction.
type DatasetRow struct {
	Sample  string  `json:"sample"`
	Well    string  `json:"well"`
	TimeMin float64 `json:"time_min"`
	Value   float64 `json:"value"`
}

// Dataset is the full blank-corrected input for one plate run.
type Dataset struct {
	File    string       `json:"file,omitempty"`
	PlateID string       `json:"plateId,omitempty"`
	Rows    []DatasetRow `json:"rows"`
}

// GroupWells partitions the dataset rows into per-sample well curves.
// Replicate indices are assigned 1-based in well-id order within each sample.
// Non-finite rows are dropped; well points are sorted ascending by time.
func (d *Dataset) GroupWells() map[string][]WellCurve {
	type wellKey struct{ sample, well string }
	byWell := make(map[wellKey][]Point)
	for _, row := range d.Rows {
		p := Point{X: row.TimeMin, Y: row.Value}
		if !p.Finite() || p.X < 0 {
			continue
		}
		k := wellKey{row.Sample, row.Well}
		byWell[k] = append(byWell[k], p)
	}

	wellIDs := make(map[string][]string)
	for k := range byWell {
		wellIDs[k.sample] = append(wellIDs[k.sample], k.well)
	}

	grouped := make(map[string][]WellCurve, len(wellIDs))
	for sample, ids := range wellIDs {
		sort.Strings(ids)
		wells := make([]WellCurve, 0, len(ids))
		for i, id := range ids {
			pts := byWell[wellKey{sample, id}]
			sort.Slice(pts, func(a, b int) bool { return pts[a].X < pts[b].X })
			if len(pts) == 0 {
				continue
			}
			wells = append(wells, WellCurve{Well: id, Replicate: i + 1, Points: pts})
		}
		if len(wells) > 0 {
			grouped[sample] = wells
		}
	}
	return grouped
}

// Float returns a pointer to v, the conventional way to mark a defined
// optional parameter value.
func Float(v float64) *float64 { return &v }
