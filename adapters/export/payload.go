// Package export builds the exchange payloads and file exports consumed by
// viewers, the downstream parameter stage, and spreadsheet users.
package export

import (
	"encoding/json"
	"io"
	"time"

	"gogrowth/domain/curve"
)

// BuildSmoothedPayload assembles the smoothed-curves exchange payload from a
// pipeline snapshot. Sample curves come from each sample's current history
// entry; well curves carry the blank-corrected raw series.
func BuildSmoothedPayload(samples []curve.SampleCurve, phases map[string]curve.LogPhaseSelection, source curve.SourceInfo, smoothing curve.SmoothingInfo) *curve.SmoothedCurvesPayload {
	payload := &curve.SmoothedCurvesPayload{
		Version:     curve.PayloadVersion,
		GeneratedAt: time.Now().UTC(),
		Source:      source,
		Smoothing:   smoothing,
	}

	for _, sc := range samples {
		cur := sc.History.Current().Points
		times := make([]float64, len(cur))
		vals := make([]float64, len(cur))
		for i, p := range cur {
			times[i] = p.X
			vals[i] = p.Y
		}
		payload.SampleCurves = append(payload.SampleCurves, curve.SampleCurvePayload{
			Sample:            sc.Sample,
			TimeMin:           times,
			OD600SmoothedVals: vals,
		})

		wells := make([]curve.WellRef, 0, len(sc.Wells))
		for _, w := range sc.Wells {
			wells = append(wells, curve.WellRef{Well: w.Well, Replicate: w.Replicate})

			wt := make([]float64, len(w.Points))
			wv := make([]float64, len(w.Points))
			for i, p := range w.Points {
				wt[i] = p.X
				wv[i] = p.Y
			}
			payload.WellCurves = append(payload.WellCurves, curve.WellCurvePayload{
				Sample:              sc.Sample,
				Well:                w.Well,
				Replicate:           w.Replicate,
				TimeMin:             wt,
				OD600BlankCorrected: wv,
			})
		}

		payload.Samples = append(payload.Samples, curve.SampleEntry{
			Sample:  sc.Sample,
			Color:   sc.Color,
			Wells:   wells,
			History: sc.History.States(),
		})

		if sel, ok := phases[sc.Sample]; ok {
			payload.LogPhases = append(payload.LogPhases, logPhaseEntry(sel, cur))
		}
	}
	return payload
}

// logPhaseEntry attaches the curve points inside the selection so viewers
// can highlight the phase without re-slicing the history.
func logPhaseEntry(sel curve.LogPhaseSelection, pts []curve.Point) curve.LogPhaseEntry {
	entry := curve.LogPhaseEntry{
		Sample:    sel.Sample,
		Start:     sel.Start,
		End:       sel.End,
		CreatedAt: sel.CreatedAt,
		Manual:    sel.Manual,
	}
	for _, p := range pts {
		if p.X >= sel.Start && p.X <= sel.End {
			entry.Points = append(entry.Points, curve.LogPhasePoint{TMin: p.X, OD600: p.Y})
		}
	}
	return entry
}

// WriteJSON writes any export payload as indented JSON.
func WriteJSON(w io.Writer, payload interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
