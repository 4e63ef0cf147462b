package curve

import (
	"strconv"
	"time"
)

// PayloadVersion identifies the smoothed-curves payload schema.
const PayloadVersion = 2

// SourceInfo identifies where a payload's data came from.
type SourceInfo struct {
	File    string `json:"file,omitempty"`
	RunID   string `json:"runId,omitempty"`
	PlateID string `json:"plateId,omitempty"`
}

// SmoothingInfo records the smoothing configuration a payload was built with.
// Span is a string ("0.3") or a number depending on how it was configured,
// matching what downstream viewers expect.
type SmoothingInfo struct {
	Span   interface{} `json:"span"`
	Degree int         `json:"degree"`
}

// SampleCurvePayload is the aggregate smoothed curve of one sample in
// column form.
type SampleCurvePayload struct {
	Sample            string    `json:"sample"`
	TimeMin           []float64 `json:"time_min"`
	OD600SmoothedVals []float64 `json:"od600_smoothed_vals"`
}

// WellCurvePayload is one well's blank-corrected raw series in column form.
type WellCurvePayload struct {
	Sample              string    `json:"sample"`
	Well                string    `json:"well"`
	Replicate           int       `json:"replicate"`
	TimeMin             []float64 `json:"time_min"`
	OD600BlankCorrected []float64 `json:"od600_blank_corrected"`
}

// WellRef identifies a well inside a sample entry.
type WellRef struct {
	Well      string `json:"well"`
	Replicate int    `json:"replicate"`
}

// SampleEntry is the per-sample block of the smoothed payload, carrying the
// full smoothing history.
type SampleEntry struct {
	Sample  string       `json:"sample"`
	Color   string       `json:"color,omitempty"`
	Wells   []WellRef    `json:"wells"`
	History []CurveState `json:"history"`
}

// LogPhasePoint is one curve point inside a log-phase payload entry.
type LogPhasePoint struct {
	TMin  float64 `json:"t_min"`
	OD600 float64 `json:"od600"`
}

// LogPhaseEntry is the exported form of a log-phase selection.
type LogPhaseEntry struct {
	Sample    string          `json:"sample"`
	Start     float64         `json:"start"`
	End       float64         `json:"end"`
	CreatedAt time.Time       `json:"createdAt"`
	Manual    bool            `json:"manual"`
	Points    []LogPhasePoint `json:"points,omitempty"`
}

// SmoothedCurvesPayload is the exchange format consumed by viewers, exports
// and the downstream parameter stage.
type SmoothedCurvesPayload struct {
	Version      int                  `json:"version"`
	GeneratedAt  time.Time            `json:"generatedAt"`
	Source       SourceInfo           `json:"source"`
	Smoothing    SmoothingInfo        `json:"smoothing"`
	SampleCurves []SampleCurvePayload `json:"sample_curves,omitempty"`
	WellCurves   []WellCurvePayload   `json:"well_curves,omitempty"`
	Samples      []SampleEntry        `json:"samples"`
	LogPhases    []LogPhaseEntry      `json:"logPhases,omitempty"`
}

// ParameterExport is the JSON export of derived growth parameters.
type ParameterExport struct {
	GeneratedAt time.Time             `json:"generatedAt"`
	Source      SourceInfo            `json:"source"`
	Thresholds  []float64             `json:"thresholds"`
	Results     []ParameterResult     `json:"results"`
	WellResults []WellParameterResult `json:"wellResults"`
}

// ThresholdKey formats a detection threshold as a stable map key, e.g. "0.5".
func ThresholdKey(threshold float64) string {
	return strconv.FormatFloat(threshold, 'g', -1, 64)
}
